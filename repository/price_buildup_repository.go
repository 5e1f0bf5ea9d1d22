package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/utils"
	"gorm.io/gorm"
)

// PriceBuildupVersionRepositoryImpl implements PriceBuildupVersionRepository interface
type PriceBuildupVersionRepositoryImpl struct {
	*BaseRepository[models.PriceBuildupVersion, models.PriceBuildupVersionFilter]
}

// NewPriceBuildupVersionRepository creates a new price buildup version repository
func NewPriceBuildupVersionRepository(db *gorm.DB) PriceBuildupVersionRepository {
	return &PriceBuildupVersionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PriceBuildupVersion, models.PriceBuildupVersionFilter](db),
	}
}

// ByIDWithDetails retrieves a version with its components and station type rollups
func (r *PriceBuildupVersionRepositoryImpl) ByIDWithDetails(ctx context.Context, id uint) (*models.PriceBuildupVersion, error) {
	db := r.getDB(ctx)

	var version models.PriceBuildupVersion
	err := db.Preload("Components", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC, id ASC")
	}).
		Preload("StationTypePricing", func(db *gorm.DB) *gorm.DB {
			return db.Order("station_type ASC")
		}).
		Last(&version, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find buildup version %d: %w", id, err)
	}

	return &version, nil
}

// MaxVersionNumber returns the highest version number for productType, 0 when none exist
func (r *PriceBuildupVersionRepositoryImpl) MaxVersionNumber(ctx context.Context, productType models.ProductType) (int, error) {
	db := r.getDB(ctx)

	var maxVersion *int
	err := db.Model(&models.PriceBuildupVersion{}).
		Where("product_type = ?", productType).
		Select("MAX(version_number)").
		Scan(&maxVersion).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read max version number: %w", err)
	}
	return utils.Deref(maxVersion, 0), nil
}

func (r *PriceBuildupVersionRepositoryImpl) FindOverlapping(ctx context.Context, productType models.ProductType, start time.Time, end *time.Time, excludeID *uint) ([]*models.PriceBuildupVersion, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PriceBuildupVersion{}).
		Where("product_type = ?", productType).
		Where("status IN ?", []models.BuildupStatus{models.BuildupStatusActive, models.BuildupStatusPendingApproval}).
		Where("(expiry_date IS NULL OR expiry_date > ?)", start)
	if end != nil {
		query = query.Where("effective_date < ?", *end)
	}
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var rows []*models.PriceBuildupVersion
	if err := query.Order("effective_date ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find overlapping versions: %w", err)
	}
	return rows, nil
}

// ActiveForDate retrieves the active version covering date with its components loaded
func (r *PriceBuildupVersionRepositoryImpl) ActiveForDate(ctx context.Context, productType models.ProductType, date time.Time) (*models.PriceBuildupVersion, error) {
	db := r.getDB(ctx)

	var version models.PriceBuildupVersion
	err := db.Preload("Components", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC, id ASC")
	}).
		Where("product_type = ?", productType).
		Where("status = ?", models.BuildupStatusActive).
		Where("is_active = ?", true).
		Where("effective_date <= ?", date).
		Where("(expiry_date IS NULL OR expiry_date > ?)", date).
		Order("effective_date DESC, version_number DESC").
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active version: %w", err)
	}
	return &version, nil
}

func (r *PriceBuildupVersionRepositoryImpl) ArchiveActiveExcept(ctx context.Context, productType models.ProductType, keepID uint) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.PriceBuildupVersion{}).
		Where("product_type = ?", productType).
		Where("status = ?", models.BuildupStatusActive).
		Where("id <> ?", keepID).
		Updates(map[string]any{
			"status":     models.BuildupStatusArchived,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to archive active versions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ByFilter retrieves buildup versions based on filter criteria
func (r *PriceBuildupVersionRepositoryImpl) ByFilter(ctx context.Context, filter models.PriceBuildupVersionFilter, orderBy string, limit, offset int) ([]*models.PriceBuildupVersion, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PriceBuildupVersion{}), filter)

	if filter.InclComponents {
		query = query.Preload("Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC, id ASC")
		})
	}
	if filter.InclStationPrices {
		query = query.Preload("StationTypePricing")
	}

	if orderBy == "" {
		orderBy = "product_type ASC, version_number DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.PriceBuildupVersion
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find buildup versions: %w", err)
	}
	return rows, nil
}

// Count returns number of buildup versions matching filter
func (r *PriceBuildupVersionRepositoryImpl) Count(ctx context.Context, filter models.PriceBuildupVersionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.PriceBuildupVersion{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count buildup versions: %w", err)
	}
	return count, nil
}

// Exists checks if any buildup version matches the filter
func (r *PriceBuildupVersionRepositoryImpl) Exists(ctx context.Context, filter models.PriceBuildupVersionFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *PriceBuildupVersionRepositoryImpl) applyFilter(query *gorm.DB, filter models.PriceBuildupVersionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.ProductType != nil {
		query = query.Where("product_type = ?", *filter.ProductType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if len(filter.StatusIn) > 0 {
		query = query.Where("status IN ?", filter.StatusIn)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.EffectiveFrom != nil {
		query = query.Where("effective_date >= ?", *filter.EffectiveFrom)
	}
	if filter.EffectiveTo != nil {
		query = query.Where("effective_date <= ?", *filter.EffectiveTo)
	}
	if filter.ExcludeID != nil {
		query = query.Where("id <> ?", *filter.ExcludeID)
	}
	if filter.PublishedOnly {
		query = query.Where("published_date IS NOT NULL")
	}
	return query
}

// PriceComponentRepositoryImpl implements PriceComponentRepository interface
type PriceComponentRepositoryImpl struct {
	*BaseRepository[models.PriceComponent, models.PriceComponentFilter]
}

// NewPriceComponentRepository creates a new price component repository
func NewPriceComponentRepository(db *gorm.DB) PriceComponentRepository {
	return &PriceComponentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PriceComponent, models.PriceComponentFilter](db),
	}
}

// ListByVersion retrieves a version's components in display order
func (r *PriceComponentRepositoryImpl) ListByVersion(ctx context.Context, versionID uint) ([]*models.PriceComponent, error) {
	return r.ByFilter(ctx, models.PriceComponentFilter{BuildupVersionID: &versionID}, "", 0, 0)
}

// ByFilter retrieves components based on filter criteria
func (r *PriceComponentRepositoryImpl) ByFilter(ctx context.Context, filter models.PriceComponentFilter, orderBy string, limit, offset int) ([]*models.PriceComponent, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PriceComponent{}), filter)

	if orderBy == "" {
		orderBy = "display_order ASC, id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.PriceComponent
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find price components: %w", err)
	}
	return rows, nil
}

// Count returns number of components matching filter
func (r *PriceComponentRepositoryImpl) Count(ctx context.Context, filter models.PriceComponentFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.PriceComponent{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count price components: %w", err)
	}
	return count, nil
}

// Exists checks if any component matches the filter
func (r *PriceComponentRepositoryImpl) Exists(ctx context.Context, filter models.PriceComponentFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *PriceComponentRepositoryImpl) applyFilter(query *gorm.DB, filter models.PriceComponentFilter) *gorm.DB {
	if filter.BuildupVersionID != nil {
		query = query.Where("buildup_version_id = ?", *filter.BuildupVersionID)
	}
	if filter.ComponentType != nil {
		query = query.Where("component_type = ?", *filter.ComponentType)
	}
	if filter.StationType != nil {
		query = query.Where("(station_type IS NULL OR station_type = ?)", *filter.StationType)
	}
	return query
}

// StationTypePricingRepositoryImpl implements StationTypePricingRepository interface
type StationTypePricingRepositoryImpl struct {
	*BaseRepository[models.StationTypePricing, struct{}]
}

// NewStationTypePricingRepository creates a new station type pricing repository
func NewStationTypePricingRepository(db *gorm.DB) StationTypePricingRepository {
	return &StationTypePricingRepositoryImpl{
		BaseRepository: NewBaseRepository[models.StationTypePricing, struct{}](db),
	}
}

// ListByVersion retrieves a version's rollups ordered by station type
func (r *StationTypePricingRepositoryImpl) ListByVersion(ctx context.Context, versionID uint) ([]*models.StationTypePricing, error) {
	db := r.getDB(ctx)
	var rows []*models.StationTypePricing
	err := db.Where("buildup_version_id = ?", versionID).
		Order("station_type ASC, product_type ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list station type pricing: %w", err)
	}
	return rows, nil
}

// DeleteByVersion removes every rollup of a version
func (r *StationTypePricingRepositoryImpl) DeleteByVersion(ctx context.Context, versionID uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		err := db.Where("buildup_version_id = ?", versionID).
			Delete(&models.StationTypePricing{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete station type pricing: %w", err)
		}
		return nil
	})
}

// PriceBuildupAuditTrailRepositoryImpl implements PriceBuildupAuditTrailRepository interface
type PriceBuildupAuditTrailRepositoryImpl struct {
	*BaseRepository[models.PriceBuildupAuditTrail, struct{}]
}

// NewPriceBuildupAuditTrailRepository creates a new audit trail repository
func NewPriceBuildupAuditTrailRepository(db *gorm.DB) PriceBuildupAuditTrailRepository {
	return &PriceBuildupAuditTrailRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PriceBuildupAuditTrail, struct{}](db),
	}
}

// ListByVersion retrieves audit entries for a version, newest first
func (r *PriceBuildupAuditTrailRepositoryImpl) ListByVersion(ctx context.Context, versionID uint, limit, offset int) ([]*models.PriceBuildupAuditTrail, error) {
	db := r.getDB(ctx)
	query := db.Where("buildup_version_id = ?", versionID).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.PriceBuildupAuditTrail
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit trail: %w", err)
	}
	return rows, nil
}
