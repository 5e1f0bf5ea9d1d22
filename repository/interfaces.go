// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/fuel-pricing-config/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// Transactor executes a unit of work atomically. Repositories called with the
// context handed to fn join the same transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

// ConfigurationRepository defines operations for configurations
type ConfigurationRepository interface {
	Repository[models.Configuration, models.ConfigurationFilter]
	Update(ctx context.Context, cfg *models.Configuration) error
	IncrementAccessCount(ctx context.Context, id uint, at time.Time) error
	ByScope(ctx context.Context, key string, tenant models.TenantRef, module models.Module) (*models.Configuration, error)
	// FindHierarchy returns every row for key visible from tenant: system rows and the tenant's own rows,
	// restricted to module and GLOBAL when module is given.
	FindHierarchy(ctx context.Context, key string, tenant models.TenantRef, module *models.Module) ([]*models.Configuration, error)
	ListByKeys(ctx context.Context, keys []string, tenant models.TenantRef, module *models.Module) ([]*models.Configuration, error)
	ListByModule(ctx context.Context, module models.Module, tenant models.TenantRef) ([]*models.Configuration, error)
	ListByKeyPrefix(ctx context.Context, prefix string, tenant models.TenantRef) ([]*models.Configuration, error)
	ListByRefreshFrequency(ctx context.Context, freq models.RefreshFrequency) ([]*models.Configuration, error)
}

// PriceBuildupVersionRepository defines operations for price buildup versions
type PriceBuildupVersionRepository interface {
	Repository[models.PriceBuildupVersion, models.PriceBuildupVersionFilter]
	Update(ctx context.Context, version *models.PriceBuildupVersion) error
	ByIDWithDetails(ctx context.Context, id uint) (*models.PriceBuildupVersion, error)
	MaxVersionNumber(ctx context.Context, productType models.ProductType) (int, error)
	// FindOverlapping returns ACTIVE or PENDING_APPROVAL versions of productType whose range intersects [start, end).
	FindOverlapping(ctx context.Context, productType models.ProductType, start time.Time, end *time.Time, excludeID *uint) ([]*models.PriceBuildupVersion, error)
	ActiveForDate(ctx context.Context, productType models.ProductType, date time.Time) (*models.PriceBuildupVersion, error)
	// ArchiveActiveExcept archives every ACTIVE version of productType other than keepID.
	ArchiveActiveExcept(ctx context.Context, productType models.ProductType, keepID uint) (int64, error)
}

// PriceComponentRepository defines operations for price components
type PriceComponentRepository interface {
	Repository[models.PriceComponent, models.PriceComponentFilter]
	Update(ctx context.Context, component *models.PriceComponent) error
	ListByVersion(ctx context.Context, versionID uint) ([]*models.PriceComponent, error)
}

// StationTypePricingRepository defines operations for station type pricing rollups
type StationTypePricingRepository interface {
	SaveBatch(ctx context.Context, rows []*models.StationTypePricing) error
	ListByVersion(ctx context.Context, versionID uint) ([]*models.StationTypePricing, error)
	DeleteByVersion(ctx context.Context, versionID uint) error
}

// PriceBuildupAuditTrailRepository defines operations for the buildup audit trail
type PriceBuildupAuditTrailRepository interface {
	Save(ctx context.Context, entry *models.PriceBuildupAuditTrail) error
	ListByVersion(ctx context.Context, versionID uint, limit, offset int) ([]*models.PriceBuildupAuditTrail, error)
}
