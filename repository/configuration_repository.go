package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/fuel-pricing-config/models"
	"gorm.io/gorm"
)

// ConfigurationRepositoryImpl implements ConfigurationRepository interface
type ConfigurationRepositoryImpl struct {
	*BaseRepository[models.Configuration, models.ConfigurationFilter]
}

// NewConfigurationRepository creates a new configuration repository
func NewConfigurationRepository(db *gorm.DB) ConfigurationRepository {
	return &ConfigurationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Configuration, models.ConfigurationFilter](db),
	}
}

const hierarchyOrder = "inheritance_level ASC, version DESC"

// ByFilter retrieves configurations based on filter criteria
func (r *ConfigurationRepositoryImpl) ByFilter(ctx context.Context, filter models.ConfigurationFilter, orderBy string, limit, offset int) ([]*models.Configuration, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Configuration{}), filter)

	if orderBy == "" {
		orderBy = hierarchyOrder
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Configuration
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find configurations: %w", err)
	}
	return rows, nil
}

// Count returns number of configurations matching filter
func (r *ConfigurationRepositoryImpl) Count(ctx context.Context, filter models.ConfigurationFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.Configuration{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count configurations: %w", err)
	}
	return count, nil
}

// Exists checks if any configuration matches the filter
func (r *ConfigurationRepositoryImpl) Exists(ctx context.Context, filter models.ConfigurationFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// IncrementAccessCount bumps access_count and stamps last_accessed_at
func (r *ConfigurationRepositoryImpl) IncrementAccessCount(ctx context.Context, id uint, at time.Time) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Configuration{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"access_count":     gorm.Expr("access_count + 1"),
			"last_accessed_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to increment access count for configuration %d: %w", id, err)
	}
	return nil
}

// ByScope retrieves the configuration stored at exactly (key, tenant, module)
func (r *ConfigurationRepositoryImpl) ByScope(ctx context.Context, key string, tenant models.TenantRef, module models.Module) (*models.Configuration, error) {
	rows, err := r.ByFilter(ctx, models.ConfigurationFilter{
		Key:    &key,
		Tenant: &tenant,
		Module: &module,
	}, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *ConfigurationRepositoryImpl) FindHierarchy(ctx context.Context, key string, tenant models.TenantRef, module *models.Module) ([]*models.Configuration, error) {
	filter := models.ConfigurationFilter{
		Key:      &key,
		TenantIn: visibleTenants(tenant),
	}
	if module != nil {
		filter.ModuleIn = visibleModules(*module)
	}
	return r.ByFilter(ctx, filter, hierarchyOrder, 0, 0)
}

// ListByKeys retrieves the hierarchy rows of several keys at once
func (r *ConfigurationRepositoryImpl) ListByKeys(ctx context.Context, keys []string, tenant models.TenantRef, module *models.Module) ([]*models.Configuration, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	filter := models.ConfigurationFilter{
		Keys:     keys,
		TenantIn: visibleTenants(tenant),
	}
	if module != nil {
		filter.ModuleIn = visibleModules(*module)
	}
	return r.ByFilter(ctx, filter, "key ASC, "+hierarchyOrder, 0, 0)
}

// ListByModule retrieves every row of module visible from tenant
func (r *ConfigurationRepositoryImpl) ListByModule(ctx context.Context, module models.Module, tenant models.TenantRef) ([]*models.Configuration, error) {
	return r.ByFilter(ctx, models.ConfigurationFilter{
		Module:   &module,
		TenantIn: visibleTenants(tenant),
	}, "key ASC, "+hierarchyOrder, 0, 0)
}

// ListByKeyPrefix retrieves every row whose key starts with prefix, visible from tenant
func (r *ConfigurationRepositoryImpl) ListByKeyPrefix(ctx context.Context, prefix string, tenant models.TenantRef) ([]*models.Configuration, error) {
	return r.ByFilter(ctx, models.ConfigurationFilter{
		KeyPrefix: &prefix,
		TenantIn:  visibleTenants(tenant),
	}, "key ASC, "+hierarchyOrder, 0, 0)
}

// ListByRefreshFrequency retrieves active rows refreshed at freq
func (r *ConfigurationRepositoryImpl) ListByRefreshFrequency(ctx context.Context, freq models.RefreshFrequency) ([]*models.Configuration, error) {
	active := true
	return r.ByFilter(ctx, models.ConfigurationFilter{
		RefreshFrequency: &freq,
		IsActive:         &active,
	}, "key ASC", 0, 0)
}

func visibleTenants(tenant models.TenantRef) []models.TenantRef {
	if tenant.IsSet() {
		return []models.TenantRef{models.SystemScope(), tenant}
	}
	return []models.TenantRef{models.SystemScope()}
}

func visibleModules(module models.Module) []models.Module {
	if module == models.ModuleGlobal {
		return []models.Module{models.ModuleGlobal}
	}
	return []models.Module{module, models.ModuleGlobal}
}

func tenantClause(db *gorm.DB, tenant models.TenantRef) *gorm.DB {
	if tenant.IsSet() {
		return db.Where("tenant_id = ?", tenant.ID())
	}
	return db.Where("tenant_id IS NULL")
}

// applyFilter applies filter criteria to a GORM query
func (r *ConfigurationRepositoryImpl) applyFilter(query *gorm.DB, filter models.ConfigurationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Key != nil {
		query = query.Where("key = ?", *filter.Key)
	}
	if len(filter.Keys) > 0 {
		query = query.Where("key IN ?", filter.Keys)
	}
	if filter.KeyPrefix != nil {
		query = query.Where("key LIKE ?", escapeLike(*filter.KeyPrefix)+"%")
	}
	if filter.Tenant != nil {
		query = tenantClause(query, *filter.Tenant)
	}
	if len(filter.TenantIn) > 0 {
		var ids []string
		includeSystem := false
		for _, t := range filter.TenantIn {
			if t.IsSet() {
				ids = append(ids, t.ID())
			} else {
				includeSystem = true
			}
		}
		switch {
		case includeSystem && len(ids) > 0:
			query = query.Where("(tenant_id IS NULL OR tenant_id IN ?)", ids)
		case includeSystem:
			query = query.Where("tenant_id IS NULL")
		default:
			query = query.Where("tenant_id IN ?", ids)
		}
	}
	if filter.Module != nil {
		query = query.Where("module = ?", *filter.Module)
	}
	if len(filter.ModuleIn) > 0 {
		query = query.Where("module IN ?", filter.ModuleIn)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Environment != nil {
		query = query.Where("environment = ?", *filter.Environment)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.FeatureFlag != nil {
		query = query.Where("feature_flag = ?", *filter.FeatureFlag)
	}
	if filter.RefreshFrequency != nil {
		query = query.Where("refresh_frequency = ?", *filter.RefreshFrequency)
	}
	return query
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
