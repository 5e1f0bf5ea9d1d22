package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/fuel-pricing-config/app/dto"
	"github.com/amirphl/fuel-pricing-config/app/services"
	"github.com/amirphl/fuel-pricing-config/config"
	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/repository"
	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

const configCachePrefix = "config:"

// ConfigurationFlow resolves effective configuration values and manages configuration rows
type ConfigurationFlow interface {
	Get(ctx context.Context, key string, tenant models.TenantRef, module *models.Module, useCache bool) (any, error)
	GetString(ctx context.Context, key string, tenant models.TenantRef, module *models.Module) (string, bool, error)
	GetNumber(ctx context.Context, key string, tenant models.TenantRef, module *models.Module) (float64, bool, error)
	GetBool(ctx context.Context, key string, tenant models.TenantRef, module *models.Module) (bool, bool, error)
	GetMultiple(ctx context.Context, keys []string, tenant models.TenantRef, module *models.Module) (map[string]any, error)
	GetModuleConfigurations(ctx context.Context, module models.Module, tenant models.TenantRef) (map[string]any, error)
	ClearCache(ctx context.Context) error
	RefreshCache(ctx context.Context) (int, error)

	Create(ctx context.Context, req *dto.CreateConfigurationRequest, actor string) (*dto.ConfigurationResponse, error)
	Update(ctx context.Context, id uint, req *dto.UpdateConfigurationRequest, actor string) (*dto.ConfigurationResponse, error)
	Delete(ctx context.Context, id uint, actor string) error
	BulkUpdate(ctx context.Context, items []dto.BulkUpdateItem, actor string) int
	GetByID(ctx context.Context, id uint) (*dto.ConfigurationResponse, error)
	List(ctx context.Context, req *dto.ListConfigurationsRequest) (*dto.ListConfigurationsResponse, error)
}

// ConfigurationFlowImpl implements ConfigurationFlow
type ConfigurationFlowImpl struct {
	configRepo  repository.ConfigurationRepository
	cache       services.Cache
	encryptor   services.Encryptor
	events      services.EventPublisher
	tracker     services.AccessTracker
	cacheConfig config.CacheConfig
	storeConfig config.StoreConfig
	clock       utils.Clock
	logger      *log.Logger
	validate    *validator.Validate
	group       singleflight.Group
}

// cachedConfiguration is what the resolution engine stores per cache key.
// Encrypted values stay encrypted in the cache.
type cachedConfiguration struct {
	ID        uint            `json:"id"`
	DataType  models.DataType `json:"data_type"`
	Raw       *string         `json:"raw,omitempty"`
	Encrypted bool            `json:"encrypted"`
}

// NewConfigurationFlow creates a new configuration flow instance
func NewConfigurationFlow(
	configRepo repository.ConfigurationRepository,
	cache services.Cache,
	encryptor services.Encryptor,
	events services.EventPublisher,
	tracker services.AccessTracker,
	cacheConfig config.CacheConfig,
	storeConfig config.StoreConfig,
	clock utils.Clock,
	logger *log.Logger,
) ConfigurationFlow {
	if events == nil {
		events = services.NoopEventPublisher{}
	}
	if tracker == nil {
		tracker = services.NoopAccessTracker{}
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ConfigurationFlowImpl{
		configRepo:  configRepo,
		cache:       cache,
		encryptor:   encryptor,
		events:      events,
		tracker:     tracker,
		cacheConfig: cacheConfig,
		storeConfig: storeConfig,
		clock:       clock,
		logger:      logger,
		validate:    validator.New(),
	}
}

// ConfigCacheKey renders the cache key of a resolution request
func ConfigCacheKey(key string, tenant models.TenantRef, module *models.Module) string {
	return configCachePrefix + key + ":" + tenant.CacheSegment() + ":" + models.ModuleCacheSegment(module)
}

// ResolveEffective picks the effective row of one key's hierarchy at now. Higher inheritance
// levels win; within a level rows of the requested module beat GLOBAL ones, tenant rows beat
// system rows and newer versions beat older ones. Rows that are not active and effective are skipped.
func ResolveEffective(rows []*models.Configuration, module *models.Module, now time.Time) *models.Configuration {
	ordered := make([]*models.Configuration, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.InheritanceLevel != b.InheritanceLevel {
			return a.InheritanceLevel > b.InheritanceLevel
		}
		if module != nil {
			am, bm := a.Module == *module, b.Module == *module
			if am != bm {
				return am
			}
		}
		at, bt := a.TenantID != nil, b.TenantID != nil
		if at != bt {
			return at
		}
		return a.Version > b.Version
	})
	for _, r := range ordered {
		if r.IsResolvable(now) {
			return r
		}
	}
	return nil
}

func envelopeOf(row *models.Configuration) *cachedConfiguration {
	return &cachedConfiguration{
		ID:        row.ID,
		DataType:  row.DataType,
		Raw:       row.RawValue(),
		Encrypted: row.IsEncrypted && row.EncryptedValue != nil,
	}
}

func groupByKey(rows []*models.Configuration) map[string][]*models.Configuration {
	grouped := make(map[string][]*models.Configuration)
	for _, r := range rows {
		grouped[r.Key] = append(grouped[r.Key], r)
	}
	return grouped
}

func (f *ConfigurationFlowImpl) configTTL() time.Duration {
	if f.cacheConfig.ConfigTTL > 0 {
		return f.cacheConfig.ConfigTTL
	}
	return utils.ConfigCacheTTL
}

// Get returns the effective value of key for tenant and module, or nil when nothing in the
// hierarchy is currently effective.
func (f *ConfigurationFlowImpl) Get(ctx context.Context, key string, tenant models.TenantRef, module *models.Module, useCache bool) (any, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrConfigurationKeyRequired
	}
	start := time.Now()
	cacheKey := ConfigCacheKey(key, tenant, module)

	if useCache {
		if entry, ok := f.readCache(ctx, cacheKey); ok {
			f.track(entry)
			services.ObserveConfigResolve("cache", time.Since(start).Seconds())
			return f.decode(entry)
		}
		// the shared load outlives any single caller; loadFromStore bounds it by the store timeout
		ch := f.group.DoChan(cacheKey, func() (any, error) {
			return f.loadFromStore(context.WithoutCancel(ctx), key, tenant, module, true)
		})
		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		entry, _ := res.Val.(*cachedConfiguration)
		f.track(entry)
		services.ObserveConfigResolve("store", time.Since(start).Seconds())
		return f.decode(entry)
	}

	entry, err := f.loadFromStore(ctx, key, tenant, module, false)
	if err != nil {
		return nil, err
	}
	f.track(entry)
	services.ObserveConfigResolve("store", time.Since(start).Seconds())
	return f.decode(entry)
}

func (f *ConfigurationFlowImpl) GetString(ctx context.Context, key string, tenant models.TenantRef, module *models.Module) (string, bool, error) {
	v, err := f.Get(ctx, key, tenant, module, true)
	if err != nil || v == nil {
		return "", false, err
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case time.Time:
		return val.Format(time.RFC3339), true, nil
	default:
		bs, err := json.Marshal(val)
		if err != nil {
			return "", false, fmt.Errorf("failed to render configuration %s: %w", key, err)
		}
		return string(bs), true, nil
	}
}

func (f *ConfigurationFlowImpl) GetNumber(ctx context.Context, key string, tenant models.TenantRef, module *models.Module) (float64, bool, error) {
	v, err := f.Get(ctx, key, tenant, module, true)
	if err != nil || v == nil {
		return 0, false, err
	}
	switch val := v.(type) {
	case float64:
		return val, true, nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false, fmt.Errorf("%s: %w", key, ErrInvalidNumber)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("%s: %w", key, ErrInvalidNumber)
	}
}

func (f *ConfigurationFlowImpl) GetBool(ctx context.Context, key string, tenant models.TenantRef, module *models.Module) (bool, bool, error) {
	v, err := f.Get(ctx, key, tenant, module, true)
	if err != nil || v == nil {
		return false, false, err
	}
	switch val := v.(type) {
	case bool:
		return val, true, nil
	case string:
		return strings.EqualFold(strings.TrimSpace(val), "true"), true, nil
	default:
		return false, false, fmt.Errorf("%s: %w", key, ErrInvalidBoolean)
	}
}

// GetMultiple resolves several keys with one store query for the keys missing from cache.
// Keys without an effective value map to nil.
func (f *ConfigurationFlowImpl) GetMultiple(ctx context.Context, keys []string, tenant models.TenantRef, module *models.Module) (map[string]any, error) {
	result := make(map[string]any, len(keys))
	seen := make(map[string]struct{}, len(keys))
	var missing []string
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if entry, ok := f.readCache(ctx, ConfigCacheKey(key, tenant, module)); ok {
			v, err := f.decode(entry)
			if err != nil {
				return nil, err
			}
			f.track(entry)
			result[key] = v
			continue
		}
		missing = append(missing, key)
	}
	if len(missing) == 0 {
		return result, nil
	}

	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	rows, err := f.configRepo.ListByKeys(sctx, missing, tenant, module)
	cancel()
	if err != nil {
		return nil, NewBusinessError("CONFIGURATION_LOOKUP_FAILED", "Failed to load configurations", err)
	}
	if err := f.resolveGrouped(ctx, missing, rows, tenant, module, result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetModuleConfigurations resolves every key stored under module. Only keys with an
// effective value are returned.
func (f *ConfigurationFlowImpl) GetModuleConfigurations(ctx context.Context, module models.Module, tenant models.TenantRef) (map[string]any, error) {
	if !module.Valid() {
		return nil, fmt.Errorf("%q: %w", module, ErrInvalidModule)
	}
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()

	moduleRows, err := f.configRepo.ListByModule(sctx, module, tenant)
	if err != nil {
		return nil, NewBusinessError("CONFIGURATION_LOOKUP_FAILED", "Failed to load module configurations", err)
	}
	keys := make([]string, 0, len(moduleRows))
	seen := make(map[string]struct{}, len(moduleRows))
	for _, r := range moduleRows {
		if _, ok := seen[r.Key]; ok {
			continue
		}
		seen[r.Key] = struct{}{}
		keys = append(keys, r.Key)
	}
	if len(keys) == 0 {
		return map[string]any{}, nil
	}

	// pull the GLOBAL fallbacks of the same keys
	rows, err := f.configRepo.ListByKeys(sctx, keys, tenant, &module)
	if err != nil {
		return nil, NewBusinessError("CONFIGURATION_LOOKUP_FAILED", "Failed to load module configurations", err)
	}
	result := make(map[string]any, len(keys))
	if err := f.resolveGrouped(ctx, keys, rows, tenant, &module, result); err != nil {
		return nil, err
	}
	for k, v := range result {
		if v == nil {
			delete(result, k)
		}
	}
	return result, nil
}

func (f *ConfigurationFlowImpl) resolveGrouped(ctx context.Context, keys []string, rows []*models.Configuration, tenant models.TenantRef, module *models.Module, out map[string]any) error {
	grouped := groupByKey(rows)
	now := f.clock.Now()
	for _, key := range keys {
		row := ResolveEffective(grouped[key], module, now)
		if row == nil {
			out[key] = nil
			continue
		}
		entry := envelopeOf(row)
		f.writeCache(ctx, ConfigCacheKey(key, tenant, module), entry, row.CacheTTL(f.configTTL()))
		v, err := f.decode(entry)
		if err != nil {
			return err
		}
		f.track(entry)
		out[key] = v
	}
	return nil
}

// ClearCache drops every cached configuration value
func (f *ConfigurationFlowImpl) ClearCache(ctx context.Context) error {
	if err := f.cache.DeletePrefix(ctx, configCachePrefix); err != nil {
		return fmt.Errorf("failed to clear configuration cache: %w", err)
	}
	return nil
}

// RefreshCache re-resolves the natural scope of every REAL_TIME configuration from the store
// and repopulates the cache. It returns the number of scopes that resolved to a value.
func (f *ConfigurationFlowImpl) RefreshCache(ctx context.Context) (int, error) {
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	rows, err := f.configRepo.ListByRefreshFrequency(sctx, models.RefreshFrequencyRealTime)
	cancel()
	if err != nil {
		return 0, NewBusinessError("CONFIGURATION_REFRESH_FAILED", "Failed to list real-time configurations", err)
	}

	seen := make(map[string]struct{}, len(rows))
	refreshed := 0
	for _, row := range rows {
		var module *models.Module
		if row.Module != models.ModuleGlobal {
			m := row.Module
			module = &m
		}
		tenant := row.Tenant()
		cacheKey := ConfigCacheKey(row.Key, tenant, module)
		if _, ok := seen[cacheKey]; ok {
			continue
		}
		seen[cacheKey] = struct{}{}

		entry, err := f.loadFromStore(ctx, row.Key, tenant, module, true)
		if err != nil {
			f.logger.Printf("configuration refresh: %s: %v", cacheKey, err)
			continue
		}
		if entry == nil {
			if err := f.cache.Delete(ctx, cacheKey); err != nil {
				f.logger.Printf("configuration refresh: evict %s: %v", cacheKey, err)
			}
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func (f *ConfigurationFlowImpl) loadFromStore(ctx context.Context, key string, tenant models.TenantRef, module *models.Module, fill bool) (*cachedConfiguration, error) {
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()

	rows, err := f.configRepo.FindHierarchy(sctx, key, tenant, module)
	if err != nil {
		return nil, NewBusinessError("CONFIGURATION_LOOKUP_FAILED", "Failed to load configuration hierarchy", err)
	}
	row := ResolveEffective(rows, module, f.clock.Now())
	if row == nil {
		return nil, nil
	}
	entry := envelopeOf(row)
	if fill {
		f.writeCache(ctx, ConfigCacheKey(key, tenant, module), entry, row.CacheTTL(f.configTTL()))
	}
	return entry, nil
}

func (f *ConfigurationFlowImpl) readCache(ctx context.Context, cacheKey string) (*cachedConfiguration, bool) {
	bs, ok, err := f.cache.Get(ctx, cacheKey)
	if err != nil {
		services.ObserveCacheLookup("config", "error")
		f.logger.Printf("configuration cache read %s: %v", cacheKey, err)
		return nil, false
	}
	if !ok {
		services.ObserveCacheLookup("config", "miss")
		return nil, false
	}
	var entry cachedConfiguration
	if err := json.Unmarshal(bs, &entry); err != nil {
		services.ObserveCacheLookup("config", "error")
		_ = f.cache.Delete(ctx, cacheKey)
		return nil, false
	}
	services.ObserveCacheLookup("config", "hit")
	return &entry, true
}

func (f *ConfigurationFlowImpl) writeCache(ctx context.Context, cacheKey string, entry *cachedConfiguration, ttl time.Duration) {
	bs, err := json.Marshal(entry)
	if err != nil {
		f.logger.Printf("configuration cache encode %s: %v", cacheKey, err)
		return
	}
	if err := f.cache.Set(ctx, cacheKey, bs, ttl); err != nil {
		f.logger.Printf("configuration cache write %s: %v", cacheKey, err)
	}
}

func (f *ConfigurationFlowImpl) track(entry *cachedConfiguration) {
	if entry != nil && entry.ID != 0 {
		f.tracker.Track(entry.ID)
	}
}

func (f *ConfigurationFlowImpl) decode(entry *cachedConfiguration) (any, error) {
	if entry == nil || entry.Raw == nil {
		return nil, nil
	}
	raw := *entry.Raw
	if entry.Encrypted {
		plain, err := f.decrypt(raw)
		if err != nil {
			return nil, NewBusinessErrorf("CONFIGURATION_DECRYPT_FAILED", "Failed to decrypt configuration %d", err, entry.ID)
		}
		raw = plain
	}
	kind, err := KindOf(entry.DataType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" && entry.DataType != models.DataTypeString && entry.DataType != models.DataTypeEncrypted {
		return nil, nil
	}
	v, err := kind.Parse(raw)
	if err != nil {
		return nil, NewBusinessErrorf("CONFIGURATION_VALUE_INVALID", "Stored value of configuration %d cannot be parsed", err, entry.ID)
	}
	return v, nil
}

func (f *ConfigurationFlowImpl) encrypt(plain string) (string, error) {
	if f.encryptor == nil {
		return "", ErrEncryptorNotConfigured
	}
	out, err := f.encryptor.Encrypt(plain)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt configuration value: %w: %w", ErrEncryptionFailure, err)
	}
	return out, nil
}

func (f *ConfigurationFlowImpl) decrypt(cipherText string) (string, error) {
	if f.encryptor == nil {
		return "", ErrEncryptorNotConfigured
	}
	out, err := f.encryptor.Decrypt(cipherText)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt configuration value: %w: %w", ErrEncryptionFailure, err)
	}
	return out, nil
}

func shouldEncrypt(row *models.Configuration) bool {
	return row.IsSensitive || row.DataType == models.DataTypeEncrypted
}

// sealValue stores plain on row, encrypting it when the row requires it
func (f *ConfigurationFlowImpl) sealValue(row *models.Configuration, plain *string) error {
	if !shouldEncrypt(row) || plain == nil {
		row.Value = plain
		row.EncryptedValue = nil
		row.IsEncrypted = false
		return nil
	}
	sealed, err := f.encrypt(*plain)
	if err != nil {
		return err
	}
	row.Value = nil
	row.EncryptedValue = &sealed
	row.IsEncrypted = true
	return nil
}

// plainValue returns the row's own value in plaintext, without default fallback
func (f *ConfigurationFlowImpl) plainValue(row *models.Configuration) (*string, error) {
	if !row.IsEncrypted {
		return row.Value, nil
	}
	if row.EncryptedValue == nil {
		return nil, nil
	}
	plain, err := f.decrypt(*row.EncryptedValue)
	if err != nil {
		return nil, err
	}
	return &plain, nil
}

func storedValue(row *models.Configuration) *string {
	if row.IsEncrypted {
		return row.EncryptedValue
	}
	return row.Value
}

func eventValue(row *models.Configuration, v *string) any {
	if v == nil {
		return nil
	}
	if shouldEncrypt(row) {
		return utils.MaskedValue
	}
	return *v
}

func (f *ConfigurationFlowImpl) invalidate(ctx context.Context, row *models.Configuration) {
	tenant := row.Tenant()
	f.invalidateKey(ctx, row.Key, tenant, row.Module)
	for _, key := range row.Affects {
		f.invalidateKey(ctx, key, tenant, row.Module)
	}
}

func (f *ConfigurationFlowImpl) invalidateKey(ctx context.Context, key string, tenant models.TenantRef, module models.Module) {
	m := module
	variants := []string{
		ConfigCacheKey(key, tenant, &m),
		ConfigCacheKey(key, tenant, nil),
		ConfigCacheKey(key, models.SystemScope(), &m),
		ConfigCacheKey(key, models.SystemScope(), nil),
	}
	if err := f.cache.Delete(ctx, variants...); err != nil {
		f.logger.Printf("configuration cache invalidate %s: %v", key, err)
	}
	// system and GLOBAL rows also feed entries cached under other tenants and modules
	if !tenant.IsSet() || module == models.ModuleGlobal {
		if err := f.cache.DeletePrefix(ctx, configCachePrefix+key+":"); err != nil {
			f.logger.Printf("configuration cache invalidate %s: %v", key, err)
		}
	}
}

func validationFailed(err error) error {
	return fmt.Errorf("%w: %v", ErrValidationFailed, err)
}

func (f *ConfigurationFlowImpl) Create(ctx context.Context, req *dto.CreateConfigurationRequest, actor string) (*dto.ConfigurationResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_REQUEST", "request is required", ErrValidationFailed)
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("CONFIGURATION_VALIDATION_FAILED", "Configuration validation failed", validationFailed(err))
	}
	actor = resolveActor(ctx, actor)

	row, err := f.newConfiguration(req, actor)
	if err != nil {
		return nil, NewBusinessError("CONFIGURATION_VALIDATION_FAILED", "Configuration validation failed", err)
	}

	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()

	existing, err := f.configRepo.ByScope(sctx, row.Key, row.Tenant(), row.Module)
	if err != nil {
		return nil, NewBusinessError("CONFIGURATION_LOOKUP_FAILED", "Failed to check existing configuration", err)
	}
	if existing != nil {
		return nil, NewBusinessErrorf("CONFIGURATION_ALREADY_EXISTS", "Configuration %s already exists in scope %s/%s", ErrConfigurationAlreadyExists, row.Key, row.Tenant(), row.Module)
	}

	if err := f.sealValue(row, req.Value); err != nil {
		return nil, NewBusinessError("CONFIGURATION_ENCRYPTION_FAILED", "Failed to encrypt configuration value", err)
	}
	if err := f.configRepo.Save(sctx, row); err != nil {
		return nil, NewBusinessError("CONFIGURATION_CREATE_FAILED", "Failed to create configuration", err)
	}

	f.invalidate(ctx, row)
	f.events.Publish(ctx, services.EventConfigurationCreated, map[string]any{
		"id":        row.ID,
		"key":       row.Key,
		"tenant_id": row.TenantID,
		"module":    row.Module,
		"type":      row.Type,
	})

	resp := ToConfigurationResponse(row)
	return &resp, nil
}

func (f *ConfigurationFlowImpl) newConfiguration(req *dto.CreateConfigurationRequest, actor string) (*models.Configuration, error) {
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return nil, ErrConfigurationKeyRequired
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrConfigurationNameRequired
	}
	module := models.Module(req.Module)
	if !module.Valid() {
		return nil, fmt.Errorf("%q: %w", req.Module, ErrInvalidModule)
	}
	ctype := models.ConfigurationType(req.Type)
	if !ctype.Valid() {
		return nil, fmt.Errorf("%q: %w", req.Type, ErrInvalidConfigurationType)
	}
	kind, err := KindOf(models.DataType(req.DataType))
	if err != nil {
		return nil, err
	}
	status := models.ConfigurationStatusActive
	if req.Status != nil {
		status = models.ConfigurationStatus(*req.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("%q: %w", *req.Status, ErrInvalidConfigurationStatus)
		}
	}
	if req.FeatureFlagPercentage != nil && (*req.FeatureFlagPercentage < 0 || *req.FeatureFlagPercentage > 100) {
		return nil, ErrInvalidPercentage
	}
	if req.EffectiveDate != nil && req.ExpiryDate != nil && !req.ExpiryDate.After(*req.EffectiveDate) {
		return nil, ErrExpiryBeforeEffective
	}
	refresh := models.RefreshFrequencyOnDemand
	if req.RefreshFrequency != nil {
		refresh = models.RefreshFrequency(*req.RefreshFrequency)
	}

	tenant := models.TenantFromPtr(req.TenantID)
	now := f.clock.Now()
	row := &models.Configuration{
		Key:                   key,
		Name:                  name,
		Description:           req.Description,
		Module:                module,
		TenantID:              tenant.Ptr(),
		Type:                  ctype,
		DataType:              kind.DataType(),
		Status:                status,
		Environment:           req.Environment,
		InheritanceLevel:      ctype.InheritanceLevel(tenant),
		Value:                 req.Value,
		DefaultValue:          req.DefaultValue,
		IsSensitive:           req.IsSensitive,
		AllowedValues:         req.AllowedValues,
		MinValue:              req.MinValue,
		MaxValue:              req.MaxValue,
		RegexPattern:          req.RegexPattern,
		IsRequired:            req.IsRequired,
		EffectiveDate:         utils.TimeToUTCPtr(req.EffectiveDate),
		ExpiryDate:            utils.TimeToUTCPtr(req.ExpiryDate),
		Version:               1,
		FeatureFlag:           req.FeatureFlag,
		FeatureFlagPercentage: req.FeatureFlagPercentage,
		CacheTTLSeconds:       req.CacheTTLSeconds,
		RefreshFrequency:      refresh,
		Dependencies:          req.Dependencies,
		Affects:               req.Affects,
		IsActive:              utils.ToPtr(true),
		CreatedBy:             actor,
		UpdatedBy:             actor,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	candidate := req.Value
	if candidate == nil {
		candidate = req.DefaultValue
	}
	if err := ValidateValue(kind, candidate, ConstraintsOf(row)); err != nil {
		return nil, err
	}
	return row, nil
}

func (f *ConfigurationFlowImpl) Update(ctx context.Context, id uint, req *dto.UpdateConfigurationRequest, actor string) (*dto.ConfigurationResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_REQUEST", "request is required", ErrValidationFailed)
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("CONFIGURATION_VALIDATION_FAILED", "Configuration validation failed", validationFailed(err))
	}
	actor = resolveActor(ctx, actor)

	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()

	row, err := f.configRepo.ByID(sctx, id)
	if err != nil {
		return nil, NewBusinessError("CONFIGURATION_LOOKUP_FAILED", "Failed to load configuration", err)
	}
	if row == nil {
		return nil, NewBusinessErrorf("CONFIGURATION_NOT_FOUND", "Configuration %d not found", ErrConfigurationNotFound, id)
	}

	current, err := f.plainValue(row)
	if err != nil {
		return nil, NewBusinessErrorf("CONFIGURATION_DECRYPT_FAILED", "Failed to decrypt configuration %d", err, id)
	}
	if err := applyConfigurationPatch(row, req); err != nil {
		return nil, NewBusinessError("CONFIGURATION_VALIDATION_FAILED", "Configuration validation failed", err)
	}

	next := current
	changed := false
	if req.Value != nil && (current == nil || *current != *req.Value) {
		next = req.Value
		changed = true
	}

	kind, err := KindOf(row.DataType)
	if err != nil {
		return nil, NewBusinessError("CONFIGURATION_VALIDATION_FAILED", "Configuration validation failed", err)
	}
	candidate := next
	if candidate == nil {
		candidate = row.DefaultValue
	}
	if err := ValidateValue(kind, candidate, ConstraintsOf(row)); err != nil {
		return nil, NewBusinessError("CONFIGURATION_VALIDATION_FAILED", "Configuration validation failed", err)
	}

	if changed {
		row.PreviousValue = storedValue(row)
		row.Version++
	}
	if err := f.sealValue(row, next); err != nil {
		return nil, NewBusinessError("CONFIGURATION_ENCRYPTION_FAILED", "Failed to encrypt configuration value", err)
	}
	row.UpdatedBy = actor
	row.UpdatedAt = f.clock.Now()

	if err := f.configRepo.Update(sctx, row); err != nil {
		return nil, NewBusinessError("CONFIGURATION_UPDATE_FAILED", "Failed to update configuration", err)
	}

	f.invalidate(ctx, row)
	f.events.Publish(ctx, services.EventConfigurationUpdated, map[string]any{
		"id":        row.ID,
		"key":       row.Key,
		"tenant_id": row.TenantID,
		"module":    row.Module,
		"version":   row.Version,
		"old_value": eventValue(row, current),
		"new_value": eventValue(row, next),
	})

	resp := ToConfigurationResponse(row)
	return &resp, nil
}

func applyConfigurationPatch(row *models.Configuration, req *dto.UpdateConfigurationRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return ErrConfigurationNameRequired
		}
		row.Name = name
	}
	if req.Description != nil {
		row.Description = req.Description
	}
	if req.Status != nil {
		status := models.ConfigurationStatus(*req.Status)
		if !status.Valid() {
			return fmt.Errorf("%q: %w", *req.Status, ErrInvalidConfigurationStatus)
		}
		row.Status = status
	}
	if req.DefaultValue != nil {
		row.DefaultValue = req.DefaultValue
	}
	if req.IsSensitive != nil {
		row.IsSensitive = *req.IsSensitive
	}
	if req.AllowedValues != nil {
		row.AllowedValues = req.AllowedValues
	}
	if req.MinValue != nil {
		row.MinValue = req.MinValue
	}
	if req.MaxValue != nil {
		row.MaxValue = req.MaxValue
	}
	if req.RegexPattern != nil {
		row.RegexPattern = req.RegexPattern
	}
	if req.IsRequired != nil {
		row.IsRequired = *req.IsRequired
	}
	if req.EffectiveDate != nil {
		row.EffectiveDate = utils.TimeToUTCPtr(req.EffectiveDate)
	}
	if req.ExpiryDate != nil {
		row.ExpiryDate = utils.TimeToUTCPtr(req.ExpiryDate)
	}
	if row.EffectiveDate != nil && row.ExpiryDate != nil && !row.ExpiryDate.After(*row.EffectiveDate) {
		return ErrExpiryBeforeEffective
	}
	if req.FeatureFlag != nil {
		row.FeatureFlag = *req.FeatureFlag
	}
	if req.FeatureFlagPercentage != nil {
		if *req.FeatureFlagPercentage < 0 || *req.FeatureFlagPercentage > 100 {
			return ErrInvalidPercentage
		}
		row.FeatureFlagPercentage = req.FeatureFlagPercentage
	}
	if req.CacheTTLSeconds != nil {
		row.CacheTTLSeconds = req.CacheTTLSeconds
	}
	if req.RefreshFrequency != nil {
		row.RefreshFrequency = models.RefreshFrequency(*req.RefreshFrequency)
	}
	if req.Dependencies != nil {
		row.Dependencies = req.Dependencies
	}
	if req.Affects != nil {
		row.Affects = req.Affects
	}
	if req.IsActive != nil {
		row.IsActive = utils.ToPtr(*req.IsActive)
	}
	return nil
}

// Delete archives a configuration. Rows are never removed from the store.
func (f *ConfigurationFlowImpl) Delete(ctx context.Context, id uint, actor string) error {
	actor = resolveActor(ctx, actor)
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()

	row, err := f.configRepo.ByID(sctx, id)
	if err != nil {
		return NewBusinessError("CONFIGURATION_LOOKUP_FAILED", "Failed to load configuration", err)
	}
	if row == nil {
		return NewBusinessErrorf("CONFIGURATION_NOT_FOUND", "Configuration %d not found", ErrConfigurationNotFound, id)
	}

	row.IsActive = utils.ToPtr(false)
	row.Status = models.ConfigurationStatusArchived
	row.UpdatedBy = actor
	row.UpdatedAt = f.clock.Now()
	if err := f.configRepo.Update(sctx, row); err != nil {
		return NewBusinessError("CONFIGURATION_DELETE_FAILED", "Failed to archive configuration", err)
	}

	f.invalidate(ctx, row)
	f.events.Publish(ctx, services.EventConfigurationDeleted, map[string]any{
		"id":        row.ID,
		"key":       row.Key,
		"tenant_id": row.TenantID,
		"module":    row.Module,
	})
	return nil
}

// BulkUpdate applies each update in order and returns how many succeeded.
// A failing item is logged and skipped.
func (f *ConfigurationFlowImpl) BulkUpdate(ctx context.Context, items []dto.BulkUpdateItem, actor string) int {
	updated := 0
	for i := range items {
		item := items[i]
		if _, err := f.Update(ctx, item.ID, &item.Update, actor); err != nil {
			f.logger.Printf("configuration bulk update: item %d (id %d) skipped: %v", i, item.ID, err)
			continue
		}
		updated++
	}
	return updated
}

func (f *ConfigurationFlowImpl) GetByID(ctx context.Context, id uint) (*dto.ConfigurationResponse, error) {
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()

	row, err := f.configRepo.ByID(sctx, id)
	if err != nil {
		return nil, NewBusinessError("CONFIGURATION_LOOKUP_FAILED", "Failed to load configuration", err)
	}
	if row == nil {
		return nil, NewBusinessErrorf("CONFIGURATION_NOT_FOUND", "Configuration %d not found", ErrConfigurationNotFound, id)
	}
	resp := ToConfigurationResponse(row)
	return &resp, nil
}

func (f *ConfigurationFlowImpl) List(ctx context.Context, req *dto.ListConfigurationsRequest) (*dto.ListConfigurationsResponse, error) {
	if req == nil {
		req = &dto.ListConfigurationsRequest{}
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("LIST_CONFIGURATIONS_VALIDATION_FAILED", "List configurations validation failed", validationFailed(err))
	}
	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_CONFIGURATIONS_VALIDATION_FAILED", "List configurations validation failed", err)
	}

	filter := models.ConfigurationFilter{
		Key:         req.Key,
		KeyPrefix:   req.KeyPrefix,
		Environment: req.Environment,
		IsActive:    req.IsActive,
	}
	if req.TenantID != nil {
		tenant := models.ForTenant(*req.TenantID)
		filter.Tenant = &tenant
	}
	if req.Module != nil {
		m := models.Module(*req.Module)
		filter.Module = &m
	}
	if req.Type != nil {
		t := models.ConfigurationType(*req.Type)
		filter.Type = &t
	}
	if req.Status != nil {
		s := models.ConfigurationStatus(*req.Status)
		filter.Status = &s
	}

	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()

	total, err := f.configRepo.Count(sctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_CONFIGURATIONS_FAILED", "Failed to count configurations", err)
	}
	rows, err := f.configRepo.ByFilter(sctx, filter, "key ASC, inheritance_level ASC, id ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_CONFIGURATIONS_FAILED", "Failed to list configurations", err)
	}

	items := make([]dto.ConfigurationResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToConfigurationResponse(row))
	}
	return &dto.ListConfigurationsResponse{
		Items:      items,
		Pagination: dto.NewPaginationInfo(total, page, pageSize),
	}, nil
}
