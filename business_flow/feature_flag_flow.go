package businessflow

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/amirphl/fuel-pricing-config/app/dto"
	"github.com/amirphl/fuel-pricing-config/app/services"
	"github.com/amirphl/fuel-pricing-config/config"
	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/repository"
	"github.com/amirphl/fuel-pricing-config/utils"
)

const anonymousUser = "anonymous"

// FeatureFlagFlow evaluates and toggles feature flags
type FeatureFlagFlow interface {
	IsFeatureEnabled(ctx context.Context, key string, tenant models.TenantRef, userID *string) (bool, error)
	EnableFeature(ctx context.Context, key string, tenant models.TenantRef, percentage *int, actor string) (*dto.ConfigurationResponse, error)
	DisableFeature(ctx context.Context, key string, tenant models.TenantRef, actor string) (*dto.ConfigurationResponse, error)
}

// FeatureFlagFlowImpl implements FeatureFlagFlow on top of configuration rows
type FeatureFlagFlowImpl struct {
	configRepo  repository.ConfigurationRepository
	configs     ConfigurationFlow
	encryptor   services.Encryptor
	storeConfig config.StoreConfig
	clock       utils.Clock
}

// NewFeatureFlagFlow creates a new feature flag flow instance
func NewFeatureFlagFlow(
	configRepo repository.ConfigurationRepository,
	configs ConfigurationFlow,
	encryptor services.Encryptor,
	storeConfig config.StoreConfig,
	clock utils.Clock,
) FeatureFlagFlow {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &FeatureFlagFlowImpl{
		configRepo:  configRepo,
		configs:     configs,
		encryptor:   encryptor,
		storeConfig: storeConfig,
		clock:       clock,
	}
}

// RolloutBucket maps (key, tenant, user) to a stable bucket in [0, 100). The bucket is the
// first 8 hex characters of the SHA-256 digest of "key:tenant:user" read as an unsigned integer.
func RolloutBucket(key string, tenant models.TenantRef, userID *string) int {
	user := anonymousUser
	if userID != nil && strings.TrimSpace(*userID) != "" {
		user = *userID
	}
	sum := sha256.Sum256([]byte(key + ":" + tenant.CacheSegment() + ":" + user))
	return int(binary.BigEndian.Uint32(sum[:4]) % 100)
}

// IsFeatureEnabled reports whether the flag is on for the user. A missing flag is off.
func (f *FeatureFlagFlowImpl) IsFeatureEnabled(ctx context.Context, key string, tenant models.TenantRef, userID *string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, ErrConfigurationKeyRequired
	}
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()

	rows, err := f.configRepo.FindHierarchy(sctx, key, tenant, nil)
	if err != nil {
		return false, NewBusinessError("FEATURE_FLAG_LOOKUP_FAILED", "Failed to load feature flag", err)
	}
	flags := make([]*models.Configuration, 0, len(rows))
	for _, r := range rows {
		if r.FeatureFlag {
			flags = append(flags, r)
		}
	}
	flag := ResolveEffective(flags, nil, f.clock.Now())
	if flag == nil {
		return false, nil
	}

	if flag.FeatureFlagPercentage != nil && *flag.FeatureFlagPercentage < 100 {
		return RolloutBucket(key, tenant, userID) < *flag.FeatureFlagPercentage, nil
	}

	raw := flag.RawValue()
	if raw == nil {
		return false, nil
	}
	value := *raw
	if flag.IsEncrypted && flag.EncryptedValue != nil {
		if f.encryptor == nil {
			return false, ErrEncryptorNotConfigured
		}
		plain, err := f.encryptor.Decrypt(value)
		if err != nil {
			return false, NewBusinessErrorf("FEATURE_FLAG_DECRYPT_FAILED", "Failed to decrypt feature flag %s", fmt.Errorf("%w: %w", ErrEncryptionFailure, err), key)
		}
		value = plain
	}
	return strings.EqualFold(strings.TrimSpace(value), "true"), nil
}

// EnableFeature turns a flag on at the tenant scope, creating the row when missing.
// A nil percentage enables the flag for everyone.
func (f *FeatureFlagFlowImpl) EnableFeature(ctx context.Context, key string, tenant models.TenantRef, percentage *int, actor string) (*dto.ConfigurationResponse, error) {
	if percentage != nil && (*percentage < 0 || *percentage > 100) {
		return nil, NewBusinessError("FEATURE_FLAG_VALIDATION_FAILED", "Feature flag validation failed", ErrInvalidPercentage)
	}
	existing, err := f.flagRow(ctx, key, tenant)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return f.configs.Create(ctx, &dto.CreateConfigurationRequest{
			Key:                   strings.TrimSpace(key),
			Name:                  strings.TrimSpace(key),
			Module:                string(models.ModuleGlobal),
			TenantID:              tenant.Ptr(),
			Type:                  string(models.ConfigurationTypeFeatureFlag),
			DataType:              string(models.DataTypeBoolean),
			Value:                 utils.ToPtr("true"),
			FeatureFlag:           true,
			FeatureFlagPercentage: percentage,
		}, actor)
	}

	if percentage == nil {
		percentage = utils.ToPtr(100)
	}
	return f.configs.Update(ctx, existing.ID, &dto.UpdateConfigurationRequest{
		Status:                utils.ToPtr(string(models.ConfigurationStatusActive)),
		Value:                 utils.ToPtr("true"),
		FeatureFlag:           utils.ToPtr(true),
		FeatureFlagPercentage: percentage,
		IsActive:              utils.ToPtr(true),
	}, actor)
}

// DisableFeature turns an existing flag off for everyone at the tenant scope
func (f *FeatureFlagFlowImpl) DisableFeature(ctx context.Context, key string, tenant models.TenantRef, actor string) (*dto.ConfigurationResponse, error) {
	existing, err := f.flagRow(ctx, key, tenant)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, NewBusinessErrorf("FEATURE_FLAG_NOT_FOUND", "Feature flag %s not found", ErrConfigurationNotFound, key)
	}
	return f.configs.Update(ctx, existing.ID, &dto.UpdateConfigurationRequest{
		Value:                 utils.ToPtr("false"),
		FeatureFlag:           utils.ToPtr(true),
		FeatureFlagPercentage: utils.ToPtr(0),
	}, actor)
}

func (f *FeatureFlagFlowImpl) flagRow(ctx context.Context, key string, tenant models.TenantRef) (*models.Configuration, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrConfigurationKeyRequired
	}
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()

	row, err := f.configRepo.ByScope(sctx, key, tenant, models.ModuleGlobal)
	if err != nil {
		return nil, NewBusinessError("FEATURE_FLAG_LOOKUP_FAILED", "Failed to load feature flag", err)
	}
	return row, nil
}
