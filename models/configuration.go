// Package models contains domain entities and business models for configuration and price buildup management
package models

import (
	"time"

	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ConfigurationType determines where in the inheritance chain a configuration lives.
type ConfigurationType string

const (
	ConfigurationTypeSystem       ConfigurationType = "SYSTEM"
	ConfigurationTypeTenant       ConfigurationType = "TENANT"
	ConfigurationTypeModule       ConfigurationType = "MODULE"
	ConfigurationTypeUser         ConfigurationType = "USER"
	ConfigurationTypeEnvironment  ConfigurationType = "ENVIRONMENT"
	ConfigurationTypeFeatureFlag  ConfigurationType = "FEATURE_FLAG"
	ConfigurationTypeBusinessRule ConfigurationType = "BUSINESS_RULE"
	ConfigurationTypeIntegration  ConfigurationType = "INTEGRATION"
)

// Valid checks if the configuration type is known.
func (t ConfigurationType) Valid() bool {
	switch t {
	case ConfigurationTypeSystem,
		ConfigurationTypeTenant,
		ConfigurationTypeModule,
		ConfigurationTypeUser,
		ConfigurationTypeEnvironment,
		ConfigurationTypeFeatureFlag,
		ConfigurationTypeBusinessRule,
		ConfigurationTypeIntegration:
		return true
	default:
		return false
	}
}

// Inheritance levels, higher wins during resolution.
const (
	InheritanceLevelSystem = 0
	InheritanceLevelTenant = 1
	InheritanceLevelModule = 2
	InheritanceLevelUser   = 3
)

// InheritanceLevel returns the precedence rank of a configuration of this type.
// Types outside the system/tenant/module/user chain rank by their scope.
func (t ConfigurationType) InheritanceLevel(tenant TenantRef) int {
	switch t {
	case ConfigurationTypeSystem:
		return InheritanceLevelSystem
	case ConfigurationTypeTenant:
		return InheritanceLevelTenant
	case ConfigurationTypeModule:
		return InheritanceLevelModule
	case ConfigurationTypeUser:
		return InheritanceLevelUser
	default:
		if tenant.IsSet() {
			return InheritanceLevelTenant
		}
		return InheritanceLevelSystem
	}
}

// DataType declares how a stored string value is interpreted.
type DataType string

const (
	DataTypeString    DataType = "STRING"
	DataTypeNumber    DataType = "NUMBER"
	DataTypeBoolean   DataType = "BOOLEAN"
	DataTypeJSON      DataType = "JSON"
	DataTypeArray     DataType = "ARRAY"
	DataTypeDate      DataType = "DATE"
	DataTypeEncrypted DataType = "ENCRYPTED"
)

// ConfigurationStatus represents the lifecycle state of a configuration.
type ConfigurationStatus string

const (
	ConfigurationStatusActive          ConfigurationStatus = "ACTIVE"
	ConfigurationStatusInactive        ConfigurationStatus = "INACTIVE"
	ConfigurationStatusDraft           ConfigurationStatus = "DRAFT"
	ConfigurationStatusPendingApproval ConfigurationStatus = "PENDING_APPROVAL"
	ConfigurationStatusArchived        ConfigurationStatus = "ARCHIVED"
)

// Valid checks if the status is valid.
func (s ConfigurationStatus) Valid() bool {
	switch s {
	case ConfigurationStatusActive,
		ConfigurationStatusInactive,
		ConfigurationStatusDraft,
		ConfigurationStatusPendingApproval,
		ConfigurationStatusArchived:
		return true
	default:
		return false
	}
}

// RefreshFrequency controls whether the periodic refresher re-resolves a configuration.
type RefreshFrequency string

const (
	RefreshFrequencyRealTime RefreshFrequency = "REAL_TIME"
	RefreshFrequencyHourly   RefreshFrequency = "HOURLY"
	RefreshFrequencyDaily    RefreshFrequency = "DAILY"
	RefreshFrequencyOnDemand RefreshFrequency = "ON_DEMAND"
)

// Configuration is a named setting scoped by (key, tenant, module).
// Table: configurations
type Configuration struct {
	ID               uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID             uuid.UUID           `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	Key              string              `gorm:"size:255;not null;uniqueIndex:uq_configurations_scope,priority:3;index" json:"key"`
	Name             string              `gorm:"size:255;not null" json:"name"`
	Description      *string             `gorm:"type:text" json:"description,omitempty"`
	Module           Module              `gorm:"type:varchar(64);not null;uniqueIndex:uq_configurations_scope,priority:2;index" json:"module"`
	TenantID         *string             `gorm:"size:64;uniqueIndex:uq_configurations_scope,priority:1;index" json:"tenant_id,omitempty"`
	Type             ConfigurationType   `gorm:"type:varchar(32);not null;index" json:"type"`
	DataType         DataType            `gorm:"type:varchar(16);not null" json:"data_type"`
	Status           ConfigurationStatus `gorm:"type:varchar(32);not null;default:'ACTIVE';index" json:"status"`
	Environment      *string             `gorm:"size:32;index" json:"environment,omitempty"`
	InheritanceLevel int                 `gorm:"not null;default:0;index" json:"inheritance_level"`

	Value          *string `gorm:"type:text" json:"value,omitempty"`
	EncryptedValue *string `gorm:"type:text" json:"-"`
	DefaultValue   *string `gorm:"type:text" json:"default_value,omitempty"`
	PreviousValue  *string `gorm:"type:text" json:"previous_value,omitempty"`
	IsSensitive    bool    `gorm:"not null;default:false" json:"is_sensitive"`
	IsEncrypted    bool    `gorm:"not null;default:false" json:"is_encrypted"`

	AllowedValues pq.StringArray `gorm:"type:text[]" json:"allowed_values,omitempty"`
	MinValue      *float64       `json:"min_value,omitempty"`
	MaxValue      *float64       `json:"max_value,omitempty"`
	RegexPattern  *string        `gorm:"size:512" json:"regex_pattern,omitempty"`
	IsRequired    bool           `gorm:"not null;default:false" json:"is_required"`

	EffectiveDate *time.Time `gorm:"index" json:"effective_date,omitempty"`
	ExpiryDate    *time.Time `gorm:"index" json:"expiry_date,omitempty"`

	Version               int              `gorm:"not null;default:1" json:"version"`
	FeatureFlag           bool             `gorm:"not null;default:false;index" json:"feature_flag"`
	FeatureFlagPercentage *int             `json:"feature_flag_percentage,omitempty"`
	CacheTTLSeconds       *int             `json:"cache_ttl_seconds,omitempty"`
	RefreshFrequency      RefreshFrequency `gorm:"type:varchar(16);not null;default:'ON_DEMAND';index" json:"refresh_frequency"`
	AccessCount           int64            `gorm:"not null;default:0" json:"access_count"`
	LastAccessedAt        *time.Time       `json:"last_accessed_at,omitempty"`

	Dependencies pq.StringArray `gorm:"type:text[]" json:"dependencies,omitempty"`
	Affects      pq.StringArray `gorm:"type:text[]" json:"affects,omitempty"`

	IsActive  *bool     `gorm:"not null;default:true;index" json:"is_active"`
	CreatedBy string    `gorm:"size:128" json:"created_by"`
	UpdatedBy string    `gorm:"size:128" json:"updated_by"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Configuration) TableName() string { return "configurations" }

// BeforeCreate ensures UUID and timestamps are set.
func (c *Configuration) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = utils.UTCNow()
	}
	return nil
}

// Tenant returns the tenant scope of the configuration.
func (c *Configuration) Tenant() TenantRef {
	return TenantFromPtr(c.TenantID)
}

// IsEffectiveAt reports whether the configuration's date window contains t.
func (c *Configuration) IsEffectiveAt(t time.Time) bool {
	if c.EffectiveDate != nil && c.EffectiveDate.After(t) {
		return false
	}
	if c.ExpiryDate != nil && !c.ExpiryDate.After(t) {
		return false
	}
	return true
}

// IsResolvable reports whether the configuration may be returned as an effective value at t.
func (c *Configuration) IsResolvable(t time.Time) bool {
	return c.Status == ConfigurationStatusActive && utils.IsTrue(c.IsActive) && c.IsEffectiveAt(t)
}

// RawValue returns the stored value, falling back to the default value.
// For encrypted rows it returns the ciphertext.
func (c *Configuration) RawValue() *string {
	if c.IsEncrypted {
		if c.EncryptedValue != nil {
			return c.EncryptedValue
		}
		return c.DefaultValue
	}
	if c.Value != nil {
		return c.Value
	}
	return c.DefaultValue
}

// CacheTTL returns the row's cache lifetime, or fallback when unset.
func (c *Configuration) CacheTTL(fallback time.Duration) time.Duration {
	if c.CacheTTLSeconds == nil || *c.CacheTTLSeconds <= 0 {
		return fallback
	}
	return time.Duration(*c.CacheTTLSeconds) * time.Second
}

// ConfigurationFilter represents filter criteria for configuration queries
type ConfigurationFilter struct {
	ID               *uint
	Key              *string
	Keys             []string
	KeyPrefix        *string
	Tenant           *TenantRef
	TenantIn         []TenantRef
	Module           *Module
	ModuleIn         []Module
	Type             *ConfigurationType
	Status           *ConfigurationStatus
	Environment      *string
	IsActive         *bool
	FeatureFlag      *bool
	RefreshFrequency *RefreshFrequency
}
