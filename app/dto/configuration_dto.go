package dto

import "time"

// CreateConfigurationRequest represents the payload for creating a configuration
type CreateConfigurationRequest struct {
	Key                   string     `json:"key" validate:"required,max=255"`
	Name                  string     `json:"name" validate:"required,max=255"`
	Description           *string    `json:"description,omitempty"`
	Module                string     `json:"module" validate:"required,max=64"`
	TenantID              *string    `json:"tenant_id,omitempty" validate:"omitempty,max=64"`
	Type                  string     `json:"type" validate:"required,oneof=SYSTEM TENANT MODULE USER ENVIRONMENT FEATURE_FLAG BUSINESS_RULE INTEGRATION"`
	DataType              string     `json:"data_type" validate:"required,oneof=STRING NUMBER BOOLEAN JSON ARRAY DATE ENCRYPTED"`
	Status                *string    `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE DRAFT PENDING_APPROVAL ARCHIVED"`
	Environment           *string    `json:"environment,omitempty" validate:"omitempty,max=32"`
	Value                 *string    `json:"value,omitempty"`
	DefaultValue          *string    `json:"default_value,omitempty"`
	IsSensitive           bool       `json:"is_sensitive"`
	AllowedValues         []string   `json:"allowed_values,omitempty"`
	MinValue              *float64   `json:"min_value,omitempty"`
	MaxValue              *float64   `json:"max_value,omitempty"`
	RegexPattern          *string    `json:"regex_pattern,omitempty" validate:"omitempty,max=512"`
	IsRequired            bool       `json:"is_required"`
	EffectiveDate         *time.Time `json:"effective_date,omitempty"`
	ExpiryDate            *time.Time `json:"expiry_date,omitempty"`
	FeatureFlag           bool       `json:"feature_flag"`
	FeatureFlagPercentage *int       `json:"feature_flag_percentage,omitempty" validate:"omitempty,min=0,max=100"`
	CacheTTLSeconds       *int       `json:"cache_ttl_seconds,omitempty" validate:"omitempty,min=1"`
	RefreshFrequency      *string    `json:"refresh_frequency,omitempty" validate:"omitempty,oneof=REAL_TIME HOURLY DAILY ON_DEMAND"`
	Dependencies          []string   `json:"dependencies,omitempty"`
	Affects               []string   `json:"affects,omitempty"`
}

// UpdateConfigurationRequest is a partial patch; nil fields are left unchanged
type UpdateConfigurationRequest struct {
	Name                  *string    `json:"name,omitempty" validate:"omitempty,max=255"`
	Description           *string    `json:"description,omitempty"`
	Status                *string    `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE DRAFT PENDING_APPROVAL ARCHIVED"`
	Value                 *string    `json:"value,omitempty"`
	DefaultValue          *string    `json:"default_value,omitempty"`
	IsSensitive           *bool      `json:"is_sensitive,omitempty"`
	AllowedValues         []string   `json:"allowed_values,omitempty"`
	MinValue              *float64   `json:"min_value,omitempty"`
	MaxValue              *float64   `json:"max_value,omitempty"`
	RegexPattern          *string    `json:"regex_pattern,omitempty" validate:"omitempty,max=512"`
	IsRequired            *bool      `json:"is_required,omitempty"`
	EffectiveDate         *time.Time `json:"effective_date,omitempty"`
	ExpiryDate            *time.Time `json:"expiry_date,omitempty"`
	FeatureFlag           *bool      `json:"feature_flag,omitempty"`
	FeatureFlagPercentage *int       `json:"feature_flag_percentage,omitempty" validate:"omitempty,min=0,max=100"`
	CacheTTLSeconds       *int       `json:"cache_ttl_seconds,omitempty" validate:"omitempty,min=1"`
	RefreshFrequency      *string    `json:"refresh_frequency,omitempty" validate:"omitempty,oneof=REAL_TIME HOURLY DAILY ON_DEMAND"`
	Dependencies          []string   `json:"dependencies,omitempty"`
	Affects               []string   `json:"affects,omitempty"`
	IsActive              *bool      `json:"is_active,omitempty"`
}

// BulkUpdateItem is one entry of a bulk update
type BulkUpdateItem struct {
	ID     uint                       `json:"id" validate:"required"`
	Update UpdateConfigurationRequest `json:"update"`
}

// ConfigurationResponse represents a configuration row. Sensitive values are masked.
type ConfigurationResponse struct {
	ID                    uint     `json:"id"`
	UUID                  string   `json:"uuid"`
	Key                   string   `json:"key"`
	Name                  string   `json:"name"`
	Description           *string  `json:"description,omitempty"`
	Module                string   `json:"module"`
	TenantID              *string  `json:"tenant_id,omitempty"`
	Type                  string   `json:"type"`
	DataType              string   `json:"data_type"`
	Status                string   `json:"status"`
	Environment           *string  `json:"environment,omitempty"`
	InheritanceLevel      int      `json:"inheritance_level"`
	Value                 *string  `json:"value,omitempty"`
	DefaultValue          *string  `json:"default_value,omitempty"`
	IsSensitive           bool     `json:"is_sensitive"`
	IsEncrypted           bool     `json:"is_encrypted"`
	AllowedValues         []string `json:"allowed_values,omitempty"`
	MinValue              *float64 `json:"min_value,omitempty"`
	MaxValue              *float64 `json:"max_value,omitempty"`
	RegexPattern          *string  `json:"regex_pattern,omitempty"`
	IsRequired            bool     `json:"is_required"`
	EffectiveDate         *string  `json:"effective_date,omitempty"`
	ExpiryDate            *string  `json:"expiry_date,omitempty"`
	Version               int      `json:"version"`
	FeatureFlag           bool     `json:"feature_flag"`
	FeatureFlagPercentage *int     `json:"feature_flag_percentage,omitempty"`
	CacheTTLSeconds       *int     `json:"cache_ttl_seconds,omitempty"`
	RefreshFrequency      string   `json:"refresh_frequency"`
	AccessCount           int64    `json:"access_count"`
	Dependencies          []string `json:"dependencies,omitempty"`
	Affects               []string `json:"affects,omitempty"`
	IsActive              bool     `json:"is_active"`
	CreatedBy             string   `json:"created_by"`
	UpdatedBy             string   `json:"updated_by"`
	CreatedAt             string   `json:"created_at"`
	UpdatedAt             string   `json:"updated_at"`
}

// ListConfigurationsRequest holds filters and pagination for listing configurations
type ListConfigurationsRequest struct {
	Key         *string `json:"key,omitempty"`
	KeyPrefix   *string `json:"key_prefix,omitempty"`
	TenantID    *string `json:"tenant_id,omitempty"`
	Module      *string `json:"module,omitempty"`
	Type        *string `json:"type,omitempty"`
	Status      *string `json:"status,omitempty"`
	Environment *string `json:"environment,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	Page        int     `json:"page" validate:"omitempty,min=1"`
	PageSize    int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListConfigurationsResponse represents a paginated list of configurations
type ListConfigurationsResponse struct {
	Items      []ConfigurationResponse `json:"items"`
	Pagination PaginationInfo          `json:"pagination"`
}

// StationTypeConfigurationResponse is the resolved configuration of one station type
type StationTypeConfigurationResponse struct {
	StationType            string   `json:"station_type"`
	ApplicableComponents   []string `json:"applicable_components"`
	SupportedProducts      []string `json:"supported_products"`
	BaseDealerMargin       *float64 `json:"base_dealer_margin,omitempty"`
	RegulatoryRequirements *string  `json:"regulatory_requirements,omitempty"`
	OperatingModel         *string  `json:"operating_model,omitempty"`
	RequiresSpecialPricing bool     `json:"requires_special_pricing"`
}
