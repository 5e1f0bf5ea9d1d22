package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceComponentInput is one component line of a buildup create or update
type PriceComponentInput struct {
	ComponentType       string           `json:"component_type" validate:"required,max=64"`
	ComponentName       string           `json:"component_name" validate:"required,max=255"`
	Category            string           `json:"category" validate:"required,oneof=BASE_PRICE TAX_LEVY MARGIN COST CUSTOM"`
	Amount              decimal.Decimal  `json:"amount"`
	Currency            *string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	IsPercentage        bool             `json:"is_percentage"`
	PercentageBase      *string          `json:"percentage_base,omitempty" validate:"omitempty,max=64"`
	StationType         *string          `json:"station_type,omitempty" validate:"omitempty,oneof=COCO CODO DODO INDUSTRIAL COMMERCIAL BULK_CONSUMER"`
	DisplayOrder        int              `json:"display_order" validate:"min=0"`
	EffectiveDate       *time.Time       `json:"effective_date,omitempty"`
	ExpiryDate          *time.Time       `json:"expiry_date,omitempty"`
	MinAmount           *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount           *decimal.Decimal `json:"max_amount,omitempty"`
	IsMandatory         *bool            `json:"is_mandatory,omitempty"`
	Description         *string          `json:"description,omitempty"`
	RegulatoryReference *string          `json:"regulatory_reference,omitempty" validate:"omitempty,max=255"`
}

// CreatePriceBuildupRequest represents the payload for creating a buildup version
type CreatePriceBuildupRequest struct {
	ProductType   string                `json:"product_type" validate:"required,oneof=PETROL DIESEL LPG KEROSENE PREMIX RFO ATK"`
	EffectiveDate time.Time             `json:"effective_date" validate:"required"`
	ExpiryDate    *time.Time            `json:"expiry_date,omitempty"`
	Status        *string               `json:"status,omitempty" validate:"omitempty,oneof=DRAFT PENDING_APPROVAL"`
	ChangeReason  *string               `json:"change_reason,omitempty"`
	Notes         *string               `json:"notes,omitempty"`
	Components    []PriceComponentInput `json:"components" validate:"required,min=1,dive"`
}

// UpdatePriceBuildupRequest patches a modifiable version. Components replace existing
// components with the same component type and station scope; new ones are added.
type UpdatePriceBuildupRequest struct {
	EffectiveDate *time.Time            `json:"effective_date,omitempty"`
	ExpiryDate    *time.Time            `json:"expiry_date,omitempty"`
	Status        *string               `json:"status,omitempty" validate:"omitempty,oneof=DRAFT PENDING_APPROVAL"`
	ChangeReason  *string               `json:"change_reason,omitempty"`
	Notes         *string               `json:"notes,omitempty"`
	Components    []PriceComponentInput `json:"components,omitempty" validate:"omitempty,dive"`
}

// ApprovePriceBuildupRequest approves a version, optionally publishing it
type ApprovePriceBuildupRequest struct {
	BuildupVersionID   uint    `json:"buildup_version_id" validate:"required"`
	ApprovalNotes      *string `json:"approval_notes,omitempty"`
	PublishImmediately bool    `json:"publish_immediately"`
}

// PublishPriceBuildupRequest publishes an approved version
type PublishPriceBuildupRequest struct {
	BuildupVersionID uint    `json:"buildup_version_id" validate:"required"`
	PublishNotes     *string `json:"publish_notes,omitempty"`
}

// ListPriceBuildupVersionsRequest holds filters and pagination for listing versions
type ListPriceBuildupVersionsRequest struct {
	ProductType *string    `json:"product_type,omitempty" validate:"omitempty,oneof=PETROL DIESEL LPG KEROSENE PREMIX RFO ATK"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,oneof=DRAFT PENDING_APPROVAL ACTIVE SUSPENDED EXPIRED ARCHIVED"`
	From        *time.Time `json:"from,omitempty"`
	To          *time.Time `json:"to,omitempty"`
	Page        int        `json:"page" validate:"omitempty,min=1"`
	PageSize    int        `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// PriceComponentResponse represents a stored component
type PriceComponentResponse struct {
	ID                  uint             `json:"id"`
	ComponentType       string           `json:"component_type"`
	ComponentName       string           `json:"component_name"`
	Category            string           `json:"category"`
	Amount              decimal.Decimal  `json:"amount"`
	Currency            string           `json:"currency"`
	IsPercentage        bool             `json:"is_percentage"`
	PercentageBase      *string          `json:"percentage_base,omitempty"`
	StationType         *string          `json:"station_type,omitempty"`
	DisplayOrder        int              `json:"display_order"`
	EffectiveDate       *string          `json:"effective_date,omitempty"`
	ExpiryDate          *string          `json:"expiry_date,omitempty"`
	MinAmount           *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount           *decimal.Decimal `json:"max_amount,omitempty"`
	IsMandatory         bool             `json:"is_mandatory"`
	Description         *string          `json:"description,omitempty"`
	RegulatoryReference *string          `json:"regulatory_reference,omitempty"`
}

// StationTypePricingResponse is one station type rollup
type StationTypePricingResponse struct {
	StationType      string          `json:"station_type"`
	ProductType      string          `json:"product_type"`
	BasePrice        decimal.Decimal `json:"base_price"`
	TotalTaxesLevies decimal.Decimal `json:"total_taxes_levies"`
	TotalMargins     decimal.Decimal `json:"total_margins"`
	TotalCosts       decimal.Decimal `json:"total_costs"`
	FinalPrice       decimal.Decimal `json:"final_price"`
}

// PriceBuildupVersionResponse represents a buildup version with its components
type PriceBuildupVersionResponse struct {
	ID                 uint                         `json:"id"`
	UUID               string                       `json:"uuid"`
	ProductType        string                       `json:"product_type"`
	VersionNumber      int                          `json:"version_number"`
	Status             string                       `json:"status"`
	EffectiveDate      string                       `json:"effective_date"`
	ExpiryDate         *string                      `json:"expiry_date,omitempty"`
	TotalPrice         decimal.Decimal              `json:"total_price"`
	Currency           string                       `json:"currency"`
	ChangeReason       *string                      `json:"change_reason,omitempty"`
	Notes              *string                      `json:"notes,omitempty"`
	CreatedBy          string                       `json:"created_by"`
	ApprovedBy         *string                      `json:"approved_by,omitempty"`
	ApprovalDate       *string                      `json:"approval_date,omitempty"`
	PublishedBy        *string                      `json:"published_by,omitempty"`
	PublishedDate      *string                      `json:"published_date,omitempty"`
	Components         []PriceComponentResponse     `json:"components,omitempty"`
	StationTypePricing []StationTypePricingResponse `json:"station_type_pricing,omitempty"`
	CreatedAt          string                       `json:"created_at"`
	UpdatedAt          string                       `json:"updated_at"`
}

// ListPriceBuildupVersionsResponse represents a paginated list of versions
type ListPriceBuildupVersionsResponse struct {
	Items      []PriceBuildupVersionResponse `json:"items"`
	Pagination PaginationInfo                `json:"pagination"`
}

// PriceBuildupAuditEntryResponse is one audit trail entry
type PriceBuildupAuditEntryResponse struct {
	ID           uint    `json:"id"`
	ComponentID  *uint   `json:"component_id,omitempty"`
	Action       string  `json:"action"`
	OldValues    any     `json:"old_values,omitempty"`
	NewValues    any     `json:"new_values,omitempty"`
	ChangedBy    string  `json:"changed_by"`
	ChangeReason *string `json:"change_reason,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// PriceCalculationRequest asks for the price of a product at a station type on a date
type PriceCalculationRequest struct {
	ProductType       string     `json:"product_type" validate:"required,oneof=PETROL DIESEL LPG KEROSENE PREMIX RFO ATK"`
	StationType       string     `json:"station_type" validate:"required,oneof=COCO CODO DODO INDUSTRIAL COMMERCIAL BULK_CONSUMER"`
	CalculationDate   *time.Time `json:"calculation_date,omitempty"`
	ExcludeComponents []string   `json:"exclude_components,omitempty"`
}

// PriceBreakdownItem is one resolved component of a calculation
type PriceBreakdownItem struct {
	ComponentType  string          `json:"component_type"`
	ComponentName  string          `json:"component_name"`
	Category       string          `json:"category"`
	Amount         decimal.Decimal `json:"amount"`
	StoredAmount   decimal.Decimal `json:"stored_amount"`
	IsPercentage   bool            `json:"is_percentage"`
	PercentageBase *string         `json:"percentage_base,omitempty"`
	BaseResolved   bool            `json:"base_resolved"`
	DisplayOrder   int             `json:"display_order"`
}

// PriceCalculationResponse is the breakdown and total of one calculation
type PriceCalculationResponse struct {
	ProductType      string               `json:"product_type"`
	StationType      string               `json:"station_type"`
	CalculationDate  string               `json:"calculation_date"`
	BuildupVersionID uint                 `json:"buildup_version_id"`
	VersionNumber    int                  `json:"version_number"`
	Breakdown        []PriceBreakdownItem `json:"breakdown"`
	TotalPrice       decimal.Decimal      `json:"total_price"`
	Currency         string               `json:"currency"`
	CalculatedAt     string               `json:"calculated_at"`
}

// PriceHistoryRequest asks for one calculation per active version effective in [From, To]
type PriceHistoryRequest struct {
	ProductType string    `json:"product_type" validate:"required,oneof=PETROL DIESEL LPG KEROSENE PREMIX RFO ATK"`
	StationType string    `json:"station_type" validate:"required,oneof=COCO CODO DODO INDUSTRIAL COMMERCIAL BULK_CONSUMER"`
	From        time.Time `json:"from" validate:"required"`
	To          time.Time `json:"to" validate:"required"`
}

// ImportRowError reports a problem with one spreadsheet row
type ImportRowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ImportPriceBuildupResponse is the outcome of a spreadsheet import
type ImportPriceBuildupResponse struct {
	Version   *PriceBuildupVersionResponse `json:"version,omitempty"`
	RowErrors []ImportRowError             `json:"row_errors,omitempty"`
}

// ImportPriceBuildupRequest carries the version fields of a spreadsheet import
type ImportPriceBuildupRequest struct {
	ProductType   string     `json:"product_type" validate:"required,oneof=PETROL DIESEL LPG KEROSENE PREMIX RFO ATK"`
	EffectiveDate time.Time  `json:"effective_date" validate:"required"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	Status        *string    `json:"status,omitempty" validate:"omitempty,oneof=DRAFT PENDING_APPROVAL"`
	ChangeReason  *string    `json:"change_reason,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}
