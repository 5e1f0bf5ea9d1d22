package models

import (
	"encoding/json"
	"time"

	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductType is a fuel product priced by a buildup version.
type ProductType string

const (
	ProductTypePetrol   ProductType = "PETROL"
	ProductTypeDiesel   ProductType = "DIESEL"
	ProductTypeLPG      ProductType = "LPG"
	ProductTypeKerosene ProductType = "KEROSENE"
	ProductTypePremix   ProductType = "PREMIX"
	ProductTypeRFO      ProductType = "RFO"
	ProductTypeATK      ProductType = "ATK"
)

// Valid checks if the product type is known.
func (p ProductType) Valid() bool {
	switch p {
	case ProductTypePetrol, ProductTypeDiesel, ProductTypeLPG, ProductTypeKerosene,
		ProductTypePremix, ProductTypeRFO, ProductTypeATK:
		return true
	default:
		return false
	}
}

// StationType classifies a retail point and decides which components and margins apply.
type StationType string

const (
	StationTypeCOCO       StationType = "COCO" // company owned, company operated
	StationTypeCODO       StationType = "CODO" // company owned, dealer operated
	StationTypeDODO       StationType = "DODO" // dealer owned, dealer operated
	StationTypeIndustrial StationType = "INDUSTRIAL"
	StationTypeCommercial StationType = "COMMERCIAL"
	StationTypeBulk       StationType = "BULK_CONSUMER"
)

// AllStationTypes lists every station type in display order.
var AllStationTypes = []StationType{
	StationTypeCOCO,
	StationTypeCODO,
	StationTypeDODO,
	StationTypeIndustrial,
	StationTypeCommercial,
	StationTypeBulk,
}

// Valid checks if the station type is known.
func (s StationType) Valid() bool {
	for _, st := range AllStationTypes {
		if st == s {
			return true
		}
	}
	return false
}

// ComponentType identifies a line item of a price buildup.
type ComponentType string

const (
	ComponentExRefineryPrice         ComponentType = "EX_REFINERY_PRICE"
	ComponentEnergyDebtRecoveryLevy  ComponentType = "ENERGY_DEBT_RECOVERY_LEVY"
	ComponentRoadFundLevy            ComponentType = "ROAD_FUND_LEVY"
	ComponentEnergyFundLevy          ComponentType = "ENERGY_FUND_LEVY"
	ComponentPriceStabilizationLevy  ComponentType = "PRICE_STABILIZATION_RECOVERY_LEVY"
	ComponentSanitationLevy          ComponentType = "SANITATION_DEVELOPMENT_LEVY"
	ComponentEnergySectorLevy        ComponentType = "ENERGY_SECTOR_LEVY"
	ComponentPrimaryDistributionMrg  ComponentType = "PRIMARY_DISTRIBUTION_MARGIN"
	ComponentBOSTMargin              ComponentType = "BOST_MARGIN"
	ComponentUPPFMargin              ComponentType = "UPPF_MARGIN"
	ComponentFuelMarkingMargin       ComponentType = "FUEL_MARKING_MARGIN"
	ComponentMarketersMargin         ComponentType = "MARKETERS_MARGIN"
	ComponentDealersMargin           ComponentType = "DEALERS_MARGIN"
	ComponentDistributionCost        ComponentType = "DISTRIBUTION_COST"
	ComponentStorageCost             ComponentType = "STORAGE_COST"
	ComponentTransportCost           ComponentType = "TRANSPORT_COST"
	ComponentVAT                     ComponentType = "VAT"
	ComponentCustom                  ComponentType = "CUSTOM"
)

// ComponentCategory groups components for the station-type rollup.
type ComponentCategory string

const (
	CategoryBasePrice ComponentCategory = "BASE_PRICE"
	CategoryTaxLevy   ComponentCategory = "TAX_LEVY"
	CategoryMargin    ComponentCategory = "MARGIN"
	CategoryCost      ComponentCategory = "COST"
	CategoryCustom    ComponentCategory = "CUSTOM"
)

// Valid checks if the category is known.
func (c ComponentCategory) Valid() bool {
	switch c {
	case CategoryBasePrice, CategoryTaxLevy, CategoryMargin, CategoryCost, CategoryCustom:
		return true
	default:
		return false
	}
}

// BuildupStatus is the lifecycle state of a price buildup version.
type BuildupStatus string

const (
	BuildupStatusDraft           BuildupStatus = "DRAFT"
	BuildupStatusPendingApproval BuildupStatus = "PENDING_APPROVAL"
	BuildupStatusActive          BuildupStatus = "ACTIVE"
	BuildupStatusSuspended       BuildupStatus = "SUSPENDED"
	BuildupStatusExpired         BuildupStatus = "EXPIRED"
	BuildupStatusArchived        BuildupStatus = "ARCHIVED"
)

// PriceBuildupVersion is a dated, versioned snapshot of all price components for a product type.
// Table: price_buildup_versions
type PriceBuildupVersion struct {
	ID            uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	ProductType   ProductType     `gorm:"type:varchar(32);not null;uniqueIndex:uq_buildup_product_version,priority:1;index" json:"product_type"`
	VersionNumber int             `gorm:"not null;uniqueIndex:uq_buildup_product_version,priority:2" json:"version_number"`
	Status        BuildupStatus   `gorm:"type:varchar(32);not null;default:'DRAFT';index" json:"status"`
	EffectiveDate time.Time       `gorm:"not null;index" json:"effective_date"`
	ExpiryDate    *time.Time      `gorm:"index" json:"expiry_date,omitempty"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0" json:"total_price"`
	Currency      string          `gorm:"size:3;not null;default:'GHS'" json:"currency"`
	ChangeReason  *string         `gorm:"type:text" json:"change_reason,omitempty"`
	Notes         *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy     string          `gorm:"size:128;not null" json:"created_by"`
	ApprovedBy    *string         `gorm:"size:128" json:"approved_by,omitempty"`
	ApprovalDate  *time.Time      `json:"approval_date,omitempty"`
	ApprovalNotes *string         `gorm:"type:text" json:"approval_notes,omitempty"`
	PublishedBy   *string         `gorm:"size:128" json:"published_by,omitempty"`
	PublishedDate *time.Time      `json:"published_date,omitempty"`
	IsActive      *bool           `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Components         []*PriceComponent     `gorm:"foreignKey:BuildupVersionID;references:ID;constraint:OnDelete:CASCADE" json:"components,omitempty"`
	StationTypePricing []*StationTypePricing `gorm:"foreignKey:BuildupVersionID;references:ID;constraint:OnDelete:CASCADE" json:"station_type_pricing,omitempty"`
}

func (PriceBuildupVersion) TableName() string { return "price_buildup_versions" }

// BeforeCreate ensures UUID and timestamps are set.
func (v *PriceBuildupVersion) BeforeCreate(tx *gorm.DB) error {
	if v.UUID == uuid.Nil {
		v.UUID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = utils.UTCNow()
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = utils.UTCNow()
	}
	return nil
}

// CanBeModified reports whether components may still change.
func (v *PriceBuildupVersion) CanBeModified() bool {
	return v.Status == BuildupStatusDraft || v.Status == BuildupStatusPendingApproval
}

// IsPublished reports whether the version has been published.
func (v *PriceBuildupVersion) IsPublished() bool {
	return v.PublishedDate != nil
}

// Covers reports whether date falls within [EffectiveDate, ExpiryDate).
func (v *PriceBuildupVersion) Covers(date time.Time) bool {
	if v.EffectiveDate.After(date) {
		return false
	}
	return v.ExpiryDate == nil || v.ExpiryDate.After(date)
}

// Overlaps reports whether [start, end) intersects the version's range. A nil end is open.
func (v *PriceBuildupVersion) Overlaps(start time.Time, end *time.Time) bool {
	if end != nil && !v.EffectiveDate.Before(*end) {
		return false
	}
	if v.ExpiryDate != nil && !v.ExpiryDate.After(start) {
		return false
	}
	return true
}

// CalculateTotalPrice sums the stored amounts of the version's active components.
// Percentage rows count at their stored value; resolved prices live in StationTypePricing.
func (v *PriceBuildupVersion) CalculateTotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, c := range v.Components {
		if c == nil || !utils.IsTrue(c.IsActive) {
			continue
		}
		total = total.Add(c.Amount)
	}
	return total
}

// PriceComponent is one line item within a buildup version.
// Table: price_components
type PriceComponent struct {
	ID               uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID             uuid.UUID         `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	BuildupVersionID uint              `gorm:"not null;index" json:"buildup_version_id"`
	ComponentType    ComponentType     `gorm:"type:varchar(64);not null;index" json:"component_type"`
	ComponentName    string            `gorm:"size:255;not null" json:"component_name"`
	Category         ComponentCategory `gorm:"type:varchar(32);not null" json:"category"`
	Amount           decimal.Decimal   `gorm:"type:numeric(14,4);not null" json:"amount"`
	Currency         string            `gorm:"size:3;not null;default:'GHS'" json:"currency"`
	IsPercentage     bool              `gorm:"not null;default:false" json:"is_percentage"`
	PercentageBase   *ComponentType    `gorm:"type:varchar(64)" json:"percentage_base,omitempty"`
	StationType      *StationType      `gorm:"type:varchar(32);index" json:"station_type,omitempty"`
	ProductType      ProductType       `gorm:"type:varchar(32);not null" json:"product_type"`
	DisplayOrder     int               `gorm:"not null;default:0" json:"display_order"`
	EffectiveDate    *time.Time        `json:"effective_date,omitempty"`
	ExpiryDate       *time.Time        `json:"expiry_date,omitempty"`
	MinAmount        *decimal.Decimal  `gorm:"type:numeric(14,4)" json:"min_amount,omitempty"`
	MaxAmount        *decimal.Decimal  `gorm:"type:numeric(14,4)" json:"max_amount,omitempty"`
	IsMandatory      bool              `gorm:"not null;default:true" json:"is_mandatory"`
	IsActive         *bool             `gorm:"not null;default:true" json:"is_active"`
	Description      *string           `gorm:"type:text" json:"description,omitempty"`
	RegulatoryRef    *string           `gorm:"size:255" json:"regulatory_reference,omitempty"`
	CreatedBy        string            `gorm:"size:128" json:"created_by"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PriceComponent) TableName() string { return "price_components" }

// BeforeCreate ensures UUID and timestamps are set.
func (c *PriceComponent) BeforeCreate(tx *gorm.DB) error {
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

// AppliesTo reports whether the component is priced for the station type.
func (c *PriceComponent) AppliesTo(st StationType) bool {
	return c.StationType == nil || *c.StationType == st
}

// IsEffectiveOn reports whether the component's own date window contains date.
func (c *PriceComponent) IsEffectiveOn(date time.Time) bool {
	if c.EffectiveDate != nil && c.EffectiveDate.After(date) {
		return false
	}
	if c.ExpiryDate != nil && !c.ExpiryDate.After(date) {
		return false
	}
	return true
}

// Clamp bounds amount by the component's min/max when they are set.
func (c *PriceComponent) Clamp(amount decimal.Decimal) decimal.Decimal {
	if c.MinAmount != nil && amount.LessThan(*c.MinAmount) {
		return *c.MinAmount
	}
	if c.MaxAmount != nil && amount.GreaterThan(*c.MaxAmount) {
		return *c.MaxAmount
	}
	return amount
}

// StationTypePricing is the per station type rollup of a buildup version.
// Table: station_type_pricing
type StationTypePricing struct {
	ID               uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	BuildupVersionID uint            `gorm:"not null;uniqueIndex:uq_station_pricing,priority:1" json:"buildup_version_id"`
	StationType      StationType     `gorm:"type:varchar(32);not null;uniqueIndex:uq_station_pricing,priority:2" json:"station_type"`
	ProductType      ProductType     `gorm:"type:varchar(32);not null;uniqueIndex:uq_station_pricing,priority:3" json:"product_type"`
	BasePrice        decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"base_price"`
	TotalTaxesLevies decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"total_taxes_levies"`
	TotalMargins     decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"total_margins"`
	TotalCosts       decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"total_costs"`
	FinalPrice       decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"final_price"`
	CreatedAt        time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (StationTypePricing) TableName() string { return "station_type_pricing" }

// Buildup audit actions
const (
	BuildupAuditActionCreate  = "CREATE"
	BuildupAuditActionUpdate  = "UPDATE"
	BuildupAuditActionApprove = "APPROVE"
	BuildupAuditActionPublish = "PUBLISH"
)

// PriceBuildupAuditTrail is an append-only record of a change to a buildup version or component.
// Table: price_buildup_audit_trail
type PriceBuildupAuditTrail struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	BuildupVersionID uint            `gorm:"not null;index" json:"buildup_version_id"`
	ComponentID      *uint           `gorm:"index" json:"component_id,omitempty"`
	Action           string          `gorm:"size:16;not null;index" json:"action"`
	OldValues        json.RawMessage `gorm:"type:jsonb" json:"old_values,omitempty"`
	NewValues        json.RawMessage `gorm:"type:jsonb" json:"new_values,omitempty"`
	ChangedBy        string          `gorm:"size:128;not null" json:"changed_by"`
	ChangeReason     *string         `gorm:"type:text" json:"change_reason,omitempty"`
	CreatedAt        time.Time       `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (PriceBuildupAuditTrail) TableName() string { return "price_buildup_audit_trail" }

// PriceBuildupVersionFilter represents filter criteria for buildup version queries
type PriceBuildupVersionFilter struct {
	ID                *uint
	ProductType       *ProductType
	Status            *BuildupStatus
	StatusIn          []BuildupStatus
	IsActive          *bool
	EffectiveFrom     *time.Time
	EffectiveTo       *time.Time
	ExcludeID         *uint
	PublishedOnly     bool
	InclComponents    bool
	InclStationPrices bool
}

// PriceComponentFilter represents filter criteria for component queries
type PriceComponentFilter struct {
	BuildupVersionID *uint
	ComponentType    *ComponentType
	StationType      *StationType
}
