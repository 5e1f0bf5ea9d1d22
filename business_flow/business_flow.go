// Package businessflow contains the business logic for configuration resolution and price buildups.
package businessflow

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/amirphl/fuel-pricing-config/app/dto"
	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/utils"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// ActorFromContext returns the acting user stored on ctx, or fallback when absent
func ActorFromContext(ctx context.Context, fallback string) string {
	if actor, ok := ctx.Value(utils.ActorKey).(string); ok && strings.TrimSpace(actor) != "" {
		return actor
	}
	if fallback != "" {
		return fallback
	}
	return utils.SystemActor
}

func resolveActor(ctx context.Context, actor string) string {
	if strings.TrimSpace(actor) != "" {
		return actor
	}
	return ActorFromContext(ctx, utils.SystemActor)
}

// withStoreTimeout bounds a store call. The caller's cancellation still applies.
func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = utils.StoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func normalizePage(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = defaultPage
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, ErrInvalidPageSize
	}
	return page, pageSize, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func maskedValue(sensitive bool, v *string) *string {
	if v == nil {
		return nil
	}
	if sensitive {
		return utils.ToPtr(utils.MaskedValue)
	}
	return v
}

// ToConfigurationResponse converts a configuration row to its API shape. Values of
// sensitive or encrypted rows are masked.
func ToConfigurationResponse(c *models.Configuration) dto.ConfigurationResponse {
	hidden := c.IsSensitive || c.IsEncrypted
	value := c.Value
	if c.IsEncrypted {
		value = c.EncryptedValue
	}
	return dto.ConfigurationResponse{
		ID:                    c.ID,
		UUID:                  c.UUID.String(),
		Key:                   c.Key,
		Name:                  c.Name,
		Description:           c.Description,
		Module:                string(c.Module),
		TenantID:              c.TenantID,
		Type:                  string(c.Type),
		DataType:              string(c.DataType),
		Status:                string(c.Status),
		Environment:           c.Environment,
		InheritanceLevel:      c.InheritanceLevel,
		Value:                 maskedValue(hidden, value),
		DefaultValue:          maskedValue(c.IsSensitive, c.DefaultValue),
		IsSensitive:           c.IsSensitive,
		IsEncrypted:           c.IsEncrypted,
		AllowedValues:         c.AllowedValues,
		MinValue:              c.MinValue,
		MaxValue:              c.MaxValue,
		RegexPattern:          c.RegexPattern,
		IsRequired:            c.IsRequired,
		EffectiveDate:         formatTimePtr(c.EffectiveDate),
		ExpiryDate:            formatTimePtr(c.ExpiryDate),
		Version:               c.Version,
		FeatureFlag:           c.FeatureFlag,
		FeatureFlagPercentage: c.FeatureFlagPercentage,
		CacheTTLSeconds:       c.CacheTTLSeconds,
		RefreshFrequency:      string(c.RefreshFrequency),
		AccessCount:           c.AccessCount,
		Dependencies:          c.Dependencies,
		Affects:               c.Affects,
		IsActive:              utils.IsTrue(c.IsActive),
		CreatedBy:             c.CreatedBy,
		UpdatedBy:             c.UpdatedBy,
		CreatedAt:             formatTime(c.CreatedAt),
		UpdatedAt:             formatTime(c.UpdatedAt),
	}
}

func ToPriceComponentResponse(c *models.PriceComponent) dto.PriceComponentResponse {
	var base, station *string
	if c.PercentageBase != nil {
		base = utils.ToPtr(string(*c.PercentageBase))
	}
	if c.StationType != nil {
		station = utils.ToPtr(string(*c.StationType))
	}
	return dto.PriceComponentResponse{
		ID:                  c.ID,
		ComponentType:       string(c.ComponentType),
		ComponentName:       c.ComponentName,
		Category:            string(c.Category),
		Amount:              c.Amount,
		Currency:            c.Currency,
		IsPercentage:        c.IsPercentage,
		PercentageBase:      base,
		StationType:         station,
		DisplayOrder:        c.DisplayOrder,
		EffectiveDate:       formatTimePtr(c.EffectiveDate),
		ExpiryDate:          formatTimePtr(c.ExpiryDate),
		MinAmount:           c.MinAmount,
		MaxAmount:           c.MaxAmount,
		IsMandatory:         c.IsMandatory,
		Description:         c.Description,
		RegulatoryReference: c.RegulatoryRef,
	}
}

func ToStationTypePricingResponse(p *models.StationTypePricing) dto.StationTypePricingResponse {
	return dto.StationTypePricingResponse{
		StationType:      string(p.StationType),
		ProductType:      string(p.ProductType),
		BasePrice:        p.BasePrice,
		TotalTaxesLevies: p.TotalTaxesLevies,
		TotalMargins:     p.TotalMargins,
		TotalCosts:       p.TotalCosts,
		FinalPrice:       p.FinalPrice,
	}
}

// ToPriceBuildupVersionResponse converts a version and whatever associations are loaded
func ToPriceBuildupVersionResponse(v *models.PriceBuildupVersion) dto.PriceBuildupVersionResponse {
	resp := dto.PriceBuildupVersionResponse{
		ID:            v.ID,
		UUID:          v.UUID.String(),
		ProductType:   string(v.ProductType),
		VersionNumber: v.VersionNumber,
		Status:        string(v.Status),
		EffectiveDate: formatTime(v.EffectiveDate),
		ExpiryDate:    formatTimePtr(v.ExpiryDate),
		TotalPrice:    v.TotalPrice,
		Currency:      v.Currency,
		ChangeReason:  v.ChangeReason,
		Notes:         v.Notes,
		CreatedBy:     v.CreatedBy,
		ApprovedBy:    v.ApprovedBy,
		ApprovalDate:  formatTimePtr(v.ApprovalDate),
		PublishedBy:   v.PublishedBy,
		PublishedDate: formatTimePtr(v.PublishedDate),
		CreatedAt:     formatTime(v.CreatedAt),
		UpdatedAt:     formatTime(v.UpdatedAt),
	}
	for _, c := range v.Components {
		resp.Components = append(resp.Components, ToPriceComponentResponse(c))
	}
	for _, p := range v.StationTypePricing {
		resp.StationTypePricing = append(resp.StationTypePricing, ToStationTypePricingResponse(p))
	}
	return resp
}

func ToPriceBuildupAuditEntryResponse(e *models.PriceBuildupAuditTrail) dto.PriceBuildupAuditEntryResponse {
	return dto.PriceBuildupAuditEntryResponse{
		ID:           e.ID,
		ComponentID:  e.ComponentID,
		Action:       e.Action,
		OldValues:    rawJSON(e.OldValues),
		NewValues:    rawJSON(e.NewValues),
		ChangedBy:    e.ChangedBy,
		ChangeReason: e.ChangeReason,
		CreatedAt:    formatTime(e.CreatedAt),
	}
}

func rawJSON(bs json.RawMessage) any {
	if len(bs) == 0 {
		return nil
	}
	return bs
}
