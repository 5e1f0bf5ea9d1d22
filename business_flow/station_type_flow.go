package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/amirphl/fuel-pricing-config/app/dto"
	"github.com/amirphl/fuel-pricing-config/models"
)

// Station type configuration fields, stored under station_type.<type>.<field>
const (
	stationFieldApplicableComponents   = "applicable_components"
	stationFieldSupportedProducts      = "supported_products"
	stationFieldBaseDealerMargin       = "base_dealer_margin"
	stationFieldRegulatoryRequirements = "regulatory_requirements"
	stationFieldOperatingModel         = "operating_model"
	stationFieldRequiresSpecialPricing = "requires_special_pricing"
)

var stationFields = []string{
	stationFieldApplicableComponents,
	stationFieldSupportedProducts,
	stationFieldBaseDealerMargin,
	stationFieldRegulatoryRequirements,
	stationFieldOperatingModel,
	stationFieldRequiresSpecialPricing,
}

// StationTypeFlow assembles station type settings from configuration rows
type StationTypeFlow interface {
	GetStationTypeConfiguration(ctx context.Context, stationType string, tenant models.TenantRef) (*dto.StationTypeConfigurationResponse, error)
	ListStationTypeConfigurations(ctx context.Context, tenant models.TenantRef) ([]dto.StationTypeConfigurationResponse, error)
}

// StationTypeFlowImpl implements StationTypeFlow
type StationTypeFlowImpl struct {
	configs ConfigurationFlow
}

// NewStationTypeFlow creates a new station type flow instance
func NewStationTypeFlow(configs ConfigurationFlow) StationTypeFlow {
	return &StationTypeFlowImpl{configs: configs}
}

// StationTypeConfigKey returns the configuration key of one station type field
func StationTypeConfigKey(st models.StationType, field string) string {
	return "station_type." + strings.ToLower(string(st)) + "." + field
}

func (f *StationTypeFlowImpl) GetStationTypeConfiguration(ctx context.Context, stationType string, tenant models.TenantRef) (*dto.StationTypeConfigurationResponse, error) {
	st := models.StationType(strings.ToUpper(strings.TrimSpace(stationType)))
	if !st.Valid() {
		return nil, NewBusinessErrorf("INVALID_STATION_TYPE", "Station type %q is invalid", ErrInvalidStationType, stationType)
	}

	keys := make([]string, 0, len(stationFields))
	for _, field := range stationFields {
		keys = append(keys, StationTypeConfigKey(st, field))
	}
	values, err := f.configs.GetMultiple(ctx, keys, tenant, nil)
	if err != nil {
		return nil, err
	}
	value := func(field string) any { return values[StationTypeConfigKey(st, field)] }

	return &dto.StationTypeConfigurationResponse{
		StationType:            string(st),
		ApplicableComponents:   toStringSlice(value(stationFieldApplicableComponents)),
		SupportedProducts:      toStringSlice(value(stationFieldSupportedProducts)),
		BaseDealerMargin:       toFloatPtr(value(stationFieldBaseDealerMargin)),
		RegulatoryRequirements: toStringPtr(value(stationFieldRegulatoryRequirements)),
		OperatingModel:         toStringPtr(value(stationFieldOperatingModel)),
		RequiresSpecialPricing: toBool(value(stationFieldRequiresSpecialPricing)),
	}, nil
}

func (f *StationTypeFlowImpl) ListStationTypeConfigurations(ctx context.Context, tenant models.TenantRef) ([]dto.StationTypeConfigurationResponse, error) {
	out := make([]dto.StationTypeConfigurationResponse, 0, len(models.AllStationTypes))
	for _, st := range models.AllStationTypes {
		cfg, err := f.GetStationTypeConfiguration(ctx, string(st), tenant)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, nil
}

func toStringSlice(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
	case []string:
		out = append(out, val...)
	case string:
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func toFloatPtr(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}

func toStringPtr(v any) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return &val
	default:
		s := fmt.Sprint(val)
		return &s
	}
}

func toBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(strings.TrimSpace(val), "true")
	}
	return false
}
