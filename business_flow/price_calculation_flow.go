package businessflow

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/amirphl/fuel-pricing-config/app/dto"
	"github.com/amirphl/fuel-pricing-config/app/services"
	"github.com/amirphl/fuel-pricing-config/config"
	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/repository"
	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const priceCachePrefix = "price:"

var hundred = decimal.NewFromInt(100)

// BreakdownLine is one resolved component of a calculation
type BreakdownLine struct {
	Component    *models.PriceComponent
	Amount       decimal.Decimal
	BaseResolved bool
}

// ResolveBreakdown walks the components that apply to stationType on date in display order.
// A percentage component takes its share of the amount already resolved for its base; when
// the base has not been resolved yet the stored amount is used as is. Amounts are clamped to
// the component's bounds and rounded to PriceScale places.
func ResolveBreakdown(components []*models.PriceComponent, stationType models.StationType, date time.Time, exclude map[models.ComponentType]struct{}) []BreakdownLine {
	applicable := make([]*models.PriceComponent, 0, len(components))
	for _, c := range components {
		if c == nil || !utils.IsTrue(c.IsActive) || !c.AppliesTo(stationType) || !c.IsEffectiveOn(date) {
			continue
		}
		if _, skip := exclude[c.ComponentType]; skip {
			continue
		}
		applicable = append(applicable, c)
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		if applicable[i].DisplayOrder != applicable[j].DisplayOrder {
			return applicable[i].DisplayOrder < applicable[j].DisplayOrder
		}
		return applicable[i].ID < applicable[j].ID
	})

	resolved := make(map[models.ComponentType]decimal.Decimal, len(applicable))
	lines := make([]BreakdownLine, 0, len(applicable))
	for _, c := range applicable {
		amount := c.Amount
		baseResolved := !c.IsPercentage
		if c.IsPercentage && c.PercentageBase != nil {
			if base, ok := resolved[*c.PercentageBase]; ok {
				amount = c.Amount.Div(hundred).Mul(base)
				baseResolved = true
			}
		}
		amount = c.Clamp(amount).Round(utils.PriceScale)
		resolved[c.ComponentType] = amount
		lines = append(lines, BreakdownLine{Component: c, Amount: amount, BaseResolved: baseResolved})
	}
	return lines
}

// SumBreakdown totals resolved amounts
func SumBreakdown(lines []BreakdownLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total.Round(utils.PriceScale)
}

// PriceCacheKey renders the cache key of a calculation request
func PriceCacheKey(productType models.ProductType, stationType models.StationType, at time.Time, exclude []string) string {
	return priceCachePrefix + string(productType) + ":" + string(stationType) + ":" + at.UTC().Format(utils.DateLayout) + ":" + strings.Join(exclude, ",")
}

func clearPriceCache(ctx context.Context, cache services.Cache, logger *log.Logger) {
	if err := cache.DeletePrefix(ctx, priceCachePrefix); err != nil {
		logger.Printf("price cache clear: %v", err)
	}
}

// PriceCalculationFlow computes retail prices from active buildup versions
type PriceCalculationFlow interface {
	Calculate(ctx context.Context, req *dto.PriceCalculationRequest) (*dto.PriceCalculationResponse, error)
	GetPriceHistory(ctx context.Context, req *dto.PriceHistoryRequest) ([]dto.PriceCalculationResponse, error)
	GetCurrentPrices(ctx context.Context, productType string, date *time.Time) ([]dto.PriceCalculationResponse, error)
	ClearCache(ctx context.Context) error
}

// PriceCalculationFlowImpl implements PriceCalculationFlow
type PriceCalculationFlowImpl struct {
	versionRepo repository.PriceBuildupVersionRepository
	cache       services.Cache
	cacheConfig config.CacheConfig
	storeConfig config.StoreConfig
	clock       utils.Clock
	logger      *log.Logger
	validate    *validator.Validate
}

// NewPriceCalculationFlow creates a new price calculation flow instance
func NewPriceCalculationFlow(
	versionRepo repository.PriceBuildupVersionRepository,
	cache services.Cache,
	cacheConfig config.CacheConfig,
	storeConfig config.StoreConfig,
	clock utils.Clock,
	logger *log.Logger,
) PriceCalculationFlow {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PriceCalculationFlowImpl{
		versionRepo: versionRepo,
		cache:       cache,
		cacheConfig: cacheConfig,
		storeConfig: storeConfig,
		clock:       clock,
		logger:      logger,
		validate:    validator.New(),
	}
}

func (f *PriceCalculationFlowImpl) priceTTL() time.Duration {
	if f.cacheConfig.PriceTTL > 0 {
		return f.cacheConfig.PriceTTL
	}
	return utils.PriceCacheTTL
}

// Calculate prices productType at stationType at the requested instant (now when unset).
// It fails with ErrNoActiveBuildupForDate when no active version covers that instant.
func (f *PriceCalculationFlowImpl) Calculate(ctx context.Context, req *dto.PriceCalculationRequest) (*dto.PriceCalculationResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_REQUEST", "request is required", ErrValidationFailed)
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("PRICE_CALCULATION_VALIDATION_FAILED", "Price calculation validation failed", validationFailed(err))
	}
	productType := models.ProductType(req.ProductType)
	stationType := models.StationType(req.StationType)

	at := f.clock.Now()
	if req.CalculationDate != nil {
		at = *req.CalculationDate
	}
	at = at.UTC()

	exclusions := normalizeExclusions(req.ExcludeComponents)
	cacheKey := PriceCacheKey(productType, stationType, at, exclusions)
	if cached, ok := f.readCache(ctx, cacheKey, at); ok {
		services.ObservePriceCalculation("cached")
		return cached, nil
	}

	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	version, err := f.versionRepo.ActiveForDate(sctx, productType, at)
	cancel()
	if err != nil {
		services.ObservePriceCalculation("error")
		return nil, NewBusinessError("PRICE_BUILDUP_LOOKUP_FAILED", "Failed to load active price buildup", err)
	}
	if version == nil {
		services.ObservePriceCalculation("not_found")
		return nil, NewBusinessErrorf("NO_ACTIVE_BUILDUP", "No active price buildup for %s on %s", ErrNoActiveBuildupForDate, productType, at.Format(time.RFC3339))
	}

	exclude := make(map[models.ComponentType]struct{}, len(exclusions))
	for _, e := range exclusions {
		exclude[models.ComponentType(e)] = struct{}{}
	}
	resp := f.price(version, stationType, at, exclude)
	f.writeCache(ctx, cacheKey, resp, version, at)
	services.ObservePriceCalculation("computed")
	return resp, nil
}

// GetPriceHistory prices every active version of the product whose effective date falls in
// [From, To], on its own effective date, oldest first.
func (f *PriceCalculationFlowImpl) GetPriceHistory(ctx context.Context, req *dto.PriceHistoryRequest) ([]dto.PriceCalculationResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_REQUEST", "request is required", ErrValidationFailed)
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("PRICE_HISTORY_VALIDATION_FAILED", "Price history validation failed", validationFailed(err))
	}
	if req.From.After(req.To) {
		return nil, NewBusinessError("PRICE_HISTORY_VALIDATION_FAILED", "Price history validation failed", ErrStartDateAfterEndDate)
	}
	productType := models.ProductType(req.ProductType)
	stationType := models.StationType(req.StationType)
	from, to := req.From.UTC(), req.To.UTC()
	status := models.BuildupStatusActive
	active := true

	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()
	versions, err := f.versionRepo.ByFilter(sctx, models.PriceBuildupVersionFilter{
		ProductType:    &productType,
		Status:         &status,
		IsActive:       &active,
		EffectiveFrom:  &from,
		EffectiveTo:    &to,
		InclComponents: true,
	}, "effective_date ASC, version_number ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("PRICE_HISTORY_FAILED", "Failed to load price buildup versions", err)
	}

	out := make([]dto.PriceCalculationResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, *f.price(v, stationType, v.EffectiveDate, nil))
	}
	return out, nil
}

// GetCurrentPrices prices the product at every station type at date (now when nil)
func (f *PriceCalculationFlowImpl) GetCurrentPrices(ctx context.Context, productType string, date *time.Time) ([]dto.PriceCalculationResponse, error) {
	out := make([]dto.PriceCalculationResponse, 0, len(models.AllStationTypes))
	for _, st := range models.AllStationTypes {
		resp, err := f.Calculate(ctx, &dto.PriceCalculationRequest{
			ProductType:     productType,
			StationType:     string(st),
			CalculationDate: date,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// ClearCache drops every cached calculation
func (f *PriceCalculationFlowImpl) ClearCache(ctx context.Context) error {
	return f.cache.DeletePrefix(ctx, priceCachePrefix)
}

func (f *PriceCalculationFlowImpl) price(version *models.PriceBuildupVersion, stationType models.StationType, date time.Time, exclude map[models.ComponentType]struct{}) *dto.PriceCalculationResponse {
	lines := ResolveBreakdown(version.Components, stationType, date, exclude)
	breakdown := make([]dto.PriceBreakdownItem, 0, len(lines))
	for _, l := range lines {
		c := l.Component
		var base *string
		if c.PercentageBase != nil {
			base = utils.ToPtr(string(*c.PercentageBase))
		}
		if c.IsPercentage && !l.BaseResolved {
			f.logger.Printf("price calculation: version %d component %s: percentage base %s not resolved before display order %d, using stored amount",
				version.ID, c.ComponentType, utils.StringOrEmpty(base), c.DisplayOrder)
		}
		breakdown = append(breakdown, dto.PriceBreakdownItem{
			ComponentType:  string(c.ComponentType),
			ComponentName:  c.ComponentName,
			Category:       string(c.Category),
			Amount:         l.Amount,
			StoredAmount:   c.Amount,
			IsPercentage:   c.IsPercentage,
			PercentageBase: base,
			BaseResolved:   l.BaseResolved,
			DisplayOrder:   c.DisplayOrder,
		})
	}
	return &dto.PriceCalculationResponse{
		ProductType:      string(version.ProductType),
		StationType:      string(stationType),
		CalculationDate:  date.Format(utils.DateLayout),
		BuildupVersionID: version.ID,
		VersionNumber:    version.VersionNumber,
		Breakdown:        breakdown,
		TotalPrice:       SumBreakdown(lines),
		Currency:         version.Currency,
		CalculatedAt:     formatTime(f.clock.Now()),
	}
}

// cachedPrice is a calculation stored under its day key. It is only served for instants
// inside [ValidFrom, ValidUntil), where no version or component boundary falls.
type cachedPrice struct {
	Response   dto.PriceCalculationResponse `json:"response"`
	ValidFrom  time.Time                    `json:"valid_from"`
	ValidUntil *time.Time                   `json:"valid_until,omitempty"`
}

func (c cachedPrice) covers(at time.Time) bool {
	if at.Before(c.ValidFrom) {
		return false
	}
	return c.ValidUntil == nil || at.Before(*c.ValidUntil)
}

// pricingWindow returns the span around at over which version prices identically
func pricingWindow(version *models.PriceBuildupVersion, at time.Time) (time.Time, *time.Time) {
	from, until := version.EffectiveDate, version.ExpiryDate
	consider := func(b *time.Time) {
		if b == nil {
			return
		}
		if !b.After(at) {
			if b.After(from) {
				from = *b
			}
			return
		}
		if until == nil || b.Before(*until) {
			bound := *b
			until = &bound
		}
	}
	for _, c := range version.Components {
		if c == nil {
			continue
		}
		consider(c.EffectiveDate)
		consider(c.ExpiryDate)
	}
	return from, until
}

func (f *PriceCalculationFlowImpl) readCache(ctx context.Context, cacheKey string, at time.Time) (*dto.PriceCalculationResponse, bool) {
	bs, ok, err := f.cache.Get(ctx, cacheKey)
	if err != nil {
		services.ObserveCacheLookup("price", "error")
		f.logger.Printf("price cache read %s: %v", cacheKey, err)
		return nil, false
	}
	if !ok {
		services.ObserveCacheLookup("price", "miss")
		return nil, false
	}
	var entry cachedPrice
	if err := json.Unmarshal(bs, &entry); err != nil {
		services.ObserveCacheLookup("price", "error")
		return nil, false
	}
	if !entry.covers(at) {
		services.ObserveCacheLookup("price", "miss")
		return nil, false
	}
	services.ObserveCacheLookup("price", "hit")
	return &entry.Response, true
}

func (f *PriceCalculationFlowImpl) writeCache(ctx context.Context, cacheKey string, resp *dto.PriceCalculationResponse, version *models.PriceBuildupVersion, at time.Time) {
	from, until := pricingWindow(version, at)
	bs, err := json.Marshal(cachedPrice{Response: *resp, ValidFrom: from, ValidUntil: until})
	if err != nil {
		f.logger.Printf("price cache encode %s: %v", cacheKey, err)
		return
	}
	if err := f.cache.Set(ctx, cacheKey, bs, f.priceTTL()); err != nil {
		f.logger.Printf("price cache write %s: %v", cacheKey, err)
	}
}

func normalizeExclusions(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToUpper(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
