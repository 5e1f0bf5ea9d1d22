package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/fuel-pricing-config/app/dto"
	businessflow "github.com/amirphl/fuel-pricing-config/business_flow"
	"github.com/amirphl/fuel-pricing-config/config"
	"github.com/amirphl/fuel-pricing-config/models"
	testingutil "github.com/amirphl/fuel-pricing-config/testing"
	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calcRequest(productType models.ProductType, stationType models.StationType, date time.Time, exclude ...string) *dto.PriceCalculationRequest {
	return &dto.PriceCalculationRequest{
		ProductType:       string(productType),
		StationType:       string(stationType),
		CalculationDate:   &date,
		ExcludeComponents: exclude,
	}
}

// activePetrol creates and approves a petrol version effective from jan 1 2025
func activePetrol(t *testing.T, f *buildupFixture, components ...dto.PriceComponentInput) *dto.PriceBuildupVersionResponse {
	t.Helper()
	if len(components) == 0 {
		components = testingutil.StandardPetrolComponents()
	}
	created := f.create(t, buildupRequest(models.ProductTypePetrol, testingutil.Date(2025, time.January, 1), nil, components...))
	return f.approve(t, created.ID, false)
}

func TestPriceCalculate(t *testing.T) {
	ctx := context.Background()
	jan15 := testingutil.Date(2025, time.January, 15)

	t.Run("percentage takes its share of the resolved base", func(t *testing.T) {
		f := newBuildupFixture(t)
		version := activePetrol(t, f,
			exRefinery("10"),
			testingutil.PercentageInput(string(models.ComponentMarketersMargin), string(models.CategoryMargin), "10", string(models.ComponentExRefineryPrice), 20),
		)

		resp, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15))
		require.NoError(t, err)
		assert.Equal(t, version.ID, resp.BuildupVersionID)
		assert.Equal(t, 1, resp.VersionNumber)
		assert.Equal(t, "2025-01-15", resp.CalculationDate)
		assert.Equal(t, utils.CediCurrency, resp.Currency)
		require.Len(t, resp.Breakdown, 2)
		assertDecimal(t, "10", resp.Breakdown[0].Amount)
		assertDecimal(t, "1", resp.Breakdown[1].Amount)
		assertDecimal(t, "10", resp.Breakdown[1].StoredAmount)
		assert.True(t, resp.Breakdown[1].BaseResolved)
		assertDecimal(t, "11", resp.TotalPrice)
		assert.Equal(t, "2025-03-01T09:00:00Z", resp.CalculatedAt)
	})

	t.Run("standard petrol at a company owned station", func(t *testing.T) {
		f := newBuildupFixture(t)
		activePetrol(t, f)

		resp, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15))
		require.NoError(t, err)
		assertDecimal(t, "12.78", resp.TotalPrice)
		assert.Equal(t, string(models.ComponentVAT), resp.Breakdown[4].ComponentType)
		assertDecimal(t, "1.5", resp.Breakdown[4].Amount)
	})

	t.Run("excluded components are skipped", func(t *testing.T) {
		f := newBuildupFixture(t)
		activePetrol(t, f)

		resp, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15, "vat"))
		require.NoError(t, err)
		assert.Len(t, resp.Breakdown, 4)
		assertDecimal(t, "11.28", resp.TotalPrice)

		// without its base the percentage falls back to the stored amount
		resp, err = f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15, string(models.ComponentExRefineryPrice)))
		require.NoError(t, err)
		vat := resp.Breakdown[len(resp.Breakdown)-1]
		assert.False(t, vat.BaseResolved)
		assertDecimal(t, "15", vat.Amount)
		assertDecimal(t, "16.28", resp.TotalPrice)
	})

	t.Run("station scoped components apply to their station only", func(t *testing.T) {
		f := newBuildupFixture(t)
		dealers := testingutil.ComponentInput(string(models.ComponentDealersMargin), string(models.CategoryMargin), "0.3", 45)
		dealers.StationType = utils.ToPtr(string(models.StationTypeDODO))
		activePetrol(t, f, append(testingutil.StandardPetrolComponents(), dealers)...)

		prices, err := f.calc.GetCurrentPrices(ctx, string(models.ProductTypePetrol), &jan15)
		require.NoError(t, err)
		require.Len(t, prices, len(models.AllStationTypes))
		for i, p := range prices {
			assert.Equal(t, string(models.AllStationTypes[i]), p.StationType)
			if p.StationType == string(models.StationTypeDODO) {
				assertDecimal(t, "13.08", p.TotalPrice)
				continue
			}
			assertDecimal(t, "12.78", p.TotalPrice)
		}
	})

	t.Run("defaults to today", func(t *testing.T) {
		f := newBuildupFixture(t)
		activePetrol(t, f)

		resp, err := f.calc.Calculate(ctx, &dto.PriceCalculationRequest{
			ProductType: string(models.ProductTypePetrol),
			StationType: string(models.StationTypeCODO),
		})
		require.NoError(t, err)
		assert.Equal(t, "2025-03-01", resp.CalculationDate)
	})

	t.Run("no active version for the day", func(t *testing.T) {
		f := newBuildupFixture(t)
		activePetrol(t, f)
		f.create(t, buildupRequest(models.ProductTypeDiesel, testingutil.Date(2025, time.January, 1), nil, exRefinery("11")))

		cases := map[string]*dto.PriceCalculationRequest{
			"other product in draft": calcRequest(models.ProductTypeDiesel, models.StationTypeCOCO, jan15),
			"unknown product buildup": calcRequest(models.ProductTypeLPG, models.StationTypeCOCO, jan15),
			"before effective date":  calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, testingutil.Date(2024, time.December, 31)),
		}
		for name, req := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := f.calc.Calculate(ctx, req)
				require.Error(t, err)
				assert.True(t, businessflow.IsNoActiveBuildupForDate(err))
				assert.True(t, businessflow.IsNotFound(err))
				assert.Equal(t, "NO_ACTIVE_BUILDUP", businessflow.ErrorCode(err))
			})
		}
	})

	t.Run("expiry date is exclusive", func(t *testing.T) {
		f := newBuildupFixture(t)
		feb1 := testingutil.Date(2025, time.February, 1)
		created := f.create(t, buildupRequest(models.ProductTypePetrol, testingutil.Date(2025, time.January, 1), &feb1, exRefinery("10")))
		f.approve(t, created.ID, false)

		_, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, testingutil.Date(2025, time.January, 31)))
		require.NoError(t, err)
		_, err = f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, feb1))
		assert.True(t, businessflow.IsNoActiveBuildupForDate(err))
	})

	t.Run("invalid request", func(t *testing.T) {
		f := newBuildupFixture(t)
		_, err := f.calc.Calculate(ctx, &dto.PriceCalculationRequest{ProductType: "PETROL", StationType: "KIOSK"})
		assert.True(t, businessflow.IsValidationFailed(err))
		assert.Equal(t, "PRICE_CALCULATION_VALIDATION_FAILED", businessflow.ErrorCode(err))
	})
}

func TestPriceCalculateWithinTheDay(t *testing.T) {
	ctx := context.Background()
	at := func(hour int) time.Time { return time.Date(2025, time.March, 1, hour, 0, 0, 0, time.UTC) }

	t.Run("version effective earlier today prices now", func(t *testing.T) {
		f := newBuildupFixture(t)
		created := f.create(t, buildupRequest(models.ProductTypePetrol, at(8), nil, exRefinery("10")))
		f.approve(t, created.ID, true)

		resp, err := f.calc.Calculate(ctx, &dto.PriceCalculationRequest{
			ProductType: string(models.ProductTypePetrol),
			StationType: string(models.StationTypeCOCO),
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, resp.BuildupVersionID)
		assert.Equal(t, "2025-03-01", resp.CalculationDate)
	})

	t.Run("version starting later today is not yet active", func(t *testing.T) {
		f := newBuildupFixture(t)
		created := f.create(t, buildupRequest(models.ProductTypePetrol, at(14), nil, exRefinery("10")))
		f.approve(t, created.ID, false)

		_, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, at(13)))
		assert.True(t, businessflow.IsNoActiveBuildupForDate(err))
		_, err = f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, at(14)))
		require.NoError(t, err)
	})

	t.Run("cached price is not served past the version expiry", func(t *testing.T) {
		f := newBuildupFixture(t)
		noon := at(12)
		created := f.create(t, buildupRequest(models.ProductTypePetrol, testingutil.Date(2025, time.January, 1), &noon, exRefinery("10")))
		f.approve(t, created.ID, false)

		_, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, at(11)))
		require.NoError(t, err)
		_, err = f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, at(10)))
		require.NoError(t, err)
		assert.Equal(t, 1, f.store.Calls(testingutil.OpVersionActiveForDate))

		_, err = f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, at(18)))
		assert.True(t, businessflow.IsNoActiveBuildupForDate(err))
	})

	t.Run("component boundaries inside the day", func(t *testing.T) {
		f := newBuildupFixture(t)
		levy := testingutil.ComponentInput(string(models.ComponentRoadFundLevy), string(models.CategoryTaxLevy), "0.5", 20)
		levy.EffectiveDate = utils.ToPtr(at(14))
		activePetrol(t, f, exRefinery("10"), levy)

		before, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, at(10)))
		require.NoError(t, err)
		assertDecimal(t, "10", before.TotalPrice)

		after, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, at(15)))
		require.NoError(t, err)
		assertDecimal(t, "10.5", after.TotalPrice)
		assert.Equal(t, 2, f.store.Calls(testingutil.OpVersionActiveForDate))
	})
}

func TestPriceCalculationCaching(t *testing.T) {
	ctx := context.Background()
	jan15 := testingutil.Date(2025, time.January, 15)

	t.Run("one lookup per day and exclusion set", func(t *testing.T) {
		f := newBuildupFixture(t)
		activePetrol(t, f)

		first, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15))
		require.NoError(t, err)
		second, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15.Add(15*time.Hour)))
		require.NoError(t, err)
		assert.Equal(t, 1, f.store.Calls(testingutil.OpVersionActiveForDate))
		assertDecimal(t, first.TotalPrice.String(), second.TotalPrice)
		assert.Equal(t, first.CalculatedAt, second.CalculatedAt)

		_, err = f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15, "vat", "ROAD_FUND_LEVY"))
		require.NoError(t, err)
		_, err = f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15, " ROAD_FUND_LEVY ", "VAT", "vat"))
		require.NoError(t, err)
		assert.Equal(t, 2, f.store.Calls(testingutil.OpVersionActiveForDate))
	})

	t.Run("entries expire after the price ttl", func(t *testing.T) {
		f := newBuildupFixture(t)
		activePetrol(t, f)

		_, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15))
		require.NoError(t, err)
		f.clock.Advance(utils.PriceCacheTTL + time.Second)
		_, err = f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15))
		require.NoError(t, err)
		assert.Equal(t, 2, f.store.Calls(testingutil.OpVersionActiveForDate))
	})

	t.Run("lifecycle changes clear cached prices", func(t *testing.T) {
		f := newBuildupFixture(t)
		activePetrol(t, f)

		_, err := f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15))
		require.NoError(t, err)

		diesel := f.create(t, buildupRequest(models.ProductTypeDiesel, testingutil.Date(2025, time.January, 1), nil, exRefinery("11")))
		f.approve(t, diesel.ID, false)

		_, err = f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15))
		require.NoError(t, err)
		assert.Equal(t, 2, f.store.Calls(testingutil.OpVersionActiveForDate))

		require.NoError(t, f.calc.ClearCache(ctx))
		_, err = f.calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15))
		require.NoError(t, err)
		assert.Equal(t, 3, f.store.Calls(testingutil.OpVersionActiveForDate))
	})

	t.Run("cache failures fall through to the store", func(t *testing.T) {
		f := newBuildupFixture(t)
		activePetrol(t, f)
		calc := businessflow.NewPriceCalculationFlow(f.versions, testingutil.FailingCache{}, config.CacheConfig{}, config.StoreConfig{}, f.clock, quietLogger())

		resp, err := calc.Calculate(ctx, calcRequest(models.ProductTypePetrol, models.StationTypeCOCO, jan15))
		require.NoError(t, err)
		assertDecimal(t, "12.78", resp.TotalPrice)
	})

	t.Run("cache key layout", func(t *testing.T) {
		assert.Equal(t,
			"price:PETROL:COCO:2025-01-15:ROAD_FUND_LEVY,VAT",
			businessflow.PriceCacheKey(models.ProductTypePetrol, models.StationTypeCOCO, jan15, []string{"ROAD_FUND_LEVY", "VAT"}),
		)
		assert.Equal(t,
			"price:DIESEL:DODO:2025-01-15:",
			businessflow.PriceCacheKey(models.ProductTypeDiesel, models.StationTypeDODO, jan15, nil),
		)
	})
}

func TestPriceHistory(t *testing.T) {
	ctx := context.Background()
	jan1 := testingutil.Date(2025, time.January, 1)
	feb1 := testingutil.Date(2025, time.February, 1)
	mar1 := testingutil.Date(2025, time.March, 1)

	f := newBuildupFixture(t)
	first := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, &feb1, exRefinery("10")))
	f.approve(t, first.ID, false)
	second := f.create(t, buildupRequest(models.ProductTypePetrol, feb1, &mar1, exRefinery("12")))
	f.approve(t, second.ID, false)
	f.create(t, buildupRequest(models.ProductTypePetrol, mar1, nil, exRefinery("14")))

	history, err := f.calc.GetPriceHistory(ctx, &dto.PriceHistoryRequest{
		ProductType: string(models.ProductTypePetrol),
		StationType: string(models.StationTypeCOCO),
		From:        jan1,
		To:          mar1,
	})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2025-01-01", history[0].CalculationDate)
	assertDecimal(t, "10", history[0].TotalPrice)
	assert.Equal(t, "2025-02-01", history[1].CalculationDate)
	assertDecimal(t, "12", history[1].TotalPrice)

	history, err = f.calc.GetPriceHistory(ctx, &dto.PriceHistoryRequest{
		ProductType: string(models.ProductTypePetrol),
		StationType: string(models.StationTypeCOCO),
		From:        testingutil.Date(2025, time.January, 15),
		To:          mar1,
	})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, second.ID, history[0].BuildupVersionID)

	_, err = f.calc.GetPriceHistory(ctx, &dto.PriceHistoryRequest{
		ProductType: string(models.ProductTypePetrol),
		StationType: string(models.StationTypeCOCO),
		From:        mar1,
		To:          jan1,
	})
	assert.ErrorIs(t, err, businessflow.ErrStartDateAfterEndDate)
	assert.Equal(t, "PRICE_HISTORY_VALIDATION_FAILED", businessflow.ErrorCode(err))
}

func TestResolveBreakdown(t *testing.T) {
	jan15 := testingutil.Date(2025, time.January, 15)
	component := func(ct models.ComponentType, amount string, order int) *models.PriceComponent {
		return &models.PriceComponent{
			ComponentType: ct,
			Category:      models.CategoryTaxLevy,
			Amount:        testingutil.Dec(amount),
			DisplayOrder:  order,
			IsActive:      utils.ToPtr(true),
		}
	}
	percentage := func(ct models.ComponentType, percent string, base models.ComponentType, order int) *models.PriceComponent {
		c := component(ct, percent, order)
		c.IsPercentage = true
		c.PercentageBase = utils.ToPtr(base)
		return c
	}

	t.Run("unresolved base uses the stored amount", func(t *testing.T) {
		lines := businessflow.ResolveBreakdown([]*models.PriceComponent{
			component(models.ComponentExRefineryPrice, "10", 10),
			percentage(models.ComponentVAT, "15", models.ComponentExRefineryPrice, 5),
		}, models.StationTypeCOCO, jan15, nil)

		require.Len(t, lines, 2)
		assert.Equal(t, models.ComponentVAT, lines[0].Component.ComponentType)
		assert.False(t, lines[0].BaseResolved)
		assertDecimal(t, "15", lines[0].Amount)
		assertDecimal(t, "25", businessflow.SumBreakdown(lines))
	})

	t.Run("amounts are clamped to their bounds", func(t *testing.T) {
		margin := percentage(models.ComponentMarketersMargin, "10", models.ComponentExRefineryPrice, 20)
		margin.MaxAmount = utils.ToPtr(testingutil.Dec("0.5"))
		levy := component(models.ComponentRoadFundLevy, "0.1", 30)
		levy.MinAmount = utils.ToPtr(testingutil.Dec("0.25"))

		lines := businessflow.ResolveBreakdown([]*models.PriceComponent{
			component(models.ComponentExRefineryPrice, "10", 10), margin, levy,
		}, models.StationTypeCOCO, jan15, nil)

		require.Len(t, lines, 3)
		assertDecimal(t, "0.5", lines[1].Amount)
		assertDecimal(t, "0.25", lines[2].Amount)
	})

	t.Run("results are rounded to four places", func(t *testing.T) {
		lines := businessflow.ResolveBreakdown([]*models.PriceComponent{
			component(models.ComponentExRefineryPrice, "10.12345", 10),
			percentage(models.ComponentVAT, "3.3333", models.ComponentExRefineryPrice, 20),
		}, models.StationTypeCOCO, jan15, nil)

		assertDecimal(t, "10.1235", lines[0].Amount)
		assertDecimal(t, "0.3374", lines[1].Amount)
	})

	t.Run("inactive and out of window components are skipped", func(t *testing.T) {
		inactive := component(models.ComponentRoadFundLevy, "1", 20)
		inactive.IsActive = utils.ToPtr(false)
		future := component(models.ComponentEnergyFundLevy, "1", 30)
		future.EffectiveDate = utils.ToPtr(testingutil.Date(2025, time.February, 1))
		expired := component(models.ComponentSanitationLevy, "1", 40)
		expired.ExpiryDate = utils.ToPtr(jan15)

		lines := businessflow.ResolveBreakdown([]*models.PriceComponent{
			component(models.ComponentExRefineryPrice, "10", 10), inactive, future, expired,
		}, models.StationTypeCOCO, jan15, nil)

		require.Len(t, lines, 1)
		assertDecimal(t, "10", businessflow.SumBreakdown(lines))
	})
}
