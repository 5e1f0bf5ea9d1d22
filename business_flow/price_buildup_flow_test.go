package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/fuel-pricing-config/app/dto"
	"github.com/amirphl/fuel-pricing-config/app/services"
	businessflow "github.com/amirphl/fuel-pricing-config/business_flow"
	"github.com/amirphl/fuel-pricing-config/config"
	"github.com/amirphl/fuel-pricing-config/models"
	testingutil "github.com/amirphl/fuel-pricing-config/testing"
	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type buildupFixture struct {
	store      *testingutil.MemoryStore
	versions   *testingutil.MemoryPriceBuildupVersionRepository
	components *testingutil.MemoryPriceComponentRepository
	pricing    *testingutil.MemoryStationTypePricingRepository
	cache      *services.MemoryCache
	events     *testingutil.RecordingEventPublisher
	clock      *testingutil.FakeClock
	buildups   businessflow.PriceBuildupFlow
	calc       businessflow.PriceCalculationFlow
}

func newBuildupFixture(t *testing.T) *buildupFixture {
	t.Helper()
	store := testingutil.NewMemoryStore()
	clock := testingutil.NewFakeClock(time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC))
	f := &buildupFixture{
		store:      store,
		versions:   testingutil.NewMemoryPriceBuildupVersionRepository(store),
		components: testingutil.NewMemoryPriceComponentRepository(store),
		pricing:    testingutil.NewMemoryStationTypePricingRepository(store),
		cache:      services.NewMemoryCache(clock),
		events:     testingutil.NewRecordingEventPublisher(),
		clock:      clock,
	}
	storeConfig := config.StoreConfig{Timeout: time.Second}
	f.buildups = businessflow.NewPriceBuildupFlow(
		f.versions,
		f.components,
		f.pricing,
		testingutil.NewMemoryPriceBuildupAuditTrailRepository(store),
		store.Transactor(),
		f.cache,
		f.events,
		storeConfig,
		clock,
		quietLogger(),
	)
	f.calc = businessflow.NewPriceCalculationFlow(f.versions, f.cache, config.CacheConfig{}, storeConfig, clock, quietLogger())
	return f
}

func buildupRequest(productType models.ProductType, effective time.Time, expiry *time.Time, components ...dto.PriceComponentInput) *dto.CreatePriceBuildupRequest {
	return &dto.CreatePriceBuildupRequest{
		ProductType:   string(productType),
		EffectiveDate: effective,
		ExpiryDate:    expiry,
		ChangeReason:  utils.ToPtr("monthly review"),
		Components:    components,
	}
}

func pending(req *dto.CreatePriceBuildupRequest) *dto.CreatePriceBuildupRequest {
	req.Status = utils.ToPtr(string(models.BuildupStatusPendingApproval))
	return req
}

func exRefinery(amount string) dto.PriceComponentInput {
	return testingutil.ComponentInput(string(models.ComponentExRefineryPrice), string(models.CategoryBasePrice), amount, 10)
}

func (f *buildupFixture) create(t *testing.T, req *dto.CreatePriceBuildupRequest) *dto.PriceBuildupVersionResponse {
	t.Helper()
	resp, err := f.buildups.Create(context.Background(), req, "alice")
	require.NoError(t, err)
	return resp
}

func (f *buildupFixture) approve(t *testing.T, id uint, publish bool) *dto.PriceBuildupVersionResponse {
	t.Helper()
	resp, err := f.buildups.Approve(context.Background(), &dto.ApprovePriceBuildupRequest{
		BuildupVersionID:   id,
		PublishImmediately: publish,
	}, "bob")
	require.NoError(t, err)
	return resp
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func stationRow(t *testing.T, rows []dto.StationTypePricingResponse, st models.StationType) dto.StationTypePricingResponse {
	t.Helper()
	for _, r := range rows {
		if r.StationType == string(st) {
			return r
		}
	}
	t.Fatalf("no pricing row for %s", st)
	return dto.StationTypePricingResponse{}
}

func TestPriceBuildupCreate(t *testing.T) {
	ctx := context.Background()
	jan1 := testingutil.Date(2025, time.January, 1)

	t.Run("stores the version with components, rollup and audit entry", func(t *testing.T) {
		f := newBuildupFixture(t)
		resp := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, testingutil.StandardPetrolComponents()...))

		assert.Equal(t, 1, resp.VersionNumber)
		assert.Equal(t, string(models.BuildupStatusDraft), resp.Status)
		assert.Equal(t, utils.CediCurrency, resp.Currency)
		assert.Equal(t, "alice", resp.CreatedBy)
		assertDecimal(t, "26.28", resp.TotalPrice)
		require.Len(t, resp.Components, 5)
		for _, c := range resp.Components {
			assert.NotZero(t, c.ID)
		}
		assert.Len(t, resp.StationTypePricing, len(models.AllStationTypes))

		rows, err := f.buildups.GetStationTypePricing(ctx, resp.ID)
		require.NoError(t, err)
		coco := stationRow(t, rows, models.StationTypeCOCO)
		assertDecimal(t, "10", coco.BasePrice)
		assertDecimal(t, "2.03", coco.TotalTaxesLevies)
		assertDecimal(t, "0.75", coco.TotalMargins)
		assertDecimal(t, "0", coco.TotalCosts)
		assertDecimal(t, "12.78", coco.FinalPrice)

		trail, err := f.buildups.GetAuditTrail(ctx, resp.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, trail, 1)
		assert.Equal(t, models.BuildupAuditActionCreate, trail[0].Action)
		assert.Equal(t, "alice", trail[0].ChangedBy)

		assert.Equal(t, []string{services.EventPriceBuildupCreated}, f.events.Names())
	})

	t.Run("version numbers increase per product", func(t *testing.T) {
		f := newBuildupFixture(t)
		for i, month := range []time.Month{time.January, time.February, time.March} {
			eff := testingutil.Date(2025, month, 1)
			exp := eff.AddDate(0, 1, 0)
			resp := f.create(t, buildupRequest(models.ProductTypePetrol, eff, &exp, exRefinery("10")))
			assert.Equal(t, i+1, resp.VersionNumber)
		}

		diesel := f.create(t, buildupRequest(models.ProductTypeDiesel, jan1, nil, exRefinery("11")))
		assert.Equal(t, 1, diesel.VersionNumber)
	})

	t.Run("overlapping pending version is rejected", func(t *testing.T) {
		f := newBuildupFixture(t)
		f.create(t, pending(buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10"))))

		_, err := f.buildups.Create(ctx, buildupRequest(models.ProductTypePetrol, testingutil.Date(2025, time.June, 1), nil, exRefinery("11")), "alice")
		require.Error(t, err)
		assert.True(t, businessflow.IsBuildupVersionOverlap(err))
		assert.True(t, businessflow.IsConflict(err))
		assert.Equal(t, "BUILDUP_VERSION_OVERLAP", businessflow.ErrorCode(err))

		n, err := f.versions.Count(ctx, models.PriceBuildupVersionFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("active version blocks an overlapping one", func(t *testing.T) {
		f := newBuildupFixture(t)
		first := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10")))
		f.approve(t, first.ID, false)

		_, err := f.buildups.Create(ctx, buildupRequest(models.ProductTypePetrol, testingutil.Date(2025, time.March, 1), nil, exRefinery("11")), "alice")
		assert.True(t, businessflow.IsBuildupVersionOverlap(err))
	})

	t.Run("adjacent periods and drafts do not conflict", func(t *testing.T) {
		f := newBuildupFixture(t)
		feb1 := testingutil.Date(2025, time.February, 1)
		mar1 := testingutil.Date(2025, time.March, 1)
		f.create(t, pending(buildupRequest(models.ProductTypePetrol, jan1, &feb1, exRefinery("10"))))
		f.create(t, pending(buildupRequest(models.ProductTypePetrol, feb1, &mar1, exRefinery("11"))))

		f.create(t, buildupRequest(models.ProductTypeDiesel, jan1, nil, exRefinery("10")))
		f.create(t, buildupRequest(models.ProductTypeDiesel, jan1, nil, exRefinery("10.5")))

		_, err := f.buildups.Create(ctx, buildupRequest(models.ProductTypeLPG, jan1, nil, exRefinery("9")), "alice")
		require.NoError(t, err)
	})

	t.Run("audit failure rolls back the whole unit of work", func(t *testing.T) {
		f := newBuildupFixture(t)
		f.store.FailOn(testingutil.OpAuditSave, nil)

		_, err := f.buildups.Create(ctx, buildupRequest(models.ProductTypePetrol, jan1, nil, testingutil.StandardPetrolComponents()...), "alice")
		require.Error(t, err)
		assert.ErrorIs(t, err, testingutil.ErrInjected)
		assert.Equal(t, "BUILDUP_CREATE_FAILED", businessflow.ErrorCode(err))

		versions, err := f.versions.Count(ctx, models.PriceBuildupVersionFilter{})
		require.NoError(t, err)
		assert.Zero(t, versions)
		components, err := f.components.Count(ctx, models.PriceComponentFilter{})
		require.NoError(t, err)
		assert.Zero(t, components)
		assert.Empty(t, f.events.Events())

		f.store.ClearFailures()
		resp := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, testingutil.StandardPetrolComponents()...))
		assert.Equal(t, 1, resp.VersionNumber)
	})

	t.Run("component save failure rolls back the version", func(t *testing.T) {
		f := newBuildupFixture(t)
		f.store.FailOn(testingutil.OpPricingSaveBatch, nil)

		_, err := f.buildups.Create(ctx, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10")), "alice")
		require.Error(t, err)

		versions, err := f.versions.Count(ctx, models.PriceBuildupVersionFilter{})
		require.NoError(t, err)
		assert.Zero(t, versions)
	})

	t.Run("invalid requests", func(t *testing.T) {
		f := newBuildupFixture(t)
		vatFirst := testingutil.PercentageInput(string(models.ComponentVAT), string(models.CategoryTaxLevy), "15", string(models.ComponentExRefineryPrice), 5)
		vatOnMissing := testingutil.PercentageInput(string(models.ComponentVAT), string(models.CategoryTaxLevy), "15", string(models.ComponentDealersMargin), 50)
		vatNoBase := testingutil.PercentageInput(string(models.ComponentVAT), string(models.CategoryTaxLevy), "15", "", 50)
		cocoOnly := exRefinery("10")
		cocoOnly.StationType = utils.ToPtr(string(models.StationTypeCOCO))
		vatAll := testingutil.PercentageInput(string(models.ComponentVAT), string(models.CategoryTaxLevy), "15", string(models.ComponentExRefineryPrice), 50)
		badCategory := testingutil.ComponentInput("LEVY_X", "FEE", "1", 20)
		bounded := exRefinery("10")
		bounded.MinAmount = utils.ToPtr(testingutil.Dec("5"))
		bounded.MaxAmount = utils.ToPtr(testingutil.Dec("1"))
		feb1 := testingutil.Date(2025, time.February, 1)

		cases := map[string]struct {
			req  *dto.CreatePriceBuildupRequest
			want error
		}{
			"base after percentage":    {buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10"), vatFirst), businessflow.ErrPercentageBaseNotResolvable},
			"base missing":             {buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10"), vatOnMissing), businessflow.ErrPercentageBaseNotResolvable},
			"base on one station only": {buildupRequest(models.ProductTypePetrol, jan1, nil, cocoOnly, vatAll), businessflow.ErrPercentageBaseNotResolvable},
			"percentage without base":  {buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10"), vatNoBase), businessflow.ErrPercentageBaseRequired},
			"unknown category":         {buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10"), badCategory), businessflow.ErrValidationFailed},
			"min above max":            {buildupRequest(models.ProductTypePetrol, jan1, nil, bounded), businessflow.ErrMinAmountAboveMaxAmount},
			"no components":            {buildupRequest(models.ProductTypePetrol, jan1, nil), businessflow.ErrValidationFailed},
			"expiry before effective":  {buildupRequest(models.ProductTypePetrol, feb1, &jan1, exRefinery("10")), businessflow.ErrExpiryBeforeEffective},
			"unknown product":          {buildupRequest(models.ProductType("JET"), jan1, nil, exRefinery("10")), businessflow.ErrValidationFailed},
		}
		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := f.buildups.Create(ctx, tc.req, "alice")
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.want)
				assert.True(t, businessflow.IsValidationFailed(err))
			})
		}
		assert.Zero(t, f.store.Calls(testingutil.OpVersionSave))
	})
}

func TestPriceBuildupUpdate(t *testing.T) {
	ctx := context.Background()
	jan1 := testingutil.Date(2025, time.January, 1)

	t.Run("components merge by type and station scope", func(t *testing.T) {
		f := newBuildupFixture(t)
		created := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, testingutil.StandardPetrolComponents()...))
		exID := created.Components[0].ID

		f.clock.Advance(time.Hour)
		updated, err := f.buildups.Update(ctx, created.ID, &dto.UpdatePriceBuildupRequest{
			ChangeReason: utils.ToPtr("refinery price change"),
			Components: []dto.PriceComponentInput{
				exRefinery("12"),
				testingutil.ComponentInput(string(models.ComponentTransportCost), string(models.CategoryCost), "0.2", 60),
			},
		}, "carol")
		require.NoError(t, err)
		require.Len(t, updated.Components, 6)
		assert.Equal(t, exID, updated.Components[0].ID)
		assertDecimal(t, "12", updated.Components[0].Amount)
		assertDecimal(t, "28.48", updated.TotalPrice)

		rows, err := f.buildups.GetStationTypePricing(ctx, created.ID)
		require.NoError(t, err)
		coco := stationRow(t, rows, models.StationTypeCOCO)
		assertDecimal(t, "0.2", coco.TotalCosts)
		assertDecimal(t, "15.28", coco.FinalPrice)

		trail, err := f.buildups.GetAuditTrail(ctx, created.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, trail, 2)
		assert.Equal(t, models.BuildupAuditActionUpdate, trail[0].Action)
		assert.Equal(t, "carol", trail[0].ChangedBy)
		assert.NotNil(t, trail[0].OldValues)
		assert.Equal(t, models.BuildupAuditActionCreate, trail[1].Action)

		assert.Equal(t, []string{services.EventPriceBuildupCreated, services.EventPriceBuildupUpdated}, f.events.Names())
	})

	t.Run("station scoped component is added beside the global one", func(t *testing.T) {
		f := newBuildupFixture(t)
		created := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, testingutil.StandardPetrolComponents()...))

		dodoMargin := testingutil.ComponentInput(string(models.ComponentMarketersMargin), string(models.CategoryMargin), "0.9", 40)
		dodoMargin.StationType = utils.ToPtr(string(models.StationTypeDODO))
		updated, err := f.buildups.Update(ctx, created.ID, &dto.UpdatePriceBuildupRequest{
			Components: []dto.PriceComponentInput{dodoMargin},
		}, "carol")
		require.NoError(t, err)
		assert.Len(t, updated.Components, 6)
	})

	t.Run("active versions cannot be modified", func(t *testing.T) {
		f := newBuildupFixture(t)
		created := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10")))
		f.approve(t, created.ID, false)

		_, err := f.buildups.Update(ctx, created.ID, &dto.UpdatePriceBuildupRequest{Notes: utils.ToPtr("late edit")}, "carol")
		require.Error(t, err)
		assert.True(t, businessflow.IsBuildupNotModifiable(err))
		assert.True(t, businessflow.IsInvalidStateTransition(err))
	})

	t.Run("date changes are checked for overlap", func(t *testing.T) {
		f := newBuildupFixture(t)
		feb1 := testingutil.Date(2025, time.February, 1)
		mar1 := testingutil.Date(2025, time.March, 1)
		first := f.create(t, pending(buildupRequest(models.ProductTypePetrol, jan1, &feb1, exRefinery("10"))))
		second := f.create(t, pending(buildupRequest(models.ProductTypePetrol, feb1, &mar1, exRefinery("11"))))

		jan15 := testingutil.Date(2025, time.January, 15)
		_, err := f.buildups.Update(ctx, second.ID, &dto.UpdatePriceBuildupRequest{EffectiveDate: &jan15}, "carol")
		assert.True(t, businessflow.IsBuildupVersionOverlap(err))

		_, err = f.buildups.Update(ctx, first.ID, &dto.UpdatePriceBuildupRequest{Notes: utils.ToPtr("no date change")}, "carol")
		require.NoError(t, err)

		got, err := f.buildups.GetVersion(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, "2025-02-01T00:00:00Z", got.EffectiveDate)
	})

	t.Run("submitting a draft for approval is checked for overlap", func(t *testing.T) {
		f := newBuildupFixture(t)
		first := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10")))
		second := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("11")))
		submit := &dto.UpdatePriceBuildupRequest{Status: utils.ToPtr(string(models.BuildupStatusPendingApproval))}

		_, err := f.buildups.Update(ctx, first.ID, submit, "carol")
		require.NoError(t, err)
		_, err = f.buildups.Update(ctx, second.ID, submit, "carol")
		assert.True(t, businessflow.IsBuildupVersionOverlap(err))
		assert.True(t, businessflow.IsConflict(err))

		got, err := f.buildups.GetVersion(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.BuildupStatusDraft), got.Status)

		// resubmitting an already pending version only checks when dates move
		_, err = f.buildups.Update(ctx, first.ID, submit, "carol")
		require.NoError(t, err)
	})

	t.Run("invalid ordering after merge leaves the version untouched", func(t *testing.T) {
		f := newBuildupFixture(t)
		created := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, testingutil.StandardPetrolComponents()...))

		earlyVAT := testingutil.PercentageInput(string(models.ComponentVAT), string(models.CategoryTaxLevy), "15", string(models.ComponentExRefineryPrice), 5)
		_, err := f.buildups.Update(ctx, created.ID, &dto.UpdatePriceBuildupRequest{
			Components: []dto.PriceComponentInput{earlyVAT},
		}, "carol")
		assert.True(t, businessflow.IsPercentageBaseNotResolvable(err))

		got, err := f.buildups.GetVersion(ctx, created.ID)
		require.NoError(t, err)
		for _, c := range got.Components {
			if c.ComponentType == string(models.ComponentVAT) {
				assert.Equal(t, 50, c.DisplayOrder)
			}
		}
	})

	t.Run("unknown version", func(t *testing.T) {
		f := newBuildupFixture(t)
		_, err := f.buildups.Update(ctx, 42, &dto.UpdatePriceBuildupRequest{Notes: utils.ToPtr("x")}, "carol")
		assert.True(t, businessflow.IsBuildupVersionNotFound(err))
		assert.True(t, businessflow.IsNotFound(err))
	})
}

func TestPriceBuildupApproveAndPublish(t *testing.T) {
	ctx := context.Background()
	jan1 := testingutil.Date(2025, time.January, 1)
	feb1 := testingutil.Date(2025, time.February, 1)

	t.Run("approve activates without publishing", func(t *testing.T) {
		f := newBuildupFixture(t)
		created := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10")))

		approved := f.approve(t, created.ID, false)
		assert.Equal(t, string(models.BuildupStatusActive), approved.Status)
		require.NotNil(t, approved.ApprovedBy)
		assert.Equal(t, "bob", *approved.ApprovedBy)
		assert.NotNil(t, approved.ApprovalDate)
		assert.Nil(t, approved.PublishedDate)

		_, err := f.buildups.Approve(ctx, &dto.ApprovePriceBuildupRequest{BuildupVersionID: created.ID}, "bob")
		assert.True(t, businessflow.IsInvalidStateTransition(err))
		assert.Equal(t, "BUILDUP_NOT_APPROVABLE", businessflow.ErrorCode(err))

		trail, err := f.buildups.GetAuditTrail(ctx, created.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, trail, 2)
		assert.Equal(t, models.BuildupAuditActionApprove, trail[0].Action)
	})

	t.Run("only active versions can be published", func(t *testing.T) {
		f := newBuildupFixture(t)
		created := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10")))

		_, err := f.buildups.Publish(ctx, &dto.PublishPriceBuildupRequest{BuildupVersionID: created.ID}, "bob")
		assert.True(t, businessflow.IsInvalidStateTransition(err))
		assert.Equal(t, "BUILDUP_NOT_PUBLISHABLE", businessflow.ErrorCode(err))

		f.approve(t, created.ID, false)
		published, err := f.buildups.Publish(ctx, &dto.PublishPriceBuildupRequest{BuildupVersionID: created.ID}, "dave")
		require.NoError(t, err)
		require.NotNil(t, published.PublishedBy)
		assert.Equal(t, "dave", *published.PublishedBy)

		_, err = f.buildups.Publish(ctx, &dto.PublishPriceBuildupRequest{BuildupVersionID: created.ID}, "dave")
		assert.True(t, businessflow.IsBuildupAlreadyPublished(err))
	})

	t.Run("publishing archives the other active versions", func(t *testing.T) {
		f := newBuildupFixture(t)
		first := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, &feb1, exRefinery("10")))
		second := f.create(t, buildupRequest(models.ProductTypePetrol, feb1, nil, exRefinery("11")))
		diesel := f.create(t, buildupRequest(models.ProductTypeDiesel, jan1, nil, exRefinery("12")))
		f.approve(t, first.ID, false)
		f.approve(t, second.ID, false)
		f.approve(t, diesel.ID, false)

		_, err := f.buildups.Publish(ctx, &dto.PublishPriceBuildupRequest{BuildupVersionID: second.ID}, "dave")
		require.NoError(t, err)

		got, err := f.buildups.GetVersion(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.BuildupStatusArchived), got.Status)
		got, err = f.buildups.GetVersion(ctx, diesel.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.BuildupStatusActive), got.Status)

		ev, ok := f.events.Last(services.EventPriceBuildupPublished)
		require.True(t, ok)
		assert.Equal(t, int64(1), ev.Payload["archived_versions"])
		assert.Equal(t, "dave", ev.Payload["published_by"])
	})

	t.Run("approve can publish immediately", func(t *testing.T) {
		f := newBuildupFixture(t)
		old := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, &feb1, exRefinery("10")))
		f.approve(t, old.ID, false)
		next := f.create(t, buildupRequest(models.ProductTypePetrol, feb1, nil, exRefinery("11")))

		resp := f.approve(t, next.ID, true)
		assert.NotNil(t, resp.PublishedDate)

		got, err := f.buildups.GetVersion(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.BuildupStatusArchived), got.Status)

		assert.Equal(t, []string{
			services.EventPriceBuildupCreated,
			services.EventPriceBuildupApproved,
			services.EventPriceBuildupCreated,
			services.EventPriceBuildupApproved,
			services.EventPriceBuildupPublished,
		}, f.events.Names())
	})

	t.Run("approval keeps active versions from overlapping", func(t *testing.T) {
		f := newBuildupFixture(t)
		first := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10")))
		second := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("11")))
		f.approve(t, first.ID, false)

		_, err := f.buildups.Approve(ctx, &dto.ApprovePriceBuildupRequest{BuildupVersionID: second.ID}, "bob")
		assert.True(t, businessflow.IsBuildupVersionOverlap(err))
		assert.Equal(t, "BUILDUP_VERSION_OVERLAP", businessflow.ErrorCode(err))

		got, err := f.buildups.GetVersion(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.BuildupStatusDraft), got.Status)
		assert.Nil(t, got.ApprovedBy)

		status := models.BuildupStatusActive
		active, err := f.versions.ByFilter(ctx, models.PriceBuildupVersionFilter{Status: &status}, "", 0, 0)
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("publishing on approval replaces the overlapping active version", func(t *testing.T) {
		f := newBuildupFixture(t)
		first := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10")))
		second := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("11")))
		f.approve(t, first.ID, false)

		resp := f.approve(t, second.ID, true)
		assert.Equal(t, string(models.BuildupStatusActive), resp.Status)

		got, err := f.buildups.GetVersion(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.BuildupStatusArchived), got.Status)
	})

	t.Run("pending versions still block publishing on approval", func(t *testing.T) {
		f := newBuildupFixture(t)
		draft := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10")))
		queued := f.create(t, pending(buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("11"))))

		_, err := f.buildups.Approve(ctx, &dto.ApprovePriceBuildupRequest{BuildupVersionID: draft.ID, PublishImmediately: true}, "bob")
		assert.True(t, businessflow.IsBuildupVersionOverlap(err))

		got, err := f.buildups.GetVersion(ctx, queued.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.BuildupStatusPendingApproval), got.Status)
	})

	t.Run("failed approval changes nothing", func(t *testing.T) {
		f := newBuildupFixture(t)
		created := f.create(t, buildupRequest(models.ProductTypePetrol, jan1, nil, exRefinery("10")))
		f.store.FailOn(testingutil.OpAuditSave, nil)

		_, err := f.buildups.Approve(ctx, &dto.ApprovePriceBuildupRequest{BuildupVersionID: created.ID}, "bob")
		require.Error(t, err)
		assert.Equal(t, "BUILDUP_APPROVE_FAILED", businessflow.ErrorCode(err))

		got, err := f.buildups.GetVersion(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, string(models.BuildupStatusDraft), got.Status)
		assert.Nil(t, got.ApprovedBy)
		assert.NotContains(t, f.events.Names(), services.EventPriceBuildupApproved)
	})

	t.Run("unknown version", func(t *testing.T) {
		f := newBuildupFixture(t)
		_, err := f.buildups.Approve(ctx, &dto.ApprovePriceBuildupRequest{BuildupVersionID: 7}, "bob")
		assert.True(t, businessflow.IsBuildupVersionNotFound(err))
		_, err = f.buildups.Publish(ctx, &dto.PublishPriceBuildupRequest{BuildupVersionID: 7}, "bob")
		assert.True(t, businessflow.IsBuildupVersionNotFound(err))
		_, err = f.buildups.GetAuditTrail(ctx, 7, 10, 0)
		assert.True(t, businessflow.IsBuildupVersionNotFound(err))
	})
}

func TestPriceBuildupListVersions(t *testing.T) {
	ctx := context.Background()
	f := newBuildupFixture(t)
	for _, month := range []time.Month{time.January, time.February, time.March} {
		eff := testingutil.Date(2025, month, 1)
		exp := eff.AddDate(0, 1, 0)
		f.create(t, buildupRequest(models.ProductTypePetrol, eff, &exp, exRefinery("10")))
	}
	f.create(t, buildupRequest(models.ProductTypeDiesel, testingutil.Date(2025, time.January, 1), nil, exRefinery("12")))

	resp, err := f.buildups.ListVersions(ctx, &dto.ListPriceBuildupVersionsRequest{
		ProductType: utils.ToPtr(string(models.ProductTypePetrol)),
		PageSize:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, 3, resp.Items[0].VersionNumber)
	assert.Equal(t, 2, resp.Items[1].VersionNumber)

	from := testingutil.Date(2025, time.February, 1)
	resp, err = f.buildups.ListVersions(ctx, &dto.ListPriceBuildupVersionsRequest{From: &from})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Pagination.Total)

	to := testingutil.Date(2025, time.January, 1)
	_, err = f.buildups.ListVersions(ctx, &dto.ListPriceBuildupVersionsRequest{From: &from, To: &to})
	assert.ErrorIs(t, err, businessflow.ErrStartDateAfterEndDate)
}

func TestValidateComponentOrdering(t *testing.T) {
	base := &models.PriceComponent{ComponentType: models.ComponentExRefineryPrice, DisplayOrder: 10, IsActive: utils.ToPtr(true)}
	vat := &models.PriceComponent{
		ComponentType:  models.ComponentVAT,
		DisplayOrder:   50,
		IsPercentage:   true,
		PercentageBase: utils.ToPtr(models.ComponentExRefineryPrice),
		IsActive:       utils.ToPtr(true),
	}
	assert.NoError(t, businessflow.ValidateComponentOrdering([]*models.PriceComponent{vat, base}))

	vat.DisplayOrder = 10
	assert.ErrorIs(t, businessflow.ValidateComponentOrdering([]*models.PriceComponent{base, vat}), businessflow.ErrPercentageBaseNotResolvable)

	// a component cannot be its own base
	self := &models.PriceComponent{
		ComponentType:  models.ComponentVAT,
		DisplayOrder:   50,
		IsPercentage:   true,
		PercentageBase: utils.ToPtr(models.ComponentVAT),
	}
	assert.ErrorIs(t, businessflow.ValidateComponentOrdering([]*models.PriceComponent{self}), businessflow.ErrPercentageBaseNotResolvable)
}

func TestBuildStationTypePricing(t *testing.T) {
	dodo := models.StationTypeDODO
	version := &models.PriceBuildupVersion{
		ID:            3,
		ProductType:   models.ProductTypeDiesel,
		EffectiveDate: testingutil.Date(2025, time.January, 1),
		Components: []*models.PriceComponent{
			{ComponentType: models.ComponentExRefineryPrice, Category: models.CategoryBasePrice, Amount: testingutil.Dec("8"), DisplayOrder: 10, IsActive: utils.ToPtr(true)},
			{ComponentType: models.ComponentDealersMargin, Category: models.CategoryMargin, Amount: testingutil.Dec("0.3"), DisplayOrder: 20, StationType: &dodo, IsActive: utils.ToPtr(true)},
			{ComponentType: models.ComponentStorageCost, Category: models.CategoryCost, Amount: testingutil.Dec("0.1"), DisplayOrder: 30, IsActive: utils.ToPtr(true)},
			{ComponentType: models.ComponentCustom, Category: models.CategoryCustom, Amount: testingutil.Dec("5"), DisplayOrder: 40, IsActive: utils.ToPtr(true)},
		},
	}

	rows := businessflow.BuildStationTypePricing(version)
	require.Len(t, rows, len(models.AllStationTypes))
	for _, r := range rows {
		assert.Equal(t, uint(3), r.BuildupVersionID)
		assert.Equal(t, models.ProductTypeDiesel, r.ProductType)
		switch r.StationType {
		case models.StationTypeDODO:
			assertDecimal(t, "0.3", r.TotalMargins)
			assertDecimal(t, "8.4", r.FinalPrice)
		default:
			assertDecimal(t, "0", r.TotalMargins)
			assertDecimal(t, "8.1", r.FinalPrice)
		}
	}
}
