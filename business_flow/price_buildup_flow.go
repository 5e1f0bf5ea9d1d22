package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
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

// PriceBuildupFlow handles the price buildup version lifecycle
type PriceBuildupFlow interface {
	Create(ctx context.Context, req *dto.CreatePriceBuildupRequest, actor string) (*dto.PriceBuildupVersionResponse, error)
	Update(ctx context.Context, id uint, req *dto.UpdatePriceBuildupRequest, actor string) (*dto.PriceBuildupVersionResponse, error)
	Approve(ctx context.Context, req *dto.ApprovePriceBuildupRequest, actor string) (*dto.PriceBuildupVersionResponse, error)
	Publish(ctx context.Context, req *dto.PublishPriceBuildupRequest, actor string) (*dto.PriceBuildupVersionResponse, error)
	GetVersion(ctx context.Context, id uint) (*dto.PriceBuildupVersionResponse, error)
	ListVersions(ctx context.Context, req *dto.ListPriceBuildupVersionsRequest) (*dto.ListPriceBuildupVersionsResponse, error)
	GetAuditTrail(ctx context.Context, versionID uint, limit, offset int) ([]dto.PriceBuildupAuditEntryResponse, error)
	GetStationTypePricing(ctx context.Context, versionID uint) ([]dto.StationTypePricingResponse, error)
}

// PriceBuildupFlowImpl implements PriceBuildupFlow
type PriceBuildupFlowImpl struct {
	versionRepo   repository.PriceBuildupVersionRepository
	componentRepo repository.PriceComponentRepository
	pricingRepo   repository.StationTypePricingRepository
	auditRepo     repository.PriceBuildupAuditTrailRepository
	transactor    repository.Transactor
	cache         services.Cache
	events        services.EventPublisher
	storeConfig   config.StoreConfig
	clock         utils.Clock
	logger        *log.Logger
	validate      *validator.Validate
}

// NewPriceBuildupFlow creates a new price buildup flow instance
func NewPriceBuildupFlow(
	versionRepo repository.PriceBuildupVersionRepository,
	componentRepo repository.PriceComponentRepository,
	pricingRepo repository.StationTypePricingRepository,
	auditRepo repository.PriceBuildupAuditTrailRepository,
	transactor repository.Transactor,
	cache services.Cache,
	events services.EventPublisher,
	storeConfig config.StoreConfig,
	clock utils.Clock,
	logger *log.Logger,
) PriceBuildupFlow {
	if events == nil {
		events = services.NoopEventPublisher{}
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &PriceBuildupFlowImpl{
		versionRepo:   versionRepo,
		componentRepo: componentRepo,
		pricingRepo:   pricingRepo,
		auditRepo:     auditRepo,
		transactor:    transactor,
		cache:         cache,
		events:        events,
		storeConfig:   storeConfig,
		clock:         clock,
		logger:        logger,
		validate:      validator.New(),
	}
}

// BuildStationTypePricing rolls the version's components up per station type on its
// effective date. Custom components are reported in calculations but left out of the rollup.
func BuildStationTypePricing(version *models.PriceBuildupVersion) []*models.StationTypePricing {
	rows := make([]*models.StationTypePricing, 0, len(models.AllStationTypes))
	for _, st := range models.AllStationTypes {
		base, taxes, margins, costs := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
		for _, line := range ResolveBreakdown(version.Components, st, version.EffectiveDate, nil) {
			switch line.Component.Category {
			case models.CategoryBasePrice:
				base = base.Add(line.Amount)
			case models.CategoryTaxLevy:
				taxes = taxes.Add(line.Amount)
			case models.CategoryMargin:
				margins = margins.Add(line.Amount)
			case models.CategoryCost:
				costs = costs.Add(line.Amount)
			}
		}
		rows = append(rows, &models.StationTypePricing{
			BuildupVersionID: version.ID,
			StationType:      st,
			ProductType:      version.ProductType,
			BasePrice:        base,
			TotalTaxesLevies: taxes,
			TotalMargins:     margins,
			TotalCosts:       costs,
			FinalPrice:       base.Add(taxes).Add(margins).Add(costs).Round(utils.PriceScale),
		})
	}
	return rows
}

// ValidateComponentOrdering checks that every percentage component has its base resolved
// earlier in display order for each station type it applies to.
func ValidateComponentOrdering(components []*models.PriceComponent) error {
	for _, c := range components {
		if !c.IsPercentage {
			continue
		}
		if c.PercentageBase == nil {
			return fmt.Errorf("component %s: %w", c.ComponentType, ErrPercentageBaseRequired)
		}
		for _, st := range models.AllStationTypes {
			if !c.AppliesTo(st) {
				continue
			}
			found := false
			for _, b := range components {
				if b != c && b.ComponentType == *c.PercentageBase && b.AppliesTo(st) && b.DisplayOrder < c.DisplayOrder {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("component %s at %s references %s: %w", c.ComponentType, st, *c.PercentageBase, ErrPercentageBaseNotResolvable)
			}
		}
	}
	return nil
}

func (f *PriceBuildupFlowImpl) buildComponent(productType models.ProductType, in dto.PriceComponentInput, actor string) (*models.PriceComponent, error) {
	componentType := models.ComponentType(strings.ToUpper(strings.TrimSpace(in.ComponentType)))
	category := models.ComponentCategory(strings.ToUpper(strings.TrimSpace(in.Category)))
	if !category.Valid() {
		return nil, fmt.Errorf("component %s: %w", componentType, ErrInvalidComponentCategory)
	}
	if in.MinAmount != nil && in.MaxAmount != nil && in.MinAmount.GreaterThan(*in.MaxAmount) {
		return nil, fmt.Errorf("component %s: %w", componentType, ErrMinAmountAboveMaxAmount)
	}
	if in.EffectiveDate != nil && in.ExpiryDate != nil && !in.ExpiryDate.After(*in.EffectiveDate) {
		return nil, fmt.Errorf("component %s: %w", componentType, ErrExpiryBeforeEffective)
	}

	c := &models.PriceComponent{
		ComponentType: componentType,
		ComponentName: strings.TrimSpace(in.ComponentName),
		Category:      category,
		Amount:        in.Amount,
		Currency:      utils.CediCurrency,
		IsPercentage:  in.IsPercentage,
		ProductType:   productType,
		DisplayOrder:  in.DisplayOrder,
		EffectiveDate: utils.TimeToUTCPtr(in.EffectiveDate),
		ExpiryDate:    utils.TimeToUTCPtr(in.ExpiryDate),
		MinAmount:     in.MinAmount,
		MaxAmount:     in.MaxAmount,
		IsMandatory:   utils.Deref(in.IsMandatory, true),
		IsActive:      utils.ToPtr(true),
		Description:   in.Description,
		RegulatoryRef: in.RegulatoryReference,
		CreatedBy:     actor,
	}
	if in.Currency != nil {
		c.Currency = strings.ToUpper(*in.Currency)
	}
	if in.PercentageBase != nil && strings.TrimSpace(*in.PercentageBase) != "" {
		c.PercentageBase = utils.ToPtr(models.ComponentType(strings.ToUpper(strings.TrimSpace(*in.PercentageBase))))
	}
	if in.StationType != nil && strings.TrimSpace(*in.StationType) != "" {
		st := models.StationType(strings.ToUpper(strings.TrimSpace(*in.StationType)))
		if !st.Valid() {
			return nil, fmt.Errorf("component %s: %w", componentType, ErrInvalidStationType)
		}
		c.StationType = &st
	}
	if c.IsPercentage && c.PercentageBase == nil {
		return nil, fmt.Errorf("component %s: %w", componentType, ErrPercentageBaseRequired)
	}
	return c, nil
}

func (f *PriceBuildupFlowImpl) buildComponents(productType models.ProductType, inputs []dto.PriceComponentInput, actor string) ([]*models.PriceComponent, error) {
	if len(inputs) == 0 {
		return nil, ErrComponentsRequired
	}
	out := make([]*models.PriceComponent, 0, len(inputs))
	for _, in := range inputs {
		c, err := f.buildComponent(productType, in, actor)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

type componentScope struct {
	componentType models.ComponentType
	stationType   models.StationType
}

func scopeOf(c *models.PriceComponent) componentScope {
	s := componentScope{componentType: c.ComponentType}
	if c.StationType != nil {
		s.stationType = *c.StationType
	}
	return s
}

// mergeComponents replaces existing components that share a component type and station
// scope with the incoming ones and appends the rest. The returned slices split the result
// into rows to update and rows to insert.
func mergeComponents(existing, incoming []*models.PriceComponent) (merged, updated, added []*models.PriceComponent) {
	index := make(map[componentScope]int, len(existing))
	merged = append(merged, existing...)
	for i, c := range existing {
		index[scopeOf(c)] = i
	}
	for _, c := range incoming {
		i, ok := index[scopeOf(c)]
		if !ok {
			index[scopeOf(c)] = len(merged)
			merged = append(merged, c)
			added = append(added, c)
			continue
		}
		old := merged[i]
		if old.ID == 0 {
			// replaced a row added earlier in this same request
			merged[i] = c
			for j, a := range added {
				if a == old {
					added[j] = c
				}
			}
			continue
		}
		c.ID = old.ID
		c.UUID = old.UUID
		c.BuildupVersionID = old.BuildupVersionID
		c.CreatedBy = old.CreatedBy
		c.CreatedAt = old.CreatedAt
		merged[i] = c
		updated = append(updated, c)
	}
	return merged, updated, added
}

type versionSnapshot struct {
	ProductType   models.ProductType       `json:"product_type"`
	VersionNumber int                      `json:"version_number"`
	Status        models.BuildupStatus     `json:"status"`
	EffectiveDate time.Time                `json:"effective_date"`
	ExpiryDate    *time.Time               `json:"expiry_date,omitempty"`
	TotalPrice    decimal.Decimal          `json:"total_price"`
	ApprovedBy    *string                  `json:"approved_by,omitempty"`
	ApprovalDate  *time.Time               `json:"approval_date,omitempty"`
	PublishedBy   *string                  `json:"published_by,omitempty"`
	PublishedDate *time.Time               `json:"published_date,omitempty"`
	Components    []*models.PriceComponent `json:"components,omitempty"`
}

func snapshotOf(v *models.PriceBuildupVersion, withComponents bool) json.RawMessage {
	s := versionSnapshot{
		ProductType:   v.ProductType,
		VersionNumber: v.VersionNumber,
		Status:        v.Status,
		EffectiveDate: v.EffectiveDate,
		ExpiryDate:    v.ExpiryDate,
		TotalPrice:    v.TotalPrice,
		ApprovedBy:    v.ApprovedBy,
		ApprovalDate:  v.ApprovalDate,
		PublishedBy:   v.PublishedBy,
		PublishedDate: v.PublishedDate,
	}
	if withComponents {
		s.Components = v.Components
	}
	bs, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return bs
}

func (f *PriceBuildupFlowImpl) audit(ctx context.Context, v *models.PriceBuildupVersion, action string, oldValues, newValues json.RawMessage, actor string, reason *string) error {
	entry := &models.PriceBuildupAuditTrail{
		BuildupVersionID: v.ID,
		Action:           action,
		OldValues:        oldValues,
		NewValues:        newValues,
		ChangedBy:        actor,
		ChangeReason:     reason,
		CreatedAt:        f.clock.Now(),
	}
	if err := f.auditRepo.Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to write %s audit entry: %w", strings.ToLower(action), err)
	}
	return nil
}

// regeneratePricing replaces the version's rollup rows
func (f *PriceBuildupFlowImpl) regeneratePricing(ctx context.Context, v *models.PriceBuildupVersion) error {
	if err := f.pricingRepo.DeleteByVersion(ctx, v.ID); err != nil {
		return err
	}
	rows := BuildStationTypePricing(v)
	for _, r := range rows {
		r.CreatedAt = f.clock.Now()
	}
	if err := f.pricingRepo.SaveBatch(ctx, rows); err != nil {
		return err
	}
	v.StationTypePricing = rows
	return nil
}

func (f *PriceBuildupFlowImpl) checkOverlap(ctx context.Context, productType models.ProductType, start time.Time, end *time.Time, excludeID *uint) error {
	overlapping, err := f.versionRepo.FindOverlapping(ctx, productType, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return NewBusinessErrorf("BUILDUP_VERSION_OVERLAP", "Effective period overlaps version %d of %s", ErrBuildupVersionOverlap, overlapping[0].VersionNumber, productType)
	}
	return nil
}

// transactionError keeps business errors raised inside a transaction and wraps the rest
func transactionError(err error, code, message string) error {
	var be *BusinessError
	if errors.As(err, &be) {
		return err
	}
	return NewBusinessError(code, message, err)
}

func (f *PriceBuildupFlowImpl) Create(ctx context.Context, req *dto.CreatePriceBuildupRequest, actor string) (*dto.PriceBuildupVersionResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_REQUEST", "request is required", ErrValidationFailed)
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("BUILDUP_VALIDATION_FAILED", "Price buildup validation failed", validationFailed(err))
	}
	actor = resolveActor(ctx, actor)
	productType := models.ProductType(req.ProductType)
	if !productType.Valid() {
		return nil, NewBusinessError("BUILDUP_VALIDATION_FAILED", "Price buildup validation failed", ErrInvalidProductType)
	}
	effective := req.EffectiveDate.UTC()
	expiry := utils.TimeToUTCPtr(req.ExpiryDate)
	if expiry != nil && !expiry.After(effective) {
		return nil, NewBusinessError("BUILDUP_VALIDATION_FAILED", "Price buildup validation failed", ErrExpiryBeforeEffective)
	}
	components, err := f.buildComponents(productType, req.Components, actor)
	if err != nil {
		return nil, NewBusinessError("BUILDUP_VALIDATION_FAILED", "Price buildup validation failed", err)
	}
	if err := ValidateComponentOrdering(components); err != nil {
		return nil, NewBusinessError("BUILDUP_VALIDATION_FAILED", "Price buildup validation failed", err)
	}

	status := models.BuildupStatusDraft
	if req.Status != nil {
		status = models.BuildupStatus(*req.Status)
	}
	now := f.clock.Now()
	version := &models.PriceBuildupVersion{
		ProductType:   productType,
		Status:        status,
		EffectiveDate: effective,
		ExpiryDate:    expiry,
		Currency:      utils.CediCurrency,
		ChangeReason:  req.ChangeReason,
		Notes:         req.Notes,
		CreatedBy:     actor,
		IsActive:      utils.ToPtr(true),
		CreatedAt:     now,
		UpdatedAt:     now,
		Components:    components,
	}
	version.TotalPrice = version.CalculateTotalPrice().Round(utils.PriceScale)

	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()
	err = f.transactor.WithTransaction(sctx, func(txCtx context.Context) error {
		if err := f.checkOverlap(txCtx, productType, effective, expiry, nil); err != nil {
			return err
		}
		maxVersion, err := f.versionRepo.MaxVersionNumber(txCtx, productType)
		if err != nil {
			return err
		}
		version.VersionNumber = maxVersion + 1

		if err := f.versionRepo.Save(txCtx, version); err != nil {
			return err
		}
		for _, c := range components {
			c.BuildupVersionID = version.ID
			c.CreatedAt = now
			c.UpdatedAt = now
		}
		if err := f.componentRepo.SaveBatch(txCtx, components); err != nil {
			return err
		}
		if err := f.regeneratePricing(txCtx, version); err != nil {
			return err
		}
		return f.audit(txCtx, version, models.BuildupAuditActionCreate, nil, snapshotOf(version, true), actor, req.ChangeReason)
	})
	if err != nil {
		return nil, transactionError(err, "BUILDUP_CREATE_FAILED", "Failed to create price buildup")
	}

	f.events.Publish(ctx, services.EventPriceBuildupCreated, map[string]any{
		"id":             version.ID,
		"product_type":   version.ProductType,
		"version_number": version.VersionNumber,
		"status":         version.Status,
		"effective_date": version.EffectiveDate.Format(utils.DateLayout),
	})

	resp := ToPriceBuildupVersionResponse(version)
	return &resp, nil
}

func (f *PriceBuildupFlowImpl) Update(ctx context.Context, id uint, req *dto.UpdatePriceBuildupRequest, actor string) (*dto.PriceBuildupVersionResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_REQUEST", "request is required", ErrValidationFailed)
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("BUILDUP_VALIDATION_FAILED", "Price buildup validation failed", validationFailed(err))
	}
	actor = resolveActor(ctx, actor)

	var version *models.PriceBuildupVersion
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()
	err := f.transactor.WithTransaction(sctx, func(txCtx context.Context) error {
		var err error
		version, err = f.versionRepo.ByIDWithDetails(txCtx, id)
		if err != nil {
			return err
		}
		if version == nil {
			return NewBusinessErrorf("BUILDUP_NOT_FOUND", "Price buildup version %d not found", ErrBuildupVersionNotFound, id)
		}
		if !version.CanBeModified() {
			return NewBusinessErrorf("BUILDUP_NOT_MODIFIABLE", "Price buildup version %d is %s", ErrBuildupNotModifiable, id, version.Status)
		}
		before := snapshotOf(version, true)

		datesChanged := false
		if req.EffectiveDate != nil {
			version.EffectiveDate = req.EffectiveDate.UTC()
			datesChanged = true
		}
		if req.ExpiryDate != nil {
			version.ExpiryDate = utils.TimeToUTCPtr(req.ExpiryDate)
			datesChanged = true
		}
		if version.ExpiryDate != nil && !version.ExpiryDate.After(version.EffectiveDate) {
			return NewBusinessError("BUILDUP_VALIDATION_FAILED", "Price buildup validation failed", ErrExpiryBeforeEffective)
		}
		// drafts are outside the overlap invariant, so submitting one needs the same check
		submitted := false
		if req.Status != nil {
			next := models.BuildupStatus(*req.Status)
			submitted = next == models.BuildupStatusPendingApproval && version.Status != models.BuildupStatusPendingApproval
			version.Status = next
		}
		if datesChanged || submitted {
			if err := f.checkOverlap(txCtx, version.ProductType, version.EffectiveDate, version.ExpiryDate, &version.ID); err != nil {
				return err
			}
		}
		if req.ChangeReason != nil {
			version.ChangeReason = req.ChangeReason
		}
		if req.Notes != nil {
			version.Notes = req.Notes
		}

		if len(req.Components) > 0 {
			incoming, err := f.buildComponents(version.ProductType, req.Components, actor)
			if err != nil {
				return NewBusinessError("BUILDUP_VALIDATION_FAILED", "Price buildup validation failed", err)
			}
			merged, updated, added := mergeComponents(version.Components, incoming)
			if err := ValidateComponentOrdering(merged); err != nil {
				return NewBusinessError("BUILDUP_VALIDATION_FAILED", "Price buildup validation failed", err)
			}
			now := f.clock.Now()
			for _, c := range updated {
				c.UpdatedAt = now
				if err := f.componentRepo.Update(txCtx, c); err != nil {
					return err
				}
			}
			for _, c := range added {
				c.BuildupVersionID = version.ID
				c.CreatedAt = now
				c.UpdatedAt = now
			}
			if err := f.componentRepo.SaveBatch(txCtx, added); err != nil {
				return err
			}
			version.Components = merged
		}

		version.TotalPrice = version.CalculateTotalPrice().Round(utils.PriceScale)
		version.UpdatedAt = f.clock.Now()
		if err := f.versionRepo.Update(txCtx, version); err != nil {
			return err
		}
		if err := f.regeneratePricing(txCtx, version); err != nil {
			return err
		}
		return f.audit(txCtx, version, models.BuildupAuditActionUpdate, before, snapshotOf(version, true), actor, req.ChangeReason)
	})
	if err != nil {
		return nil, transactionError(err, "BUILDUP_UPDATE_FAILED", "Failed to update price buildup")
	}

	clearPriceCache(ctx, f.cache, f.logger)
	f.events.Publish(ctx, services.EventPriceBuildupUpdated, map[string]any{
		"id":             version.ID,
		"product_type":   version.ProductType,
		"version_number": version.VersionNumber,
		"status":         version.Status,
	})

	resp := ToPriceBuildupVersionResponse(version)
	return &resp, nil
}

// Approve activates a draft or pending version. With PublishImmediately it is also
// published and every other active version of the product is archived.
func (f *PriceBuildupFlowImpl) Approve(ctx context.Context, req *dto.ApprovePriceBuildupRequest, actor string) (*dto.PriceBuildupVersionResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_REQUEST", "request is required", ErrValidationFailed)
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("BUILDUP_VALIDATION_FAILED", "Price buildup validation failed", validationFailed(err))
	}
	actor = resolveActor(ctx, actor)

	var version *models.PriceBuildupVersion
	var archived int64
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()
	err := f.transactor.WithTransaction(sctx, func(txCtx context.Context) error {
		var err error
		version, err = f.versionRepo.ByIDWithDetails(txCtx, req.BuildupVersionID)
		if err != nil {
			return err
		}
		if version == nil {
			return NewBusinessErrorf("BUILDUP_NOT_FOUND", "Price buildup version %d not found", ErrBuildupVersionNotFound, req.BuildupVersionID)
		}
		if !version.CanBeModified() {
			return NewBusinessErrorf("BUILDUP_NOT_APPROVABLE", "Price buildup version %d is %s", ErrBuildupNotApprovable, version.ID, version.Status)
		}
		before := snapshotOf(version, false)

		now := f.clock.Now()
		version.Status = models.BuildupStatusActive
		version.ApprovedBy = &actor
		version.ApprovalDate = &now
		version.ApprovalNotes = req.ApprovalNotes
		if req.PublishImmediately {
			version.PublishedBy = &actor
			version.PublishedDate = &now
			archived, err = f.versionRepo.ArchiveActiveExcept(txCtx, version.ProductType, version.ID)
			if err != nil {
				return err
			}
		}
		if err := f.checkOverlap(txCtx, version.ProductType, version.EffectiveDate, version.ExpiryDate, &version.ID); err != nil {
			return err
		}
		version.UpdatedAt = now
		if err := f.versionRepo.Update(txCtx, version); err != nil {
			return err
		}
		return f.audit(txCtx, version, models.BuildupAuditActionApprove, before, snapshotOf(version, false), actor, req.ApprovalNotes)
	})
	if err != nil {
		return nil, transactionError(err, "BUILDUP_APPROVE_FAILED", "Failed to approve price buildup")
	}

	clearPriceCache(ctx, f.cache, f.logger)
	f.events.Publish(ctx, services.EventPriceBuildupApproved, map[string]any{
		"id":             version.ID,
		"product_type":   version.ProductType,
		"version_number": version.VersionNumber,
		"approved_by":    actor,
	})
	if req.PublishImmediately {
		f.publishedEvent(ctx, version, archived)
	}

	resp := ToPriceBuildupVersionResponse(version)
	return &resp, nil
}

// Publish releases an approved version and archives the product's other active versions
func (f *PriceBuildupFlowImpl) Publish(ctx context.Context, req *dto.PublishPriceBuildupRequest, actor string) (*dto.PriceBuildupVersionResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_REQUEST", "request is required", ErrValidationFailed)
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("BUILDUP_VALIDATION_FAILED", "Price buildup validation failed", validationFailed(err))
	}
	actor = resolveActor(ctx, actor)

	var version *models.PriceBuildupVersion
	var archived int64
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()
	err := f.transactor.WithTransaction(sctx, func(txCtx context.Context) error {
		var err error
		version, err = f.versionRepo.ByIDWithDetails(txCtx, req.BuildupVersionID)
		if err != nil {
			return err
		}
		if version == nil {
			return NewBusinessErrorf("BUILDUP_NOT_FOUND", "Price buildup version %d not found", ErrBuildupVersionNotFound, req.BuildupVersionID)
		}
		if version.Status != models.BuildupStatusActive {
			return NewBusinessErrorf("BUILDUP_NOT_PUBLISHABLE", "Price buildup version %d is %s", ErrBuildupNotPublishable, version.ID, version.Status)
		}
		if version.IsPublished() {
			return NewBusinessErrorf("BUILDUP_ALREADY_PUBLISHED", "Price buildup version %d is already published", ErrBuildupAlreadyPublished, version.ID)
		}
		before := snapshotOf(version, false)

		now := f.clock.Now()
		version.PublishedBy = &actor
		version.PublishedDate = &now
		version.UpdatedAt = now
		archived, err = f.versionRepo.ArchiveActiveExcept(txCtx, version.ProductType, version.ID)
		if err != nil {
			return err
		}
		if err := f.versionRepo.Update(txCtx, version); err != nil {
			return err
		}
		return f.audit(txCtx, version, models.BuildupAuditActionPublish, before, snapshotOf(version, false), actor, req.PublishNotes)
	})
	if err != nil {
		return nil, transactionError(err, "BUILDUP_PUBLISH_FAILED", "Failed to publish price buildup")
	}

	clearPriceCache(ctx, f.cache, f.logger)
	f.publishedEvent(ctx, version, archived)

	resp := ToPriceBuildupVersionResponse(version)
	return &resp, nil
}

func (f *PriceBuildupFlowImpl) publishedEvent(ctx context.Context, v *models.PriceBuildupVersion, archived int64) {
	f.events.Publish(ctx, services.EventPriceBuildupPublished, map[string]any{
		"id":                v.ID,
		"product_type":      v.ProductType,
		"version_number":    v.VersionNumber,
		"published_by":      utils.StringOrEmpty(v.PublishedBy),
		"archived_versions": archived,
	})
}

func (f *PriceBuildupFlowImpl) GetVersion(ctx context.Context, id uint) (*dto.PriceBuildupVersionResponse, error) {
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()
	version, err := f.versionRepo.ByIDWithDetails(sctx, id)
	if err != nil {
		return nil, NewBusinessError("BUILDUP_LOOKUP_FAILED", "Failed to load price buildup", err)
	}
	if version == nil {
		return nil, NewBusinessErrorf("BUILDUP_NOT_FOUND", "Price buildup version %d not found", ErrBuildupVersionNotFound, id)
	}
	resp := ToPriceBuildupVersionResponse(version)
	return &resp, nil
}

func (f *PriceBuildupFlowImpl) ListVersions(ctx context.Context, req *dto.ListPriceBuildupVersionsRequest) (*dto.ListPriceBuildupVersionsResponse, error) {
	if req == nil {
		req = &dto.ListPriceBuildupVersionsRequest{}
	}
	if err := f.validate.Struct(req); err != nil {
		return nil, NewBusinessError("LIST_BUILDUPS_VALIDATION_FAILED", "List price buildups validation failed", validationFailed(err))
	}
	page, pageSize, err := normalizePage(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_BUILDUPS_VALIDATION_FAILED", "List price buildups validation failed", err)
	}
	if req.From != nil && req.To != nil && req.From.After(*req.To) {
		return nil, NewBusinessError("LIST_BUILDUPS_VALIDATION_FAILED", "List price buildups validation failed", ErrStartDateAfterEndDate)
	}

	filter := models.PriceBuildupVersionFilter{
		EffectiveFrom: utils.TimeToUTCPtr(req.From),
		EffectiveTo:   utils.TimeToUTCPtr(req.To),
	}
	if req.ProductType != nil {
		filter.ProductType = utils.ToPtr(models.ProductType(*req.ProductType))
	}
	if req.Status != nil {
		filter.Status = utils.ToPtr(models.BuildupStatus(*req.Status))
	}

	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()
	total, err := f.versionRepo.Count(sctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_BUILDUPS_FAILED", "Failed to count price buildups", err)
	}
	rows, err := f.versionRepo.ByFilter(sctx, filter, "product_type ASC, version_number DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_BUILDUPS_FAILED", "Failed to list price buildups", err)
	}

	items := make([]dto.PriceBuildupVersionResponse, 0, len(rows))
	for _, v := range rows {
		items = append(items, ToPriceBuildupVersionResponse(v))
	}
	return &dto.ListPriceBuildupVersionsResponse{
		Items:      items,
		Pagination: dto.NewPaginationInfo(total, page, pageSize),
	}, nil
}

func (f *PriceBuildupFlowImpl) GetAuditTrail(ctx context.Context, versionID uint, limit, offset int) ([]dto.PriceBuildupAuditEntryResponse, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()
	version, err := f.versionRepo.ByID(sctx, versionID)
	if err != nil {
		return nil, NewBusinessError("BUILDUP_LOOKUP_FAILED", "Failed to load price buildup", err)
	}
	if version == nil {
		return nil, NewBusinessErrorf("BUILDUP_NOT_FOUND", "Price buildup version %d not found", ErrBuildupVersionNotFound, versionID)
	}
	entries, err := f.auditRepo.ListByVersion(sctx, versionID, limit, offset)
	if err != nil {
		return nil, NewBusinessError("BUILDUP_AUDIT_FAILED", "Failed to load audit trail", err)
	}
	out := make([]dto.PriceBuildupAuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToPriceBuildupAuditEntryResponse(e))
	}
	return out, nil
}

func (f *PriceBuildupFlowImpl) GetStationTypePricing(ctx context.Context, versionID uint) ([]dto.StationTypePricingResponse, error) {
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()
	version, err := f.versionRepo.ByID(sctx, versionID)
	if err != nil {
		return nil, NewBusinessError("BUILDUP_LOOKUP_FAILED", "Failed to load price buildup", err)
	}
	if version == nil {
		return nil, NewBusinessErrorf("BUILDUP_NOT_FOUND", "Price buildup version %d not found", ErrBuildupVersionNotFound, versionID)
	}
	rows, err := f.pricingRepo.ListByVersion(sctx, versionID)
	if err != nil {
		return nil, NewBusinessError("BUILDUP_PRICING_FAILED", "Failed to load station type pricing", err)
	}
	out := make([]dto.StationTypePricingResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, ToStationTypePricingResponse(r))
	}
	return out, nil
}
