package testing

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/repository"
	"github.com/amirphl/fuel-pricing-config/utils"
)

// ErrInjected is returned by operations registered with MemoryStore.FailOn
var ErrInjected = errors.New("injected store failure")

// Operation names accepted by FailOn and Calls
const (
	OpConfigSave            = "configurations.save"
	OpConfigUpdate          = "configurations.update"
	OpConfigFindHierarchy   = "configurations.find_hierarchy"
	OpConfigListByKeys      = "configurations.list_by_keys"
	OpConfigIncrementAccess = "configurations.increment_access"
	OpVersionSave           = "versions.save"
	OpVersionUpdate         = "versions.update"
	OpVersionActiveForDate  = "versions.active_for_date"
	OpComponentSaveBatch    = "components.save_batch"
	OpPricingSaveBatch      = "pricing.save_batch"
	OpAuditSave             = "audit.save"
)

type storeTables struct {
	configs    map[uint]models.Configuration
	versions   map[uint]models.PriceBuildupVersion
	components map[uint]models.PriceComponent
	pricing    map[uint]models.StationTypePricing
	audit      map[uint]models.PriceBuildupAuditTrail
	nextID     uint
}

func (t storeTables) clone() storeTables {
	out := storeTables{
		configs:    make(map[uint]models.Configuration, len(t.configs)),
		versions:   make(map[uint]models.PriceBuildupVersion, len(t.versions)),
		components: make(map[uint]models.PriceComponent, len(t.components)),
		pricing:    make(map[uint]models.StationTypePricing, len(t.pricing)),
		audit:      make(map[uint]models.PriceBuildupAuditTrail, len(t.audit)),
		nextID:     t.nextID,
	}
	for k, v := range t.configs {
		out.configs[k] = v
	}
	for k, v := range t.versions {
		out.versions[k] = v
	}
	for k, v := range t.components {
		out.components[k] = v
	}
	for k, v := range t.pricing {
		out.pricing[k] = v
	}
	for k, v := range t.audit {
		out.audit[k] = v
	}
	return out
}

// MemoryStore backs the in-memory repositories. Rows are stored by value so callers
// never share memory with the store.
type MemoryStore struct {
	mu       sync.Mutex
	tables   storeTables
	failures map[string]error
	calls    map[string]int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:   storeTables{}.clone(),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailOn makes every later call of op return err. A nil err uses ErrInjected.
func (s *MemoryStore) FailOn(op string, err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	s.failures[op] = err
	s.mu.Unlock()
}

// ClearFailures removes every injected failure
func (s *MemoryStore) ClearFailures() {
	s.mu.Lock()
	s.failures = make(map[string]error)
	s.mu.Unlock()
}

// Calls returns how many times op has been invoked
func (s *MemoryStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter records a call and returns the injected failure. Callers hold s.mu.
func (s *MemoryStore) enter(op string) error {
	s.calls[op]++
	return s.failures[op]
}

func (s *MemoryStore) id() uint {
	s.tables.nextID++
	return s.tables.nextID
}

// Transactor returns a transactor that restores the store when the unit of work fails
func (s *MemoryStore) Transactor() repository.Transactor {
	return &memoryTransactor{store: s}
}

type memoryTransactor struct {
	store *MemoryStore
}

func (t *memoryTransactor) WithTransaction(ctx context.Context, fn func(context.Context) error) (err error) {
	t.store.mu.Lock()
	snapshot := t.store.tables.clone()
	t.store.mu.Unlock()

	rollback := func() {
		t.store.mu.Lock()
		t.store.tables = snapshot
		t.store.mu.Unlock()
	}
	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()
	if err := fn(ctx); err != nil {
		rollback()
		return err
	}
	return nil
}

func page[T any](rows []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(rows) {
			return []*T{}
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// MemoryConfigurationRepository implements repository.ConfigurationRepository over a MemoryStore
type MemoryConfigurationRepository struct {
	store *MemoryStore
}

func NewMemoryConfigurationRepository(store *MemoryStore) *MemoryConfigurationRepository {
	return &MemoryConfigurationRepository{store: store}
}

func matchConfiguration(c *models.Configuration, f models.ConfigurationFilter) bool {
	if f.ID != nil && c.ID != *f.ID {
		return false
	}
	if f.Key != nil && c.Key != *f.Key {
		return false
	}
	if len(f.Keys) > 0 && !containsString(f.Keys, c.Key) {
		return false
	}
	if f.KeyPrefix != nil && !strings.HasPrefix(c.Key, *f.KeyPrefix) {
		return false
	}
	if f.Tenant != nil && c.Tenant() != *f.Tenant {
		return false
	}
	if len(f.TenantIn) > 0 {
		found := false
		for _, t := range f.TenantIn {
			if c.Tenant() == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Module != nil && c.Module != *f.Module {
		return false
	}
	if len(f.ModuleIn) > 0 {
		found := false
		for _, m := range f.ModuleIn {
			if c.Module == m {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Type != nil && c.Type != *f.Type {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.Environment != nil && (c.Environment == nil || *c.Environment != *f.Environment) {
		return false
	}
	if f.IsActive != nil && utils.IsTrue(c.IsActive) != *f.IsActive {
		return false
	}
	if f.FeatureFlag != nil && c.FeatureFlag != *f.FeatureFlag {
		return false
	}
	if f.RefreshFrequency != nil && c.RefreshFrequency != *f.RefreshFrequency {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *MemoryConfigurationRepository) find(f models.ConfigurationFilter) []*models.Configuration {
	var out []*models.Configuration
	for _, c := range r.store.tables.configs {
		row := c
		if matchConfiguration(&row, f) {
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		if out[i].InheritanceLevel != out[j].InheritanceLevel {
			return out[i].InheritanceLevel < out[j].InheritanceLevel
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *MemoryConfigurationRepository) ByID(_ context.Context, id uint) (*models.Configuration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.tables.configs[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *MemoryConfigurationRepository) ByFilter(_ context.Context, f models.ConfigurationFilter, _ string, limit, offset int) ([]*models.Configuration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return page(r.find(f), limit, offset), nil
}

func (r *MemoryConfigurationRepository) Save(_ context.Context, c *models.Configuration) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter(OpConfigSave); err != nil {
		return err
	}
	for _, existing := range r.store.tables.configs {
		if existing.Key == c.Key && existing.Module == c.Module && existing.Tenant() == c.Tenant() {
			return errors.New("duplicate key value violates unique constraint \"uq_configurations_scope\"")
		}
	}
	_ = c.BeforeCreate(nil)
	c.ID = r.store.id()
	r.store.tables.configs[c.ID] = *c
	return nil
}

func (r *MemoryConfigurationRepository) SaveBatch(ctx context.Context, rows []*models.Configuration) error {
	for _, c := range rows {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryConfigurationRepository) Count(_ context.Context, f models.ConfigurationFilter) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.find(f))), nil
}

func (r *MemoryConfigurationRepository) Exists(ctx context.Context, f models.ConfigurationFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r *MemoryConfigurationRepository) Update(_ context.Context, c *models.Configuration) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter(OpConfigUpdate); err != nil {
		return err
	}
	existing, ok := r.store.tables.configs[c.ID]
	if !ok {
		return errors.New("record not found")
	}
	row := *c
	row.CreatedAt = existing.CreatedAt
	r.store.tables.configs[c.ID] = row
	return nil
}

func (r *MemoryConfigurationRepository) IncrementAccessCount(_ context.Context, id uint, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter(OpConfigIncrementAccess); err != nil {
		return err
	}
	c, ok := r.store.tables.configs[id]
	if !ok {
		return nil
	}
	c.AccessCount++
	c.LastAccessedAt = &at
	r.store.tables.configs[id] = c
	return nil
}

func (r *MemoryConfigurationRepository) ByScope(_ context.Context, key string, tenant models.TenantRef, module models.Module) (*models.Configuration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rows := r.find(models.ConfigurationFilter{Key: &key, Tenant: &tenant, Module: &module})
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[len(rows)-1], nil
}

func visible(tenant models.TenantRef, module *models.Module) ([]models.TenantRef, []models.Module) {
	tenants := []models.TenantRef{models.SystemScope()}
	if tenant.IsSet() {
		tenants = append(tenants, tenant)
	}
	var modules []models.Module
	if module != nil {
		modules = []models.Module{models.ModuleGlobal}
		if *module != models.ModuleGlobal {
			modules = append(modules, *module)
		}
	}
	return tenants, modules
}

func (r *MemoryConfigurationRepository) FindHierarchy(_ context.Context, key string, tenant models.TenantRef, module *models.Module) ([]*models.Configuration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter(OpConfigFindHierarchy); err != nil {
		return nil, err
	}
	tenants, modules := visible(tenant, module)
	return r.find(models.ConfigurationFilter{Key: &key, TenantIn: tenants, ModuleIn: modules}), nil
}

func (r *MemoryConfigurationRepository) ListByKeys(_ context.Context, keys []string, tenant models.TenantRef, module *models.Module) ([]*models.Configuration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter(OpConfigListByKeys); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	tenants, modules := visible(tenant, module)
	return r.find(models.ConfigurationFilter{Keys: keys, TenantIn: tenants, ModuleIn: modules}), nil
}

func (r *MemoryConfigurationRepository) ListByModule(_ context.Context, module models.Module, tenant models.TenantRef) ([]*models.Configuration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tenants, _ := visible(tenant, nil)
	return r.find(models.ConfigurationFilter{Module: &module, TenantIn: tenants}), nil
}

func (r *MemoryConfigurationRepository) ListByKeyPrefix(_ context.Context, prefix string, tenant models.TenantRef) ([]*models.Configuration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tenants, _ := visible(tenant, nil)
	return r.find(models.ConfigurationFilter{KeyPrefix: &prefix, TenantIn: tenants}), nil
}

func (r *MemoryConfigurationRepository) ListByRefreshFrequency(_ context.Context, freq models.RefreshFrequency) ([]*models.Configuration, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	active := true
	return r.find(models.ConfigurationFilter{RefreshFrequency: &freq, IsActive: &active}), nil
}

// MemoryPriceBuildupVersionRepository implements repository.PriceBuildupVersionRepository
type MemoryPriceBuildupVersionRepository struct {
	store *MemoryStore
}

func NewMemoryPriceBuildupVersionRepository(store *MemoryStore) *MemoryPriceBuildupVersionRepository {
	return &MemoryPriceBuildupVersionRepository{store: store}
}

func matchVersion(v *models.PriceBuildupVersion, f models.PriceBuildupVersionFilter) bool {
	if f.ID != nil && v.ID != *f.ID {
		return false
	}
	if f.ProductType != nil && v.ProductType != *f.ProductType {
		return false
	}
	if f.Status != nil && v.Status != *f.Status {
		return false
	}
	if len(f.StatusIn) > 0 {
		found := false
		for _, s := range f.StatusIn {
			if v.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.IsActive != nil && utils.IsTrue(v.IsActive) != *f.IsActive {
		return false
	}
	if f.EffectiveFrom != nil && v.EffectiveDate.Before(*f.EffectiveFrom) {
		return false
	}
	if f.EffectiveTo != nil && v.EffectiveDate.After(*f.EffectiveTo) {
		return false
	}
	if f.ExcludeID != nil && v.ID == *f.ExcludeID {
		return false
	}
	if f.PublishedOnly && v.PublishedDate == nil {
		return false
	}
	return true
}

// componentsOf returns copies of a version's components in display order. Callers hold the lock.
func (s *MemoryStore) componentsOf(versionID uint) []*models.PriceComponent {
	var out []*models.PriceComponent
	for _, c := range s.tables.components {
		if c.BuildupVersionID == versionID {
			row := c
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) pricingOf(versionID uint) []*models.StationTypePricing {
	var out []*models.StationTypePricing
	for _, p := range s.tables.pricing {
		if p.BuildupVersionID == versionID {
			row := p
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationType < out[j].StationType })
	return out
}

func (r *MemoryPriceBuildupVersionRepository) find(f models.PriceBuildupVersionFilter, orderBy string) []*models.PriceBuildupVersion {
	var out []*models.PriceBuildupVersion
	for _, v := range r.store.tables.versions {
		row := v
		if !matchVersion(&row, f) {
			continue
		}
		if f.InclComponents {
			row.Components = r.store.componentsOf(row.ID)
		}
		if f.InclStationPrices {
			row.StationTypePricing = r.store.pricingOf(row.ID)
		}
		out = append(out, &row)
	}
	if strings.HasPrefix(orderBy, "effective_date") {
		sort.Slice(out, func(i, j int) bool {
			if !out[i].EffectiveDate.Equal(out[j].EffectiveDate) {
				return out[i].EffectiveDate.Before(out[j].EffectiveDate)
			}
			return out[i].VersionNumber < out[j].VersionNumber
		})
		return out
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductType != out[j].ProductType {
			return out[i].ProductType < out[j].ProductType
		}
		return out[i].VersionNumber > out[j].VersionNumber
	})
	return out
}

func (r *MemoryPriceBuildupVersionRepository) ByID(_ context.Context, id uint) (*models.PriceBuildupVersion, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	v, ok := r.store.tables.versions[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *MemoryPriceBuildupVersionRepository) ByIDWithDetails(_ context.Context, id uint) (*models.PriceBuildupVersion, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	v, ok := r.store.tables.versions[id]
	if !ok {
		return nil, nil
	}
	v.Components = r.store.componentsOf(id)
	v.StationTypePricing = r.store.pricingOf(id)
	return &v, nil
}

func (r *MemoryPriceBuildupVersionRepository) ByFilter(_ context.Context, f models.PriceBuildupVersionFilter, orderBy string, limit, offset int) ([]*models.PriceBuildupVersion, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return page(r.find(f, orderBy), limit, offset), nil
}

func (r *MemoryPriceBuildupVersionRepository) Save(_ context.Context, v *models.PriceBuildupVersion) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter(OpVersionSave); err != nil {
		return err
	}
	for _, existing := range r.store.tables.versions {
		if existing.ProductType == v.ProductType && existing.VersionNumber == v.VersionNumber {
			return errors.New("duplicate key value violates unique constraint \"uq_buildup_product_version\"")
		}
	}
	_ = v.BeforeCreate(nil)
	v.ID = r.store.id()
	row := *v
	row.Components = nil
	row.StationTypePricing = nil
	r.store.tables.versions[v.ID] = row
	return nil
}

func (r *MemoryPriceBuildupVersionRepository) SaveBatch(ctx context.Context, rows []*models.PriceBuildupVersion) error {
	for _, v := range rows {
		if err := r.Save(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryPriceBuildupVersionRepository) Count(_ context.Context, f models.PriceBuildupVersionFilter) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.find(f, ""))), nil
}

func (r *MemoryPriceBuildupVersionRepository) Exists(ctx context.Context, f models.PriceBuildupVersionFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r *MemoryPriceBuildupVersionRepository) Update(_ context.Context, v *models.PriceBuildupVersion) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter(OpVersionUpdate); err != nil {
		return err
	}
	existing, ok := r.store.tables.versions[v.ID]
	if !ok {
		return errors.New("record not found")
	}
	row := *v
	row.CreatedAt = existing.CreatedAt
	row.Components = nil
	row.StationTypePricing = nil
	r.store.tables.versions[v.ID] = row
	return nil
}

func (r *MemoryPriceBuildupVersionRepository) MaxVersionNumber(_ context.Context, productType models.ProductType) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	maxVersion := 0
	for _, v := range r.store.tables.versions {
		if v.ProductType == productType && v.VersionNumber > maxVersion {
			maxVersion = v.VersionNumber
		}
	}
	return maxVersion, nil
}

func (r *MemoryPriceBuildupVersionRepository) FindOverlapping(_ context.Context, productType models.ProductType, start time.Time, end *time.Time, excludeID *uint) ([]*models.PriceBuildupVersion, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	rows := r.find(models.PriceBuildupVersionFilter{
		ProductType: &productType,
		StatusIn:    []models.BuildupStatus{models.BuildupStatusActive, models.BuildupStatusPendingApproval},
		ExcludeID:   excludeID,
	}, "effective_date ASC")
	out := make([]*models.PriceBuildupVersion, 0, len(rows))
	for _, v := range rows {
		if v.Overlaps(start, end) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *MemoryPriceBuildupVersionRepository) ActiveForDate(_ context.Context, productType models.ProductType, date time.Time) (*models.PriceBuildupVersion, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter(OpVersionActiveForDate); err != nil {
		return nil, err
	}
	status := models.BuildupStatusActive
	active := true
	var best *models.PriceBuildupVersion
	for _, v := range r.find(models.PriceBuildupVersionFilter{ProductType: &productType, Status: &status, IsActive: &active}, "") {
		if !v.Covers(date) {
			continue
		}
		if best == nil || v.EffectiveDate.After(best.EffectiveDate) ||
			(v.EffectiveDate.Equal(best.EffectiveDate) && v.VersionNumber > best.VersionNumber) {
			best = v
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Components = r.store.componentsOf(best.ID)
	return best, nil
}

func (r *MemoryPriceBuildupVersionRepository) ArchiveActiveExcept(_ context.Context, productType models.ProductType, keepID uint) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for id, v := range r.store.tables.versions {
		if v.ProductType == productType && v.Status == models.BuildupStatusActive && id != keepID {
			v.Status = models.BuildupStatusArchived
			r.store.tables.versions[id] = v
			n++
		}
	}
	return n, nil
}

// MemoryPriceComponentRepository implements repository.PriceComponentRepository
type MemoryPriceComponentRepository struct {
	store *MemoryStore
}

func NewMemoryPriceComponentRepository(store *MemoryStore) *MemoryPriceComponentRepository {
	return &MemoryPriceComponentRepository{store: store}
}

func matchComponent(c *models.PriceComponent, f models.PriceComponentFilter) bool {
	if f.BuildupVersionID != nil && c.BuildupVersionID != *f.BuildupVersionID {
		return false
	}
	if f.ComponentType != nil && c.ComponentType != *f.ComponentType {
		return false
	}
	if f.StationType != nil && !c.AppliesTo(*f.StationType) {
		return false
	}
	return true
}

func (r *MemoryPriceComponentRepository) find(f models.PriceComponentFilter) []*models.PriceComponent {
	var out []*models.PriceComponent
	for _, c := range r.store.tables.components {
		row := c
		if matchComponent(&row, f) {
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *MemoryPriceComponentRepository) ByID(_ context.Context, id uint) (*models.PriceComponent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.tables.components[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *MemoryPriceComponentRepository) ByFilter(_ context.Context, f models.PriceComponentFilter, _ string, limit, offset int) ([]*models.PriceComponent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return page(r.find(f), limit, offset), nil
}

func (r *MemoryPriceComponentRepository) Save(ctx context.Context, c *models.PriceComponent) error {
	return r.SaveBatch(ctx, []*models.PriceComponent{c})
}

func (r *MemoryPriceComponentRepository) SaveBatch(_ context.Context, rows []*models.PriceComponent) error {
	if len(rows) == 0 {
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter(OpComponentSaveBatch); err != nil {
		return err
	}
	for _, c := range rows {
		_ = c.BeforeCreate(nil)
		c.ID = r.store.id()
		r.store.tables.components[c.ID] = *c
	}
	return nil
}

func (r *MemoryPriceComponentRepository) Count(_ context.Context, f models.PriceComponentFilter) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.find(f))), nil
}

func (r *MemoryPriceComponentRepository) Exists(ctx context.Context, f models.PriceComponentFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r *MemoryPriceComponentRepository) Update(_ context.Context, c *models.PriceComponent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.tables.components[c.ID]; !ok {
		return errors.New("record not found")
	}
	r.store.tables.components[c.ID] = *c
	return nil
}

func (r *MemoryPriceComponentRepository) ListByVersion(_ context.Context, versionID uint) ([]*models.PriceComponent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.componentsOf(versionID), nil
}

// MemoryStationTypePricingRepository implements repository.StationTypePricingRepository
type MemoryStationTypePricingRepository struct {
	store *MemoryStore
}

func NewMemoryStationTypePricingRepository(store *MemoryStore) *MemoryStationTypePricingRepository {
	return &MemoryStationTypePricingRepository{store: store}
}

func (r *MemoryStationTypePricingRepository) SaveBatch(_ context.Context, rows []*models.StationTypePricing) error {
	if len(rows) == 0 {
		return nil
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter(OpPricingSaveBatch); err != nil {
		return err
	}
	for _, p := range rows {
		p.ID = r.store.id()
		r.store.tables.pricing[p.ID] = *p
	}
	return nil
}

func (r *MemoryStationTypePricingRepository) ListByVersion(_ context.Context, versionID uint) ([]*models.StationTypePricing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.pricingOf(versionID), nil
}

func (r *MemoryStationTypePricingRepository) DeleteByVersion(_ context.Context, versionID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, p := range r.store.tables.pricing {
		if p.BuildupVersionID == versionID {
			delete(r.store.tables.pricing, id)
		}
	}
	return nil
}

// MemoryPriceBuildupAuditTrailRepository implements repository.PriceBuildupAuditTrailRepository
type MemoryPriceBuildupAuditTrailRepository struct {
	store *MemoryStore
}

func NewMemoryPriceBuildupAuditTrailRepository(store *MemoryStore) *MemoryPriceBuildupAuditTrailRepository {
	return &MemoryPriceBuildupAuditTrailRepository{store: store}
}

func (r *MemoryPriceBuildupAuditTrailRepository) Save(_ context.Context, e *models.PriceBuildupAuditTrail) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.store.enter(OpAuditSave); err != nil {
		return err
	}
	e.ID = r.store.id()
	r.store.tables.audit[e.ID] = *e
	return nil
}

func (r *MemoryPriceBuildupAuditTrailRepository) ListByVersion(_ context.Context, versionID uint, limit, offset int) ([]*models.PriceBuildupAuditTrail, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.PriceBuildupAuditTrail
	for _, e := range r.store.tables.audit {
		if e.BuildupVersionID == versionID {
			row := e
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, limit, offset), nil
}

// Compile-time interface checks
var (
	_ repository.ConfigurationRepository          = (*MemoryConfigurationRepository)(nil)
	_ repository.PriceBuildupVersionRepository    = (*MemoryPriceBuildupVersionRepository)(nil)
	_ repository.PriceComponentRepository         = (*MemoryPriceComponentRepository)(nil)
	_ repository.StationTypePricingRepository     = (*MemoryStationTypePricingRepository)(nil)
	_ repository.PriceBuildupAuditTrailRepository = (*MemoryPriceBuildupAuditTrailRepository)(nil)
)
