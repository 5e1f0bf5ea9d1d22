package testing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amirphl/fuel-pricing-config/app/dto"
	"github.com/amirphl/fuel-pricing-config/app/services"
	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/shopspring/decimal"
)

// FakeClock is a settable utils.Clock
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at now
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now.UTC()}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// RecordedEvent is one call to RecordingEventPublisher.Publish
type RecordedEvent struct {
	Name    string
	Payload map[string]any
}

// RecordingEventPublisher keeps every published event in memory
type RecordingEventPublisher struct {
	mu     sync.Mutex
	events []RecordedEvent
}

func NewRecordingEventPublisher() *RecordingEventPublisher {
	return &RecordingEventPublisher{}
}

func (p *RecordingEventPublisher) Publish(_ context.Context, name string, payload map[string]any) {
	p.mu.Lock()
	p.events = append(p.events, RecordedEvent{Name: name, Payload: payload})
	p.mu.Unlock()
}

// Events returns a copy of the recorded events in publish order
func (p *RecordingEventPublisher) Events() []RecordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RecordedEvent(nil), p.events...)
}

// Names returns the recorded event names in publish order
func (p *RecordingEventPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.Name)
	}
	return names
}

// Last returns the most recent event with name
func (p *RecordingEventPublisher) Last(name string) (RecordedEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Name == name {
			return p.events[i], true
		}
	}
	return RecordedEvent{}, false
}

// ErrCacheUnavailable is returned by every FailingCache operation
var ErrCacheUnavailable = errors.New("cache unavailable")

// FailingCache is a services.Cache whose every operation fails
type FailingCache struct{}

func (FailingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, ErrCacheUnavailable
}

func (FailingCache) Set(context.Context, string, []byte, time.Duration) error {
	return ErrCacheUnavailable
}

func (FailingCache) Delete(context.Context, ...string) error { return ErrCacheUnavailable }

func (FailingCache) DeletePrefix(context.Context, string) error { return ErrCacheUnavailable }

var _ services.Cache = FailingCache{}

// ReversingEncryptor is a reversible stand-in for services.Encryptor. Ciphertext is the
// plaintext reversed behind an "enc:" prefix so tests can assert it was applied.
type ReversingEncryptor struct{}

func (ReversingEncryptor) Encrypt(plain string) (string, error) {
	return "enc:" + reverse(plain), nil
}

func (ReversingEncryptor) Decrypt(cipherText string) (string, error) {
	if len(cipherText) < 4 || cipherText[:4] != "enc:" {
		return "", errors.New("not a ciphertext")
	}
	return reverse(cipherText[4:]), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

var _ services.Encryptor = ReversingEncryptor{}

// ConfigOption customizes a configuration fixture
type ConfigOption func(*models.Configuration)

// WithTenant scopes the configuration to tenantID
func WithTenant(tenantID string) ConfigOption {
	return func(c *models.Configuration) {
		c.TenantID = models.ForTenant(tenantID).Ptr()
		c.Type = models.ConfigurationTypeTenant
		c.InheritanceLevel = models.InheritanceLevelTenant
	}
}

// WithModule sets the configuration's module
func WithModule(m models.Module) ConfigOption {
	return func(c *models.Configuration) { c.Module = m }
}

// WithType sets the configuration type and its inheritance level
func WithType(t models.ConfigurationType) ConfigOption {
	return func(c *models.Configuration) {
		c.Type = t
		c.InheritanceLevel = t.InheritanceLevel(c.Tenant())
	}
}

// WithVersion sets the configuration version
func WithVersion(v int) ConfigOption {
	return func(c *models.Configuration) { c.Version = v }
}

// WithStatus sets the lifecycle status
func WithStatus(s models.ConfigurationStatus) ConfigOption {
	return func(c *models.Configuration) { c.Status = s }
}

// WithFeatureFlag marks the row as a feature flag with an optional rollout percentage
func WithFeatureFlag(percentage *int) ConfigOption {
	return func(c *models.Configuration) {
		c.FeatureFlag = true
		c.FeatureFlagPercentage = percentage
	}
}

// WithWindow sets the effective window
func WithWindow(effective, expiry *time.Time) ConfigOption {
	return func(c *models.Configuration) {
		c.EffectiveDate = effective
		c.ExpiryDate = expiry
	}
}

// WithRefresh sets the refresh frequency
func WithRefresh(f models.RefreshFrequency) ConfigOption {
	return func(c *models.Configuration) { c.RefreshFrequency = f }
}

// NewConfiguration builds an active system configuration in the GLOBAL module
func NewConfiguration(key string, dataType models.DataType, value string, opts ...ConfigOption) *models.Configuration {
	c := &models.Configuration{
		Key:              key,
		Name:             key,
		Module:           models.ModuleGlobal,
		Type:             models.ConfigurationTypeSystem,
		DataType:         dataType,
		Status:           models.ConfigurationStatusActive,
		InheritanceLevel: models.InheritanceLevelSystem,
		Value:            utils.ToPtr(value),
		Version:          1,
		RefreshFrequency: models.RefreshFrequencyOnDemand,
		IsActive:         utils.ToPtr(true),
		CreatedBy:        utils.SystemActor,
		UpdatedBy:        utils.SystemActor,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SeedConfigurations stores rows directly, bypassing flow validation
func SeedConfigurations(ctx context.Context, repo *MemoryConfigurationRepository, rows ...*models.Configuration) error {
	for _, r := range rows {
		if err := repo.Save(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Dec parses a decimal literal and panics on malformed input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ComponentInput builds a fixed-amount component line for create and update requests
func ComponentInput(componentType, category, amount string, displayOrder int) dto.PriceComponentInput {
	return dto.PriceComponentInput{
		ComponentType: componentType,
		ComponentName: componentType,
		Category:      category,
		Amount:        Dec(amount),
		DisplayOrder:  displayOrder,
	}
}

// PercentageInput builds a percentage component line of base
func PercentageInput(componentType, category, percent, base string, displayOrder int) dto.PriceComponentInput {
	in := ComponentInput(componentType, category, percent, displayOrder)
	in.IsPercentage = true
	in.PercentageBase = utils.ToPtr(base)
	return in
}

// StandardPetrolComponents is a small but complete petrol buildup: ex-refinery price,
// two levies, a margin and VAT charged on the ex-refinery price.
func StandardPetrolComponents() []dto.PriceComponentInput {
	return []dto.PriceComponentInput{
		ComponentInput(string(models.ComponentExRefineryPrice), string(models.CategoryBasePrice), "10.0000", 10),
		ComponentInput(string(models.ComponentRoadFundLevy), string(models.CategoryTaxLevy), "0.4800", 20),
		ComponentInput(string(models.ComponentEnergyFundLevy), string(models.CategoryTaxLevy), "0.0500", 30),
		ComponentInput(string(models.ComponentMarketersMargin), string(models.CategoryMargin), "0.7500", 40),
		PercentageInput(string(models.ComponentVAT), string(models.CategoryTaxLevy), "15", string(models.ComponentExRefineryPrice), 50),
	}
}

// Date returns midnight UTC of the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
