package utils

import (
	"time"
)

// Cache time constants
const (
	// ConfigCacheTTL is the default time-to-live for resolved configuration values (1 hour)
	ConfigCacheTTL = 1 * time.Hour

	// ConfigCacheTTLSeconds is ConfigCacheTTL expressed in seconds
	ConfigCacheTTLSeconds = 3600

	// PriceCacheTTL is the time-to-live for price calculation results (30 minutes)
	PriceCacheTTL = 30 * time.Minute

	// CacheRefreshInterval is how often REAL_TIME configurations are re-resolved into cache
	CacheRefreshInterval = 10 * time.Minute

	// StoreTimeout bounds a single call into the backing store
	StoreTimeout = 5 * time.Second
)

// Pricing constants
const (
	// CediCurrency is the currency used for fuel price buildups
	CediCurrency = "GHS"

	// PriceScale is the number of decimal places kept on resolved price amounts
	PriceScale = 4
)

// Masking constants
const (
	// MaskedValue replaces sensitive values in events and responses
	MaskedValue = "******"

	// SystemActor is recorded when the platform itself performs a change
	SystemActor = "system"
)
