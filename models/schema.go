package models

// SchemaModels lists every persisted entity in dependency order for AutoMigrate.
func SchemaModels() []any {
	return []any{
		&Configuration{},
		&PriceBuildupVersion{},
		&PriceComponent{},
		&StationTypePricing{},
		&PriceBuildupAuditTrail{},
	}
}
