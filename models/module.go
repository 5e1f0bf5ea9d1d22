package models

// Module identifies the ERP area a configuration belongs to.
type Module string

// ModuleGlobal marks module-agnostic configurations consulted for every module.
const ModuleGlobal Module = "GLOBAL"

const (
	ModuleSystem              Module = "SYSTEM"
	ModuleAuthentication      Module = "AUTHENTICATION"
	ModuleUserManagement      Module = "USER_MANAGEMENT"
	ModuleTenantManagement    Module = "TENANT_MANAGEMENT"
	ModuleConfiguration       Module = "CONFIGURATION"
	ModuleAccounting          Module = "ACCOUNTING"
	ModuleGeneralLedger       Module = "GENERAL_LEDGER"
	ModuleAccountsPayable     Module = "ACCOUNTS_PAYABLE"
	ModuleAccountsReceivable  Module = "ACCOUNTS_RECEIVABLE"
	ModuleFixedAssets         Module = "FIXED_ASSETS"
	ModuleBudgeting           Module = "BUDGETING"
	ModuleTreasury            Module = "TREASURY"
	ModuleTaxManagement       Module = "TAX_MANAGEMENT"
	ModuleIFRSCompliance      Module = "IFRS_COMPLIANCE"
	ModuleInventory           Module = "INVENTORY"
	ModuleWarehouse           Module = "WAREHOUSE"
	ModuleProcurement         Module = "PROCUREMENT"
	ModuleSupplyChain         Module = "SUPPLY_CHAIN"
	ModuleLogistics           Module = "LOGISTICS"
	ModuleFleetManagement     Module = "FLEET_MANAGEMENT"
	ModuleTransportation      Module = "TRANSPORTATION"
	ModuleFuelManagement      Module = "FUEL_MANAGEMENT"
	ModuleStationManagement   Module = "STATION_MANAGEMENT"
	ModuleTankManagement      Module = "TANK_MANAGEMENT"
	ModulePumpManagement      Module = "PUMP_MANAGEMENT"
	ModuleShiftManagement     Module = "SHIFT_MANAGEMENT"
	ModuleDealerManagement    Module = "DEALER_MANAGEMENT"
	ModulePricing             Module = "PRICING"
	ModulePriceBuildup        Module = "PRICE_BUILDUP"
	ModuleUPPF                Module = "UPPF"
	ModuleSales               Module = "SALES"
	ModulePointOfSale         Module = "POINT_OF_SALE"
	ModuleCustomerManagement  Module = "CUSTOMER_MANAGEMENT"
	ModuleCRM                 Module = "CRM"
	ModuleLoyalty             Module = "LOYALTY"
	ModuleFleetCards          Module = "FLEET_CARDS"
	ModulePayments            Module = "PAYMENTS"
	ModuleMobileMoney         Module = "MOBILE_MONEY"
	ModuleBilling             Module = "BILLING"
	ModuleCredit              Module = "CREDIT"
	ModuleHumanResources      Module = "HUMAN_RESOURCES"
	ModulePayroll             Module = "PAYROLL"
	ModuleMaintenance         Module = "MAINTENANCE"
	ModuleQualityControl      Module = "QUALITY_CONTROL"
	ModuleHealthSafety        Module = "HEALTH_SAFETY_ENVIRONMENT"
	ModuleRegulatory          Module = "REGULATORY_COMPLIANCE"
	ModuleNPAReporting        Module = "NPA_REPORTING"
	ModuleRiskManagement      Module = "RISK_MANAGEMENT"
	ModuleContractManagement  Module = "CONTRACT_MANAGEMENT"
	ModuleProjectManagement   Module = "PROJECT_MANAGEMENT"
	ModuleDocumentManagement  Module = "DOCUMENT_MANAGEMENT"
	ModuleReporting           Module = "REPORTING"
	ModuleAnalytics           Module = "ANALYTICS"
	ModuleDashboard           Module = "DASHBOARD"
	ModuleNotifications       Module = "NOTIFICATIONS"
	ModuleWorkflow            Module = "WORKFLOW"
	ModuleAuditTrail          Module = "AUDIT_TRAIL"
	ModuleIntegration         Module = "INTEGRATION"
	ModuleIoT                 Module = "IOT"
	ModuleMobileApp           Module = "MOBILE_APP"
)

var knownModules = map[Module]struct{}{
	ModuleGlobal: {}, ModuleSystem: {}, ModuleAuthentication: {}, ModuleUserManagement: {},
	ModuleTenantManagement: {}, ModuleConfiguration: {}, ModuleAccounting: {}, ModuleGeneralLedger: {},
	ModuleAccountsPayable: {}, ModuleAccountsReceivable: {}, ModuleFixedAssets: {}, ModuleBudgeting: {},
	ModuleTreasury: {}, ModuleTaxManagement: {}, ModuleIFRSCompliance: {}, ModuleInventory: {},
	ModuleWarehouse: {}, ModuleProcurement: {}, ModuleSupplyChain: {}, ModuleLogistics: {},
	ModuleFleetManagement: {}, ModuleTransportation: {}, ModuleFuelManagement: {}, ModuleStationManagement: {},
	ModuleTankManagement: {}, ModulePumpManagement: {}, ModuleShiftManagement: {}, ModuleDealerManagement: {},
	ModulePricing: {}, ModulePriceBuildup: {}, ModuleUPPF: {}, ModuleSales: {},
	ModulePointOfSale: {}, ModuleCustomerManagement: {}, ModuleCRM: {}, ModuleLoyalty: {},
	ModuleFleetCards: {}, ModulePayments: {}, ModuleMobileMoney: {}, ModuleBilling: {},
	ModuleCredit: {}, ModuleHumanResources: {}, ModulePayroll: {}, ModuleMaintenance: {},
	ModuleQualityControl: {}, ModuleHealthSafety: {}, ModuleRegulatory: {}, ModuleNPAReporting: {},
	ModuleRiskManagement: {}, ModuleContractManagement: {}, ModuleProjectManagement: {}, ModuleDocumentManagement: {},
	ModuleReporting: {}, ModuleAnalytics: {}, ModuleDashboard: {}, ModuleNotifications: {},
	ModuleWorkflow: {}, ModuleAuditTrail: {}, ModuleIntegration: {}, ModuleIoT: {},
	ModuleMobileApp: {},
}

// Valid checks if the module is known.
func (m Module) Valid() bool {
	_, ok := knownModules[m]
	return ok
}

// ModuleCacheSegment renders an optional module for cache keys.
func ModuleCacheSegment(m *Module) string {
	if m == nil {
		return "global"
	}
	return string(*m)
}
