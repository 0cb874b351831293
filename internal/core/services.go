package core

import (
	"github.com/rs/zerolog"
)

type Services struct {
	Organization *OrganizationService
	Operator     *OperatorService
	Service      *ServiceService
	Subscription *SubscriptionService
	Account      *AccountService
	Entitlement  *EntitlementService
	Metric       *MetricService
	APIKey       *APIKeyService
	Dashboard    *DashboardService
	Search       *SearchService
}

func NewServices(db DB, log zerolog.Logger) *Services {
	organizations := NewOrganizationService(db)
	operators := NewOperatorService(db)
	services := NewServiceService(db)
	entitlements := NewEntitlementService(db)
	accounts := NewAccountService(db, log)
	handlers := NewHandlerRegistry()

	return &Services{
		Organization: organizations,
		Operator:     operators,
		Service:      services,
		Subscription: NewSubscriptionService(db, organizations, services, operators, entitlements, handlers),
		Account:      accounts,
		Entitlement:  entitlements,
		Metric:       NewMetricService(db, accounts, log),
		APIKey:       NewAPIKeyService(db),
		Dashboard:    NewDashboardService(db),
		Search:       NewSearchService(db),
	}
}
