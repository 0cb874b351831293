package entitlement

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

// OrganizationStore resolves organizations from SIRET/SIREN/INSEE
// identifiers. Implemented by core.OrganizationService.
type OrganizationStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*model.Organization, error)
}

// EntitlementStore reads the stored rules attached to a subscription.
// Implemented by core.EntitlementService.
type EntitlementStore interface {
	ListBySubscription(ctx context.Context, subscriptionID string) ([]model.Entitlement, error)
}

// OperatorStore reads operator rows. Implemented by core.OperatorService.
type OperatorStore interface {
	GetByID(ctx context.Context, id string) (*model.Operator, error)
}

// Response is the inbound entitlement check result: the merged resolver
// output plus the operator behind the active subscription, when one exists.
type Response struct {
	Operator     *model.OperatorRef `json:"operator"`
	Entitlements Result             `json:"entitlements"`
}

// Dispatcher builds the resolution context, runs the access gate, and fans
// out to the per-type resolvers and the service's admin resolver.
type Dispatcher struct {
	organizations OrganizationStore
	subscriptions SubscriptionStore
	entitlements  EntitlementStore
	operators     OperatorStore
	accounts      AccountStore
	registry      *Registry
	access        AccessResolver
	admin         Resolver
	extendedAdmin Resolver
	messagesAdmin Resolver
	trigger       core.ScrapeTrigger
	log           zerolog.Logger
}

func NewDispatcher(organizations OrganizationStore, subscriptions SubscriptionStore,
	entitlements EntitlementStore, operators OperatorStore, accounts AccountStore,
	metrics MetricStore, trigger core.ScrapeTrigger, log zerolog.Logger) *Dispatcher {

	registry := NewRegistry()
	registry.Register(model.EntitlementDriveStorage, NewDriveStorageResolver(metrics, log))
	registry.Register(model.EntitlementMessagesStorage, NewMessagesStorageResolver(metrics, log))

	return &Dispatcher{
		organizations: organizations,
		subscriptions: subscriptions,
		entitlements:  entitlements,
		operators:     operators,
		accounts:      accounts,
		registry:      registry,
		admin:         NewAdminResolver(accounts),
		extendedAdmin: NewExtendedAdminResolver(accounts),
		messagesAdmin: NewMessagesAdminResolver(accounts, subscriptions),
		trigger:       trigger,
		log:           log,
	}
}

// Registry exposes the per-type resolver registry so new entitlement kinds
// can register at startup.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Resolve runs the access gate and, when the subscription is active, every
// distinct entitlement type's resolver once plus the admin resolver matching
// the service type, shallow-merging the result maps. A usage scrape is
// triggered whenever access was evaluated against an active subscription,
// regardless of how the individual resolvers turn out.
func (d *Dispatcher) Resolve(ctx context.Context, service *model.Service, accountType, accountIDOrEmail, identifier string) (*Response, error) {
	externalID, email := splitIdentity(accountIDOrEmail)

	rc := &Context{
		Service:     service,
		AccountType: accountType,
		AccountID:   externalID,
		Email:       email,
		Identifier:  identifier,
	}

	org, err := d.organizations.FindByIdentifier(ctx, identifier)
	if err != nil {
		if _, isValidation := core.AsValidation(err); isValidation {
			return nil, err
		}
		if !core.IsNotFound(err) {
			return nil, err
		}
	} else {
		rc.Organization = org
	}

	if rc.Organization != nil {
		sub, err := d.subscriptions.GetActive(ctx, rc.Organization.ID, service.ID)
		if err != nil && !core.IsNotFound(err) {
			return nil, err
		}
		rc.Subscription = sub

		account, err := d.accounts.Find(ctx, rc.Organization.ID, accountType, externalID, email)
		if err != nil && !core.IsNotFound(err) {
			return nil, err
		}
		rc.Account = account
	}

	merged, err := d.access.Resolve(ctx, rc)
	if err != nil {
		return nil, err
	}

	response := &Response{Entitlements: merged}
	if rc.Subscription == nil {
		return response, nil
	}

	// Fired as soon as the active subscription is established: a failing
	// resolver must not starve the usage metrics refresh.
	d.trigger.TriggerUsageScrape(ctx, service.ID, accountType, accountIDOrEmail)

	operator, err := d.operators.GetByID(ctx, rc.Subscription.OperatorID)
	if err != nil {
		return nil, err
	}
	response.Operator = &model.OperatorRef{ID: operator.ID, Name: operator.Name}

	rows, err := d.entitlements.ListBySubscription(ctx, rc.Subscription.ID)
	if err != nil {
		return nil, err
	}
	for _, entitlementType := range distinctTypes(rows) {
		resolver, ok := d.registry.Resolver(entitlementType)
		if !ok {
			return nil, &core.ValidationError{
				Code:    core.CodeInvalidEntitlement,
				Message: "no resolver registered for entitlement type " + entitlementType,
			}
		}
		typed := *rc
		typed.Entitlements = rowsOfType(rows, entitlementType)
		result, err := resolver.Resolve(ctx, &typed)
		if err != nil {
			return nil, err
		}
		merged.Merge(result)
	}

	adminResult, err := d.adminResolver(service.Type).Resolve(ctx, rc)
	if err != nil {
		return nil, err
	}
	merged.Merge(adminResult)

	return response, nil
}

func (d *Dispatcher) adminResolver(serviceType string) Resolver {
	switch serviceType {
	case model.ServiceTypeADC:
		return d.extendedAdmin
	case model.ServiceTypeMessages:
		return d.messagesAdmin
	}
	return d.admin
}

// splitIdentity routes the caller-supplied identity to external id or email.
func splitIdentity(accountIDOrEmail string) (externalID, email string) {
	if strings.Contains(accountIDOrEmail, "@") {
		return "", accountIDOrEmail
	}
	return accountIDOrEmail, ""
}

func distinctTypes(rows []model.Entitlement) []string {
	seen := map[string]bool{}
	var types []string
	for _, row := range rows {
		if !seen[row.Type] {
			seen[row.Type] = true
			types = append(types, row.Type)
		}
	}
	return types
}

func rowsOfType(rows []model.Entitlement, entitlementType string) []model.Entitlement {
	var out []model.Entitlement
	for _, row := range rows {
		if row.Type == entitlementType {
			out = append(out, row)
		}
	}
	return out
}
