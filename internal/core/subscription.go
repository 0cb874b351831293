package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/deploycenter/internal/api/request"
	"github.com/edvin/deploycenter/internal/model"
	"github.com/edvin/deploycenter/internal/platform"
)

const subscriptionColumns = `id, organization_id, operator_id, service_id, metadata, is_active, created_at, updated_at`

// WriteOptions carries the explicit actor and permissions of a lifecycle
// write. The actor ends up in the lifecycle events; superuser allows
// overriding the derived ProConnect domains.
type WriteOptions struct {
	Actor             string
	SuperuserOverride bool
}

// SubscriptionService runs the subscription lifecycle: validation before every
// save, default-entitlement provisioning on creation, and lifecycle events
// returned to the caller for post-commit dispatch.
type SubscriptionService struct {
	db            DB
	organizations *OrganizationService
	services      *ServiceService
	operators     *OperatorService
	entitlements  *EntitlementService
	handlers      *HandlerRegistry
}

func NewSubscriptionService(db DB, organizations *OrganizationService, services *ServiceService,
	operators *OperatorService, entitlements *EntitlementService, handlers *HandlerRegistry) *SubscriptionService {
	return &SubscriptionService{
		db:            db,
		organizations: organizations,
		services:      services,
		operators:     operators,
		entitlements:  entitlements,
		handlers:      handlers,
	}
}

func scanSubscription(row interface{ Scan(dest ...any) error }) (*model.ServiceSubscription, error) {
	var sub model.ServiceSubscription
	err := row.Scan(&sub.ID, &sub.OrganizationID, &sub.OperatorID, &sub.ServiceID,
		&sub.Metadata, &sub.IsActive, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *SubscriptionService) GetByID(ctx context.Context, id string) (*model.ServiceSubscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM service_subscriptions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return sub, nil
}

// GetActive returns the active subscription for (organization, service), or a
// not-found error.
func (s *SubscriptionService) GetActive(ctx context.Context, orgID string, serviceID int64) (*model.ServiceSubscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM service_subscriptions
		 WHERE organization_id = $1 AND service_id = $2 AND is_active`,
		orgID, serviceID))
	if err != nil {
		return nil, fmt.Errorf("get active subscription for organization %s service %d: %w", orgID, serviceID, err)
	}
	return sub, nil
}

func (s *SubscriptionService) ListByOrganization(ctx context.Context, orgID string) ([]model.ServiceSubscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM service_subscriptions
		 WHERE organization_id = $1 ORDER BY service_id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for organization %s: %w", orgID, err)
	}
	return collectSubscriptions(rows)
}

func (s *SubscriptionService) List(ctx context.Context, params request.ListParams) ([]model.ServiceSubscription, bool, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM service_subscriptions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if params.Status == "active" {
		query += ` AND is_active`
	} else if params.Status == "inactive" {
		query += ` AND NOT is_active`
	}
	if params.Cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, params.Cursor)
		argIdx++
	}

	order := "DESC"
	if params.Order == "asc" {
		order = "ASC"
	}
	query += fmt.Sprintf(` ORDER BY created_at %s`, order)
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, params.Limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list subscriptions: %w", err)
	}
	subs, err := collectSubscriptions(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(subs) > params.Limit
	if hasMore {
		subs = subs[:params.Limit]
	}
	return subs, hasMore, nil
}

func collectSubscriptions(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}) ([]model.ServiceSubscription, error) {
	defer rows.Close()
	var subs []model.ServiceSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// Create validates and persists a new subscription, provisions the service's
// default entitlements exactly once, and returns the created lifecycle event
// for post-commit dispatch.
func (s *SubscriptionService) Create(ctx context.Context, sub *model.ServiceSubscription, opts WriteOptions) ([]model.SubscriptionEvent, error) {
	if err := s.clean(ctx, sub, nil, opts); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		sub.ID = platform.NewID()
	}
	if sub.Metadata == nil {
		sub.Metadata = map[string]any{}
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.Exec(ctx,
		`INSERT INTO service_subscriptions (`+subscriptionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID, sub.OrganizationID, sub.OperatorID, sub.ServiceID, sub.Metadata,
		sub.IsActive, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, validationError(CodeInvalidIdentifier,
				"organization %s already has a subscription to service %d", sub.OrganizationID, sub.ServiceID)
		}
		return nil, fmt.Errorf("insert subscription: %w", err)
	}

	if err := s.provisionDefaults(ctx, sub); err != nil {
		return nil, err
	}

	return []model.SubscriptionEvent{{
		Type:           model.EventSubscriptionCreated,
		SubscriptionID: sub.ID,
		OrganizationID: sub.OrganizationID,
		ServiceID:      sub.ServiceID,
		Actor:          opts.Actor,
	}}, nil
}

// Update validates and persists subscription changes. Default entitlements are
// not re-provisioned; that happens once per creation.
func (s *SubscriptionService) Update(ctx context.Context, sub *model.ServiceSubscription, opts WriteOptions) ([]model.SubscriptionEvent, error) {
	existing, err := s.GetByID(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if err := s.clean(ctx, sub, existing, opts); err != nil {
		return nil, err
	}

	_, err = s.db.Exec(ctx,
		`UPDATE service_subscriptions SET metadata = $1, is_active = $2, updated_at = now()
		 WHERE id = $3`,
		sub.Metadata, sub.IsActive, sub.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}

	return []model.SubscriptionEvent{{
		Type:           model.EventSubscriptionUpdated,
		SubscriptionID: sub.ID,
		OrganizationID: sub.OrganizationID,
		ServiceID:      sub.ServiceID,
		Actor:          opts.Actor,
	}}, nil
}

func (s *SubscriptionService) Delete(ctx context.Context, id string, opts WriteOptions) ([]model.SubscriptionEvent, error) {
	sub, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM service_subscriptions WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("delete subscription %s: %w", id, err)
	}

	return []model.SubscriptionEvent{{
		Type:           model.EventSubscriptionDeleted,
		SubscriptionID: sub.ID,
		OrganizationID: sub.OrganizationID,
		ServiceID:      sub.ServiceID,
		Actor:          opts.Actor,
	}}, nil
}

// clean runs the activation state machine ahead of every save. existing is
// nil on creation.
func (s *SubscriptionService) clean(ctx context.Context, sub *model.ServiceSubscription, existing *model.ServiceSubscription, opts WriteOptions) error {
	if _, err := sub.AutoAdmin(); err != nil {
		return validationError(CodeInvalidAutoAdmin, "%s", err.Error())
	}

	org, err := s.organizations.GetByID(ctx, sub.OrganizationID)
	if err != nil {
		return err
	}
	svc, err := s.services.GetByID(ctx, sub.ServiceID)
	if err != nil {
		return err
	}
	operator, err := s.operators.GetByID(ctx, sub.OperatorID)
	if err != nil {
		return err
	}

	if svc.Type == model.ServiceTypeProConnect {
		if err := s.cleanProConnect(ctx, sub, existing, org, opts); err != nil {
			return err
		}
	}

	if !sub.IsActive {
		return nil
	}

	if err := s.checkRequiredServices(ctx, sub, svc); err != nil {
		return err
	}
	if !operator.Settings().BypassPopulationLimits {
		if err := checkPopulationLimits(org, svc); err != nil {
			return err
		}
	}
	return nil
}

func (s *SubscriptionService) checkRequiredServices(ctx context.Context, sub *model.ServiceSubscription, svc *model.Service) error {
	for _, requiredID := range svc.RequiredServices {
		_, err := s.GetActive(ctx, sub.OrganizationID, requiredID)
		if err != nil {
			if IsNotFound(err) {
				return validationError(CodeMissingRequiredServices,
					"service %d requires an active subscription to service %d", svc.ID, requiredID)
			}
			return err
		}
	}
	return nil
}

// checkPopulationLimits applies the per-org-type activation limits. Communes
// pass when either their own or their EPCI population is below the respective
// configured limit; a limit key left unconfigured skips that sub-check. EPCI
// organizations check only the epci limit. Other types pass unconditionally.
func checkPopulationLimits(org *model.Organization, svc *model.Service) error {
	limits := svc.PopulationLimits()

	switch org.Type {
	case model.OrgTypeCommune:
		if limits.Commune == nil && limits.EPCI == nil {
			return nil
		}
		if limits.Commune != nil && org.Population != nil && *org.Population < *limits.Commune {
			return nil
		}
		if limits.EPCI != nil && org.EPCIPopulation != nil && *org.EPCIPopulation < *limits.EPCI {
			return nil
		}
		return validationError(CodePopulationLimitExceeded,
			"organization %s exceeds the population limits of service %d", org.ID, svc.ID)
	case model.OrgTypeEPCI:
		if limits.EPCI == nil {
			return nil
		}
		population := org.Population
		if population == nil {
			population = org.EPCIPopulation
		}
		if population != nil && *population < *limits.EPCI {
			return nil
		}
		return validationError(CodePopulationLimitExceeded,
			"organization %s exceeds the population limits of service %d", org.ID, svc.ID)
	}
	return nil
}

// cleanProConnect enforces the identity-federation field rules: idp_id is
// required for activation and immutable while active, and the domains
// metadata is derived from the organization's mail domain unless a superuser
// overrides it. Derived or overridden domains must not collide with any other
// active federation subscription.
func (s *SubscriptionService) cleanProConnect(ctx context.Context, sub *model.ServiceSubscription, existing *model.ServiceSubscription, org *model.Organization, opts WriteOptions) error {
	if existing != nil && existing.IsActive &&
		existing.IDPID() != "" && sub.IDPID() != existing.IDPID() {
		return validationError(CodeIDPIDImmutable,
			"idp_id cannot change while the subscription is active, deactivate it first")
	}

	if !sub.IsActive {
		return nil
	}

	if sub.IDPID() == "" {
		return validationError(CodeMissingIDPID, "activation requires an idp_id in the subscription metadata")
	}

	mailDomain := org.MailDomain()
	if mailDomain == "" {
		return validationError(CodeMissingMailDomain,
			"organization %s has no usable mail domain (status %s)", org.ID, org.MailDomainStatus())
	}

	if !(opts.SuperuserOverride && len(sub.Domains()) > 0) {
		sub.SetDomains([]string{mailDomain})
	}

	return s.checkDomainConflicts(ctx, sub)
}

// checkDomainConflicts rejects an activation whose domains intersect those of
// any other active federation subscription, across all organizations and
// operators. Comparison is case-sensitive.
func (s *SubscriptionService) checkDomainConflicts(ctx context.Context, sub *model.ServiceSubscription) error {
	rows, err := s.db.Query(ctx,
		`SELECT ss.id, ss.metadata FROM service_subscriptions ss
		 JOIN services svc ON svc.id = ss.service_id
		 WHERE svc.type = $1 AND ss.is_active AND ss.id != $2`,
		model.ServiceTypeProConnect, sub.ID)
	if err != nil {
		return fmt.Errorf("list active federation subscriptions: %w", err)
	}
	defer rows.Close()

	claimed := map[string]bool{}
	for _, d := range sub.Domains() {
		claimed[d] = true
	}

	for rows.Next() {
		var other model.ServiceSubscription
		if err := rows.Scan(&other.ID, &other.Metadata); err != nil {
			return fmt.Errorf("scan federation subscription: %w", err)
		}
		for _, d := range other.Domains() {
			if claimed[d] {
				return validationError(CodeDomainConflict,
					"domain %s is already claimed by subscription %s", d, other.ID)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate federation subscriptions: %w", err)
	}
	return nil
}

func (s *SubscriptionService) provisionDefaults(ctx context.Context, sub *model.ServiceSubscription) error {
	svc, err := s.services.GetByID(ctx, sub.ServiceID)
	if err != nil {
		return err
	}
	handler, ok := s.handlers.Handler(svc.Type)
	if !ok {
		return nil
	}
	for _, def := range handler.DefaultEntitlements(svc) {
		if err := s.entitlements.EnsureDefault(ctx, sub.ID, def.Type, def.AccountType, def.Config); err != nil {
			return err
		}
	}
	return nil
}
