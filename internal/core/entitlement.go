package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/deploycenter/internal/model"
	"github.com/edvin/deploycenter/internal/platform"
)

const entitlementColumns = `id, service_subscription_id, type, account_type, account_id, config, created_at, updated_at`

// EntitlementService manages stored quota/permission rules.
type EntitlementService struct {
	db DB
}

func NewEntitlementService(db DB) *EntitlementService {
	return &EntitlementService{db: db}
}

func scanEntitlement(row interface{ Scan(dest ...any) error }) (*model.Entitlement, error) {
	var e model.Entitlement
	err := row.Scan(&e.ID, &e.ServiceSubscriptionID, &e.Type, &e.AccountType, &e.AccountID,
		&e.Config, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// validate enforces the cross-field invariant: a bound account must belong to
// the subscription's organization and carry the entitlement's account type.
func (s *EntitlementService) validate(ctx context.Context, e *model.Entitlement) error {
	if e.Type == "" {
		return validationError(CodeInvalidEntitlement, "entitlement type is required")
	}
	if e.AccountID == nil {
		return nil
	}
	if e.AccountType == "" {
		return validationError(CodeInvalidEntitlement, "entitlement bound to an account requires an account type")
	}

	var subOrgID string
	err := s.db.QueryRow(ctx,
		"SELECT organization_id FROM service_subscriptions WHERE id = $1",
		e.ServiceSubscriptionID).Scan(&subOrgID)
	if err != nil {
		return fmt.Errorf("get subscription %s for entitlement: %w", e.ServiceSubscriptionID, err)
	}

	var accountOrgID, accountType string
	err = s.db.QueryRow(ctx,
		"SELECT organization_id, type FROM accounts WHERE id = $1",
		*e.AccountID).Scan(&accountOrgID, &accountType)
	if err != nil {
		return fmt.Errorf("get account %s for entitlement: %w", *e.AccountID, err)
	}

	if accountOrgID != subOrgID {
		return validationError(CodeInvalidEntitlement,
			"account %s belongs to organization %s, not the subscription's organization %s",
			*e.AccountID, accountOrgID, subOrgID)
	}
	if accountType != e.AccountType {
		return validationError(CodeInvalidEntitlement,
			"account %s has type %s, entitlement expects %s", *e.AccountID, accountType, e.AccountType)
	}
	return nil
}

func (s *EntitlementService) Create(ctx context.Context, e *model.Entitlement) error {
	if err := s.validate(ctx, e); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = platform.NewID()
	}
	if e.Config == nil {
		e.Config = map[string]any{}
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := s.db.Exec(ctx,
		`INSERT INTO entitlements (`+entitlementColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.ServiceSubscriptionID, e.Type, e.AccountType, e.AccountID, e.Config,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return validationError(CodeInvalidEntitlement,
				"entitlement %s/%s already exists for this subscription and account", e.Type, e.AccountType)
		}
		return fmt.Errorf("insert entitlement: %w", err)
	}
	return nil
}

// EnsureDefault creates a default entitlement rule if none exists for the
// (subscription, type, account_type, account=null) key. Idempotent: repeated
// provisioning leaves the rows untouched.
func (s *EntitlementService) EnsureDefault(ctx context.Context, subscriptionID, entitlementType, accountType string, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO entitlements (id, service_subscription_id, type, account_type, account_id, config, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULL, $5, now(), now())
		 ON CONFLICT (service_subscription_id, type, account_type, COALESCE(account_id, '')) DO NOTHING`,
		platform.NewID(), subscriptionID, entitlementType, accountType, config,
	)
	if err != nil {
		return fmt.Errorf("ensure default entitlement %s/%s: %w", entitlementType, accountType, err)
	}
	return nil
}

func (s *EntitlementService) GetByID(ctx context.Context, id string) (*model.Entitlement, error) {
	e, err := scanEntitlement(s.db.QueryRow(ctx,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get entitlement %s: %w", id, err)
	}
	return e, nil
}

// ListBySubscription returns every entitlement rule attached to a
// subscription, the input set for resolver dispatch.
func (s *EntitlementService) ListBySubscription(ctx context.Context, subscriptionID string) ([]model.Entitlement, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+entitlementColumns+` FROM entitlements
		 WHERE service_subscription_id = $1 ORDER BY type, account_type, account_id NULLS FIRST`,
		subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list entitlements for subscription %s: %w", subscriptionID, err)
	}
	defer rows.Close()

	var entitlements []model.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entitlement: %w", err)
		}
		entitlements = append(entitlements, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entitlements: %w", err)
	}
	return entitlements, nil
}

func (s *EntitlementService) Update(ctx context.Context, e *model.Entitlement) error {
	if err := s.validate(ctx, e); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		"UPDATE entitlements SET config = $1, updated_at = now() WHERE id = $2",
		e.Config, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update entitlement %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entitlement %s not found", e.ID)
	}
	return nil
}

func (s *EntitlementService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM entitlements WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete entitlement %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entitlement %s not found", id)
	}
	return nil
}
