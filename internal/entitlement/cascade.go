package entitlement

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

// LevelOrganization is the resolve level of the organization-wide rule.
// Account-level rules report the entitlement's own account type (user,
// mailbox, ...), overrides with an "_override" suffix.
const LevelOrganization = "organization"

func overrideLevel(accountType string) string {
	return accountType + "_override"
}

// buckets is the explicit partition of the stored rows for one entitlement
// type. A per-account override is absolute; the organization rule
// short-circuits on non-compliance; the generic account-type rule is the
// fallback.
type buckets struct {
	Override     *model.Entitlement
	Organization *model.Entitlement
	Account      *model.Entitlement
}

// partition sorts rows into the three cascade buckets. Any non-organization
// account type (user, mailbox, ...) lands in the account buckets. Only an
// override bound to the context's own account counts; overrides for other
// accounts are ignored.
func partition(rows []model.Entitlement, account *model.Account) buckets {
	var b buckets
	for i := range rows {
		row := &rows[i]
		switch {
		case row.AccountType == model.AccountTypeOrganization:
			if row.AccountID == nil {
				b.Organization = row
			}
		case row.AccountID != nil:
			if account != nil && *row.AccountID == account.ID {
				b.Override = row
			}
		default:
			b.Account = row
		}
	}
	return b
}

// StorageResolver runs the priority cascade for quota-style entitlements,
// comparing the latest stored usage metric against the rule's max_storage.
type StorageResolver struct {
	prefix  string
	metrics MetricStore
	log     zerolog.Logger
}

// NewDriveStorageResolver resolves drive_storage rules under the can_upload
// prefix.
func NewDriveStorageResolver(metrics MetricStore, log zerolog.Logger) *StorageResolver {
	return &StorageResolver{prefix: "can_upload", metrics: metrics, log: log}
}

// NewMessagesStorageResolver resolves messages_storage rules under the
// can_store prefix.
func NewMessagesStorageResolver(metrics MetricStore, log zerolog.Logger) *StorageResolver {
	return &StorageResolver{prefix: "can_store", metrics: metrics, log: log}
}

func (r *StorageResolver) Resolve(ctx context.Context, rc *Context) (Result, error) {
	b := partition(rc.Entitlements, rc.Account)

	switch {
	case b.Override != nil:
		// Absolute override: returned regardless of compliance.
		return r.resolveOne(ctx, rc, b.Override, overrideLevel(b.Override.AccountType)), nil
	case b.Organization != nil:
		result := r.resolveOne(ctx, rc, b.Organization, LevelOrganization)
		if result[r.prefix] == false || b.Account == nil {
			return result, nil
		}
		return r.resolveOne(ctx, rc, b.Account, b.Account.AccountType), nil
	case b.Account != nil:
		return r.resolveOne(ctx, rc, b.Account, b.Account.AccountType), nil
	}

	return nil, &core.ValidationError{
		Code:    core.CodeInvalidEntitlement,
		Message: "no organization or account entitlement resolvable for this context",
	}
}

// resolveOne evaluates one rule. max_storage of zero means unlimited; a
// missing metric is non-compliant with a logged warning, never an error.
func (r *StorageResolver) resolveOne(ctx context.Context, rc *Context, e *model.Entitlement, level string) Result {
	maxStorage := e.MaxStorage()
	result := Result{
		r.prefix + "_resolve_level": level,
		"max_storage":               maxStorage,
	}

	metric, err := r.fetchMetric(ctx, rc, level)
	if err != nil {
		result["storage_used"] = nil
		if maxStorage == 0 {
			result[r.prefix] = true
			return result
		}
		r.log.Warn().
			Int64("service_id", rc.Service.ID).
			Str("entitlement_id", e.ID).
			Str("level", level).
			Msg("no usage metric found, treating entitlement as non-compliant")
		result[r.prefix] = false
		return result
	}

	// Usage exactly at the limit still complies; only exceeding it blocks.
	result["storage_used"] = metric.Value
	result[r.prefix] = maxStorage == 0 || metric.Value <= float64(maxStorage)
	return result
}

func (r *StorageResolver) fetchMetric(ctx context.Context, rc *Context, level string) (*model.Metric, error) {
	if level == LevelOrganization {
		return r.metrics.LatestOrganizationMetric(ctx, rc.Service.ID, rc.Organization.ID, model.MetricKeyStorageUsed)
	}
	if rc.Account == nil {
		return nil, errNoAccount
	}
	return r.metrics.LatestAccountMetric(ctx, rc.Service.ID, rc.Account.ID, model.MetricKeyStorageUsed)
}
