package entitlement

import (
	"context"
	"strings"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

// Admin resolve levels and failure reasons.
const (
	AdminLevelOrganization = "organization"
	AdminLevelService      = "service"
	AdminLevelEmailContact = "email_contact"
	AdminLevelAutoAdmin    = "auto_admin"
	AdminLevelPopulation   = "population"

	AdminReasonNoAccount   = "no_account"
	AdminReasonNoAdminRole = "no_admin_role"
	AdminReasonManual      = "manual"
)

// AdminResolver grants is_admin from the account's organization-level roles
// first, then from its role link on the service.
type AdminResolver struct {
	accounts AccountStore
}

func NewAdminResolver(accounts AccountStore) *AdminResolver {
	return &AdminResolver{accounts: accounts}
}

func (r *AdminResolver) Resolve(ctx context.Context, rc *Context) (Result, error) {
	result, _, err := r.resolveBase(ctx, rc)
	return result, err
}

// resolveBase runs the role checks shared with the extended variant. The
// returned account is nil when no row matched the context identity.
func (r *AdminResolver) resolveBase(ctx context.Context, rc *Context) (Result, *model.Account, error) {
	account := rc.Account
	if account == nil && rc.Organization != nil {
		found, err := r.accounts.Find(ctx, rc.Organization.ID, rc.AccountType, rc.AccountID, rc.Email)
		if err != nil {
			if !core.IsNotFound(err) {
				return nil, nil, err
			}
		} else {
			account = found
		}
	}
	if account == nil {
		return Result{"is_admin": false, "is_admin_reason": AdminReasonNoAccount}, nil, nil
	}

	if account.HasRole(model.RoleAdmin) {
		return Result{"is_admin": true, "is_admin_resolve_level": AdminLevelOrganization}, account, nil
	}

	link, err := r.accounts.GetServiceLink(ctx, account.ID, rc.Service.ID)
	if err == nil && link.HasRole(model.RoleAdmin) {
		return Result{"is_admin": true, "is_admin_resolve_level": AdminLevelService}, account, nil
	}
	if err != nil && !core.IsNotFound(err) {
		return nil, nil, err
	}

	return Result{"is_admin": false, "is_admin_reason": AdminReasonNoAdminRole}, account, nil
}

// emailMatchesContact reports whether the account's email (or the one given
// directly in the context) equals the organization's official contact email,
// case-insensitively.
func emailMatchesContact(rc *Context, account *model.Account) bool {
	if rc.Organization == nil || rc.Organization.Email == nil {
		return false
	}
	contact := strings.ToLower(*rc.Organization.Email)
	if account != nil && account.Email != "" && strings.ToLower(account.Email) == contact {
		return true
	}
	return rc.Email != "" && strings.ToLower(rc.Email) == contact
}
