package entitlement

import (
	"context"
	"sort"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

// MessagesAdminResolver aggregates the mail domains an identity may
// administer. It matches accounts across all organizations by external id or
// email, keeps those with an admin role on the organization or on this
// service, and collects the domains of each matching organization's active
// subscription. A link scoped to specific domains restricts its contribution
// to the intersection. An empty list is a valid result.
type MessagesAdminResolver struct {
	accounts      AccountStore
	subscriptions SubscriptionStore
}

func NewMessagesAdminResolver(accounts AccountStore, subscriptions SubscriptionStore) *MessagesAdminResolver {
	return &MessagesAdminResolver{accounts: accounts, subscriptions: subscriptions}
}

func (r *MessagesAdminResolver) Resolve(ctx context.Context, rc *Context) (Result, error) {
	matches, err := r.accounts.FindAdminMatches(ctx, rc.Service.ID, rc.AccountID, rc.Email)
	if err != nil {
		return nil, err
	}

	domainSet := map[string]bool{}
	for _, match := range matches {
		sub, err := r.subscriptions.GetActive(ctx, match.Account.OrganizationID, rc.Service.ID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, domain := range subscriptionDomains(sub.Domains(), match) {
			domainSet[domain] = true
		}
	}

	domains := make([]string, 0, len(domainSet))
	for domain := range domainSet {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	return Result{"can_admin_maildomains": domains}, nil
}

// subscriptionDomains restricts the subscription's domains to the link's
// scope when the grant came from a scoped service link. An organization-level
// admin role is never scoped down.
func subscriptionDomains(domains []string, match core.AdminMatch) []string {
	if match.Account.HasRole(model.RoleAdmin) || match.Link == nil {
		return domains
	}
	scope := match.Link.ScopeDomains()
	if len(scope) == 0 {
		return domains
	}
	scoped := map[string]bool{}
	for _, d := range scope {
		scoped[d] = true
	}
	var out []string
	for _, d := range domains {
		if scoped[d] {
			out = append(out, d)
		}
	}
	return out
}
