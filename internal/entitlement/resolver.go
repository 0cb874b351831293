// Package entitlement implements the resolution engine deciding, for a
// (service, organization, account) triple, whether access is granted and
// which limits apply. Resolvers are registered per entitlement type; the
// dispatcher merges their result maps.
package entitlement

import (
	"context"
	"errors"

	"github.com/edvin/deploycenter/internal/core"
	"github.com/edvin/deploycenter/internal/model"
)

// errNoAccount marks a resolution that needed a stored account row but found
// none. Resolvers translate it into a negative result.
var errNoAccount = errors.New("no account resolvable for context")

// Context is the immutable input of one resolver run. Organization and
// Subscription are nil when they could not be resolved; resolvers must turn
// that into a negative result, not an error.
type Context struct {
	Service      *model.Service
	Organization *model.Organization
	Subscription *model.ServiceSubscription
	AccountType  string
	AccountID    string
	Email        string
	Identifier   string

	// Account is the stored row matching (AccountID, Email) inside the
	// organization, nil when none exists yet.
	Account *model.Account

	// Entitlements holds the stored rows sharing the type being resolved.
	Entitlements []model.Entitlement
}

// Result is a flat map of resolver output fields. Every resolver prefixes its
// fields by its concern and always includes a resolve level or reason.
type Result map[string]any

// Merge shallow-copies other into r. Key collisions are not expected since
// prefixes differ per resolver; later values win.
func (r Result) Merge(other Result) {
	for k, v := range other {
		r[k] = v
	}
}

// Resolver decides one entitlement concern for a context.
type Resolver interface {
	Resolve(ctx context.Context, rc *Context) (Result, error)
}

// Registry maps an entitlement type to its resolver. New entitlement kinds
// register here without touching the dispatcher.
type Registry struct {
	resolvers map[string]Resolver
}

func NewRegistry() *Registry {
	return &Registry{resolvers: map[string]Resolver{}}
}

func (r *Registry) Register(entitlementType string, resolver Resolver) {
	r.resolvers[entitlementType] = resolver
}

func (r *Registry) Resolver(entitlementType string) (Resolver, bool) {
	resolver, ok := r.resolvers[entitlementType]
	return resolver, ok
}

// ---------- Store interfaces ----------

// MetricStore reads back the latest usage observations. Implemented by
// core.MetricService.
type MetricStore interface {
	LatestOrganizationMetric(ctx context.Context, serviceID int64, orgID, key string) (*model.Metric, error)
	LatestAccountMetric(ctx context.Context, serviceID int64, accountID, key string) (*model.Metric, error)
}

// AccountStore resolves account identities and their per-service roles.
// Implemented by core.AccountService.
type AccountStore interface {
	Find(ctx context.Context, orgID, accountType, externalID, email string) (*model.Account, error)
	GetServiceLink(ctx context.Context, accountID string, serviceID int64) (*model.AccountServiceLink, error)
	FindAdminMatches(ctx context.Context, serviceID int64, externalID, email string) ([]core.AdminMatch, error)
}

// SubscriptionStore resolves active subscriptions. Implemented by
// core.SubscriptionService.
type SubscriptionStore interface {
	GetActive(ctx context.Context, orgID string, serviceID int64) (*model.ServiceSubscription, error)
}
