package entitlement

import (
	"context"
)

// ExtendedAdminResolver layers three fallbacks over the base role checks, in
// this exact order: email match against the organization's contact address,
// explicit auto_admin subscription metadata, and finally a population
// threshold. auto_admin="manual" suppresses only the population fallback; the
// email match runs before it and cannot be blocked. All three fallbacks
// require an organization with a SIRET.
type ExtendedAdminResolver struct {
	base *AdminResolver
}

func NewExtendedAdminResolver(accounts AccountStore) *ExtendedAdminResolver {
	return &ExtendedAdminResolver{base: NewAdminResolver(accounts)}
}

func (r *ExtendedAdminResolver) Resolve(ctx context.Context, rc *Context) (Result, error) {
	result, account, err := r.base.resolveBase(ctx, rc)
	if err != nil {
		return nil, err
	}
	if result["is_admin"] == true {
		return result, nil
	}

	if rc.Organization == nil || rc.Organization.SIRET == nil || *rc.Organization.SIRET == "" {
		return result, nil
	}

	if emailMatchesContact(rc, account) {
		return Result{"is_admin": true, "is_admin_resolve_level": AdminLevelEmailContact}, nil
	}

	if rc.Subscription != nil {
		autoAdmin, err := rc.Subscription.AutoAdmin()
		if err != nil {
			return nil, err
		}
		switch autoAdmin {
		case "all":
			return Result{"is_admin": true, "is_admin_resolve_level": AdminLevelAutoAdmin}, nil
		case "manual":
			return Result{"is_admin": false, "is_admin_reason": AdminReasonManual}, nil
		}
	}

	if rc.Organization.Population != nil &&
		*rc.Organization.Population < rc.Service.AutoAdminPopulationThreshold() {
		return Result{"is_admin": true, "is_admin_resolve_level": AdminLevelPopulation}, nil
	}

	return result, nil
}
