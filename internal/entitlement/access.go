package entitlement

import "context"

// Access gate reasons.
const (
	ReasonNoOrganization = "no_organization"
	ReasonNotActivated   = "not_activated"
)

// AccessResolver is the gate run ahead of every other resolver. It depends
// only on the resolved organization and subscription, not on stored
// entitlement rows.
type AccessResolver struct{}

func (AccessResolver) Resolve(_ context.Context, rc *Context) (Result, error) {
	if rc.Organization == nil {
		return Result{"can_access": false, "can_access_reason": ReasonNoOrganization}, nil
	}
	if rc.Subscription == nil || !rc.Subscription.IsActive {
		return Result{"can_access": false, "can_access_reason": ReasonNotActivated}, nil
	}
	return Result{"can_access": true, "can_access_reason": nil}, nil
}
