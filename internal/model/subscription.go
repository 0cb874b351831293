package model

import (
	"fmt"
	"time"
)

// Auto-admin subscription metadata values. "all" grants admin to every
// account, "manual" suppresses the population fallback only.
const (
	AutoAdminAll    = "all"
	AutoAdminManual = "manual"
)

type ServiceSubscription struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	OperatorID     string         `json:"operator_id" db:"operator_id"`
	ServiceID      int64          `json:"service_id" db:"service_id"`
	Metadata       map[string]any `json:"metadata" db:"metadata"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// AutoAdmin returns the auto_admin metadata value. Values outside
// {"", "all", "manual"} are a configuration error.
func (s *ServiceSubscription) AutoAdmin() (string, error) {
	v, ok := s.Metadata["auto_admin"]
	if !ok || v == nil {
		return "", nil
	}
	str, ok := v.(string)
	if !ok || (str != "" && str != AutoAdminAll && str != AutoAdminManual) {
		return "", fmt.Errorf("invalid auto_admin value %v: must be %q or %q", v, AutoAdminAll, AutoAdminManual)
	}
	return str, nil
}

// Domains returns the mail domains carried by the subscription metadata.
func (s *ServiceSubscription) Domains() []string {
	raw, ok := s.Metadata["domains"].([]any)
	if !ok {
		return nil
	}
	domains := make([]string, 0, len(raw))
	for _, d := range raw {
		if v, ok := d.(string); ok {
			domains = append(domains, v)
		}
	}
	return domains
}

// SetDomains replaces the domains list in the subscription metadata.
func (s *ServiceSubscription) SetDomains(domains []string) {
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	list := make([]any, len(domains))
	for i, d := range domains {
		list[i] = d
	}
	s.Metadata["domains"] = list
}

// IDPID returns the identity provider id from the subscription metadata.
func (s *ServiceSubscription) IDPID() string {
	if v, ok := s.Metadata["idp_id"].(string); ok {
		return v
	}
	return ""
}

// Subscription lifecycle event types delivered to webhook endpoints.
const (
	EventSubscriptionCreated = "subscription.created"
	EventSubscriptionUpdated = "subscription.updated"
	EventSubscriptionDeleted = "subscription.deleted"
)

// SubscriptionEvent is a post-commit lifecycle event. Lifecycle operations
// return these instead of dispatching side effects inline, so persistence
// stays decoupled from notification delivery. Actor is the explicit
// triggering identity, threaded through by the caller.
type SubscriptionEvent struct {
	Type           string `json:"type"`
	SubscriptionID string `json:"subscription_id"`
	OrganizationID string `json:"organization_id"`
	ServiceID      int64  `json:"service_id"`
	Actor          string `json:"actor,omitempty"`
}
