package model

import "time"

// Entitlement types. Each type maps to a registered resolver; new kinds
// register without touching the dispatcher.
const (
	EntitlementDriveStorage    = "drive_storage"
	EntitlementMessagesStorage = "messages_storage"
)

// Entitlement is a stored quota/permission rule scoped to a subscription, an
// account type and optionally one account. A nil AccountID makes the row the
// default rule for its account type.
type Entitlement struct {
	ID                    string         `json:"id" db:"id"`
	ServiceSubscriptionID string         `json:"service_subscription_id" db:"service_subscription_id"`
	Type                  string         `json:"type" db:"type"`
	AccountType           string         `json:"account_type" db:"account_type"`
	AccountID             *string        `json:"account_id,omitempty" db:"account_id"`
	Config                map[string]any `json:"config" db:"config"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at" db:"updated_at"`
}

// MaxStorage returns the storage limit in bytes. Zero (or an absent key)
// means unlimited.
func (e *Entitlement) MaxStorage() int64 {
	if v, ok := asInt64(e.Config["max_storage"]); ok {
		return v
	}
	return 0
}
