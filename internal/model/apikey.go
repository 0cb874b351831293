package model

import "time"

// APIKey authenticates an external caller of the platform API. A key may be
// bound to one operator; superuser keys may override guarded fields such as
// ProConnect domains.
type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix,omitempty"`
	OperatorID *string    `json:"operator_id,omitempty"`
	Superuser  bool       `json:"superuser"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}
