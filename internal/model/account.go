package model

import "time"

// Account types. Entitlements additionally use "organization" as an account
// type to scope organization-wide rules.
const (
	AccountTypeUser         = "user"
	AccountTypeMailbox      = "mailbox"
	AccountTypeOrganization = "organization"
)

const RoleAdmin = "admin"

// Account is an end-user or mailbox identity inside an organization for a
// given service ecosystem. Rows are created implicitly by metric ingestion
// or explicitly through the API.
type Account struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Type           string    `json:"type" db:"type"`
	ExternalID     string    `json:"external_id" db:"external_id"`
	Email          string    `json:"email" db:"email"`
	Name           string    `json:"name" db:"name"`
	Roles          []string  `json:"roles" db:"roles"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

func (a *Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AccountServiceLink carries per-service roles for an account, with an
// optional scope restricting what the roles apply to.
type AccountServiceLink struct {
	ID        string         `json:"id" db:"id"`
	AccountID string         `json:"account_id" db:"account_id"`
	ServiceID int64          `json:"service_id" db:"service_id"`
	Roles     []string       `json:"roles" db:"roles"`
	Scope     map[string]any `json:"scope" db:"scope"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

func (l *AccountServiceLink) HasRole(role string) bool {
	for _, r := range l.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ScopeDomains returns the domain restriction from the link scope. An empty
// result means the link is unrestricted.
func (l *AccountServiceLink) ScopeDomains() []string {
	raw, ok := l.Scope["domains"].([]any)
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
