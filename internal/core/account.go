package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/deploycenter/internal/model"
	"github.com/edvin/deploycenter/internal/platform"
)

const accountColumns = `id, organization_id, type, external_id, email, name, roles, created_at, updated_at`

// AccountService manages account rows and their per-service role links.
type AccountService struct {
	db  DB
	log zerolog.Logger
}

func NewAccountService(db DB, log zerolog.Logger) *AccountService {
	return &AccountService{db: db, log: log}
}

func scanAccount(row interface{ Scan(dest ...any) error }) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.OrganizationID, &a.Type, &a.ExternalID, &a.Email, &a.Name,
		&a.Roles, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AccountService) Create(ctx context.Context, account *model.Account) error {
	if account.ExternalID == "" && account.Email == "" {
		return validationError(CodeInvalidIdentifier, "account requires an external id or an email")
	}
	if account.ID == "" {
		account.ID = platform.NewID()
	}
	if account.Roles == nil {
		account.Roles = []string{}
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := s.db.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.ID, account.OrganizationID, account.Type, account.ExternalID, account.Email,
		account.Name, account.Roles, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *AccountService) GetByID(ctx context.Context, id string) (*model.Account, error) {
	account, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return account, nil
}

func (s *AccountService) findByExternalID(ctx context.Context, orgID, accountType, externalID string) (*model.Account, error) {
	return scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE organization_id = $1 AND type = $2 AND external_id = $3`,
		orgID, accountType, externalID))
}

func (s *AccountService) findByEmail(ctx context.Context, orgID, accountType, email string) (*model.Account, error) {
	return scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE organization_id = $1 AND type = $2 AND LOWER(email) = LOWER($3)`,
		orgID, accountType, email))
}

// Find resolves an account inside an organization by external id first, then
// by email. Returns a not-found error when neither matches.
func (s *AccountService) Find(ctx context.Context, orgID, accountType, externalID, email string) (*model.Account, error) {
	if externalID != "" {
		account, err := s.findByExternalID(ctx, orgID, accountType, externalID)
		if err == nil {
			return account, nil
		}
		if !IsNotFound(err) {
			return nil, fmt.Errorf("find account by external id: %w", err)
		}
	}
	if email != "" {
		account, err := s.findByEmail(ctx, orgID, accountType, email)
		if err != nil {
			if IsNotFound(err) {
				return nil, fmt.Errorf("find account %s/%s: %w", accountType, email, err)
			}
			return nil, fmt.Errorf("find account by email: %w", err)
		}
		return account, nil
	}
	return nil, fmt.Errorf("find account %s/%s: %w", accountType, externalID, errNotFound())
}

// GetOrCreate resolves an account by (organization, type, external id), falling
// back to an email match and finally creating the row. With reconcile set the
// caller asserts a trusted source: a blank external id on the email match is
// backfilled; a conflicting non-blank external id keeps the original and is
// only logged. A unique violation on insert means a concurrent writer won the
// race, so the fresh row is read back instead.
func (s *AccountService) GetOrCreate(ctx context.Context, orgID, accountType, externalID, email string, reconcile bool) (*model.Account, error) {
	if externalID != "" {
		account, err := s.findByExternalID(ctx, orgID, accountType, externalID)
		if err == nil {
			return account, nil
		}
		if !IsNotFound(err) {
			return nil, fmt.Errorf("find account by external id: %w", err)
		}
	}

	if email != "" {
		account, err := s.findByEmail(ctx, orgID, accountType, email)
		if err == nil {
			if reconcile && externalID != "" {
				if account.ExternalID == "" {
					if err := s.setExternalID(ctx, account.ID, externalID); err != nil {
						return nil, err
					}
					account.ExternalID = externalID
				} else if account.ExternalID != externalID {
					s.log.Warn().
						Str("account_id", account.ID).
						Str("existing_external_id", account.ExternalID).
						Str("incoming_external_id", externalID).
						Msg("account external id conflict during reconciliation, keeping original")
				}
			}
			return account, nil
		}
		if !IsNotFound(err) {
			return nil, fmt.Errorf("find account by email: %w", err)
		}
	}

	account := &model.Account{
		OrganizationID: orgID,
		Type:           accountType,
		ExternalID:     externalID,
		Email:          email,
	}
	if err := s.Create(ctx, account); err != nil {
		if IsUniqueViolation(err) {
			return s.rereadAfterRace(ctx, orgID, accountType, externalID, email)
		}
		return nil, err
	}
	return account, nil
}

func (s *AccountService) rereadAfterRace(ctx context.Context, orgID, accountType, externalID, email string) (*model.Account, error) {
	if externalID != "" {
		if account, err := s.findByExternalID(ctx, orgID, accountType, externalID); err == nil {
			return account, nil
		}
	}
	if email != "" {
		if account, err := s.findByEmail(ctx, orgID, accountType, email); err == nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("reread account %s/%s after conflicting insert: %w", accountType, externalID, errNotFound())
}

func (s *AccountService) setExternalID(ctx context.Context, id, externalID string) error {
	_, err := s.db.Exec(ctx,
		"UPDATE accounts SET external_id = $1, updated_at = now() WHERE id = $2",
		externalID, id)
	if err != nil {
		if IsUniqueViolation(err) {
			s.log.Warn().Str("account_id", id).Str("external_id", externalID).
				Msg("account external id already taken, keeping original")
			return nil
		}
		return fmt.Errorf("set external id on account %s: %w", id, err)
	}
	return nil
}

func (s *AccountService) ListByOrganization(ctx context.Context, orgID string, limit int, cursor string) ([]model.Account, bool, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE organization_id = $1`
	args := []any{orgID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}
	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list accounts for organization %s: %w", orgID, err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate accounts: %w", err)
	}

	hasMore := len(accounts) > limit
	if hasMore {
		accounts = accounts[:limit]
	}
	return accounts, hasMore, nil
}

func (s *AccountService) Update(ctx context.Context, account *model.Account) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE accounts SET external_id = $1, email = $2, name = $3, roles = $4, updated_at = now()
		 WHERE id = $5`,
		account.ExternalID, account.Email, account.Name, account.Roles, account.ID,
	)
	if err != nil {
		return fmt.Errorf("update account %s: %w", account.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", account.ID)
	}
	return nil
}

func (s *AccountService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

// ---------- Service links ----------

const accountServiceLinkColumns = `id, account_id, service_id, roles, scope, created_at, updated_at`

func scanAccountServiceLink(row interface{ Scan(dest ...any) error }) (*model.AccountServiceLink, error) {
	var l model.AccountServiceLink
	err := row.Scan(&l.ID, &l.AccountID, &l.ServiceID, &l.Roles, &l.Scope, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetServiceLink returns the per-service role link for an account, or a
// not-found error when the account has no roles on that service.
func (s *AccountService) GetServiceLink(ctx context.Context, accountID string, serviceID int64) (*model.AccountServiceLink, error) {
	link, err := scanAccountServiceLink(s.db.QueryRow(ctx,
		`SELECT `+accountServiceLinkColumns+` FROM account_service_links
		 WHERE account_id = $1 AND service_id = $2`,
		accountID, serviceID))
	if err != nil {
		return nil, fmt.Errorf("get service link for account %s on service %d: %w", accountID, serviceID, err)
	}
	return link, nil
}

// UpsertServiceLink creates or replaces the per-service roles of an account.
func (s *AccountService) UpsertServiceLink(ctx context.Context, link *model.AccountServiceLink) error {
	if link.ID == "" {
		link.ID = platform.NewID()
	}
	if link.Roles == nil {
		link.Roles = []string{}
	}
	if link.Scope == nil {
		link.Scope = map[string]any{}
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO account_service_links (id, account_id, service_id, roles, scope, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (account_id, service_id)
		 DO UPDATE SET roles = EXCLUDED.roles, scope = EXCLUDED.scope, updated_at = now()`,
		link.ID, link.AccountID, link.ServiceID, link.Roles, link.Scope,
	)
	if err != nil {
		return fmt.Errorf("upsert service link for account %s on service %d: %w", link.AccountID, link.ServiceID, err)
	}
	return nil
}

// AdminMatch pairs an account holding an admin role with the service link that
// granted it, if the grant came from a link rather than organization roles.
type AdminMatch struct {
	Account model.Account
	Link    *model.AccountServiceLink
}

// FindAdminMatches returns every account across all organizations matching the
// given external id or email (case-insensitive) that holds an admin role
// either on its organization roles or on its link to the given service.
func (s *AccountService) FindAdminMatches(ctx context.Context, serviceID int64, externalID, email string) ([]AdminMatch, error) {
	rows, err := s.db.Query(ctx,
		`SELECT a.id, a.organization_id, a.type, a.external_id, a.email, a.name, a.roles, a.created_at, a.updated_at,
		        l.id, l.roles, l.scope
		 FROM accounts a
		 LEFT JOIN account_service_links l ON l.account_id = a.id AND l.service_id = $1
		 WHERE (($2 != '' AND a.external_id = $2) OR ($3 != '' AND LOWER(a.email) = LOWER($3)))
		   AND ($4 = ANY(a.roles) OR $4 = ANY(COALESCE(l.roles, '{}')))
		 ORDER BY a.id`,
		serviceID, externalID, email, model.RoleAdmin,
	)
	if err != nil {
		return nil, fmt.Errorf("find admin matches for service %d: %w", serviceID, err)
	}
	defer rows.Close()

	var matches []AdminMatch
	for rows.Next() {
		var m AdminMatch
		var linkID *string
		var linkRoles []string
		var linkScope map[string]any
		if err := rows.Scan(&m.Account.ID, &m.Account.OrganizationID, &m.Account.Type,
			&m.Account.ExternalID, &m.Account.Email, &m.Account.Name, &m.Account.Roles,
			&m.Account.CreatedAt, &m.Account.UpdatedAt,
			&linkID, &linkRoles, &linkScope); err != nil {
			return nil, fmt.Errorf("scan admin match: %w", err)
		}
		if linkID != nil {
			m.Link = &model.AccountServiceLink{
				ID:        *linkID,
				AccountID: m.Account.ID,
				ServiceID: serviceID,
				Roles:     linkRoles,
				Scope:     linkScope,
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin matches: %w", err)
	}
	return matches, nil
}
