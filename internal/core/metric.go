package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/deploycenter/internal/model"
	"github.com/edvin/deploycenter/internal/platform"
)

// MetricEntry is one observation handed to UpsertMetrics. An empty
// AccountType/AccountID pair scopes the metric to the whole organization.
type MetricEntry struct {
	Key          string
	Value        float64
	AccountType  string
	AccountID    string
	AccountEmail string
}

// MetricService persists usage observations with latest-wins semantics.
type MetricService struct {
	db       DB
	accounts *AccountService
	log      zerolog.Logger
}

func NewMetricService(db DB, accounts *AccountService, log zerolog.Logger) *MetricService {
	return &MetricService{db: db, accounts: accounts, log: log}
}

// UpsertMetrics writes a batch of observations for one organization under one
// service. Account-scoped entries resolve or create their account first;
// reconcile marks the batch as coming from a trusted source, allowing blank
// external ids to be backfilled from email matches. The metric writes are
// atomic per call; separate calls are independent.
func (s *MetricService) UpsertMetrics(ctx context.Context, serviceID int64, orgID string, entries []MetricEntry, reconcile bool) error {
	type resolved struct {
		entry     MetricEntry
		accountID *string
	}

	resolvedEntries := make([]resolved, 0, len(entries))
	for _, entry := range entries {
		r := resolved{entry: entry}
		if entry.AccountType != "" && (entry.AccountID != "" || entry.AccountEmail != "") {
			account, err := s.accounts.GetOrCreate(ctx, orgID, entry.AccountType, entry.AccountID, entry.AccountEmail, reconcile)
			if err != nil {
				return fmt.Errorf("resolve account for metric %s: %w", entry.Key, err)
			}
			r.accountID = &account.ID
		}
		resolvedEntries = append(resolvedEntries, r)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin metric upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for _, r := range resolvedEntries {
		_, err := tx.Exec(ctx,
			`INSERT INTO metrics (id, service_id, organization_id, account_id, key, value, timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (service_id, organization_id, COALESCE(account_id, ''), key)
			 DO UPDATE SET value = EXCLUDED.value, timestamp = EXCLUDED.timestamp
			 WHERE EXCLUDED.timestamp >= metrics.timestamp`,
			platform.NewID(), serviceID, orgID, r.accountID, r.entry.Key, r.entry.Value, now,
		)
		if err != nil {
			return fmt.Errorf("upsert metric %s: %w", r.entry.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit metric upsert: %w", err)
	}

	s.log.Debug().
		Int64("service_id", serviceID).
		Str("organization_id", orgID).
		Int("entries", len(entries)).
		Msg("metrics upserted")
	return nil
}

const metricColumns = `id, service_id, organization_id, account_id, key, value, timestamp`

func scanMetric(row interface{ Scan(dest ...any) error }) (*model.Metric, error) {
	var m model.Metric
	err := row.Scan(&m.ID, &m.ServiceID, &m.OrganizationID, &m.AccountID, &m.Key, &m.Value, &m.Timestamp)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// LatestOrganizationMetric returns the organization-scoped observation for a
// key, or a not-found error when nothing has been ingested yet.
func (s *MetricService) LatestOrganizationMetric(ctx context.Context, serviceID int64, orgID, key string) (*model.Metric, error) {
	m, err := scanMetric(s.db.QueryRow(ctx,
		`SELECT `+metricColumns+` FROM metrics
		 WHERE service_id = $1 AND organization_id = $2 AND account_id IS NULL AND key = $3`,
		serviceID, orgID, key))
	if err != nil {
		return nil, fmt.Errorf("get organization metric %s for service %d: %w", key, serviceID, err)
	}
	return m, nil
}

// LatestAccountMetric returns the account-scoped observation for a key.
func (s *MetricService) LatestAccountMetric(ctx context.Context, serviceID int64, accountID, key string) (*model.Metric, error) {
	m, err := scanMetric(s.db.QueryRow(ctx,
		`SELECT `+metricColumns+` FROM metrics
		 WHERE service_id = $1 AND account_id = $2 AND key = $3`,
		serviceID, accountID, key))
	if err != nil {
		return nil, fmt.Errorf("get account metric %s for service %d: %w", key, serviceID, err)
	}
	return m, nil
}

// ListByOrganization returns every stored observation for an organization,
// optionally restricted to one service.
func (s *MetricService) ListByOrganization(ctx context.Context, orgID string, serviceID int64) ([]model.Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM metrics WHERE organization_id = $1`
	args := []any{orgID}
	if serviceID != 0 {
		query += ` AND service_id = $2`
		args = append(args, serviceID)
	}
	query += ` ORDER BY service_id, key, account_id NULLS FIRST`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list metrics for organization %s: %w", orgID, err)
	}
	defer rows.Close()

	var metrics []model.Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}
	return metrics, nil
}
