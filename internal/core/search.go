package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// SearchResult represents a single search result across resource types.
type SearchResult struct {
	Type           string `json:"type"`
	ID             string `json:"id"`
	Label          string `json:"label"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// SearchService provides cross-resource search.
type SearchService struct {
	db DB
}

// NewSearchService creates a new SearchService.
func NewSearchService(db DB) *SearchService {
	return &SearchService{db: db}
}

// Search runs parallel queries across resource tables and returns matching
// results. Organizations match on name and administrative codes, accounts on
// email and external id.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	pattern := "%" + query + "%"

	type queryDef struct {
		sql  string
		args []any
	}

	queries := []queryDef{
		{
			sql: `SELECT 'organization', id, name, '' FROM organizations
				WHERE name ILIKE $1 OR siret LIKE $1 OR siren LIKE $1 OR code_insee LIKE $1
				LIMIT $2`,
			args: []any{pattern, limit},
		},
		{
			sql: `SELECT 'operator', id, name, '' FROM operators
				WHERE id ILIKE $1 OR name ILIKE $1
				LIMIT $2`,
			args: []any{pattern, limit},
		},
		{
			sql: `SELECT 'service', id::text, name, '' FROM services
				WHERE name ILIKE $1 OR type ILIKE $1
				LIMIT $2`,
			args: []any{pattern, limit},
		},
		{
			sql: `SELECT 'account', id, COALESCE(NULLIF(email, ''), external_id), organization_id FROM accounts
				WHERE email ILIKE $1 OR external_id ILIKE $1 OR name ILIKE $1
				LIMIT $2`,
			args: []any{pattern, limit},
		},
	}

	results := make([][]SearchResult, len(queries))
	g, ctx := errgroup.WithContext(ctx)

	for i, q := range queries {
		g.Go(func() error {
			rows, err := s.db.Query(ctx, q.sql, q.args...)
			if err != nil {
				return fmt.Errorf("search query %d: %w", i, err)
			}
			defer rows.Close()

			for rows.Next() {
				var r SearchResult
				if err := rows.Scan(&r.Type, &r.ID, &r.Label, &r.OrganizationID); err != nil {
					return fmt.Errorf("scan search result: %w", err)
				}
				results[i] = append(results[i], r)
			}
			return rows.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var all []SearchResult
	for _, batch := range results {
		all = append(all, batch...)
	}
	return all, nil
}
