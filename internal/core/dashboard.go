package core

import (
	"context"
	"fmt"
)

// DashboardStats holds aggregate counts from the platform database.
type DashboardStats struct {
	Organizations       int `json:"organizations"`
	Operators           int `json:"operators"`
	OperatorsActive     int `json:"operators_active"`
	Services            int `json:"services"`
	ServicesActive      int `json:"services_active"`
	Subscriptions       int `json:"subscriptions"`
	SubscriptionsActive int `json:"subscriptions_active"`
	Accounts            int `json:"accounts"`
	Entitlements        int `json:"entitlements"`
	Metrics             int `json:"metrics"`

	OrganizationsByType     []TypeCount                `json:"organizations_by_type"`
	SubscriptionsPerService []ServiceSubscriptionCount `json:"subscriptions_per_service"`
}

// TypeCount holds a count grouped by type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ServiceSubscriptionCount holds active subscription count per service.
type ServiceSubscriptionCount struct {
	ServiceID   int64  `json:"service_id"`
	ServiceName string `json:"service_name"`
	Count       int    `json:"count"`
}

// DashboardService queries aggregate stats from the platform DB.
type DashboardService struct {
	db DB
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(db DB) *DashboardService {
	return &DashboardService{db: db}
}

// Stats returns aggregate counts from the platform database using a single
// query with CTEs for efficiency.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	const countsQuery = `
		WITH organization_count AS (
			SELECT count(*) AS c FROM organizations
		), operator_count AS (
			SELECT count(*) AS c FROM operators
		), operator_active AS (
			SELECT count(*) AS c FROM operators WHERE is_active
		), service_count AS (
			SELECT count(*) AS c FROM services
		), service_active AS (
			SELECT count(*) AS c FROM services WHERE is_active
		), subscription_count AS (
			SELECT count(*) AS c FROM service_subscriptions
		), subscription_active AS (
			SELECT count(*) AS c FROM service_subscriptions WHERE is_active
		), account_count AS (
			SELECT count(*) AS c FROM accounts
		), entitlement_count AS (
			SELECT count(*) AS c FROM entitlements
		), metric_count AS (
			SELECT count(*) AS c FROM metrics
		)
		SELECT
			(SELECT c FROM organization_count),
			(SELECT c FROM operator_count),
			(SELECT c FROM operator_active),
			(SELECT c FROM service_count),
			(SELECT c FROM service_active),
			(SELECT c FROM subscription_count),
			(SELECT c FROM subscription_active),
			(SELECT c FROM account_count),
			(SELECT c FROM entitlement_count),
			(SELECT c FROM metric_count)`

	stats := &DashboardStats{}
	err := s.db.QueryRow(ctx, countsQuery).Scan(
		&stats.Organizations,
		&stats.Operators,
		&stats.OperatorsActive,
		&stats.Services,
		&stats.ServicesActive,
		&stats.Subscriptions,
		&stats.SubscriptionsActive,
		&stats.Accounts,
		&stats.Entitlements,
		&stats.Metrics,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}

	// Organizations by type
	obtRows, err := s.db.Query(ctx,
		`SELECT type, count(*) FROM organizations GROUP BY type ORDER BY count(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("dashboard organizations by type: %w", err)
	}
	defer obtRows.Close()

	for obtRows.Next() {
		var tc TypeCount
		if err := obtRows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		stats.OrganizationsByType = append(stats.OrganizationsByType, tc)
	}
	if err := obtRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type counts: %w", err)
	}

	// Active subscriptions per service
	spsRows, err := s.db.Query(ctx,
		`SELECT s.id, s.name, count(sub.id)
		 FROM services s LEFT JOIN service_subscriptions sub ON sub.service_id = s.id AND sub.is_active
		 GROUP BY s.id, s.name
		 ORDER BY count(sub.id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("dashboard subscriptions per service: %w", err)
	}
	defer spsRows.Close()

	for spsRows.Next() {
		var sc ServiceSubscriptionCount
		if err := spsRows.Scan(&sc.ServiceID, &sc.ServiceName, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan service subscription count: %w", err)
		}
		stats.SubscriptionsPerService = append(stats.SubscriptionsPerService, sc)
	}
	if err := spsRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service subscription counts: %w", err)
	}

	return stats, nil
}
