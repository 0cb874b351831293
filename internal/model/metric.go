package model

import "time"

// Metric keys produced by service scraping.
const MetricKeyStorageUsed = "storage_used"

// Metric is a timestamped numeric observation. One row per
// (service, organization, account, key) — a nil account scopes the metric to
// the whole organization — with the latest observation winning on upsert.
type Metric struct {
	ID             string    `json:"id" db:"id"`
	ServiceID      int64     `json:"service_id" db:"service_id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	AccountID      *string   `json:"account_id,omitempty" db:"account_id"`
	Key            string    `json:"key" db:"key"`
	Value          float64   `json:"value" db:"value"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
}
