package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsConfig(t *testing.T) {
	svc := &Service{Config: map[string]any{
		"metrics_endpoint":       "https://drive.example.org/api/metrics",
		"usage_metrics_endpoint": "https://drive.example.org/api/usage",
		"metrics_auth_token":     "token-1",
		"metrics_csv":            "s3://exports/drive.csv",
		"metrics_csv_delimiter":  ";",
		"metrics_csv_mapping": map[string]any{
			"SIRET":    "siret",
			"Stockage": "storage_used",
		},
	}}

	mc := svc.Metrics()
	assert.Equal(t, "https://drive.example.org/api/metrics", mc.Endpoint)
	assert.Equal(t, "https://drive.example.org/api/usage", mc.UsageEndpoint)
	assert.Equal(t, "token-1", mc.AuthToken)
	assert.Equal(t, "s3://exports/drive.csv", mc.CSV)
	assert.Equal(t, ";", mc.CSVDelimiter)
	assert.Equal(t, "siret", mc.CSVMapping["SIRET"])
}

func TestMetricsConfig_Defaults(t *testing.T) {
	mc := (&Service{}).Metrics()
	assert.Empty(t, mc.Endpoint)
	assert.Equal(t, ",", mc.CSVDelimiter)
	assert.Nil(t, mc.CSVMapping)
}

func TestPopulationLimits(t *testing.T) {
	svc := &Service{Config: map[string]any{
		"population_limits": map[string]any{
			"commune": float64(3500),
			"epci":    50000,
		},
	}}

	pl := svc.PopulationLimits()
	require.NotNil(t, pl.Commune)
	assert.Equal(t, int64(3500), *pl.Commune)
	require.NotNil(t, pl.EPCI)
	assert.Equal(t, int64(50000), *pl.EPCI)
}

func TestPopulationLimits_Unset(t *testing.T) {
	pl := (&Service{Config: map[string]any{}}).PopulationLimits()
	assert.Nil(t, pl.Commune)
	assert.Nil(t, pl.EPCI)
}

func TestAutoAdminPopulationThreshold(t *testing.T) {
	svc := &Service{Config: map[string]any{"auto_admin_population_threshold": float64(10000)}}
	assert.Equal(t, int64(10000), svc.AutoAdminPopulationThreshold())

	assert.Equal(t, DefaultAutoAdminPopulationThreshold, (&Service{}).AutoAdminPopulationThreshold())
}

func TestWebhookConfigs(t *testing.T) {
	svc := &Service{Config: map[string]any{
		"webhooks": []any{
			map[string]any{"url": "https://hooks.example.org/a"},
			"not a map",
			map[string]any{"url": "https://hooks.example.org/b"},
		},
	}}

	configs := svc.WebhookConfigs()
	require.Len(t, configs, 2)
	assert.Equal(t, "https://hooks.example.org/a", configs[0]["url"])

	assert.Nil(t, (&Service{}).WebhookConfigs())
}
