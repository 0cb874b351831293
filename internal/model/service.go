package model

import "time"

// Service types with dedicated behavior handlers or resolver sets.
const (
	ServiceTypeDrive      = "drive"
	ServiceTypeMessages   = "messages"
	ServiceTypeProConnect = "proconnect"
	ServiceTypeADC        = "adc"
)

// Maturity levels for a service.
const (
	MaturityAlpha      = "alpha"
	MaturityBeta       = "beta"
	MaturityStable     = "stable"
	MaturityDeprecated = "deprecated"
)

// DefaultAutoAdminPopulationThreshold applies when a service does not
// configure auto_admin_population_threshold.
const DefaultAutoAdminPopulationThreshold int64 = 3500

type Service struct {
	ID          int64          `json:"id" db:"id"`
	Type        string         `json:"type" db:"type"`
	Name        string         `json:"name" db:"name"`
	URL         string         `json:"url" db:"url"`
	Description *string        `json:"description,omitempty" db:"description"`
	Maturity    string         `json:"maturity" db:"maturity"`
	LaunchDate  *time.Time     `json:"launch_date,omitempty" db:"launch_date"`
	Config      map[string]any `json:"config" db:"config"`
	IsActive    bool           `json:"is_active" db:"is_active"`
	LogoSVG     []byte         `json:"-" db:"logo_svg"`
	// RequiredServices lists services that must already carry an active
	// subscription for the same organization before this one can activate.
	RequiredServices []int64 `json:"required_services" db:"-"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// MetricsConfig is the typed view over the scraping part of the service
// config map.
type MetricsConfig struct {
	Endpoint      string
	UsageEndpoint string
	AuthToken     string
	CSV           string
	CSVDelimiter  string
	CSVMapping    map[string]string
}

func (s *Service) Metrics() MetricsConfig {
	mc := MetricsConfig{CSVDelimiter: ","}
	if s.Config == nil {
		return mc
	}
	if v, ok := s.Config["metrics_endpoint"].(string); ok {
		mc.Endpoint = v
	}
	if v, ok := s.Config["usage_metrics_endpoint"].(string); ok {
		mc.UsageEndpoint = v
	}
	if v, ok := s.Config["metrics_auth_token"].(string); ok {
		mc.AuthToken = v
	}
	if v, ok := s.Config["metrics_csv"].(string); ok {
		mc.CSV = v
	}
	if v, ok := s.Config["metrics_csv_delimiter"].(string); ok && v != "" {
		mc.CSVDelimiter = v
	}
	if raw, ok := s.Config["metrics_csv_mapping"].(map[string]any); ok {
		mc.CSVMapping = make(map[string]string, len(raw))
		for col, target := range raw {
			if t, ok := target.(string); ok {
				mc.CSVMapping[col] = t
			}
		}
	}
	return mc
}

// PopulationLimits holds the per-org-type activation limits from the service
// config. A nil field means the corresponding sub-check is skipped.
type PopulationLimits struct {
	Commune *int64
	EPCI    *int64
}

func (s *Service) PopulationLimits() PopulationLimits {
	pl := PopulationLimits{}
	raw, ok := s.Config["population_limits"].(map[string]any)
	if !ok {
		return pl
	}
	if v, ok := asInt64(raw["commune"]); ok {
		pl.Commune = &v
	}
	if v, ok := asInt64(raw["epci"]); ok {
		pl.EPCI = &v
	}
	return pl
}

// AutoAdminPopulationThreshold returns the configured threshold under which
// every organization member is treated as admin, or the default.
func (s *Service) AutoAdminPopulationThreshold() int64 {
	if v, ok := asInt64(s.Config["auto_admin_population_threshold"]); ok {
		return v
	}
	return DefaultAutoAdminPopulationThreshold
}

// WebhookConfigs returns the raw webhook endpoint configurations attached to
// the service. Parsing and validation happen in the webhook package.
func (s *Service) WebhookConfigs() []map[string]any {
	raw, ok := s.Config["webhooks"].([]any)
	if !ok {
		return nil
	}
	configs := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			configs = append(configs, m)
		}
	}
	return configs
}

// asInt64 converts JSON-decoded numeric values. JSON numbers decode as
// float64; seeds and tests may carry int or int64.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
