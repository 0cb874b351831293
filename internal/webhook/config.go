package webhook

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 10 * time.Second

var allowedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// Config is one parsed webhook endpoint from a service's config.
type Config struct {
	URL     string
	Method  string
	Body    any
	Headers map[string]any
	Timeout time.Duration
}

// ParseConfigs validates the raw endpoint maps from the service config.
// Invalid entries are logged and dropped so one bad endpoint does not block
// the others.
func ParseConfigs(raw []map[string]any, log zerolog.Logger) []Config {
	configs := make([]Config, 0, len(raw))
	for _, entry := range raw {
		cfg, err := parseConfig(entry)
		if err != nil {
			log.Error().Err(err).Msg("invalid webhook configuration")
			continue
		}
		configs = append(configs, cfg)
	}
	return configs
}

func parseConfig(raw map[string]any) (Config, error) {
	endpoint, _ := raw["url"].(string)
	if endpoint == "" {
		return Config{}, fmt.Errorf("webhook url is required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Config{}, fmt.Errorf("invalid webhook url %q", endpoint)
	}

	cfg := Config{URL: endpoint, Method: "POST", Timeout: defaultTimeout}
	if method, ok := raw["method"].(string); ok && method != "" {
		upper := strings.ToUpper(method)
		if !allowedMethods[upper] {
			return Config{}, fmt.Errorf("unsupported webhook method %q", method)
		}
		cfg.Method = upper
	}
	if body, ok := raw["body"]; ok {
		cfg.Body = body
	}
	if headers, ok := raw["headers"].(map[string]any); ok {
		cfg.Headers = headers
	}
	if seconds, ok := asFloat(raw["timeout"]); ok && seconds > 0 {
		cfg.Timeout = time.Duration(seconds * float64(time.Second))
	}
	return cfg, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
