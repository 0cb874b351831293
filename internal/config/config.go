package config

import (
	"fmt"
	"os"
)

type Config struct {
	DatabaseURL     string
	TemporalAddress string
	HTTPListenAddr  string
	// MetricsAddr exposes worker Prometheus metrics; empty disables the
	// listener.
	MetricsAddr string
	LogLevel    string
	ServiceName     string
	// ScrapeTaskQueue is the temporal task queue the worker listens on for
	// metric scraping and subscription event workflows.
	ScrapeTaskQueue string
	// ScrapeCron is the temporal cron expression for the periodic
	// scrape of all active services.
	ScrapeCron string
	// S3 object store for CSV metric exports. S3Endpoint empty means the
	// AWS default endpoint resolution.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		TemporalAddress: getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:  getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:     getEnv("METRICS_ADDR", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ServiceName:     getEnv("SERVICE_NAME", "deploycenter"),
		ScrapeTaskQueue: getEnv("SCRAPE_TASK_QUEUE", "deploycenter-tasks"),
		ScrapeCron:      getEnv("SCRAPE_CRON", "0 */6 * * *"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
	}

	return cfg, nil
}

// Validate checks that the config carries everything the given component
// needs to start.
func (c *Config) Validate(component string) error {
	switch component {
	case "api", "worker":
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s: DATABASE_URL is required", component)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
