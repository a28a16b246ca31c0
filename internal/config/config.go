package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

const DefaultAPIURL = "http://www.kamis.or.kr/service/price/xml.do"

var ErrMissingCredentials = errors.New("KAMIS_CERT_KEY and KAMIS_CERT_ID must be set")

type Config struct {
	CertKey string
	CertID  string
	APIURL  string

	DatabaseURL string
	OutputDir   string
	CatalogPath string

	Port        string
	Environment string
	LogLevel    string

	CollectWorkers int           // fan-out width for monthly/yearly trend requests
	RequestTimeout time.Duration // per request, independent of retry backoff
}

func Load() *Config {
	return &Config{
		CertKey: getEnv("KAMIS_CERT_KEY", ""),
		CertID:  getEnv("KAMIS_CERT_ID", ""),
		APIURL:  getEnv("KAMIS_API_URL", DefaultAPIURL),

		DatabaseURL: getEnv("DATABASE_URL", "output/kamis_prices.db"),
		OutputDir:   getEnv("OUTPUT_DIR", "output"),
		CatalogPath: getEnv("CATALOG_PATH", "config/catalog.yaml"),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		CollectWorkers: getEnvInt("COLLECT_WORKERS", 10),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
	}
}

// Validate reports missing credentials. Nothing else is mandatory.
func (c *Config) Validate() error {
	if c.CertKey == "" || c.CertID == "" {
		return ErrMissingCredentials
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

// getEnvDuration accepts "45s" style durations or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
