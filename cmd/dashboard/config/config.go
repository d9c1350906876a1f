// Package config parses the dashboard configuration from command-line flags
// with environment variable fallbacks.
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
//
// Adapter specific settings can also be passed as ADAPTER_* environment
// variables; ADAPTER_HISTORY_PATH becomes the historyPath key handed to
// adapters.New.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ecoaily/gridinsight/pkg/adapters"
	"github.com/ecoaily/gridinsight/pkg/advice"
	"github.com/ecoaily/gridinsight/pkg/storage"
	"github.com/ecoaily/gridinsight/pkg/tls"
)

// Config holds all dashboard configuration.
type Config struct {
	Listen      string
	GRPCListen  string
	LogFormat   string
	LogLevel    string
	CORSOrigins []string

	Storage        string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	CacheTTL       time.Duration
	CacheRetention time.Duration
	TLS            tls.Config

	Adapter         string
	AdapterConfig   map[string]string
	APIURL          string
	APIKey          string
	Zone            string
	Zones           []string
	RequestTimeout  time.Duration
	RefreshInterval time.Duration
	Quantity        float64

	Classifier   string
	ArtifactsDir string
	BYOMURL      string
}

// ParseFlags parses command-line flags and environment variables into a Config.
func ParseFlags() *Config {
	cfg := &Config{}
	var corsOrigins, zones string

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")
	flag.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ":50051"), "gRPC listen address (empty disables gRPC)")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.StringVar(&corsOrigins, "cors-origins", getEnv("CORS_ORIGINS", "*"), "Comma separated origins allowed to call the API")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "History cache backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", getEnvDuration("CACHE_TTL", 5*time.Minute), "How long a fetched history payload is fresh")
	flag.DurationVar(&cfg.CacheRetention, "cache-retention", getEnvDuration("CACHE_RETENTION", 24*time.Hour), "How long payloads are kept for stale fallback")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Serve HTTP and gRPC over TLS")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "CA file for client certificate verification")

	flag.StringVar(&cfg.Adapter, "adapter", getEnv("ADAPTER", "electricitymaps"), "Upstream adapter: electricitymaps or http")
	flag.StringVar(&cfg.APIURL, "api-url", getEnv("API_URL", adapters.DefaultElectricityMapsURL), "Upstream API base URL")
	flag.StringVar(&cfg.APIKey, "api-key", getEnv("ELECTRICITYMAP_API_KEY", ""), "ElectricityMaps API token")
	flag.StringVar(&cfg.Zone, "zone", getEnv("ZONE", "PT"), "Default grid zone")
	flag.StringVar(&zones, "zones", getEnv("ZONES", ""), "Comma separated zones kept warm by the refresher (default: zone)")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", getEnvDuration("REQUEST_TIMEOUT", 10*time.Second), "Upstream and model request timeout")
	flag.DurationVar(&cfg.RefreshInterval, "refresh-interval", getEnvDuration("REFRESH_INTERVAL", 5*time.Minute), "Refresher interval (0 disables)")
	flag.Float64Var(&cfg.Quantity, "quantity", getEnvFloat("DEFAULT_QUANTITY", advice.DefaultQuantity), "Default energy quantity in kWh")

	flag.StringVar(&cfg.Classifier, "classifier", getEnv("CLASSIFIER", "local"), "Classifier: local or byom")
	flag.StringVar(&cfg.ArtifactsDir, "artifacts-dir", getEnv("ARTIFACTS_DIR", "./artifacts"), "Directory holding <metric>.json artifacts")
	flag.StringVar(&cfg.BYOMURL, "byom-url", getEnv("BYOM_URL", ""), "Model service URL (required when classifier=byom)")

	flag.Parse()

	cfg.CORSOrigins = splitList(corsOrigins)
	cfg.Zones = splitList(zones)
	if len(cfg.Zones) == 0 {
		cfg.Zones = []string{cfg.Zone}
	}
	cfg.AdapterConfig = parseAdapterConfig(os.Environ())

	return cfg
}

// Validate checks the configuration for values the dashboard cannot run with.
func (c *Config) Validate() error {
	switch c.Storage {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid storage %q (must be memory or redis)", c.Storage)
	}

	switch c.Classifier {
	case "local":
	case "byom":
		if c.BYOMURL == "" {
			return errors.New("byom-url is required when classifier=byom")
		}
	default:
		return fmt.Errorf("invalid classifier %q (must be local or byom)", c.Classifier)
	}

	if c.CacheTTL <= 0 {
		return errors.New("cache-ttl must be > 0")
	}
	if c.Storage == "memory" && c.CacheRetention < c.CacheTTL {
		return fmt.Errorf("cache-retention (%v) must not be shorter than cache-ttl (%v)", c.CacheRetention, c.CacheTTL)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request-timeout must be > 0")
	}
	if c.RefreshInterval < 0 {
		return errors.New("refresh-interval cannot be negative")
	}

	for _, zone := range append([]string{c.Zone}, c.Zones...) {
		key := storage.Key{Dataset: adapters.DatasetCarbonIntensity, Zone: zone}
		if err := key.Validate(); err != nil {
			return fmt.Errorf("invalid zone %q", zone)
		}
	}

	if err := advice.ValidateQuantity(c.Quantity); err != nil {
		return err
	}

	return c.TLS.Validate()
}

// AdapterSettings is the adapters.New configuration for one dataset.
// ADAPTER_* variables override the values derived from flags.
func (c *Config) AdapterSettings(dataset string) map[string]string {
	settings := map[string]string{
		"dataset": dataset,
		"url":     c.APIURL,
		"timeout": c.RequestTimeout.String(),
	}
	if c.APIKey != "" {
		settings["apiKey"] = c.APIKey
	}
	for k, v := range c.AdapterConfig {
		settings[k] = v
	}
	return settings
}

// parseAdapterConfig turns ADAPTER_* variables into lower camel case keys:
// ADAPTER_HISTORY_PATH=data.history becomes historyPath.
func parseAdapterConfig(environ []string) map[string]string {
	config := make(map[string]string)
	for _, env := range environ {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, "ADAPTER_") || name == "ADAPTER_" {
			continue
		}
		config[toLowerCamelCase(strings.TrimPrefix(name, "ADAPTER_"))] = value
	}
	return config
}

func toLowerCamelCase(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			p = strings.ToUpper(p[:1]) + p[1:]
		}
		b.WriteString(p)
	}
	return b.String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
