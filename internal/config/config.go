// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Storage backends selectable via STORAGE_BACKEND.
const (
	BackendS3    = "s3"
	BackendGCS   = "gcs"
	BackendAzure = "azure"
	BackendLocal = "local"
)

// StorageConfig holds object-store connection settings.
type StorageConfig struct {
	Backend string // s3 (default), gcs, azure, local

	// S3 fields are optional. When unset the default AWS credential chain is used.
	S3KeyID        *string
	S3Secret       *string
	S3Endpoint     *string
	S3UsePathStyle bool

	GCSKeyFile       string
	AzureAccountName string
	AzureAccountKey  string
	LocalRoot        string
}

// HasStaticS3Credentials returns true if both static S3 credentials are set.
func (s *StorageConfig) HasStaticS3Credentials() bool {
	return s.S3KeyID != nil && s.S3Secret != nil
}

// Config holds the configuration for the pipeline, its transports and the telemetry producer.
type Config struct {
	Region  string
	Storage StorageConfig

	ConfigBucket       string // bucket holding the lake config document
	ConfigPath         string // key of the lake config document
	RulesBucket        string // bucket holding rule suites (default ConfigBucket)
	RulesPath          string // prefix of rule suites
	TargetBucket       string // destination of Parquet output
	TrustedDatabase    string // catalog database for registered tables
	TrustedBucket      string // bucket named in catalog table locations (default TargetBucket)
	AWSResourcesBucket string // bucket for query-engine results
	DuplicatePolicy    string // reject (default) or first

	DuckDBMaxMemory    string // optional DuckDB memory_limit for staging
	ParquetCompression string // snappy (default), gzip, zstd, lz4, none

	AuditDBPath string // path to SQLite audit trail; empty disables it
	ListenAddr  string // HTTP listen address (default ":8080")
	LogLevel    string // log level: debug, info, warn, error (default "info")
	Env         string // environment: "development" (default) or "production"

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 50)
	RateLimitBurst int     // burst capacity (default 100)

	// Telemetry producer
	QueueName         string
	TelemetrySchedule string // cron spec (default "@every 5s")

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AthenaOutputLocation returns the query results location.
func (c *Config) AthenaOutputLocation() string {
	return fmt.Sprintf("s3://%s/athena/", c.AWSResourcesBucket)
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Region:             firstNonEmpty(os.Getenv("AWS_REGION"), os.Getenv("AWS_DEFAULT_REGION")),
		ConfigBucket:       os.Getenv("CONFIG_BUCKET"),
		ConfigPath:         os.Getenv("CONFIG_PATH"),
		RulesBucket:        os.Getenv("RULES_BUCKET"),
		RulesPath:          firstNonEmpty(os.Getenv("RULES_PATH"), os.Getenv("GE_PATH")),
		TargetBucket:       os.Getenv("TARGET_BUCKET"),
		TrustedDatabase:    os.Getenv("TRUSTED_DATABASE"),
		TrustedBucket:      os.Getenv("TRUSTED_BUCKET"),
		AWSResourcesBucket: os.Getenv("AWS_RESOURCES_BUCKET"),
		DuplicatePolicy:    strings.ToLower(strings.TrimSpace(os.Getenv("DUPLICATE_POLICY"))),
		DuckDBMaxMemory:    os.Getenv("DUCKDB_MAX_MEMORY"),
		ParquetCompression: strings.ToLower(strings.TrimSpace(os.Getenv("PARQUET_COMPRESSION"))),
		AuditDBPath:        os.Getenv("AUDIT_DB_PATH"),
		ListenAddr:         os.Getenv("LISTEN_ADDR"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		Env:                os.Getenv("ENV"),
		QueueName:          os.Getenv("QUEUE_NAME"),
		TelemetrySchedule:  os.Getenv("TELEMETRY_SCHEDULE"),
	}

	cfg.Storage = StorageConfig{
		Backend:          strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_BACKEND"))),
		S3UsePathStyle:   parseBoolEnvDefault("S3_USE_PATH_STYLE", false),
		GCSKeyFile:       os.Getenv("GCS_KEY_FILE"),
		AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
		LocalRoot:        os.Getenv("LOCAL_STORAGE_ROOT"),
	}
	if v := os.Getenv("S3_KEY_ID"); v != "" {
		cfg.Storage.S3KeyID = &v
	}
	if v := os.Getenv("S3_SECRET"); v != "" {
		cfg.Storage.S3Secret = &v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Storage.S3Endpoint = &v
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// Defaults
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendS3
	}
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = "config/lake.json"
	}
	if cfg.RulesBucket == "" {
		cfg.RulesBucket = cfg.ConfigBucket
	}
	if cfg.RulesPath == "" {
		cfg.RulesPath = "great_expectations/expectations"
	}
	if cfg.TrustedBucket == "" {
		cfg.TrustedBucket = cfg.TargetBucket
	}
	if cfg.DuplicatePolicy == "" {
		cfg.DuplicatePolicy = "reject"
	}
	if cfg.ParquetCompression == "" {
		cfg.ParquetCompression = "snappy"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 100
	}
	if cfg.TelemetrySchedule == "" {
		cfg.TelemetrySchedule = "@every 5s"
	}

	switch cfg.Storage.Backend {
	case BackendS3, BackendGCS, BackendAzure, BackendLocal:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q (want s3, gcs, azure or local)", cfg.Storage.Backend)
	}
	if cfg.DuplicatePolicy != "reject" && cfg.DuplicatePolicy != "first" {
		return nil, fmt.Errorf("unsupported DUPLICATE_POLICY %q (want reject or first)", cfg.DuplicatePolicy)
	}
	if (cfg.Storage.S3KeyID == nil) != (cfg.Storage.S3Secret == nil) {
		return nil, fmt.Errorf("both S3_KEY_ID and S3_SECRET must be set together")
	}
	if cfg.Storage.Backend == BackendAzure && (cfg.Storage.AzureAccountName == "" || cfg.Storage.AzureAccountKey == "") {
		return nil, fmt.Errorf("AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY are required for the azure backend")
	}
	if cfg.Storage.Backend == BackendLocal && cfg.Storage.LocalRoot == "" {
		cfg.Storage.LocalRoot = "./data"
		cfg.Warnings = append(cfg.Warnings, "LOCAL_STORAGE_ROOT not set, using ./data")
	}

	if cfg.ConfigBucket == "" {
		cfg.Warnings = append(cfg.Warnings, "CONFIG_BUCKET not set, ingestion and catalog sync will fail")
	}
	if cfg.TargetBucket == "" {
		cfg.Warnings = append(cfg.Warnings, "TARGET_BUCKET not set, ingestion will fail")
	}
	if cfg.AuditDBPath == "" {
		cfg.Warnings = append(cfg.Warnings, "AUDIT_DB_PATH not set, audit trail disabled")
	}

	// Production mode: missing buckets are fatal errors.
	if cfg.IsProduction() {
		for _, req := range []struct{ name, val string }{
			{"CONFIG_BUCKET", cfg.ConfigBucket},
			{"TARGET_BUCKET", cfg.TargetBucket},
			{"TRUSTED_DATABASE", cfg.TrustedDatabase},
			{"AWS_RESOURCES_BUCKET", cfg.AWSResourcesBucket},
		} {
			if req.val == "" {
				return nil, fmt.Errorf("%s must be set in production (ENV=production)", req.name)
			}
		}
		if cfg.Storage.Backend == BackendLocal {
			return nil, fmt.Errorf("STORAGE_BACKEND=local is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
