// Package config provides service configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or /etc/pedira/config.yaml)
//  3. Default values
//
// Categories:
//   - AI: generation model, embedder model, embedding dimension
//   - Index: index name, Postgres connection for the vector store
//   - Ingest: documents root, chunking, batching, concurrency
//   - Ask: retrieval depth, request deadline, language
//
// Sensitive values (API keys, Postgres password) are masked in MarshalJSON.
// Validation is fail-fast with sentinel errors usable via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingDocumentsRoot indicates no document source directory is set.
	ErrMissingDocumentsRoot = errors.New("missing documents root")

	// ErrInvalidChunking indicates chunk size/overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidRetrieval indicates top_k/fetch_k are out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval parameters")

	// ErrInvalidDeadline indicates the request deadline is out of range.
	ErrInvalidDeadline = errors.New("invalid request deadline")

	// ErrInvalidConcurrency indicates the ingest concurrency is out of range.
	ErrInvalidConcurrency = errors.New("invalid ingest concurrency")

	// ErrInvalidBatchSize indicates the upsert batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrInvalidDimension indicates the embedding dimension is unsupported.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidPostgres indicates the Postgres connection settings are invalid.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")
)

const (
	// DefaultGenModel is the default generation model.
	DefaultGenModel = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default embedding model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the chunks table schema uses vector(768).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedDimension matches the vector column in db/migrations.
	DefaultEmbedDimension = 768

	// MaxUpsertBatch is the hard per-request cap on vectors per upsert.
	MaxUpsertBatch = 100
)

// Config stores service configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; update it when adding
// new secrets.
type Config struct {
	// HTTP surface
	Addr      string `mapstructure:"addr" json:"addr"`
	RateBurst int    `mapstructure:"rate_burst" json:"rate_burst"`

	// AI models
	ModelName      string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel  string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedDimension int    `mapstructure:"embed_dimension" json:"embed_dimension"`
	GenModelKey    string `mapstructure:"gen_model_key" json:"gen_model_key"`     // SENSITIVE
	EmbedModelKey  string `mapstructure:"embed_model_key" json:"embed_model_key"` // SENSITIVE

	// Vector index
	IndexName   string `mapstructure:"index_name" json:"index_name"`
	IndexAPIKey string `mapstructure:"index_api_key" json:"index_api_key"` // SENSITIVE

	// Ingestion
	DocumentsRoot       string `mapstructure:"documents_root" json:"documents_root"`
	IngestConcurrency   int    `mapstructure:"ingest_concurrency" json:"ingest_concurrency"`
	BatchSize           int    `mapstructure:"batch_size" json:"batch_size"`
	ChunkSize           int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap        int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	SettleDelaySeconds  int    `mapstructure:"settle_delay_seconds" json:"settle_delay_seconds"`
	ScanIntervalSeconds int    `mapstructure:"scan_interval_seconds" json:"scan_interval_seconds"`
	RegistryPath        string `mapstructure:"registry_path" json:"registry_path"`

	// Ask pipeline
	TopK                   int    `mapstructure:"top_k" json:"top_k"`
	FetchK                 int    `mapstructure:"fetch_k" json:"fetch_k"`
	RequestDeadlineSeconds int    `mapstructure:"request_deadline_seconds" json:"request_deadline_seconds"`
	Language               string `mapstructure:"language" json:"language"`
	RequireContext         bool   `mapstructure:"require_context" json:"require_context"`
	DisclaimerText         string `mapstructure:"disclaimer_text" json:"disclaimer_text"`

	// Vector store backing database
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability (optional OTLP trace export)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/pedira")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults + env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{".", "/etc/pedira"})
	}

	warnUnknownKeys(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("rate_burst", 60)

	v.SetDefault("model_name", DefaultGenModel)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embed_dimension", DefaultEmbedDimension)

	v.SetDefault("index_name", "pedira-docs")

	v.SetDefault("documents_root", "")
	v.SetDefault("ingest_concurrency", 2)
	v.SetDefault("batch_size", MaxUpsertBatch)
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 150)
	v.SetDefault("settle_delay_seconds", 2)
	v.SetDefault("scan_interval_seconds", 300)
	v.SetDefault("registry_path", "processed_files.json")

	v.SetDefault("top_k", 5)
	v.SetDefault("fetch_k", 20)
	v.SetDefault("request_deadline_seconds", 90)
	v.SetDefault("language", "tr")
	v.SetDefault("require_context", false)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "pedira")
	v.SetDefault("postgres_password", "pedira_dev_password")
	v.SetDefault("postgres_db_name", "pedira")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("service_name", "pedira")
	v.SetDefault("environment", "dev")
}

// bindEnvVariables binds the recognised environment variables.
// GEMINI_API_KEY is read directly by the Genkit googlegenai plugin, not via
// viper; EMBED_MODEL_KEY/GEN_MODEL_KEY override it per model when set.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a programming bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("documents_root", "DOCUMENTS_ROOT")
	mustBind("index_name", "INDEX_NAME")
	mustBind("index_api_key", "INDEX_API_KEY")
	mustBind("embed_model_key", "EMBED_MODEL_KEY")
	mustBind("gen_model_key", "GEN_MODEL_KEY")
	mustBind("request_deadline_seconds", "REQUEST_DEADLINE_SECONDS")
	mustBind("ingest_concurrency", "INGEST_CONCURRENCY")
	mustBind("batch_size", "BATCH_SIZE")
	mustBind("chunk_size", "CHUNK_SIZE")
	mustBind("chunk_overlap", "CHUNK_OVERLAP")
	mustBind("top_k", "TOP_K")
	mustBind("fetch_k", "FETCH_K")
	mustBind("language", "LANGUAGE")

	mustBind("addr", "PEDIRA_ADDR")
	mustBind("rate_burst", "PEDIRA_RATE_BURST")
	mustBind("model_name", "PEDIRA_MODEL_NAME")
	mustBind("embedder_model", "PEDIRA_EMBEDDER_MODEL")
	mustBind("registry_path", "PEDIRA_REGISTRY_PATH")
	mustBind("scan_interval_seconds", "PEDIRA_SCAN_INTERVAL_SECONDS")
	mustBind("require_context", "PEDIRA_REQUIRE_CONTEXT")
	mustBind("disclaimer_text", "PEDIRA_DISCLAIMER_TEXT")
	mustBind("otlp_endpoint", "PEDIRA_OTLP_ENDPOINT")

	mustBind("postgres_host", "PEDIRA_POSTGRES_HOST")
	mustBind("postgres_port", "PEDIRA_POSTGRES_PORT")
	mustBind("postgres_user", "PEDIRA_POSTGRES_USER")
	mustBind("postgres_password", "PEDIRA_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "PEDIRA_POSTGRES_DB_NAME")
	mustBind("postgres_ssl_mode", "PEDIRA_POSTGRES_SSL_MODE")
}

// knownKeys is the set of recognised configuration file keys.
var knownKeys = map[string]struct{}{
	"addr": {}, "rate_burst": {},
	"model_name": {}, "embedder_model": {}, "embed_dimension": {},
	"gen_model_key": {}, "embed_model_key": {},
	"index_name": {}, "index_api_key": {},
	"documents_root": {}, "ingest_concurrency": {}, "batch_size": {},
	"chunk_size": {}, "chunk_overlap": {}, "settle_delay_seconds": {},
	"scan_interval_seconds": {}, "registry_path": {},
	"top_k":         {}, "fetch_k": {}, "request_deadline_seconds": {},
	"language": {}, "require_context": {}, "disclaimer_text": {},
	"postgres_host": {}, "postgres_port": {}, "postgres_user": {},
	"postgres_password": {}, "postgres_db_name": {}, "postgres_ssl_mode": {},
	"otlp_endpoint": {}, "service_name": {}, "environment": {},
}

// warnUnknownKeys logs a warning for unrecognised top-level keys.
// Unknown keys are ignored, never fatal.
func warnUnknownKeys(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		top := key
		if i := strings.IndexByte(key, '.'); i > 0 {
			top = key[:i]
		}
		if _, ok := knownKeys[top]; !ok {
			slog.Warn("ignoring unknown configuration key", "key", key)
		}
	}
}

// PostgresURL returns the postgres:// URL for migrations and pgxpool.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully masked;
// longer ones keep the first and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.IndexAPIKey = maskSecret(a.IndexAPIKey)
	a.GenModelKey = maskSecret(a.GenModelKey)
	a.EmbedModelKey = maskSecret(a.EmbedModelKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// FullModelName returns the provider-qualified generation model name for Genkit.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}
