// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (CORPUS_ prefix, plus DATABASE_URL / GEMINI_API_KEY)
//  2. Config file (~/.corpus/config.yaml or ./config.yaml)
//  3. Default values
//
// Sensitive data (passwords, API keys) is never logged; the config directory
// uses 0750 permissions. Validation happens at load time (fail-fast) with
// sentinel errors checkable via errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidEmbedderModel indicates the embedder model name is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidAnalysisModel indicates the analysis model name is invalid.
	ErrInvalidAnalysisModel = errors.New("invalid analysis model")

	// ErrInvalidAnalysisTimeout indicates the analysis timeout is out of range.
	ErrInvalidAnalysisTimeout = errors.New("invalid analysis timeout")

	// ErrInvalidSearchLimit indicates the search result limit is out of range.
	ErrInvalidSearchLimit = errors.New("invalid search result limit")

	// ErrInvalidSemanticWeight indicates the semantic boost weight is out of range.
	ErrInvalidSemanticWeight = errors.New("invalid semantic weight")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions, matching
	// the vector(768) column in the content_items schema.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultAnalysisModel is the default model for the content analysis agent.
	DefaultAnalysisModel = "gemini-2.5-flash"

	// DefaultAnalysisTimeoutSeconds bounds a single analysis-agent call.
	DefaultAnalysisTimeoutSeconds = 30

	// DefaultSearchLimit is the default maximum number of search results.
	DefaultSearchLimit = 10

	// MaxSearchLimit is the absolute cap on search results per query.
	MaxSearchLimit = 100

	// DefaultSemanticWeight is the default weight of the semantic similarity
	// boost relative to the lexical baseline score.
	DefaultSemanticWeight = 0.5
)

// Config stores application configuration.
// SECURITY: sensitive fields must never be logged or serialized verbatim.
type Config struct {
	// Storage configuration (see storage.go for DSN builders)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Embedding configuration
	EmbedderModel    string `mapstructure:"embedder_model"`
	EmbeddingEnabled bool   `mapstructure:"embedding_enabled"`

	// Analysis agent configuration
	AnalysisModel          string `mapstructure:"analysis_model"`
	AnalysisTimeoutSeconds int    `mapstructure:"analysis_timeout_seconds"`
	AnalysisRequestsPerMin int    `mapstructure:"analysis_requests_per_min"`

	// Search configuration
	SearchLimit    int     `mapstructure:"search_limit"`
	SemanticWeight float64 `mapstructure:"semantic_weight"`

	// Ingestion configuration
	IngestParallelism int  `mapstructure:"ingest_parallelism"`
	TagFromTopics     bool `mapstructure:"tag_from_topics"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".corpus")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("CORPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "corpus")
	v.SetDefault("postgres_password", "corpus_dev_password")
	v.SetDefault("postgres_db_name", "corpus")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedding_enabled", true)

	v.SetDefault("analysis_model", DefaultAnalysisModel)
	v.SetDefault("analysis_timeout_seconds", DefaultAnalysisTimeoutSeconds)
	v.SetDefault("analysis_requests_per_min", 60)

	v.SetDefault("search_limit", DefaultSearchLimit)
	v.SetDefault("semantic_weight", DefaultSemanticWeight)

	v.SetDefault("ingest_parallelism", 4)
	v.SetDefault("tag_from_topics", true)
}
