package config

import (
	"fmt"
	"strings"
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// Validate checks the configuration for invalid values.
// Called by Load() immediately after unmarshal (fail-fast).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range [1, 65535]", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if c.EmbeddingEnabled && strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty when embedding is enabled", ErrInvalidEmbedderModel)
	}
	// An empty analysis model disables enrichment; a model set to whitespace
	// only is a mistake, not a disable.
	if c.AnalysisModel != "" && strings.TrimSpace(c.AnalysisModel) == "" {
		return fmt.Errorf("%w: analysis model must not be blank", ErrInvalidAnalysisModel)
	}
	if c.AnalysisTimeoutSeconds < 1 || c.AnalysisTimeoutSeconds > 600 {
		return fmt.Errorf("%w: %d seconds out of range [1, 600]", ErrInvalidAnalysisTimeout, c.AnalysisTimeoutSeconds)
	}

	if c.SearchLimit < 1 || c.SearchLimit > MaxSearchLimit {
		return fmt.Errorf("%w: %d out of range [1, %d]", ErrInvalidSearchLimit, c.SearchLimit, MaxSearchLimit)
	}
	if c.SemanticWeight < 0 || c.SemanticWeight > 10 {
		return fmt.Errorf("%w: %g out of range [0, 10]", ErrInvalidSemanticWeight, c.SemanticWeight)
	}

	return nil
}
