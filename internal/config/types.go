// Package config provides configuration types and loading for talkdata.
// Settings merge defaults, an optional talkdata.yaml, TALKDATA_* environment
// variables, and CLI flags, in that order of increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Models   ModelsConfig   `koanf:"models"`
	Engine   EngineConfig   `koanf:"engine"`
	Cache    CacheConfig    `koanf:"cache"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// CORSOrigins is a comma-separated list of allowed origins.
	CORSOrigins string `koanf:"cors_origins"`
}

// OriginList splits CORSOrigins into individual origins.
func (s ServerConfig) OriginList() []string {
	parts := strings.Split(s.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DatabaseConfig holds the active datasource target.
type DatabaseConfig struct {
	Type string `koanf:"type"` // sqlite, postgres, mysql, duckdb

	// File-based databases (SQLite, DuckDB). ":memory:" for in-memory.
	Path string `koanf:"path"`

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`
}

// ModelsConfig holds language-model backend settings.
type ModelsConfig struct {
	// APIKey is the Anthropic API key. Required.
	APIKey string `koanf:"api_key"`

	// Flash is the fast/cheap model used for simple questions and
	// post-processing calls.
	Flash string `koanf:"flash"`

	// Pro is the higher-quality model used for complex questions and
	// retries.
	Pro string `koanf:"pro"`

	MaxTokens int `koanf:"max_tokens"`
}

// EngineConfig holds orchestration settings.
type EngineConfig struct {
	// MaxRetries is the number of retry attempts after the initial one.
	MaxRetries int `koanf:"max_retries"`

	// RowLimit caps the number of rows returned from any query.
	RowLimit int `koanf:"row_limit"`

	// QueryTimeout bounds a single SQL execution.
	QueryTimeout time.Duration `koanf:"query_timeout"`

	// RunTimeout bounds one orchestration run across all retries.
	RunTimeout time.Duration `koanf:"run_timeout"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	MaxEntries int           `koanf:"max_entries"`
	TTL        time.Duration `koanf:"ttl"`
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Models.APIKey == "" {
		return fmt.Errorf("models.api_key is required (set TALKDATA_MODELS_API_KEY)")
	}
	if c.Database.Type == "" {
		return fmt.Errorf("database.type is required")
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must be >= 0, got %d", c.Engine.MaxRetries)
	}
	if c.Engine.RowLimit <= 0 {
		return fmt.Errorf("engine.row_limit must be > 0, got %d", c.Engine.RowLimit)
	}
	return nil
}
