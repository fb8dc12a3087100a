package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 2, cfg.Engine.MaxRetries)
	assert.Equal(t, 500, cfg.Engine.RowLimit)
	assert.Equal(t, 30*time.Second, cfg.Engine.QueryTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Engine.RunTimeout)
	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talkdata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9001
database:
  type: postgres
  host: db.internal
  port: 5432
  database: sales
engine:
  max_retries: 1
`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 1, cfg.Engine.MaxRetries)
	// untouched settings keep their defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 500, cfg.Engine.RowLimit)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TALKDATA_MODELS_API_KEY", "sk-test-123")
	t.Setenv("TALKDATA_SERVER_PORT", "9999")
	t.Setenv("TALKDATA_ENGINE_MAX_RETRIES", "0")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sk-test-123", cfg.Models.APIKey)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 0, cfg.Engine.MaxRetries)
}

func TestLoadFlagsWinOverEnv(t *testing.T) {
	t.Setenv("TALKDATA_SERVER_PORT", "9999")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("server.port", 0, "")
	require.NoError(t, flags.Set("server.port", "7070"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestEnvToKey(t *testing.T) {
	assert.Equal(t, "models.api_key", envToKey("TALKDATA_MODELS_API_KEY"))
	assert.Equal(t, "engine.max_retries", envToKey("TALKDATA_ENGINE_MAX_RETRIES"))
	assert.Equal(t, "server.port", envToKey("TALKDATA_SERVER_PORT"))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		cfg.Models.APIKey = "sk-test"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := base()
		cfg.Models.APIKey = ""
		assert.ErrorContains(t, cfg.Validate(), "models.api_key")
	})

	t.Run("missing database type", func(t *testing.T) {
		cfg := base()
		cfg.Database.Type = ""
		assert.ErrorContains(t, cfg.Validate(), "database.type")
	})

	t.Run("negative retries", func(t *testing.T) {
		cfg := base()
		cfg.Engine.MaxRetries = -1
		assert.ErrorContains(t, cfg.Validate(), "max_retries")
	})

	t.Run("zero row limit", func(t *testing.T) {
		cfg := base()
		cfg.Engine.RowLimit = 0
		assert.ErrorContains(t, cfg.Validate(), "row_limit")
	})
}

func TestOriginList(t *testing.T) {
	s := ServerConfig{CORSOrigins: "http://a.example, http://b.example ,,"}
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, s.OriginList())

	assert.Empty(t, ServerConfig{}.OriginList())
}
