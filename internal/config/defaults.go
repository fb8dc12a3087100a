package config

// Default configuration values, applied before file, env, and flag sources.
var defaults = map[string]any{
	"server.host":         "0.0.0.0",
	"server.port":         8000,
	"server.cors_origins": "http://localhost:5173,http://localhost:3000",

	"database.type": "sqlite",
	"database.path": "talkdata.db",

	"models.flash":      "claude-haiku-4-5-20251001",
	"models.pro":        "claude-sonnet-4-5-20250929",
	"models.max_tokens": 4096,

	"engine.max_retries":   2,
	"engine.row_limit":     500,
	"engine.query_timeout": "30s",
	"engine.run_timeout":   "2m",

	"cache.max_entries": 100,
	"cache.ttl":         "1h",
}
