package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/talkdata-labs/talkdata/internal/analysis"
	"github.com/talkdata-labs/talkdata/internal/config"
	"github.com/talkdata-labs/talkdata/internal/datasource"
	"github.com/talkdata-labs/talkdata/internal/engine"
	"github.com/talkdata-labs/talkdata/internal/executor"
	"github.com/talkdata-labs/talkdata/internal/llm"
	"github.com/talkdata-labs/talkdata/internal/schema"
)

// app bundles the wired components shared by serve and ask.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	sources  *datasource.Manager
	engine   *engine.Engine
	selector *analysis.Selector
}

// buildApp loads configuration, connects the datasource, and wires the
// engine stack.
func buildApp(ctx context.Context, flags *pflag.FlagSet) (*app, error) {
	cfg, err := config.Load(cfgFile, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger()

	sources := datasource.NewManager(logger)
	if err := sources.Swap(ctx, datasource.Config{
		Type:     cfg.Database.Type,
		Path:     cfg.Database.Path,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		Username: cfg.Database.User,
		Password: cfg.Database.Password,
		Options:  cfg.Database.Options,
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	completion := llm.NewAnthropicClient(cfg.Models, logger)

	eng := engine.New(engine.Config{
		Sources:      sources,
		Introspector: schema.NewIntrospector(sources, logger),
		Completion:   completion,
		Executor:     executor.New(cfg.Engine.RowLimit, cfg.Engine.QueryTimeout, logger),
		MaxRetries:   cfg.Engine.MaxRetries,
		RunTimeout:   cfg.Engine.RunTimeout,
		CacheEntries: cfg.Cache.MaxEntries,
		CacheTTL:     cfg.Cache.TTL,
		Logger:       logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		sources:  sources,
		engine:   eng,
		selector: analysis.NewSelector(completion, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.sources.Close(); err != nil {
		a.logger.Warn("failed to close datasource", "error", err)
	}
}
