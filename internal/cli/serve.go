package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talkdata-labs/talkdata/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP API: buffered queries, an SSE stream of the run pipeline,
chart analysis, and datasource management. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			defer app.Close()

			// Re-introspect and drop cached results when the backing
			// database file changes on disk.
			if watch, _ := cmd.Flags().GetBool("watch"); watch && app.cfg.Database.Path != "" {
				go func() {
					if err := app.sources.Watch(ctx, app.cfg.Database.Path); err != nil {
						app.logger.Warn("file watch stopped", "error", err)
					}
				}()
			}

			srv := server.NewServer(server.Config{
				Runner:      app.engine,
				Analyzer:    app.selector,
				Sources:     app.sources,
				OnSwap:      app.engine.InvalidateCache,
				Host:        app.cfg.Server.Host,
				Port:        app.cfg.Server.Port,
				CORSOrigins: app.cfg.Server.OriginList(),
				Logger:      app.logger,
			})
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().String("server.host", "", "Listen host")
	cmd.Flags().Int("server.port", 0, "Listen port")
	cmd.Flags().Bool("watch", false, "Watch a file-based database for changes")

	return cmd
}
