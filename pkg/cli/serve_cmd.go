package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"lake-ingest/internal/api"
	"lake-ingest/internal/middleware"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var withTelemetry bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the storage-event webhook",
		Long:  "Serves POST /v1/events/ingest and /v1/events/catalog on LISTEN_ADDR until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, closeFn, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			var catalog api.EventHandler
			if rt.app.CatalogSync != nil {
				catalog = rt.app.CatalogSync
			} else {
				rt.logger.Warn("TRUSTED_DATABASE not set, catalog endpoint disabled")
			}
			handler := api.NewHandler(rt.app.Ingestion, catalog, rt.app.Audit, rt.logger)

			srv := &http.Server{
				Addr: rt.cfg.ListenAddr,
				Handler: api.NewRouter(ctx, handler, middleware.RateLimitConfig{
					RequestsPerSecond: rt.cfg.RateLimitRPS,
					Burst:             rt.cfg.RateLimitBurst,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				rt.logger.Info("HTTP server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				rt.logger.Info("shutting down HTTP server")
				return srv.Shutdown(shutdownCtx)
			})
			if withTelemetry {
				producer, err := rt.app.NewProducer(ctx)
				if err != nil {
					return err
				}
				g.Go(func() error {
					return producer.Run(gctx, rt.cfg.TelemetrySchedule, 0)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&withTelemetry, "telemetry", false, "Also run the telemetry producer on TELEMETRY_SCHEDULE")
	return cmd
}
