package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/rerender/internal/server"
	"github.com/me/rerender/internal/sim"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve <scenario.yaml>",
		Short: "Mount a scenario and serve the debug API over it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}

			sc, err := sim.LoadScenario(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			j, err := openJournal(ctx)
			if err != nil {
				return err
			}
			var rec sim.Recorder
			var opts []server.Option
			if j != nil {
				defer j.Close()
				rec = j
				opts = append(opts, server.WithJournal(j))
			}

			app, err := sim.NewApp(cfg, sc, rec, logger)
			if err != nil {
				return err
			}
			loopDone := app.Start(ctx)
			if err := app.Mount(ctx); err != nil {
				return fmt.Errorf("mount scenario: %w", err)
			}

			srv := server.New(cfg, app, logger, opts...)
			httpServer := &http.Server{
				Addr:              cfg.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("server starting", "addr", cfg.Addr, "scenario", sc.Name)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}

			// The loop exits with the signal context.
			if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("runloop stopped", "error", err)
			}
			if err := app.Close(); err != nil {
				logger.Error("close renderers", "error", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8090", "Listen address")
	return cmd
}
