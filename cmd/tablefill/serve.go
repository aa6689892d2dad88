package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmrzaf/tablefill/internal/api"
	"github.com/mmrzaf/tablefill/internal/infra/repos/schemas"
)

func serveCmd() *cobra.Command {
	var bindAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("bind") {
				cfg.BindAddr = bindAddr
			}
			logger := newLogger().WithComponent("api_main")

			history, err := openHistory()
			if err != nil {
				logger.Errorw("startup.failed", map[string]any{"error": err.Error(), "stage": "init_run_repo"})
				return err
			}
			defer history.Close()

			saved, chain := targetRepos(history, logger)
			handler := api.NewHandler(
				schemas.NewFileRepository(cfg.SchemaDir, logger),
				chain,
				saved,
				newService(history, logger),
			)

			srv := &http.Server{
				Addr:              cfg.BindAddr,
				Handler:           api.NewRouter(handler, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Infow("startup.listening", map[string]any{"bind": cfg.BindAddr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("startup.failed", map[string]any{"error": err.Error(), "stage": "listen"})
				return err
			}
			logger.Infow("shutdown.complete", nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&bindAddr, "bind", "127.0.0.1:8080", "Bind address")
	return cmd
}
