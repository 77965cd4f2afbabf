package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/api"
	"github.com/sells-group/domain-intel/internal/collector"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, cfg.Collector.Enabled, cfg.Session.AutoSave)
		if err != nil {
			return err
		}
		defer env.Close(context.Background())

		deps := api.Deps{
			Manager:        env.Manager,
			Collectors:     env.Collectors,
			Store:          env.Store,
			Execute:        collector.ExecuteOptions{Extract: cfg.Extract.Options},
			MaxURLsPerRun:  cfg.Session.MaxURLsPerRun,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MetricsPath:    cfg.Metrics.Path,
		}
		if cfg.Metrics.Enabled {
			deps.Metrics = env.Metrics
		}
		srv, err := api.NewServer(deps)
		if err != nil {
			return err
		}
		env.Manager.Start()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Int("collectors", len(env.Collectors)),
			zap.Bool("persistent", env.Store != nil),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
