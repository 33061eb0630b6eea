package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/sessionauth/api"
	promexport "github.com/MrEthical07/sessionauth/metrics/export/prometheus"
)

var (
	serveMemory    bool
	bootstrapAdmin string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx, serveMemory)
		if err != nil {
			return err
		}
		defer rt.Close()

		if bootstrapAdmin != "" {
			if err := bootstrap(ctx, rt, bootstrapAdmin); err != nil {
				return err
			}
		}

		deps := api.Deps{Engine: rt.engine, Logger: logger}
		if cfg.Metrics.Enabled {
			deps.Metrics = promexport.NewCollector(rt.engine).Handler()
			deps.MetricsPath = cfg.Metrics.Path
		}
		srv, err := api.NewServer(deps)
		if err != nil {
			return err
		}

		httpSrv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      srv.Router(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.WithField("addr", cfg.Server.Addr).Info("listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	},
}

func bootstrap(ctx context.Context, rt *runtime, value string) error {
	username, pass, ok := strings.Cut(value, ":")
	if !ok || username == "" || pass == "" {
		return fmt.Errorf("--bootstrap-admin must be username:password")
	}
	_, created, err := rt.engine.BootstrapSuperAdmin(ctx, username, pass)
	if err != nil {
		return fmt.Errorf("bootstrap super admin: %w", err)
	}
	if !created {
		logger.WithField("username", username).Info("super admin already exists")
	}
	return nil
}

func init() {
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Use embedded in-memory storage (development only)")
	serveCmd.Flags().StringVar(&bootstrapAdmin, "bootstrap-admin", "", "Create a super admin as username:password if missing")
}
