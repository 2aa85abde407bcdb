package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meddevice/medauth"
	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/internal/logging"
	promexport "github.com/meddevice/medauth/metrics/export/prometheus"
)

type serveOptions struct {
	addr            string
	trustProxy      bool
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
	runtimeMetrics  bool
}

func serveCmd(configPath *string) *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the authentication and audit HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "Listen address")
	cmd.Flags().BoolVar(&opts.trustProxy, "trust-proxy", false, "Take the client IP from X-Forwarded-For / X-Real-IP")
	cmd.Flags().DurationVar(&opts.requestTimeout, "request-timeout", 15*time.Second, "Per-request deadline")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "Graceful shutdown deadline")
	cmd.Flags().BoolVar(&opts.runtimeMetrics, "runtime-metrics", true, "Expose Go runtime and process metrics on /metrics")
	return cmd
}

func runServe(ctx context.Context, cfg medauth.Config, opts serveOptions) error {
	logger := logging.New(cfg.Log.Service, cfg.Log.Level)

	report := medauth.BuildSecurityReport(cfg)
	if !report.IsSecure {
		logger.Warn("security report needs attention", slog.Any("warnings", report.Warnings))
	}
	for _, w := range cfg.Lint() {
		logger.Warn("config lint", slog.String("code", w.Code), slog.String("message", w.Message))
	}

	var cl closers
	defer func() {
		if err := cl.Close(); err != nil {
			logger.Error("close backends", slog.String("error", err.Error()))
		}
	}()

	auditStore, err := openAuditStore(ctx, cfg.Audit, os.Stdout, logger, &cl)
	if err != nil {
		return err
	}
	users, err := openUserStore(ctx, cfg.Users, logger, &cl)
	if err != nil {
		return err
	}

	engine, err := medauth.New().
		WithConfig(cfg).
		WithUserStore(users).
		WithAuditStore(auditStore).
		WithResetNotifier(logNotifier(logger, cfg.Environment)).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	limiter, err := openRateLimiter(ctx, cfg.RateLimit, logger, &cl)
	if err != nil {
		return err
	}

	metricsHandler, err := promexport.Handler(engine, opts.runtimeMetrics)
	if err != nil {
		return fmt.Errorf("metrics handler: %w", err)
	}

	srv := &http.Server{
		Addr: opts.addr,
		Handler: newRouter(engine, logger, routerOptions{
			trustProxy:     opts.trustProxy,
			metricsHandler: metricsHandler,
			requestTimeout: opts.requestTimeout,
			limiter:        limiter,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", slog.String("addr", srv.Addr), slog.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// logNotifier stands in for a mailer. The reset token itself is logged only
// in development, at debug level.
func logNotifier(logger *slog.Logger, environment string) medauth.ResetNotifier {
	return medauth.ResetNotifierFunc(func(ctx context.Context, email, token string) error {
		attrs := []any{slog.String("email", audit.MaskEmail(email))}
		if environment == medauth.EnvironmentDevelopment {
			logger.DebugContext(ctx, "password reset token", append(attrs, slog.String("reset_token", token))...)
		}
		logger.InfoContext(ctx, "password reset issued", attrs...)
		return nil
	})
}
