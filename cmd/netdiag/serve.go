package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/netdiag/internal/config"
	"github.com/hamed0406/netdiag/internal/domain"
	"github.com/hamed0406/netdiag/internal/httpapi"
	apimw "github.com/hamed0406/netdiag/internal/httpapi/middleware"
	"github.com/hamed0406/netdiag/internal/logging"
	"github.com/hamed0406/netdiag/internal/notify"
	"github.com/hamed0406/netdiag/internal/orchestrator"
	"github.com/hamed0406/netdiag/internal/repo/memory"
	"github.com/hamed0406/netdiag/internal/scheduler"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run diagnostics on request over an HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return serve(cmd.Context(), g, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides api_addr)")
	return cmd
}

func serve(ctx context.Context, g *globalFlags, cfg config.Config) error {
	logger, err := logging.New(logging.Options{Dir: cfg.LogDir, Verbose: g.verbose})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	caps := detect(cfg.DNSServer)
	logCapabilities(logger, caps)

	orch := orchestrator.New(logger, caps)
	store := memory.New(cfg.ReportHistory)
	notifier := notify.New(cfg.SlackWebhook)

	api := httpapi.NewServer(logger, store, orch, httpapi.Defaults{
		Ports:          cfg.Ports,
		Count:          cfg.Count,
		TimeoutSeconds: cfg.TimeoutSeconds,
		Concurrency:    cfg.Concurrency,
	}, cfg.ReportDir)
	api.Notifier = notifier

	watcher := scheduler.NewWatcher(logger, orch, store, notifier, scheduler.WatcherConfig{
		Targets: cfg.WatchTargets,
		Template: domain.DiagnosticRequest{
			Ports:          cfg.Ports,
			PingCount:      cfg.Count,
			TimeoutSeconds: cfg.TimeoutSeconds,
			Concurrency:    cfg.Concurrency,
		},
		ReportDir:   cfg.ReportDir,
		Interval:    time.Duration(cfg.WatchIntervalSeconds) * time.Second,
		Concurrency: cfg.WatchConcurrency,
		Cooldown:    time.Duration(cfg.NotifyCooldownSeconds) * time.Second,
	})
	go watcher.Run(ctx)

	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.String("report_dir", cfg.ReportDir))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("api_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
