package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/scout/internal/config"
	"github.com/MrSnakeDoc/scout/internal/forwarder"
	"github.com/MrSnakeDoc/scout/internal/httpserver"
	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/notifier/telegram"
	"github.com/MrSnakeDoc/scout/internal/pipeline"
	"github.com/MrSnakeDoc/scout/internal/scheduler"
	"github.com/MrSnakeDoc/scout/internal/version"
)

type App struct {
	cfg       *config.Config
	logger    logger.Logger
	server    *httpserver.Server
	scheduler *scheduler.Scheduler
	backend   *backend
}

func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize the store early - fail fast if unavailable
	be, err := openStore(context.Background(), cfg, loggerClient)
	if err != nil {
		return nil, err
	}
	loggerClient.Info("catalog store initialized", logger.String("store", cfg.Store))

	src, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		be.close()
		return nil, err
	}
	registry, client := buildSources(src, be.catalog, cfg.AutoApprove, loggerClient)
	if registry.Len() == 0 {
		loggerClient.Warn("no source enabled, discovery cycles will find nothing")
	}

	var pipeOpts []pipeline.Option
	if cfg.ForwardURL != "" {
		pipeOpts = append(pipeOpts, pipeline.WithForwarder(forwarder.New(cfg.ForwardURL, cfg.ForwardToken, nil)))
	} else {
		loggerClient.Info("forward url not configured, forwarding disabled")
	}
	if cfg.TelegramToken != "" && cfg.TelegramChannel != "" {
		pipeOpts = append(pipeOpts, pipeline.WithAnnouncer(telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChannel)))
	}

	orchestrator := pipeline.New(registry, client, be.catalog, pipeline.Options{
		TopK:               cfg.TopK,
		PageSize:           cfg.PageSize,
		MaxPages:           cfg.MaxPages,
		Concurrency:        cfg.DiscoveryWorkers,
		SourceTimeout:      cfg.SourceTimeout,
		AffiliationBudget:  cfg.AffiliationBudget,
		AffiliationTimeout: cfg.AffiliationTimeout,
		DeactivateAfter:    cfg.DeactivateAfter,
	}, loggerClient, pipeOpts...)

	schedOpts := []scheduler.Option{scheduler.WithRunOnStart(cfg.RunOnStart)}
	if be.reports != nil {
		schedOpts = append(schedOpts, scheduler.WithReportStore(be.reports))
	}
	sched := scheduler.New(orchestrator, cfg.ScheduleInterval, loggerClient, schedOpts...)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		AdminToken:   cfg.AdminToken,
		StoreKind:    cfg.Store,
		Catalog:      be.catalog,
		Scheduler:    sched,
		Reports:      be.archive,
	}

	return &App{
		cfg:       cfg,
		logger:    loggerClient,
		server:    httpserver.New(cfg.ListenPort, d),
		scheduler: sched,
		backend:   be,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Scout v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Scout %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.backend.close()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	a.logger.Info("scheduler started",
		logger.Duration("interval", a.cfg.ScheduleInterval),
		logger.Bool("run_on_start", a.cfg.RunOnStart))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Warn("failed to stop server", logger.Error(err))
	}
	// In-flight cycles are cancelled; persisted entries stay consistent.
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler did not stop in time", logger.Error(err))
	}
	if runErr != nil {
		return runErr
	}

	a.logger.Info("✅ Scout stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
