package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkledger/internal/config"
	"github.com/mamadbah2/milkledger/internal/metrics"
	"github.com/mamadbah2/milkledger/internal/platform/calendar"
	"github.com/mamadbah2/milkledger/internal/repository"
	"github.com/mamadbah2/milkledger/internal/repository/memory"
	"github.com/mamadbah2/milkledger/internal/repository/mongodb"
	"github.com/mamadbah2/milkledger/internal/repository/sheets"
	"github.com/mamadbah2/milkledger/internal/scheduler"
	"github.com/mamadbah2/milkledger/internal/server/handlers"
	"github.com/mamadbah2/milkledger/internal/server/router"
	"github.com/mamadbah2/milkledger/internal/service/aggregation"
	"github.com/mamadbah2/milkledger/internal/service/ledger"
	reportingsvc "github.com/mamadbah2/milkledger/internal/service/reporting"
	whatsappclient "github.com/mamadbah2/milkledger/pkg/clients/whatsapp"
	"github.com/mamadbah2/milkledger/pkg/logger"
)

// storage bundles the repositories of the selected backend.
type storage struct {
	ledger    repository.LedgerRepository
	sessions  repository.SessionRepository
	summaries repository.SummaryRepository
	reports   repository.ReportRepository
	close     func(context.Context) error
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.Env, cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	cal, err := calendar.New(cfg.Ledger.Timezone)
	if err != nil {
		baseLogger.Fatal("failed to load farm timezone", zap.Error(err))
	}

	store, err := openStorage(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.close(context.Background()); err != nil {
			baseLogger.Error("failed to close storage", zap.Error(err))
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)
	recompute := aggregation.Options{Attempts: cfg.Ledger.RecomputeAttempts, Backoff: cfg.Ledger.RecomputeBackoff}
	sessionAgg := aggregation.NewSessionAggregator(store.ledger, store.sessions, recompute, m, logger.Named(baseLogger, "svc.aggregation"))
	summaryAgg := aggregation.NewSummaryAggregator(store.ledger, store.summaries, recompute, m, logger.Named(baseLogger, "svc.aggregation"))
	ledgerSvc := ledger.NewService(store.ledger, store.sessions, store.summaries, sessionAgg, summaryAgg,
		cal, cfg.Ledger.MaxYield, m, logger.Named(baseLogger, "svc.ledger"))

	var mirror reportingsvc.Mirror
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		mirror = sheetsRepo
		baseLogger.Info("google sheets report mirror enabled")
	}

	var notifier reportingsvc.Notifier
	if cfg.WhatsApp.Enabled() {
		notifier = whatsappclient.NewClient(cfg.WhatsApp)
		baseLogger.Info("whatsapp report delivery enabled")
	} else {
		baseLogger.Warn("whatsapp token missing, daily reports will not be sent")
	}

	reportingSvc := reportingsvc.NewService(store.ledger, store.sessions, store.summaries, store.reports,
		mirror, notifier, cfg.WhatsApp.ManagerID, logger.Named(baseLogger, "svc.reporting"))

	engine, err := router.New(router.Deps{
		Yield:          handlers.NewYieldHandler(ledgerSvc, logger.Named(baseLogger, "handlers.yield")),
		Aggregates:     handlers.NewAggregateHandler(ledgerSvc, reportingSvc, cal, logger.Named(baseLogger, "handlers.aggregates")),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger.Named(baseLogger, "router"),
	})
	if err != nil {
		baseLogger.Fatal("failed to init router", zap.Error(err))
	}

	sched := scheduler.NewScheduler(cfg.Reporting, cal, ledgerSvc, reportingSvc, logger.Named(baseLogger, "scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStorage(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) (storage, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		baseLogger.Warn("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return storage{
			ledger:    store,
			sessions:  store,
			summaries: store,
			reports:   store,
			close:     func(context.Context) error { return nil },
		}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongodb.Connect(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName, logger.Named(baseLogger, "repo.mongodb"))
	if err != nil {
		return storage{}, err
	}
	if err := client.EnsureIndexes(connectCtx); err != nil {
		_ = client.Close(ctx)
		return storage{}, err
	}

	return storage{
		ledger:    mongodb.NewLedgerRepository(client),
		sessions:  mongodb.NewSessionRepository(client),
		summaries: mongodb.NewSummaryRepository(client),
		reports:   mongodb.NewReportRepository(client),
		close:     client.Close,
	}, nil
}
