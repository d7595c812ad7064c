package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"CatalogSync/internal/catalog"
	"CatalogSync/internal/config"
	"CatalogSync/internal/domain"
	"CatalogSync/internal/infrastructure/analytics"
	"CatalogSync/internal/infrastructure/feed"
	"CatalogSync/internal/infrastructure/mail"
	"CatalogSync/internal/infrastructure/queue"
	"CatalogSync/internal/infrastructure/report"
	"CatalogSync/internal/infrastructure/scheduler"
	"CatalogSync/internal/infrastructure/stats"
	"CatalogSync/internal/infrastructure/storage"
	"CatalogSync/internal/infrastructure/telegram"
	"CatalogSync/internal/logging"
	"CatalogSync/internal/metrics"
	"CatalogSync/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *storage.Store
	tracker    *analytics.Tracker
	registry   *prometheus.Registry
	ingestor   *usecase.Ingestor
	reconciler *usecase.Reconciler
	enricher   *usecase.Enricher
}

// New opens the store and builds every pipeline stage.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.Open(ctx, cfg.Database, baseLogger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tracker, err := analytics.NewTracker(cfg.Analytics)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("analytics: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	notifier := usecase.NewNotifier(notifierDeps(cfg, tracker, m, baseLogger))

	feedClient := feed.NewClient(cfg.Feed, nil)
	codec := feed.Codec{}

	var limiter *rate.Limiter
	if cfg.Stats.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Stats.RequestsPerSecond), 1)
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger.With("component", "app"),
		store:    store,
		tracker:  tracker,
		registry: registry,
		ingestor: usecase.NewIngestor(usecase.IngestorDeps{
			Feed:     feedClient,
			Codec:    codec,
			Staging:  store,
			PageSize: feedClient.PageSize(),
			Retry:    usecase.DefaultRetryPolicy(),
			Metrics:  m,
			Logger:   baseLogger.With("component", "ingestor"),
		}),
		reconciler: usecase.NewReconciler(usecase.ReconcilerDeps{
			Staging:  store,
			Catalog:  store,
			Codec:    codec,
			Resolver: catalog.NewIndex(store, baseLogger.With("component", "catalog.index")),
			Notifier: notifier,
			Metrics:  m,
			Logger:   baseLogger.With("component", "reconciler"),
		}),
		enricher: usecase.NewEnricher(usecase.EnricherDeps{
			Store:          store,
			Stats:          stats.NewClient(cfg.Stats, nil),
			Notifier:       notifier,
			Limiter:        limiter,
			BatchSize:      cfg.Stats.BatchSize,
			SelectLimit:    cfg.Stats.SelectLimit,
			WatchURLPrefix: cfg.Stats.WatchURLPrefix,
			Metrics:        m,
			Logger:         baseLogger.With("component", "enricher"),
		}),
	}, nil
}

// notifierDeps enables only the channels that are configured.
func notifierDeps(cfg config.Config, tracker *analytics.Tracker, m *metrics.Metrics, logger *slog.Logger) usecase.NotifierDeps {
	deps := usecase.NotifierDeps{
		Exporter:    report.NewCSVExporter(cfg.Report),
		Recipients:  cfg.Mail.Recipients,
		Environment: cfg.Report.Environment,
		Metrics:     m,
		Logger:      logger.With("component", "notifier"),
	}

	if cfg.Mail.Host != "" && len(cfg.Mail.Recipients) > 0 {
		deps.Mailer = mail.NewMailer(cfg.Mail)
	} else {
		logger.Info("email reports disabled")
	}
	if cfg.Queue.URL != "" {
		deps.Queue = queue.NewPublisher(cfg.Queue)
	} else {
		logger.Info("queue summaries disabled")
	}
	if cfg.Analytics.WriteKey != "" {
		deps.Analytics = tracker
	} else {
		logger.Info("analytics events disabled")
	}
	if chat := telegram.NewNotifier(cfg.Notifications.Telegram, cfg.Report.Environment); chat.Enabled() {
		deps.Chat = chat
	}
	return deps
}

// Close flushes analytics and closes the store.
func (a *Application) Close() error {
	return errors.Join(a.tracker.Close(), a.store.Close())
}

// Ingest loads the feed into staging.
func (a *Application) Ingest(ctx context.Context) domain.IngestSummary {
	return a.ingestor.Run(ctx)
}

// Reconcile applies staging to the catalog. A full cycle over an empty
// staging table is skipped by the reconciler.
func (a *Application) Reconcile(ctx context.Context, incremental bool) domain.CycleSummary {
	if incremental {
		return a.reconciler.RunIncrementalUpdate(ctx)
	}
	return a.reconciler.RunFullCycle(ctx)
}

// Enrich refreshes view counts.
func (a *Application) Enrich(ctx context.Context) domain.EnrichSummary {
	return a.enricher.Run(ctx)
}

// Sync ingests and then runs a full reconciliation. Reconciliation is
// skipped when nothing was staged so an upstream outage cannot empty the
// catalog; the returned flag reports whether it ran.
func (a *Application) Sync(ctx context.Context) (domain.IngestSummary, domain.CycleSummary, bool) {
	ingest := a.Ingest(ctx)
	if ingest.Staged == 0 {
		a.logger.Warn("nothing staged, reconciliation skipped", "pages", ingest.Pages, "failed_pages", len(ingest.FailedPages))
		return ingest, domain.CycleSummary{Mode: domain.ModeFull, Skipped: true}, false
	}
	cycle := a.Reconcile(ctx, false)
	return ingest, cycle, !cycle.Skipped
}

// Run schedules sync and enrichment on their intervals and serves metrics
// until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	loops := []*usecase.Scheduler{
		usecase.NewScheduler("sync",
			scheduler.NewIntervalScheduler(a.cfg.Scheduler.SyncInterval.Std()),
			func(ctx context.Context) { a.Sync(ctx) },
			a.logger),
		usecase.NewScheduler("enrich",
			scheduler.NewIntervalScheduler(a.cfg.Scheduler.EnrichInterval.Std()),
			func(ctx context.Context) { a.Enrich(ctx) },
			a.logger),
	}
	for _, loop := range loops {
		loop := loop
		g.Go(func() error {
			if err := loop.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return loop.Stop(stopCtx)
		})
	}

	if a.cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           metrics.Handler(a.registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("metrics server starting", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	a.logger.Info("scheduled mode started",
		"sync_interval", a.cfg.Scheduler.SyncInterval.Std(),
		"enrich_interval", a.cfg.Scheduler.EnrichInterval.Std())
	return g.Wait()
}
