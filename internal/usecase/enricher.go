package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"CatalogSync/internal/domain"
	"CatalogSync/internal/metrics"
	"CatalogSync/internal/ports"
)

const (
	defaultSelectLimit = 2000
	maxStatsBatch      = 50
)

// EnricherDeps wires the catalog store and statistics API into the Enricher.
type EnricherDeps struct {
	Store          ports.EnrichmentStore
	Stats          ports.StatsClient
	Notifier       *Notifier
	Limiter        *rate.Limiter
	BatchSize      int
	SelectLimit    int
	WatchURLPrefix string
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Enricher refreshes view counts of the least viewed catalog items.
type Enricher struct {
	store       ports.EnrichmentStore
	stats       ports.StatsClient
	notifier    *Notifier
	limiter     *rate.Limiter
	batchSize   int
	selectLimit int
	watchPrefix string
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewEnricher constructs the enrichment stage. A nil limiter means no pacing.
func NewEnricher(deps EnricherDeps) *Enricher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batch := deps.BatchSize
	if batch <= 0 || batch > maxStatsBatch {
		batch = maxStatsBatch
	}
	limit := deps.SelectLimit
	if limit <= 0 {
		limit = defaultSelectLimit
	}
	return &Enricher{
		store:       deps.Store,
		stats:       deps.Stats,
		notifier:    deps.Notifier,
		limiter:     deps.Limiter,
		batchSize:   batch,
		selectLimit: limit,
		watchPrefix: deps.WatchURLPrefix,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// batchRows maps a statistics id to the catalog rows carrying it.
type batchRows map[string][]domain.ProductionRecord

// Run selects rows, fetches statistics batch by batch and writes view counts.
// A failing batch is skipped; ids missing from a response are reported.
func (e *Enricher) Run(ctx context.Context) domain.EnrichSummary {
	started := time.Now()
	var summary domain.EnrichSummary

	rows, err := e.store.LeastViewed(ctx, e.selectLimit)
	if err != nil {
		e.logger.Error("select rows failed", "error", err)
	}
	summary.Selected = len(rows)

	ids, byID := eligible(rows)
	summary.Eligible = len(ids)

	var missing []string
	for n, batch := range Chunk(ids, e.batchSize) {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				e.logger.Warn("enrichment interrupted", "batch", n+1, "error", err)
				break
			}
		}
		summary.Batches++

		updates, miss, err := e.processBatch(ctx, batch, byID)
		if err != nil {
			summary.FailedBatches++
			e.metrics.EnrichBatch(false)
			e.logger.Warn("statistics batch failed", "batch", n+1, "ids", len(batch), "error", err)
			continue
		}
		missing = append(missing, miss...)

		if len(updates) > 0 {
			if err := e.store.UpdateViewCounts(ctx, updates); err != nil {
				summary.FailedBatches++
				e.metrics.EnrichBatch(false)
				e.logger.Error("view count update failed", "batch", n+1, "rows", len(updates), "error", err)
				continue
			}
		}
		summary.Updated += len(updates)
		e.metrics.EnrichBatch(true)
	}

	summary.Missing = len(missing)
	if len(missing) > 0 {
		e.metrics.MissingVideos(len(missing))
		e.notifier.ReportMissing(ctx, missing)
	}

	e.metrics.ObserveStage("enrich", time.Since(started).Seconds())
	e.logger.Info("enrichment finished",
		"selected", summary.Selected,
		"eligible", summary.Eligible,
		"batches", summary.Batches,
		"failed_batches", summary.FailedBatches,
		"updated", summary.Updated,
		"missing", summary.Missing)
	return summary
}

// processBatch calls the statistics API for one batch and returns the update
// rows and the report ids of videos absent from the response.
func (e *Enricher) processBatch(ctx context.Context, batch []string, byID batchRows) ([]domain.ViewCountUpdate, []string, error) {
	stats, err := e.stats.ViewCounts(ctx, batch)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]struct{}, len(stats))
	var updates []domain.ViewCountUpdate
	for _, s := range stats {
		rows, ok := byID[s.ID]
		if !ok {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		if s.Hidden {
			e.logger.Debug("view count hidden, row left as is", "video_id", s.ID)
			continue
		}
		for _, row := range rows {
			updates = append(updates, domain.ViewCountUpdate{
				ItemID:           row.ID,
				ViewCount:        s.ViewCount,
				FeedVideoID:      feedVideoID(row),
				ExternalVideoID:  s.ID,
				ExternalVideoURL: e.watchPrefix + s.ID,
			})
		}
	}

	var missing []string
	for _, id := range batch {
		if _, ok := seen[id]; ok {
			continue
		}
		for _, row := range byID[id] {
			missing = append(missing, feedVideoID(row))
		}
	}
	return updates, missing, nil
}

// eligible keeps rows whose provider video id is purely numeric. Ids are
// returned in selection order without repeats.
func eligible(rows []domain.ProductionRecord) ([]string, batchRows) {
	byID := make(batchRows)
	var ids []string
	for _, row := range rows {
		id := row.ProviderVideoID
		if !isNumeric(id) {
			continue
		}
		if _, ok := byID[id]; !ok {
			ids = append(ids, id)
		}
		byID[id] = append(byID[id], row)
	}
	return ids, byID
}

func feedVideoID(row domain.ProductionRecord) string {
	if key := domain.VideoKeyFromURL(row.VideoURL); key != "" {
		return key
	}
	return row.ExternalID
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
