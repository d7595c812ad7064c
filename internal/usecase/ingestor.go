package usecase

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"CatalogSync/internal/domain"
	"CatalogSync/internal/metrics"
	"CatalogSync/internal/ports"
)

// RetryPolicy bounds how many times a failed page is attempted in total.
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy tries each page once more after a failure.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2}
}

// IngestorDeps wires the feed and staging store into the Ingestor.
type IngestorDeps struct {
	Feed     ports.FeedSource
	Codec    ports.FeedCodec
	Staging  ports.StagingStore
	PageSize int
	Retry    RetryPolicy
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Ingestor loads the full upstream feed into staging page by page.
type Ingestor struct {
	feed     ports.FeedSource
	codec    ports.FeedCodec
	staging  ports.StagingStore
	pageSize int
	retry    RetryPolicy
	metrics  *metrics.Metrics
	logger   *slog.Logger

	badPages []int
	staged   int
}

// NewIngestor constructs the ingestion stage.
func NewIngestor(deps IngestorDeps) *Ingestor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	retry := deps.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	return &Ingestor{
		feed:     deps.Feed,
		codec:    deps.Codec,
		staging:  deps.Staging,
		pageSize: pageSize,
		retry:    retry,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// TotalPages asks the feed for its result count. Any failure means no work.
func (i *Ingestor) TotalPages(ctx context.Context) int {
	count, err := i.feed.TotalCount(ctx)
	if err != nil {
		i.logger.Warn("feed count unavailable", "error", err)
		return 0
	}
	if count <= 0 {
		return 0
	}
	return (count + i.pageSize - 1) / i.pageSize
}

// ProcessPage parses one raw page and stages its entries with a single bulk
// insert. A page that does not parse or cannot be staged is recorded as bad.
func (i *Ingestor) ProcessPage(ctx context.Context, raw []byte, page int) bool {
	records, err := i.codec.ParsePage(raw)
	if err != nil {
		i.logger.Warn("page parse failed", "page", page, "error", err)
		i.markBad(page)
		return false
	}
	if len(records) == 0 {
		i.metrics.PageProcessed(true)
		return true
	}

	if err := i.staging.InsertStaging(ctx, records); err != nil {
		i.logger.Error("staging insert failed", "page", page, "records", len(records), "error", err)
		i.markBad(page)
		return false
	}

	i.staged += len(records)
	i.metrics.PageProcessed(true)
	i.metrics.Staged(len(records))
	i.logger.Debug("page staged", "page", page, "records", len(records))
	return true
}

// HandleBadPages refetches every recorded bad page under the retry policy.
// The bad-page list is empty afterwards whatever the outcome; pages still
// failing are returned.
func (i *Ingestor) HandleBadPages(ctx context.Context) []int {
	defer func() { i.badPages = nil }()

	for attempt := 2; attempt <= i.retry.MaxAttempts && len(i.badPages) > 0; attempt++ {
		pending := i.badPages
		i.badPages = nil
		for _, page := range pending {
			if ctx.Err() != nil {
				i.badPages = append(i.badPages, page)
				continue
			}
			i.logger.Info("retrying page", "page", page, "attempt", attempt)
			i.fetchAndProcess(ctx, page)
		}
	}

	if len(i.badPages) > 0 {
		i.logger.Warn("pages dropped after retry", "pages", i.badPages)
	}
	return slices.Clone(i.badPages)
}

// BadPages returns the pages currently awaiting retry.
func (i *Ingestor) BadPages() []int {
	return slices.Clone(i.badPages)
}

// Run replaces the staging snapshot with the current feed contents.
func (i *Ingestor) Run(ctx context.Context) domain.IngestSummary {
	started := time.Now()
	i.badPages = nil
	i.staged = 0

	if err := i.staging.TruncateStaging(ctx); err != nil {
		i.logger.Error("staging reset failed", "error", err)
	}

	pages := i.TotalPages(ctx)
	i.logger.Info("ingestion started", "pages", pages, "page_size", i.pageSize)

	for page := 1; page <= pages; page++ {
		if ctx.Err() != nil {
			i.logger.Warn("ingestion cancelled", "page", page, "error", ctx.Err())
			break
		}
		i.fetchAndProcess(ctx, page)
	}

	failed := i.HandleBadPages(ctx)

	summary := domain.IngestSummary{Pages: pages, Staged: i.staged, FailedPages: failed}
	i.metrics.ObserveStage("ingest", time.Since(started).Seconds())
	i.logger.Info("ingestion finished",
		"pages", summary.Pages,
		"staged", summary.Staged,
		"failed_pages", len(summary.FailedPages),
		"duration", time.Since(started))
	return summary
}

func (i *Ingestor) fetchAndProcess(ctx context.Context, page int) {
	raw, err := i.feed.FetchPage(ctx, page)
	if err != nil {
		i.logger.Warn("page fetch failed", "page", page, "error", err)
		i.markBad(page)
		return
	}
	i.ProcessPage(ctx, raw, page)
}

func (i *Ingestor) markBad(page int) {
	i.metrics.PageProcessed(false)
	if !slices.Contains(i.badPages, page) {
		i.badPages = append(i.badPages, page)
	}
}
