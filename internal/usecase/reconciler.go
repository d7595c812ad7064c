package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"CatalogSync/internal/catalog"
	"CatalogSync/internal/domain"
	"CatalogSync/internal/metrics"
	"CatalogSync/internal/ports"
)

// FacetResolver maps classified facets to catalog identifiers.
type FacetResolver interface {
	Resolve(ctx context.Context, facets domain.Facets) domain.Resolution
}

// ReconcilerDeps wires stores, codec, resolver and notifications.
type ReconcilerDeps struct {
	Staging  ports.StagingStore
	Catalog  ports.CatalogStore
	Codec    ports.FeedCodec
	Resolver FacetResolver
	Notifier *Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// Reconciler applies the staging snapshot to the production catalog.
type Reconciler struct {
	staging  ports.StagingStore
	catalog  ports.CatalogStore
	codec    ports.FeedCodec
	resolver FacetResolver
	notifier *Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler constructs the reconciliation stage.
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		staging:  deps.Staging,
		catalog:  deps.Catalog,
		codec:    deps.Codec,
		resolver: deps.Resolver,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      now,
	}
}

// RunFullCycle publishes new valid items, updates changed ones, deletes rows
// missing from staging or staged with invalid content, notifies and finally
// empties staging. An empty staging table skips the cycle so that a failed
// ingestion never wipes the catalog.
func (r *Reconciler) RunFullCycle(ctx context.Context) domain.CycleSummary {
	started := r.now()
	summary := domain.CycleSummary{CycleID: uuid.NewString(), Mode: domain.ModeFull}
	logger := r.logger.With("cycle_id", summary.CycleID, "mode", summary.Mode)

	staged, err := r.staging.CountStaging(ctx)
	if err != nil {
		logger.Error("count staging failed", "error", err)
	}
	if staged == 0 {
		logger.Warn("staging empty, full cycle skipped")
		summary.Skipped = true
		summary.FinishedAt = r.now().UTC()
		return summary
	}

	unpublished, err := r.staging.UnpublishedStaging(ctx)
	if err != nil {
		logger.Error("read unpublished staging failed", "error", err)
	}
	publish, invalid := r.classifyNew(ctx, unpublished, started)

	updates, invalidUpdates, invalidRows := r.classifyChanged(ctx, logger, started)
	invalid = append(invalid, invalidUpdates...)

	published := r.upsert(ctx, logger, publish)
	updated := r.update(ctx, logger, updates)

	deleted, err := r.catalog.DeleteStale(ctx)
	if err != nil {
		logger.Error("delete stale items failed", "error", err)
		deleted = 0
	}
	if len(invalidRows) > 0 {
		removed, err := r.catalog.DeleteItems(ctx, invalidRows)
		if err != nil {
			logger.Error("delete invalid items failed", "items", len(invalidRows), "removed", removed, "error", err)
		}
		deleted += removed
	}

	summary.Published = len(published)
	summary.Updated = len(updated)
	summary.Deleted = deleted
	summary.Invalid = len(invalid)

	r.finish(ctx, logger, &summary, invalid, append(published, updated...))

	if err := r.staging.TruncateStaging(ctx); err != nil {
		logger.Error("truncate staging failed", "error", err)
	}

	r.metrics.ObserveStage("reconcile_full", r.now().Sub(started).Seconds())
	return summary
}

// RunIncrementalUpdate applies only changed items. Nothing is published or
// deleted, rows whose new content is invalid keep their current content and
// staging is left as is.
func (r *Reconciler) RunIncrementalUpdate(ctx context.Context) domain.CycleSummary {
	started := r.now()
	summary := domain.CycleSummary{CycleID: uuid.NewString(), Mode: domain.ModeIncremental}
	logger := r.logger.With("cycle_id", summary.CycleID, "mode", summary.Mode)

	updates, invalid, _ := r.classifyChanged(ctx, logger, started)
	updated := r.update(ctx, logger, updates)

	summary.Updated = len(updated)
	summary.Invalid = len(invalid)

	r.finish(ctx, logger, &summary, invalid, updated)

	r.metrics.ObserveStage("reconcile_incremental", r.now().Sub(started).Seconds())
	return summary
}

func (r *Reconciler) finish(ctx context.Context, logger *slog.Logger, summary *domain.CycleSummary, invalid []string, touched []domain.ItemRef) {
	summary.FinishedAt = r.now().UTC()

	r.metrics.Items("published", summary.Published)
	r.metrics.Items("updated", summary.Updated)
	r.metrics.Items("deleted", int(summary.Deleted))
	r.metrics.Items("invalid", summary.Invalid)

	logger.Info("reconciliation finished",
		"published", summary.Published,
		"updated", summary.Updated,
		"deleted", summary.Deleted,
		"invalid", summary.Invalid)

	if len(invalid) > 0 {
		r.notifier.ReportInvalid(ctx, invalid)
	}
	r.notifier.TrackItems(ctx, touched)
	r.notifier.PublishSummary(ctx, *summary)
}

// classifyNew splits unpublished records into publishable params and the
// video ids of invalid ones.
func (r *Reconciler) classifyNew(ctx context.Context, records []domain.StagingRecord, now time.Time) ([]domain.ItemParams, []string) {
	var (
		publish []domain.ItemParams
		invalid []string
	)
	for _, rec := range records {
		params, videoKey, ok := r.build(ctx, rec, now)
		if !ok {
			invalid = append(invalid, videoKey)
			continue
		}
		publish = append(publish, params)
	}
	return publish, invalid
}

// classifyChanged builds updates for staged records whose catalog row differs.
// Invalid records come back as report ids plus the internal ids of their rows.
func (r *Reconciler) classifyChanged(ctx context.Context, logger *slog.Logger, now time.Time) ([]domain.ItemUpdate, []string, []int64) {
	changes, err := r.staging.ChangedStaging(ctx)
	if err != nil {
		logger.Error("read changed staging failed", "error", err)
		return nil, nil, nil
	}

	var (
		updates     []domain.ItemUpdate
		invalid     []string
		invalidRows []int64
	)
	for _, change := range changes {
		params, videoKey, ok := r.build(ctx, change.Record, now)
		if !ok {
			invalid = append(invalid, videoKey)
			invalidRows = append(invalidRows, change.ItemID)
			continue
		}
		updates = append(updates, domain.ItemUpdate{ItemID: change.ItemID, Params: params})
	}
	return updates, invalid, invalidRows
}

// build decodes, classifies and resolves one staged record.
func (r *Reconciler) build(ctx context.Context, rec domain.StagingRecord, now time.Time) (domain.ItemParams, string, bool) {
	entry, err := r.codec.DecodeEntry(rec.Source)
	if err != nil {
		r.logger.Warn("staged entry undecodable", "external_id", rec.ExternalID, "error", err)
		return domain.ItemParams{}, rec.ExternalID, false
	}

	facets := catalog.Classify(entry.Labels)
	res := r.resolver.Resolve(ctx, facets)
	if !res.Valid() {
		r.logger.Debug("staged entry invalid",
			"external_id", rec.ExternalID,
			"category", facets.Category,
			"subcategory", facets.Subcategory)
		return domain.ItemParams{}, entry.VideoKey(), false
	}

	return domain.ItemParams{
		ExternalID:      rec.ExternalID,
		CategoryID:      res.CategoryID,
		SubcategoryID:   res.SubcategoryID,
		BrandID:         res.BrandID,
		BrandName:       facets.Brand,
		Country:         facets.Country,
		Adult:           facets.Adult,
		EditorialSelect: facets.Select,
		EditorialFeed:   facets.Feed,
		RawTag:          facets.RawTag,
		Approved:        true,
		ApprovedAt:      now,
		UpdatedAt:       now,
		Title:           entry.Title,
		Description:     entry.Description,
		ThumbnailURL:    entry.ThumbnailURL,
		VideoURL:        entry.VideoURL,
		Duration:        entry.Duration,
		FeedUpdatedAt:   entry.UpdatedAt,
		FeedPublishedAt: entry.PublishedAt,
		ProviderVideoID: entry.ProviderVideoID,
		Source:          rec.Source,
	}, entry.VideoKey(), true
}

func (r *Reconciler) upsert(ctx context.Context, logger *slog.Logger, items []domain.ItemParams) []domain.ItemRef {
	if len(items) == 0 {
		return nil
	}
	refs, err := r.catalog.UpsertItems(ctx, items)
	if err != nil {
		logger.Error("publish items failed", "items", len(items), "applied", len(refs), "error", err)
	}
	return refs
}

func (r *Reconciler) update(ctx context.Context, logger *slog.Logger, updates []domain.ItemUpdate) []domain.ItemRef {
	if len(updates) == 0 {
		return nil
	}
	refs, err := r.catalog.UpdateItems(ctx, updates)
	if err != nil {
		logger.Error("update items failed", "items", len(updates), "applied", len(refs), "error", err)
	}
	return refs
}
