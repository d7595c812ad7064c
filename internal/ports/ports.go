package ports

import (
	"context"
	"time"

	"CatalogSync/internal/domain"
)

// FeedSource pulls listing metadata and raw pages from the upstream media feed.
type FeedSource interface {
	TotalCount(ctx context.Context) (int, error)
	FetchPage(ctx context.Context, page int) ([]byte, error)
}

// FeedCodec turns raw feed payloads into staging records and staged sources into entries.
type FeedCodec interface {
	ParsePage(raw []byte) ([]domain.StagingRecord, error)
	DecodeEntry(source []byte) (domain.FeedEntry, error)
}

// StagingStore holds the raw snapshot of one ingestion cycle.
type StagingStore interface {
	InsertStaging(ctx context.Context, records []domain.StagingRecord) error
	ListStaging(ctx context.Context) ([]domain.StagingRecord, error)
	UnpublishedStaging(ctx context.Context) ([]domain.StagingRecord, error)
	ChangedStaging(ctx context.Context) ([]domain.StagedChange, error)
	CountStaging(ctx context.Context) (int, error)
	TruncateStaging(ctx context.Context) error
}

// CatalogStore persists the production catalog.
type CatalogStore interface {
	UpsertItems(ctx context.Context, items []domain.ItemParams) ([]domain.ItemRef, error)
	UpdateItems(ctx context.Context, updates []domain.ItemUpdate) ([]domain.ItemRef, error)
	DeleteStale(ctx context.Context) (int64, error)
	DeleteItems(ctx context.Context, ids []int64) (int64, error)
}

// EnrichmentStore exposes the production operations needed by enrichment.
type EnrichmentStore interface {
	LeastViewed(ctx context.Context, limit int) ([]domain.ProductionRecord, error)
	UpdateViewCounts(ctx context.Context, updates []domain.ViewCountUpdate) error
}

// IndexLookup resolves reference names to catalog identifiers.
// A missing row is reported as found=false with a nil error.
type IndexLookup interface {
	CategoryID(ctx context.Context, name string) (int64, bool, error)
	SubcategoryID(ctx context.Context, name string, categoryID int64) (int64, bool, error)
	BrandID(ctx context.Context, name string) (int64, bool, error)
}

// StatsClient fetches engagement statistics for a batch of video ids.
type StatsClient interface {
	ViewCounts(ctx context.Context, ids []string) ([]domain.VideoStats, error)
}

// ReportExporter writes a tabular report and returns its file name and path.
type ReportExporter interface {
	Export(kind domain.ReportKind, videoIDs []string) (name, path string, err error)
}

// Mailer transmits a composed message with an optional attachment.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Message is an outbound email.
type Message struct {
	Subject        string
	Recipients     []string
	Body           string
	AttachmentName string
	AttachmentPath string
}

// QueuePublisher publishes a JSON-serializable payload.
type QueuePublisher interface {
	Publish(ctx context.Context, payload any) error
}

// AnalyticsTracker emits one tracking event per catalog item.
type AnalyticsTracker interface {
	Track(ctx context.Context, itemID int64, externalID string) error
}

// ChatNotifier reports a finished reconciliation cycle to a chat channel.
type ChatNotifier interface {
	PublishCycle(ctx context.Context, summary domain.CycleSummary) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
