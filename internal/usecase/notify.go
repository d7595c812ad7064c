package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"CatalogSync/internal/domain"
	"CatalogSync/internal/metrics"
	"CatalogSync/internal/ports"
)

const invalidItemsBody = `Some feed items could not be published to the catalog.

Common causes:
- the category or subcategory tag does not match an existing category
- the item carries no hyphenated category-subcategory tag
- the brand tag is misspelled

The attached report lists the affected videos.
`

const missingVideosBody = `Some catalog videos were not found by the statistics API.

Common causes:
- the video was deleted or made private
- the external video id on the item is wrong

The attached report lists the affected videos.
`

// NotifierDeps wires the outbound collaborators. Any of them may be nil.
type NotifierDeps struct {
	Exporter    ports.ReportExporter
	Mailer      ports.Mailer
	Queue       ports.QueuePublisher
	Analytics   ports.AnalyticsTracker
	Chat        ports.ChatNotifier
	Recipients  []string
	Environment string
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Notifier fans cycle outcomes out to reports, email, queue, analytics and
// chat. Every call is best-effort: failures are logged and counted, never
// returned.
type Notifier struct {
	exporter    ports.ReportExporter
	mailer      ports.Mailer
	queue       ports.QueuePublisher
	analytics   ports.AnalyticsTracker
	chat        ports.ChatNotifier
	recipients  []string
	environment string
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewNotifier constructs the notification fan-out.
func NewNotifier(deps NotifierDeps) *Notifier {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		exporter:    deps.Exporter,
		mailer:      deps.Mailer,
		queue:       deps.Queue,
		analytics:   deps.Analytics,
		chat:        deps.Chat,
		recipients:  deps.Recipients,
		environment: deps.Environment,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// ReportInvalid exports invalid items and emails the report.
func (n *Notifier) ReportInvalid(ctx context.Context, videoIDs []string) {
	n.report(ctx, domain.ReportInvalidItems, "invalid items", invalidItemsBody, videoIDs)
}

// ReportMissing exports videos unknown to the statistics API and emails the report.
func (n *Notifier) ReportMissing(ctx context.Context, videoIDs []string) {
	n.report(ctx, domain.ReportMissingVideos, "missing videos", missingVideosBody, videoIDs)
}

// PublishSummary sends the cycle summary to the queue and, if configured, to chat.
func (n *Notifier) PublishSummary(ctx context.Context, summary domain.CycleSummary) {
	if n == nil {
		return
	}
	if n.queue != nil {
		if err := n.queue.Publish(ctx, summary); err != nil {
			n.failed("queue", err, "cycle_id", summary.CycleID)
		}
	}
	if n.chat != nil {
		if err := n.chat.PublishCycle(ctx, summary); err != nil {
			n.failed("chat", err, "cycle_id", summary.CycleID)
		}
	}
}

// TrackItems emits one analytics event per published or updated item.
func (n *Notifier) TrackItems(ctx context.Context, refs []domain.ItemRef) {
	if n == nil || n.analytics == nil {
		return
	}
	for _, ref := range refs {
		if err := n.analytics.Track(ctx, ref.ID, ref.ExternalID); err != nil {
			n.failed("analytics", err, "item_id", ref.ID, "external_id", ref.ExternalID)
		}
	}
}

func (n *Notifier) report(ctx context.Context, kind domain.ReportKind, title, body string, videoIDs []string) {
	if n == nil || len(videoIDs) == 0 || n.exporter == nil {
		return
	}

	name, path, err := n.exporter.Export(kind, videoIDs)
	if err != nil {
		n.failed("report", err, "kind", kind)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			n.logger.Warn("remove report failed", "path", path, "error", err)
		}
	}()

	if n.mailer == nil || len(n.recipients) == 0 {
		n.logger.Warn("report not mailed: no mailer or recipients", "kind", kind, "rows", len(videoIDs))
		return
	}

	msg := ports.Message{
		Subject:        subject(n.environment, title),
		Recipients:     n.recipients,
		Body:           body,
		AttachmentName: name,
		AttachmentPath: path,
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.failed("email", err, "kind", kind, "subject", msg.Subject)
		return
	}
	n.logger.Info("report mailed", "kind", kind, "rows", len(videoIDs), "file", name)
}

func (n *Notifier) failed(channel string, err error, attrs ...any) {
	n.metrics.SideEffectFailed(channel)
	n.logger.Warn("side effect failed", append([]any{"channel", channel, "error", err}, attrs...)...)
}

func subject(environment, title string) string {
	return strings.TrimSpace(fmt.Sprintf("%s catalog sync - %s", environment, title))
}
