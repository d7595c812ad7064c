package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"CatalogSync/internal/domain"
	"CatalogSync/internal/logging"
	"CatalogSync/internal/ports"
)

var errBoom = errors.New("boom")

func discard() *slog.Logger {
	return logging.Discard()
}

// entrySource renders a feed entry document the way the feed delivers it.
func entrySource(t testing.TB, id, title string, labels ...string) []byte {
	t.Helper()

	categories := make([]map[string]string, 0, len(labels))
	for _, l := range labels {
		categories = append(categories, map[string]string{"label": l})
	}
	doc := map[string]any{
		"id":                 map[string]string{"content": id},
		"title":              map[string]string{"content": title},
		"content":            map[string]string{"content": "about " + title},
		"category":           categories,
		"media:thumbnail":    map[string]string{"url": "https://img.example.org/" + id + ".jpg"},
		"media:html5":        map[string]any{"url": "//player.example.org/?id=V" + id, "duration": "61"},
		"updated":            map[string]string{"content": "2024-05-01T00:00:00Z"},
		"published":          map[string]string{"content": "2024-04-30T00:00:00Z"},
		"magnify:externalid": map[string]string{"content": "9" + id},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}
	return raw
}

func stagedEntry(t testing.TB, id, title string, labels ...string) domain.StagingRecord {
	t.Helper()
	return domain.StagingRecord{ExternalID: id, Source: entrySource(t, id, title, labels...)}
}

type fakeFeed struct {
	count    int
	countErr error
	pages    map[int][]byte
	failures map[int]int
	calls    []int
}

func (f *fakeFeed) TotalCount(context.Context) (int, error) {
	return f.count, f.countErr
}

func (f *fakeFeed) FetchPage(_ context.Context, page int) ([]byte, error) {
	f.calls = append(f.calls, page)
	if f.failures[page] > 0 {
		f.failures[page]--
		return nil, fmt.Errorf("page %d: %w", page, errBoom)
	}
	raw, ok := f.pages[page]
	if !ok {
		return nil, fmt.Errorf("page %d missing: %w", page, errBoom)
	}
	return raw, nil
}

type memStaging struct {
	records []domain.StagingRecord
	inserts int
	// insertFailures fails that many InsertStaging calls before succeeding.
	insertFailures int
	truncates      int
}

var _ ports.StagingStore = (*memStaging)(nil)

func (m *memStaging) InsertStaging(_ context.Context, records []domain.StagingRecord) error {
	if m.insertFailures > 0 {
		m.insertFailures--
		return errBoom
	}
	m.inserts++
	m.records = append(m.records, records...)
	return nil
}

func (m *memStaging) ListStaging(context.Context) ([]domain.StagingRecord, error) {
	return slices.Clone(m.records), nil
}

func (m *memStaging) UnpublishedStaging(context.Context) ([]domain.StagingRecord, error) {
	return slices.Clone(m.records), nil
}

func (m *memStaging) ChangedStaging(context.Context) ([]domain.StagedChange, error) {
	return nil, nil
}

func (m *memStaging) CountStaging(context.Context) (int, error) {
	return len(m.records), nil
}

func (m *memStaging) TruncateStaging(context.Context) error {
	m.truncates++
	m.records = nil
	return nil
}

type exportCall struct {
	kind domain.ReportKind
	ids  []string
	path string
}

type fakeExporter struct {
	dir   string
	err   error
	calls []exportCall
}

func (f *fakeExporter) Export(kind domain.ReportKind, ids []string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	name := string(kind) + ".csv"
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte("video_id\n"), 0o600); err != nil {
		return "", "", err
	}
	f.calls = append(f.calls, exportCall{kind: kind, ids: slices.Clone(ids), path: path})
	return name, path, nil
}

type fakeMailer struct {
	err            error
	sent           []ports.Message
	attachmentSeen []bool
}

func (f *fakeMailer) Send(_ context.Context, msg ports.Message) error {
	_, statErr := os.Stat(msg.AttachmentPath)
	f.attachmentSeen = append(f.attachmentSeen, statErr == nil)
	f.sent = append(f.sent, msg)
	return f.err
}

type fakeQueue struct {
	err      error
	payloads []any
}

func (f *fakeQueue) Publish(_ context.Context, payload any) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

type fakeTracker struct {
	failFor string
	events  []domain.ItemRef
}

func (f *fakeTracker) Track(_ context.Context, itemID int64, externalID string) error {
	if externalID == f.failFor {
		return errBoom
	}
	f.events = append(f.events, domain.ItemRef{ID: itemID, ExternalID: externalID})
	return nil
}

type fakeChat struct {
	err    error
	cycles []domain.CycleSummary
}

func (f *fakeChat) PublishCycle(_ context.Context, summary domain.CycleSummary) error {
	f.cycles = append(f.cycles, summary)
	return f.err
}

type fakeStats struct {
	calls   [][]string
	respond func(call int, ids []string) ([]domain.VideoStats, error)
}

func (f *fakeStats) ViewCounts(_ context.Context, ids []string) ([]domain.VideoStats, error) {
	f.calls = append(f.calls, slices.Clone(ids))
	return f.respond(len(f.calls), ids)
}

type fakeEnrichmentStore struct {
	rows      []domain.ProductionRecord
	selectErr error
	updateErr error
	limit     int
	updates   [][]domain.ViewCountUpdate
}

func (f *fakeEnrichmentStore) LeastViewed(_ context.Context, limit int) ([]domain.ProductionRecord, error) {
	f.limit = limit
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.rows, nil
}

func (f *fakeEnrichmentStore) UpdateViewCounts(_ context.Context, updates []domain.ViewCountUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, slices.Clone(updates))
	return nil
}

// sinks bundles the notification fakes behind one Notifier.
type sinks struct {
	exporter *fakeExporter
	mailer   *fakeMailer
	queue    *fakeQueue
	tracker  *fakeTracker
	chat     *fakeChat
	notifier *Notifier
}

func newSinks(t testing.TB) *sinks {
	t.Helper()
	s := &sinks{
		exporter: &fakeExporter{dir: t.TempDir()},
		mailer:   &fakeMailer{},
		queue:    &fakeQueue{},
		tracker:  &fakeTracker{},
		chat:     &fakeChat{},
	}
	s.notifier = NewNotifier(NotifierDeps{
		Exporter:    s.exporter,
		Mailer:      s.mailer,
		Queue:       s.queue,
		Analytics:   s.tracker,
		Chat:        s.chat,
		Recipients:  []string{"ops@example.org"},
		Environment: "test",
		Logger:      discard(),
	})
	return s
}
