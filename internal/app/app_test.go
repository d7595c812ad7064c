package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CatalogSync/internal/config"
	"CatalogSync/internal/infrastructure/storage/storagetest"
	"CatalogSync/internal/logging"
)

const feedPage = `{
  "opensearch:totalResults": {"content": 2},
  "entry": [
    {
      "id": {"content": "FNG3F71FC8QXBHSD"},
      "title": {"content": "Late night interview"},
      "category": [{"label": "Television-Talk_Shows"}, {"label": "country.usa"}],
      "media:html5": {"url": "//player.example.org/?id=FNG3F71FC8QXBHSD", "duration": "97"},
      "magnify:externalid": {"content": "148221234"}
    },
    {
      "id": {"content": "T0LKMF341NSC2LBC"},
      "title": {"content": "Bottom of the ninth"},
      "category": [{"label": "Sports-MLB"}],
      "media:html5": {"url": "https://player.example.org/?id=T0LKMF341NSC2LBC", "duration": null},
      "magnify:externalid": {"content": "77"}
    }
  ]
}`

type harness struct {
	db        *sql.DB
	feedUp    atomic.Bool
	statsHits atomic.Int32
	cfg       config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	h.feedUp.Store(true)

	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !h.feedUp.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, feedPage)
	}))
	t.Cleanup(feedSrv.Close)

	statsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.statsHits.Add(1)
		fmt.Fprint(w, `{"items":[{"id":"148221234","statistics":{"viewCount":"12"}}]}`)
	}))
	t.Cleanup(statsSrv.Close)

	dsn := "file:" + filepath.Join(t.TempDir(), "catalog.db") + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(storagetest.Schema)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO categories (id, name) VALUES (1, 'Television'), (2, 'Sports');
		INSERT INTO subcategories (name, category_id) VALUES ('Talk Shows', 1), ('MLB', 2);
	`)
	require.NoError(t, err)
	h.db = db

	h.cfg = config.Config{
		Logging:  config.LoggingConfig{Level: "error"},
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: dsn},
		Feed:     config.FeedConfig{BaseURL: feedSrv.URL, PageSize: 50},
		Stats: config.StatsConfig{
			Endpoint:       statsSrv.URL,
			BatchSize:      50,
			SelectLimit:    2000,
			WatchURLPrefix: "https://www.youtube.com/watch?v=",
		},
		Report: config.ReportConfig{Directory: t.TempDir(), Environment: "test"},
		Scheduler: config.SchedulerConfig{
			SyncInterval:   config.Duration(time.Hour),
			EnrichInterval: config.Duration(time.Hour),
		},
	}
	return h
}

func (h *harness) app(t *testing.T) *Application {
	t.Helper()
	a, err := New(context.Background(), h.cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func (h *harness) catalogCount(t *testing.T) int {
	t.Helper()
	n, err := h.count()
	require.NoError(t, err)
	return n
}

func (h *harness) count() (int, error) {
	var n int
	err := h.db.QueryRow("SELECT COUNT(*) FROM catalog_items").Scan(&n)
	return n, err
}

func TestSyncPublishesFeed(t *testing.T) {
	h := newHarness(t)
	a := h.app(t)

	ingest, cycle, ran := a.Sync(context.Background())

	require.True(t, ran)
	assert.Equal(t, 1, ingest.Pages)
	assert.Equal(t, 2, ingest.Staged)
	assert.Equal(t, 2, cycle.Published)
	assert.Equal(t, 2, h.catalogCount(t))
}

func TestSyncSkipsReconcileWhenNothingStaged(t *testing.T) {
	h := newHarness(t)
	a := h.app(t)

	_, _, ran := a.Sync(context.Background())
	require.True(t, ran)

	h.feedUp.Store(false)
	ingest, _, ran := a.Sync(context.Background())

	assert.False(t, ran)
	assert.Zero(t, ingest.Staged)
	assert.Equal(t, 2, h.catalogCount(t))
}

func TestReconcileNeverEmptiesCatalogFromEmptyStaging(t *testing.T) {
	h := newHarness(t)
	a := h.app(t)
	ctx := context.Background()

	_, _, ran := a.Sync(ctx)
	require.True(t, ran)

	again := a.Reconcile(ctx, false)
	assert.True(t, again.Skipped)
	assert.Zero(t, again.Deleted)
	assert.Equal(t, 2, h.catalogCount(t))

	h.feedUp.Store(false)
	ingest := a.Ingest(ctx)
	require.Zero(t, ingest.Staged)

	cycle := a.Reconcile(ctx, false)
	assert.True(t, cycle.Skipped)
	assert.Equal(t, 2, h.catalogCount(t))
}

func TestEnrichUpdatesNumericIDs(t *testing.T) {
	h := newHarness(t)
	a := h.app(t)
	a.Sync(context.Background())

	summary := a.Enrich(context.Background())

	assert.Equal(t, 2, summary.Eligible)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Missing)

	var views int64
	require.NoError(t, h.db.QueryRow(
		"SELECT view_count FROM catalog_items WHERE provider_video_id = '148221234'").Scan(&views))
	assert.EqualValues(t, 12, views)
}

func TestRunSchedulesBothLoopsUntilCancelled(t *testing.T) {
	h := newHarness(t)
	h.cfg.Metrics.Addr = "127.0.0.1:0"
	h.cfg.Scheduler.EnrichInterval = config.Duration(50 * time.Millisecond)
	a := h.app(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := h.count()
		return err == nil && n == 2 && h.statsHits.Load() > 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	h := newHarness(t)
	h.cfg.Database.Driver = "oracle"

	_, err := New(context.Background(), h.cfg, logging.Discard())
	require.Error(t, err)
}
