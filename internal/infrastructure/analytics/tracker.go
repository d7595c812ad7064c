// Package analytics emits catalog tracking events to Segment.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	segment "github.com/segmentio/analytics-go/v3"

	"CatalogSync/internal/config"
	"CatalogSync/internal/ports"
)

// ErrNotConfigured is returned when no write key is set.
var ErrNotConfigured = errors.New("analytics not configured")

// Tracker enqueues one track call per catalog item.
type Tracker struct {
	client segment.Client
	event  string
	now    func() time.Time
}

var _ ports.AnalyticsTracker = (*Tracker)(nil)

// NewTracker builds a Segment-backed tracker. An empty write key yields a
// tracker whose calls fail with ErrNotConfigured.
func NewTracker(cfg config.AnalyticsConfig) (*Tracker, error) {
	if cfg.WriteKey == "" {
		return newTracker(nil, cfg.Event), nil
	}
	client, err := segment.NewWithConfig(cfg.WriteKey, segment.Config{BatchSize: 100})
	if err != nil {
		return nil, fmt.Errorf("segment client: %w", err)
	}
	return newTracker(client, cfg.Event), nil
}

func newTracker(client segment.Client, event string) *Tracker {
	if event == "" {
		event = "Video Created Or Updated"
	}
	return &Tracker{client: client, event: event, now: time.Now}
}

// Track enqueues the event; delivery happens asynchronously in batches.
func (t *Tracker) Track(_ context.Context, itemID int64, externalID string) error {
	if t.client == nil {
		return ErrNotConfigured
	}
	now := t.now().UTC()
	err := t.client.Enqueue(segment.Track{
		UserId:    strconv.FormatInt(itemID, 10),
		Event:     t.event,
		Timestamp: now,
		Properties: segment.NewProperties().
			Set("external_id", externalID).
			Set("updated_date", now.Format(time.RFC3339)),
	})
	if err != nil {
		return fmt.Errorf("enqueue track: %w", err)
	}
	return nil
}

// Close flushes pending events.
func (t *Tracker) Close() error {
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}
