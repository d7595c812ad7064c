package domain

import (
	"net/url"
	"strings"
)

// FeedEntry is a single upstream media record as published by the feed.
type FeedEntry struct {
	ExternalID      string
	Title           string
	Description     string
	ThumbnailURL    string
	VideoURL        string
	Duration        int64
	PublishedAt     string
	UpdatedAt       string
	Labels          []string
	ProviderVideoID string
}

// VideoKey returns the hosting player's video identifier for the entry.
func (e FeedEntry) VideoKey() string {
	if key := VideoKeyFromURL(e.VideoURL); key != "" {
		return key
	}
	return e.ExternalID
}

// VideoKeyFromURL extracts the `id` query parameter of a player URL.
func VideoKeyFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("id")
}

// SecureURL rewrites protocol-relative URLs to https.
func SecureURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

// Facets are the normalized classification dimensions derived from entry labels.
type Facets struct {
	Country     string
	Category    string
	Subcategory string
	Brand       string
	Adult       bool
	Select      bool
	Feed        bool
	RawTag      string
}

// StagingRecord is one raw feed entry held in the staging store for a single cycle.
type StagingRecord struct {
	ExternalID string
	Source     []byte
}

// StagedChange is a staging record whose production counterpart differs.
type StagedChange struct {
	ItemID int64
	Record StagingRecord
}
