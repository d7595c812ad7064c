package domain

import "time"

// Resolution holds catalog identifiers resolved from facets.
type Resolution struct {
	CategoryID    *int64
	SubcategoryID *int64
	BrandID       *int64
}

// Valid reports whether both category and subcategory resolved.
func (r Resolution) Valid() bool {
	return r.CategoryID != nil && r.SubcategoryID != nil
}

// ItemParams is the full column set written to the production catalog.
type ItemParams struct {
	ExternalID      string
	CategoryID      *int64
	SubcategoryID   *int64
	BrandID         *int64
	BrandName       string
	Country         string
	Adult           bool
	EditorialSelect bool
	EditorialFeed   bool
	RawTag          string
	Approved        bool
	ApprovedAt      time.Time
	UpdatedAt       time.Time
	Title           string
	Description     string
	ThumbnailURL    string
	VideoURL        string
	Duration        int64
	FeedUpdatedAt   string
	FeedPublishedAt string
	ProviderVideoID string
	Source          []byte
}

// ItemUpdate targets an existing production row by its internal id.
type ItemUpdate struct {
	ItemID int64
	Params ItemParams
}

// ItemRef pairs a production row's internal id with its external id.
type ItemRef struct {
	ID         int64
	ExternalID string
}

// ProductionRecord is a persisted catalog row.
type ProductionRecord struct {
	ID               int64
	ExternalID       string
	CategoryID       *int64
	SubcategoryID    *int64
	BrandID          *int64
	Title            string
	Description      string
	VideoURL         string
	Duration         int64
	Approved         bool
	ViewCount        int64
	ProviderVideoID  string
	FeedVideoID      string
	ExternalVideoID  string
	ExternalVideoURL string
	Source           []byte
}

// ViewCountUpdate carries enrichment fields for one production row.
type ViewCountUpdate struct {
	ItemID           int64
	ViewCount        int64
	FeedVideoID      string
	ExternalVideoID  string
	ExternalVideoURL string
}

// VideoStats is one entry returned by the statistics API.
// Hidden is set when the API returns the video without a usable view count.
type VideoStats struct {
	ID        string
	ViewCount int64
	Hidden    bool
}
