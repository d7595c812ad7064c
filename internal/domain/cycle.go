package domain

import "time"

// CycleMode names the reconciliation entry point that produced a summary.
type CycleMode string

const (
	ModeFull        CycleMode = "full"
	ModeIncremental CycleMode = "incremental"
)

// CycleSummary is the outcome of one reconciliation cycle.
type CycleSummary struct {
	CycleID    string    `json:"cycle_id"`
	Mode       CycleMode `json:"mode"`
	Published  int       `json:"published"`
	Updated    int       `json:"updated"`
	Deleted    int64     `json:"deleted"`
	Invalid    int       `json:"invalid"`
	Skipped    bool      `json:"skipped,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// IngestSummary is the outcome of one ingestion run.
type IngestSummary struct {
	Pages       int
	Staged      int
	FailedPages []int
}

// EnrichSummary is the outcome of one enrichment run.
type EnrichSummary struct {
	Selected      int
	Eligible      int
	Batches       int
	FailedBatches int
	Updated       int
	Missing       int
}

// ReportKind selects the report flavour written by the exporter.
type ReportKind string

const (
	ReportInvalidItems  ReportKind = "invalid_items"
	ReportMissingVideos ReportKind = "missing_videos"
)
