// Package report writes the CSV reports attached to notification emails.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"CatalogSync/internal/config"
	"CatalogSync/internal/domain"
	"CatalogSync/internal/ports"
)

var header = []string{"video_id", "player_url", "manage_url"}

// CSVExporter writes one row per video id with its player and management links.
type CSVExporter struct {
	dir       string
	playerURL string
	manageURL string
	now       func() time.Time
}

var _ ports.ReportExporter = (*CSVExporter)(nil)

// NewCSVExporter builds an exporter writing into cfg.Directory.
func NewCSVExporter(cfg config.ReportConfig) *CSVExporter {
	return &CSVExporter{
		dir:       cfg.Directory,
		playerURL: cfg.PlayerURLTemplate,
		manageURL: cfg.ManageURLTemplate,
		now:       time.Now,
	}
}

// Export writes <kind>_YYYY-MM-DD.csv and returns its name and path.
func (e *CSVExporter) Export(kind domain.ReportKind, videoIDs []string) (string, string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create report dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.csv", kind, e.now().Format(time.DateOnly))
	path := filepath.Join(e.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("create report: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return "", "", fmt.Errorf("write header: %w", err)
	}
	for _, id := range videoIDs {
		if err := w.Write([]string{id, link(e.playerURL, id), link(e.manageURL, id)}); err != nil {
			_ = f.Close()
			return "", "", fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return "", "", fmt.Errorf("flush report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("close report: %w", err)
	}

	return name, path, nil
}

func link(template, id string) string {
	if template == "" {
		return ""
	}
	if !strings.Contains(template, "%s") {
		return template + id
	}
	return fmt.Sprintf(template, id)
}
