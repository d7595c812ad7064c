package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"CatalogSync/internal/domain"
	"CatalogSync/internal/ports"
)

const stagingTable = "staging_items"

var _ ports.StagingStore = (*Store)(nil)

// InsertStaging loads records with a single multi-row statement.
// Repeated external ids collapse to the last record.
func (s *Store) InsertStaging(ctx context.Context, records []domain.StagingRecord) error {
	records = lastByExternalID(records)
	if len(records) == 0 {
		return nil
	}

	insert := s.sb.Insert(stagingTable).Columns("external_id", "source")
	for _, r := range records {
		insert = insert.Values(r.ExternalID, string(r.Source))
	}
	insert = insert.Suffix("ON CONFLICT (external_id) DO UPDATE SET source = excluded.source")

	if _, err := s.exec(ctx, s.db, insert); err != nil {
		return fmt.Errorf("insert staging: %w", err)
	}
	return nil
}

// ListStaging returns the whole staging snapshot in load order.
func (s *Store) ListStaging(ctx context.Context) ([]domain.StagingRecord, error) {
	return s.stagingRecords(ctx, s.sb.
		Select("s.external_id", "s.source").
		From(stagingTable+" s").
		OrderBy("s.id"))
}

// UnpublishedStaging returns staging records with no catalog row.
func (s *Store) UnpublishedStaging(ctx context.Context) ([]domain.StagingRecord, error) {
	return s.stagingRecords(ctx, s.sb.
		Select("s.external_id", "s.source").
		From(stagingTable+" s").
		Where("NOT EXISTS (SELECT 1 FROM " + catalogTable + " c WHERE c.external_id = s.external_id)").
		OrderBy("s.id"))
}

// ChangedStaging returns staging records whose catalog row holds a different source.
func (s *Store) ChangedStaging(ctx context.Context) ([]domain.StagedChange, error) {
	rows, err := s.query(ctx, s.sb.
		Select("c.id", "s.external_id", "s.source").
		From(stagingTable+" s").
		Join(catalogTable+" c ON c.external_id = s.external_id").
		Where("c.source <> s.source").
		OrderBy("s.id"))
	if err != nil {
		return nil, fmt.Errorf("select changed staging: %w", err)
	}
	defer rows.Close()

	var changes []domain.StagedChange
	for rows.Next() {
		var c domain.StagedChange
		if err := rows.Scan(&c.ItemID, &c.Record.ExternalID, &c.Record.Source); err != nil {
			return nil, fmt.Errorf("scan changed staging: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return changes, nil
}

// CountStaging returns the number of staged records.
func (s *Store) CountStaging(ctx context.Context) (int, error) {
	rows, err := s.query(ctx, s.sb.Select("COUNT(*)").From(stagingTable))
	if err != nil {
		return 0, fmt.Errorf("count staging: %w", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scan staging count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("rows iteration: %w", err)
	}
	return n, nil
}

// TruncateStaging empties the staging table.
func (s *Store) TruncateStaging(ctx context.Context) error {
	if s.dialect == DialectPostgres {
		if _, err := s.db.ExecContext(ctx, "TRUNCATE TABLE "+stagingTable); err != nil {
			s.logger.Error("statement failed", "statement", "TRUNCATE TABLE "+stagingTable, "error", err)
			return fmt.Errorf("truncate staging: %w", err)
		}
		return nil
	}

	if _, err := s.exec(ctx, s.db, s.sb.Delete(stagingTable)); err != nil {
		return fmt.Errorf("truncate staging: %w", err)
	}
	return nil
}

func (s *Store) stagingRecords(ctx context.Context, b sq.SelectBuilder) ([]domain.StagingRecord, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("select staging: %w", err)
	}
	defer rows.Close()

	var records []domain.StagingRecord
	for rows.Next() {
		var r domain.StagingRecord
		if err := rows.Scan(&r.ExternalID, &r.Source); err != nil {
			return nil, fmt.Errorf("scan staging: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

func lastByExternalID(records []domain.StagingRecord) []domain.StagingRecord {
	pos := make(map[string]int, len(records))
	out := make([]domain.StagingRecord, 0, len(records))
	for _, r := range records {
		if i, ok := pos[r.ExternalID]; ok {
			out[i] = r
			continue
		}
		pos[r.ExternalID] = len(out)
		out = append(out, r)
	}
	return out
}
