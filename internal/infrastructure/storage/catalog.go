package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"CatalogSync/internal/domain"
	"CatalogSync/internal/ports"
)

const catalogTable = "catalog_items"

var (
	_ ports.CatalogStore    = (*Store)(nil)
	_ ports.EnrichmentStore = (*Store)(nil)
)

// insertColumns is the column order used by UpsertItems.
var insertColumns = []string{
	"external_id",
	"category_id",
	"subcategory_id",
	"brand_id",
	"brand_name",
	"country",
	"adult",
	"editorial_select",
	"editorial_feed",
	"raw_tag",
	"approved",
	"approval_date",
	"updated_date",
	"title",
	"description",
	"thumbnail_url",
	"video_url",
	"duration",
	"feed_updated_date",
	"feed_published_date",
	"provider_video_id",
	"source",
}

func insertValues(p domain.ItemParams) []any {
	return []any{
		p.ExternalID,
		nullID(p.CategoryID),
		nullID(p.SubcategoryID),
		nullID(p.BrandID),
		p.BrandName,
		p.Country,
		p.Adult,
		p.EditorialSelect,
		p.EditorialFeed,
		p.RawTag,
		p.Approved,
		p.ApprovedAt.UTC(),
		p.UpdatedAt.UTC(),
		p.Title,
		p.Description,
		p.ThumbnailURL,
		p.VideoURL,
		p.Duration,
		p.FeedUpdatedAt,
		p.FeedPublishedAt,
		p.ProviderVideoID,
		string(p.Source),
	}
}

// updateClauses lists the columns rewritten for an existing row. Approval
// state is left as first published.
func updateClauses(p domain.ItemParams) map[string]any {
	return map[string]any{
		"category_id":         nullID(p.CategoryID),
		"subcategory_id":      nullID(p.SubcategoryID),
		"brand_id":            nullID(p.BrandID),
		"brand_name":          p.BrandName,
		"country":             p.Country,
		"adult":               p.Adult,
		"editorial_select":    p.EditorialSelect,
		"editorial_feed":      p.EditorialFeed,
		"raw_tag":             p.RawTag,
		"updated_date":        p.UpdatedAt.UTC(),
		"title":               p.Title,
		"description":         p.Description,
		"thumbnail_url":       p.ThumbnailURL,
		"video_url":           p.VideoURL,
		"duration":            p.Duration,
		"feed_updated_date":   p.FeedUpdatedAt,
		"feed_published_date": p.FeedPublishedAt,
		"provider_video_id":   p.ProviderVideoID,
		"source":              string(p.Source),
	}
}

var upsertSuffix = func() string {
	var sets []string
	for _, col := range insertColumns {
		switch col {
		case "external_id", "approved", "approval_date":
			continue
		}
		sets = append(sets, col+" = excluded."+col)
	}
	return "ON CONFLICT (external_id) DO UPDATE SET " + strings.Join(sets, ", ") + " RETURNING id, external_id"
}()

// UpsertItems inserts catalog rows, overwriting rows that already carry the
// same external id, and returns the affected rows.
func (s *Store) UpsertItems(ctx context.Context, items []domain.ItemParams) ([]domain.ItemRef, error) {
	items = lastItemByExternalID(items)
	if len(items) == 0 {
		return nil, nil
	}

	refs := make([]domain.ItemRef, 0, len(items))
	for _, bounds := range chunkBounds(len(items), s.batchSize) {
		insert := s.sb.Insert(catalogTable).Columns(insertColumns...)
		for _, item := range items[bounds[0]:bounds[1]] {
			insert = insert.Values(insertValues(item)...)
		}
		insert = insert.Suffix(upsertSuffix)

		rows, err := s.query(ctx, insert)
		if err != nil {
			return refs, fmt.Errorf("upsert items: %w", err)
		}
		batch, err := scanRefs(rows)
		if err != nil {
			return refs, fmt.Errorf("upsert items: %w", err)
		}
		refs = append(refs, batch...)
	}
	return refs, nil
}

// UpdateItems rewrites existing rows by internal id. Each batch runs in its
// own transaction; ids with no row are skipped.
func (s *Store) UpdateItems(ctx context.Context, updates []domain.ItemUpdate) ([]domain.ItemRef, error) {
	refs := make([]domain.ItemRef, 0, len(updates))
	for _, bounds := range chunkBounds(len(updates), s.batchSize) {
		batch := updates[bounds[0]:bounds[1]]
		var applied []domain.ItemRef
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			for _, u := range batch {
				res, err := s.exec(ctx, tx, s.sb.
					Update(catalogTable).
					SetMap(updateClauses(u.Params)).
					Where(sq.Eq{"id": u.ItemID}))
				if err != nil {
					return fmt.Errorf("update item %d: %w", u.ItemID, err)
				}
				if n, err := res.RowsAffected(); err == nil && n > 0 {
					applied = append(applied, domain.ItemRef{ID: u.ItemID, ExternalID: u.Params.ExternalID})
				}
			}
			return nil
		})
		if err != nil {
			return refs, err
		}
		refs = append(refs, applied...)
	}
	return refs, nil
}

// DeleteStale removes catalog rows whose external id is absent from staging.
func (s *Store) DeleteStale(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, s.db, s.sb.
		Delete(catalogTable).
		Where("NOT EXISTS (SELECT 1 FROM " + stagingTable + " s WHERE s.external_id = " + catalogTable + ".external_id)"))
	if err != nil {
		return 0, fmt.Errorf("delete stale items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// DeleteItems removes catalog rows by internal id and returns how many went.
func (s *Store) DeleteItems(ctx context.Context, ids []int64) (int64, error) {
	var deleted int64
	for _, bounds := range chunkBounds(len(ids), s.batchSize) {
		res, err := s.exec(ctx, s.db, s.sb.
			Delete(catalogTable).
			Where(sq.Eq{"id": ids[bounds[0]:bounds[1]]}))
		if err != nil {
			return deleted, fmt.Errorf("delete items: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("rows affected: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

var recordColumns = []string{
	"id",
	"external_id",
	"category_id",
	"subcategory_id",
	"brand_id",
	"COALESCE(title, '')",
	"COALESCE(description, '')",
	"COALESCE(video_url, '')",
	"COALESCE(duration, 0)",
	"approved",
	"COALESCE(view_count, 0)",
	"COALESCE(provider_video_id, '')",
	"COALESCE(feed_video_id, '')",
	"COALESCE(external_video_id, '')",
	"COALESCE(external_video_url, '')",
	"COALESCE(source, '')",
}

// ListCatalog returns every catalog row ordered by id.
func (s *Store) ListCatalog(ctx context.Context) ([]domain.ProductionRecord, error) {
	return s.records(ctx, s.sb.Select(recordColumns...).From(catalogTable).OrderBy("id"))
}

// LeastViewed returns up to limit rows ordered by ascending view count.
func (s *Store) LeastViewed(ctx context.Context, limit int) ([]domain.ProductionRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.records(ctx, s.sb.
		Select(recordColumns...).
		From(catalogTable).
		OrderBy("COALESCE(view_count, 0) ASC", "id ASC").
		Limit(uint64(limit)))
}

// UpdateViewCounts writes enrichment results in one transaction.
func (s *Store) UpdateViewCounts(ctx context.Context, updates []domain.ViewCountUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, u := range updates {
			_, err := s.exec(ctx, tx, s.sb.
				Update(catalogTable).
				Set("view_count", u.ViewCount).
				Set("feed_video_id", u.FeedVideoID).
				Set("external_video_id", u.ExternalVideoID).
				Set("external_video_url", u.ExternalVideoURL).
				Where(sq.Eq{"id": u.ItemID}))
			if err != nil {
				return fmt.Errorf("update view count %d: %w", u.ItemID, err)
			}
		}
		return nil
	})
}

func (s *Store) records(ctx context.Context, b sq.SelectBuilder) ([]domain.ProductionRecord, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("select catalog: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductionRecord
	for rows.Next() {
		var (
			r                            domain.ProductionRecord
			category, subcategory, brand sql.NullInt64
		)
		if err := rows.Scan(
			&r.ID,
			&r.ExternalID,
			&category,
			&subcategory,
			&brand,
			&r.Title,
			&r.Description,
			&r.VideoURL,
			&r.Duration,
			&r.Approved,
			&r.ViewCount,
			&r.ProviderVideoID,
			&r.FeedVideoID,
			&r.ExternalVideoID,
			&r.ExternalVideoURL,
			&r.Source,
		); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		r.CategoryID = idPtr(category)
		r.SubcategoryID = idPtr(subcategory)
		r.BrandID = idPtr(brand)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func scanRefs(rows *sql.Rows) ([]domain.ItemRef, error) {
	defer rows.Close()

	var refs []domain.ItemRef
	for rows.Next() {
		var ref domain.ItemRef
		if err := rows.Scan(&ref.ID, &ref.ExternalID); err != nil {
			return nil, fmt.Errorf("scan ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return refs, nil
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func lastItemByExternalID(items []domain.ItemParams) []domain.ItemParams {
	pos := make(map[string]int, len(items))
	out := make([]domain.ItemParams, 0, len(items))
	for _, item := range items {
		if i, ok := pos[item.ExternalID]; ok {
			out[i] = item
			continue
		}
		pos[item.ExternalID] = len(out)
		out = append(out, item)
	}
	return out
}
