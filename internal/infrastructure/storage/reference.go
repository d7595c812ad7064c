package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"CatalogSync/internal/ports"
)

var _ ports.IndexLookup = (*Store)(nil)

// CategoryID looks up a category by exact name.
func (s *Store) CategoryID(ctx context.Context, name string) (int64, bool, error) {
	return s.lookupID(ctx, s.sb.Select("id").From("categories").Where(sq.Eq{"name": name}).Limit(1))
}

// SubcategoryID looks up a subcategory by exact name within a category.
func (s *Store) SubcategoryID(ctx context.Context, name string, categoryID int64) (int64, bool, error) {
	return s.lookupID(ctx, s.sb.
		Select("id").
		From("subcategories").
		Where(sq.Eq{"name": name, "category_id": categoryID}).
		Limit(1))
}

// BrandID looks up a brand by exact name.
func (s *Store) BrandID(ctx context.Context, name string) (int64, bool, error) {
	return s.lookupID(ctx, s.sb.Select("id").From("brands").Where(sq.Eq{"name": name}).Limit(1))
}

func (s *Store) lookupID(ctx context.Context, b sq.SelectBuilder) (int64, bool, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build lookup: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, stmt, args...).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		s.logger.Error("lookup failed", "statement", stmt, "args", args, "error", err)
		return 0, false, fmt.Errorf("lookup: %w", err)
	}
	return id, true, nil
}
