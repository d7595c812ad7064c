// Package storage implements the staging, catalog and reference stores on a
// relational database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"CatalogSync/internal/config"
)

// Dialect selects statement flavour and placeholder format.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

const defaultBatchSize = 200

// ErrUnknownDriver is returned for a driver name with no matching dialect.
var ErrUnknownDriver = errors.New("unknown database driver")

// Store persists staging records, catalog items and reference lookups.
type Store struct {
	db        *sql.DB
	dialect   Dialect
	sb        sq.StatementBuilderType
	logger    *slog.Logger
	batchSize int
}

// Open connects using the configured driver and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	dialect, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	switch {
	case dialect == DialectSQLite:
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(db, dialect, logger), nil
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	var placeholder sq.PlaceholderFormat = sq.Dollar
	if dialect == DialectSQLite {
		placeholder = sq.Question
	}
	return &Store{
		db:        db,
		dialect:   dialect,
		sb:        sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger:    logger,
		batchSize: defaultBatchSize,
	}
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return DialectPostgres, nil
	case "sqlite":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		s.logger.Error("query failed", "statement", stmt, "args", args, "error", err)
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

func (s *Store) exec(ctx context.Context, runner execer, b sq.Sqlizer) (sql.Result, error) {
	stmt, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	res, err := runner.ExecContext(ctx, stmt, args...)
	if err != nil {
		s.logger.Error("statement failed", "statement", stmt, "args", args, "error", err)
		return nil, fmt.Errorf("exec: %w", err)
	}
	return res, nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func chunkBounds(total, size int) [][2]int {
	if size <= 0 {
		size = defaultBatchSize
	}
	var out [][2]int
	for i := 0; i < total; i += size {
		out = append(out, [2]int{i, min(i+size, total)})
	}
	return out
}
