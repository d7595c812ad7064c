// Package storagetest opens throwaway SQLite-backed stores for tests.
package storagetest

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"CatalogSync/internal/infrastructure/storage"
)

// Schema mirrors the production tables in SQLite syntax.
const Schema = `
CREATE TABLE categories (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE subcategories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	category_id INTEGER NOT NULL REFERENCES categories(id),
	UNIQUE (name, category_id)
);
CREATE TABLE brands (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE staging_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	source      TEXT NOT NULL
);
CREATE TABLE catalog_items (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id         TEXT NOT NULL UNIQUE,
	category_id         INTEGER REFERENCES categories(id),
	subcategory_id      INTEGER REFERENCES subcategories(id),
	brand_id            INTEGER REFERENCES brands(id),
	brand_name          TEXT NOT NULL DEFAULT '',
	country             TEXT NOT NULL DEFAULT '',
	adult               BOOLEAN NOT NULL DEFAULT 0,
	editorial_select    BOOLEAN NOT NULL DEFAULT 0,
	editorial_feed      BOOLEAN NOT NULL DEFAULT 0,
	raw_tag             TEXT NOT NULL DEFAULT '',
	approved            BOOLEAN NOT NULL DEFAULT 0,
	approval_date       TIMESTAMP,
	updated_date        TIMESTAMP,
	title               TEXT,
	description         TEXT,
	thumbnail_url       TEXT,
	video_url           TEXT,
	duration            INTEGER NOT NULL DEFAULT 0,
	feed_updated_date   TEXT,
	feed_published_date TEXT,
	provider_video_id   TEXT,
	view_count          INTEGER NOT NULL DEFAULT 0,
	feed_video_id       TEXT,
	external_video_id   TEXT,
	external_video_url  TEXT,
	source              TEXT
);
`

// Fixture bundles a store with its raw handle for seeding and assertions.
type Fixture struct {
	Store *storage.Store
	DB    *sql.DB
}

// Open creates a fresh SQLite database under t.TempDir with the schema applied.
func Open(t testing.TB) Fixture {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(context.Background(), Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Fixture{Store: storage.New(db, storage.DialectSQLite, logger), DB: db}
}

// Category inserts a category row and returns its id.
func (f Fixture) Category(t testing.TB, name string) int64 {
	t.Helper()
	return f.insert(t, "INSERT INTO categories (name) VALUES (?)", name)
}

// Subcategory inserts a subcategory row under categoryID and returns its id.
func (f Fixture) Subcategory(t testing.TB, name string, categoryID int64) int64 {
	t.Helper()
	return f.insert(t, "INSERT INTO subcategories (name, category_id) VALUES (?, ?)", name, categoryID)
}

// Brand inserts a brand row and returns its id.
func (f Fixture) Brand(t testing.TB, name string) int64 {
	t.Helper()
	return f.insert(t, "INSERT INTO brands (name) VALUES (?)", name)
}

// CatalogItem inserts a bare catalog row and returns its id.
func (f Fixture) CatalogItem(t testing.TB, externalID, videoURL string, viewCount int64, source string) int64 {
	t.Helper()
	return f.insert(t,
		"INSERT INTO catalog_items (external_id, video_url, view_count, source) VALUES (?, ?, ?, ?)",
		externalID, videoURL, viewCount, source)
}

// Count returns the number of rows in table.
func (f Fixture) Count(t testing.TB, table string) int {
	t.Helper()
	var n int
	if err := f.DB.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func (f Fixture) insert(t testing.TB, stmt string, args ...any) int64 {
	t.Helper()
	res, err := f.DB.ExecContext(context.Background(), stmt, args...)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("last insert id: %v", err)
	}
	return id
}
