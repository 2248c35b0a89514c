package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore keeps one row per page title.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates the database at path in WAL mode.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		title TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL DEFAULT 0,
		label TEXT,
		content_hash TEXT,
		crawled_at REAL NOT NULL,
		record TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_label ON pages(label);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, title string, record *PageRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pages (title, url, depth, label, content_hash, crawled_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			url = excluded.url,
			depth = excluded.depth,
			label = excluded.label,
			content_hash = excluded.content_hash,
			crawled_at = excluded.crawled_at,
			record = excluded.record
	`, title, record.URL, record.Depth, record.Category.Label, record.ContentHash, record.CrawledAt, string(data))
	if err != nil {
		return fmt.Errorf("failed to save page %q: %w", title, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, title string) (*PageRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM pages WHERE title = ?`, title).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(title)
		}
		return nil, fmt.Errorf("failed to load page %q: %w", title, err)
	}
	return decodeRecord([]byte(data), title)
}

// List returns records ordered by crawl time.
func (s *SQLiteStore) List(ctx context.Context) ([]*PageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title, record FROM pages ORDER BY crawled_at, title`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var records []*PageRecord
	for rows.Next() {
		var title, data string
		if err := rows.Scan(&title, &data); err != nil {
			return nil, err
		}
		record, err := decodeRecord([]byte(data), title)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CountByLabel returns the number of pages per category label.
func (s *SQLiteStore) CountByLabel(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT COALESCE(label, ''), COUNT(*) FROM pages GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
