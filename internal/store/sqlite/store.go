// Package sqlite is a single-file listing store for hosts without a
// PostgreSQL server. It keeps the same uniqueness guarantee: link is a
// UNIQUE column and inserts resolve conflicts in the database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/erkineren/listing-monitor/internal/models"
	"github.com/erkineren/listing-monitor/internal/store"
)

type Store struct {
	db   *sql.DB
	path string
}

var _ store.Store = (*Store)(nil)

// New opens (creating if needed) the database file at path.
func New(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: failed to create data directory: %v", store.ErrUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", store.ErrUnavailable, err)
	}
	// One writer is all SQLite allows anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", store.ErrUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		heading TEXT NOT NULL,
		price TEXT NOT NULL,
		area TEXT NOT NULL,
		link TEXT NOT NULL UNIQUE,
		first_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to initialize database: %v", store.ErrUnavailable, err)
	}

	return &Store{db: db, path: path}, nil
}

// Opener returns a store.Opener for the database file at path.
func Opener(path string) store.Opener {
	return func(ctx context.Context) (store.Store, error) {
		return New(ctx, path)
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) LoadAll(ctx context.Context) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT heading, price, area, link FROM listings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query listings: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.Heading, &l.Price, &l.Area, &l.Link); err != nil {
			return nil, fmt.Errorf("%w: failed to scan listing: %v", store.ErrUnavailable, err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read listings: %v", store.ErrUnavailable, err)
	}

	return listings, nil
}

func (s *Store) InsertIfAbsent(ctx context.Context, listing models.Listing) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (heading, price, area, link)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (link) DO NOTHING
	`, listing.Heading, listing.Price, listing.Area, listing.Link)
	if err != nil {
		return false, fmt.Errorf("%w: failed to insert listing %s: %v", store.ErrUnavailable, listing.Link, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to get rows affected: %v", store.ErrUnavailable, err)
	}

	return rows == 1, nil
}
