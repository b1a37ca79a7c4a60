package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erkineren/listing-monitor/internal/models"
	"github.com/erkineren/listing-monitor/internal/store"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(ctx context.Context, dbURL string) (*Store, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", store.ErrUnavailable, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", store.ErrUnavailable, err)
	}

	if err := initDatabase(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to initialize database: %v", store.ErrUnavailable, err)
	}

	return &Store{
		db: db,
	}, nil
}

// Opener returns a store.Opener that connects to dbURL once per cycle.
func Opener(dbURL string) store.Opener {
	return func(ctx context.Context) (store.Store, error) {
		return New(ctx, dbURL)
	}
}

func initDatabase(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id BIGSERIAL PRIMARY KEY,
			heading TEXT NOT NULL,
			price TEXT NOT NULL,
			area TEXT NOT NULL,
			link TEXT NOT NULL UNIQUE,
			first_seen_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %q: %v", query, err)
		}
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadAll(ctx context.Context) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT heading, price, area, link
		FROM listings
		ORDER BY id
	`)
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
		VALUES ($1, $2, $3, $4)
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
