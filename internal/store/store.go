package store

import (
	"context"
	"errors"

	"github.com/erkineren/listing-monitor/internal/models"
)

// ErrUnavailable is wrapped by every store error caused by the backing
// database being unreachable or a statement failing.
var ErrUnavailable = errors.New("store unavailable")

type Store interface {
	Close() error
	LoadAll(ctx context.Context) ([]models.Listing, error)
	InsertIfAbsent(ctx context.Context, listing models.Listing) (bool, error)
}

// Opener acquires a store for the lifetime of one cycle.
type Opener func(ctx context.Context) (Store, error)
