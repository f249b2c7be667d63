package repository

import (
	"context"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/internal/domain/search"
)

// SweetRepository owns the sweet collection. Results are ordered by
// createdAt, then id. Lookups of unknown ids fail with entity.ErrSweetNotFound.
// Every write bumps Sweet.Version.
type SweetRepository interface {
	List(ctx context.Context) ([]entity.Sweet, error)
	Find(ctx context.Context, f search.Filter) ([]entity.Sweet, error)

	// Create assigns ID and CreatedAt when they are empty.
	Create(ctx context.Context, s *entity.Sweet) error
	GetByID(ctx context.Context, id string) (*entity.Sweet, error)

	// Update loads the record under its write lock, applies mutate and stores
	// the result. Nothing is written when mutate returns an error.
	Update(ctx context.Context, id string, mutate func(*entity.Sweet) error) (*entity.Sweet, error)

	// Delete removes the record and returns it as it was last stored.
	Delete(ctx context.Context, id string) (*entity.Sweet, error)

	// AdjustQuantity adds delta to the stock level in a single conditional
	// step. It fails with entity.ErrOutOfStock, writing nothing, when the
	// result would be negative, and with a validation error when it would
	// exceed entity.MaxQuantity.
	AdjustQuantity(ctx context.Context, id string, delta int) (*entity.Sweet, error)
}
