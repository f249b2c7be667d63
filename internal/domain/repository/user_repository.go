package repository

import (
	"context"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
)

// UserRepository defines the interface for identity persistence.
// Create fails with entity.ErrDuplicateEmail when the address is taken;
// lookups fail with entity.ErrUserNotFound.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	UpdateRole(ctx context.Context, id string, role entity.Role) error
}
