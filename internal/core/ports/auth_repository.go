package ports

import (
	"context"

	"github.com/energosales/portal/internal/core/domain"
)

// UserRepository defines the credential store. Email uniqueness is enforced
// by the store itself; Create reports a violation as domain.ErrConflict.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	// Delete removes the user and reports whether a row existed.
	Delete(ctx context.Context, id int64) (bool, error)
}
