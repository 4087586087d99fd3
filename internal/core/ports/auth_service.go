package ports

import (
	"context"

	"github.com/energosales/portal/internal/core/domain"
)

// TokenVerifier turns a presented bearer token into claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*domain.Claims, error)
}

type AuthService interface {
	TokenVerifier

	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	RequireRole(claims *domain.Claims, allowed ...domain.Role) error
	GetAccount(ctx context.Context, claims *domain.Claims) (*domain.User, error)
	ListUsers(ctx context.Context, claims *domain.Claims) ([]*domain.User, error)
	DeleteUser(ctx context.Context, claims *domain.Claims, id int64) error
}
