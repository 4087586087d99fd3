package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a session token. Once signed it never changes;
// only its validity does.
type Claims struct {
	jwt.RegisteredClaims

	UserID int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// HasRole reports whether the claims carry one of roles.
func (c *Claims) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// IssuedAtTime returns iat, or the zero time when absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns exp, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// RequireRole fails with ErrForbidden unless claims carry one of allowed.
func RequireRole(claims *Claims, allowed ...Role) error {
	if claims == nil {
		return ErrMissingToken
	}
	if !claims.HasRole(allowed...) {
		return ErrForbidden
	}
	return nil
}
