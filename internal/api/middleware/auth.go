package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/energosales/portal/internal/core/domain"
	"github.com/energosales/portal/internal/core/ports"
)

// ClaimsKey is the echo context key holding *domain.Claims after Auth ran.
const ClaimsKey = "claims"

// Auth validates the bearer token and injects its claims into the context.
func Auth(verifier ports.TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
			if authHeader == "" {
				return domain.ErrMissingToken
			}

			scheme, token, found := strings.Cut(authHeader, " ")
			if !strings.EqualFold(scheme, "bearer") {
				return domain.ErrInvalidToken
			}
			token = strings.TrimSpace(token)
			if !found || token == "" {
				return domain.ErrMissingToken
			}

			claims, err := verifier.VerifyToken(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(ClaimsKey, claims)
			return next(c)
		}
	}
}

// Claims returns the claims stored by Auth, or nil.
func Claims(c echo.Context) *domain.Claims {
	claims, _ := c.Get(ClaimsKey).(*domain.Claims)
	return claims
}
