package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/energosales/portal/internal/api/middleware"
	"github.com/energosales/portal/internal/core/domain"
)

// ctxClaims extracts the claims injected by the Auth middleware. Their absence
// means the route was mounted without Auth, which reads as no token.
func ctxClaims(c echo.Context) (*domain.Claims, error) {
	claims := middleware.Claims(c)
	if claims == nil {
		return nil, domain.ErrMissingToken
	}
	return claims, nil
}
