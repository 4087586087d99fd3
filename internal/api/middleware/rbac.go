package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/energosales/portal/internal/api/metrics"
	"github.com/energosales/portal/internal/core/domain"
)

// RBAC enforces role-based access control. It must run after Auth.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := Claims(c)
			if err := domain.RequireRole(claims, allowedRoles...); err != nil {
				if claims != nil {
					metrics.AuthorizationDeniedTotal.WithLabelValues(claims.Role.String()).Inc()
				}
				return err
			}
			return next(c)
		}
	}
}
