package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/energosales/portal/docs"
	"github.com/energosales/portal/internal/api/handler"
	"github.com/energosales/portal/internal/api/metrics"
	"github.com/energosales/portal/internal/api/middleware"
	"github.com/energosales/portal/internal/core/domain"
	"github.com/energosales/portal/internal/core/ports"
)

// Deps carries everything the router needs. LeadService, Redis and Registry
// are optional: a nil value disables the lead relay, the Redis readiness
// check and the /metrics endpoint respectively.
type Deps struct {
	AuthService ports.AuthService
	LeadService ports.LeadService
	Store       handler.Pinger
	Redis       *redis.Client
	Registry    *prometheus.Registry
	Logger      zerolog.Logger

	CORSAllowOrigins []string
	// AuthRateLimit is the per-client request rate on /register and /login.
	// Zero disables throttling.
	AuthRateLimit float64
	AuthRateBurst int
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: d.CORSAllowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	if d.Registry != nil {
		if err := metrics.Register(d.Registry); err != nil {
			return nil, err
		}
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Namespace:  "portal",
			Registerer: d.Registry,
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/metrics"
			},
		}))
		e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
			Gatherer: d.Registry,
		}))
	}

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.AuthService)
	throttle := authRateLimiter(d.AuthRateLimit, d.AuthRateBurst)
	e.POST("/register", authHandler.Register, throttle...)
	e.POST("/login", authHandler.Login, throttle...)

	// --- Protected routes ---
	authMiddleware := middleware.Auth(d.AuthService)

	accountHandler := handler.NewAccountHandler(d.AuthService)
	e.GET("/account", accountHandler.Get, authMiddleware)

	adminHandler := handler.NewAdminHandler(d.AuthService)
	admin := e.Group("/admin", authMiddleware, middleware.RBAC(domain.RoleAdmin))
	admin.GET("/users", adminHandler.ListUsers)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)

	if d.LeadService != nil {
		leadHandler := handler.NewLeadHandler(d.LeadService)
		apps := e.Group("/apps", authMiddleware, middleware.RBAC(domain.RoleOperator))
		apps.POST("/leads", leadHandler.Submit)
	}

	// --- Health checks (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	e.GET("/health", healthHandler.Liveness)
	if d.Store != nil {
		healthDepsHandler := handler.NewHealthDependenciesHandler(d.Store, d.Redis)
		e.GET("/health/ready", healthDepsHandler.Readiness)
	}

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e, nil
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error()
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

func authRateLimiter(limit float64, burst int) []echo.MiddlewareFunc {
	if limit <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = max(1, int(limit))
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(limit),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return []echo.MiddlewareFunc{echomiddleware.RateLimiter(store)}
}
