package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 3 * time.Second

// HealthHandler serves GET /health. It never touches a dependency.
type HealthHandler struct {
	started time.Time
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{started: time.Now()}
}

type livenessResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// Liveness reports that the process is serving requests.
//
// @Summary      Liveness check
// @Tags         health
// @Produce      json
// @Success      200  {object}  livenessResponse
// @Router       /health [get]
func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, livenessResponse{
		Status: "ok",
		Uptime: time.Since(h.started).Truncate(time.Second).String(),
	})
}

// Pinger is satisfied by the credential store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type dependencyCheck struct {
	name string
	ping func(ctx context.Context) error
}

// HealthDependenciesHandler serves GET /health/ready.
type HealthDependenciesHandler struct {
	checks []dependencyCheck
}

// NewHealthDependenciesHandler builds the readiness check over the credential
// store and, when rdb is non-nil, the revocation list backend.
func NewHealthDependenciesHandler(store Pinger, rdb *redis.Client) *HealthDependenciesHandler {
	checks := []dependencyCheck{{name: "database", ping: store.Ping}}
	if rdb != nil {
		checks = append(checks, dependencyCheck{
			name: "redis",
			ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	return &HealthDependenciesHandler{checks: checks}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// Readiness pings every dependency in parallel and answers 503 if any fails.
//
// @Summary      Readiness check
// @Tags         health
// @Produce      json
// @Success      200  {object}  readinessResponse
// @Failure      503  {object}  readinessResponse
// @Router       /health/ready [get]
func (h *HealthDependenciesHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	results := make([]error, len(h.checks))
	var wg sync.WaitGroup
	for i, check := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = check.ping(ctx)
		}()
	}
	wg.Wait()

	resp := readinessResponse{Status: "ok", Dependencies: make(map[string]dependencyStatus, len(h.checks))}
	code := http.StatusOK
	for i, check := range h.checks {
		if err := results[i]; err != nil {
			resp.Dependencies[check.name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			resp.Status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[check.name] = dependencyStatus{Status: "ok"}
	}
	return c.JSON(code, resp)
}
