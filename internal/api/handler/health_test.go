package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler_Liveness(t *testing.T) {
	c, rec := jsonRequest(newEcho(), http.MethodGet, "/health", "")
	if err := NewHealthHandler().Liveness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthDependenciesHandler_Readiness(t *testing.T) {
	c, rec := jsonRequest(newEcho(), http.MethodGet, "/health/ready", "")
	if err := NewHealthDependenciesHandler(stubPinger{}, nil).Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp readinessResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" || resp.Dependencies["database"].Status != "ok" {
		t.Fatalf("unexpected readiness: %+v", resp)
	}
	if _, ok := resp.Dependencies["redis"]; ok {
		t.Fatalf("redis should not be reported when not configured")
	}
}

func TestHealthDependenciesHandler_Degraded(t *testing.T) {
	c, rec := jsonRequest(newEcho(), http.MethodGet, "/health/ready", "")
	if err := NewHealthDependenciesHandler(stubPinger{err: errors.New("db down")}, nil).Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp readinessResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "degraded" || resp.Dependencies["database"].Error != "db down" {
		t.Fatalf("unexpected readiness: %+v", resp)
	}
}

func TestHealthHandler_LivenessReportsUptime(t *testing.T) {
	c, rec := jsonRequest(newEcho(), http.MethodGet, "/health", "")
	if err := NewHealthHandler().Liveness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp livenessResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" || resp.Uptime == "" {
		t.Fatalf("unexpected liveness: %+v", resp)
	}
}
