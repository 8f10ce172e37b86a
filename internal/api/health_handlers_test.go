package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	err error
}

func (s *stubChecker) HealthCheck(ctx context.Context) error { return s.err }

func TestHealth(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handlers.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Status != "healthy" || resp.Checks["runtime"] != "ok" {
		t.Errorf("response = %+v, want healthy/runtime ok", resp)
	}

	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	rec = httptest.NewRecorder()
	handlers.Health(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		config     HealthHandlersConfig
		wantStatus int
		wantState  string
	}{
		{
			"no dependencies configured",
			HealthHandlersConfig{},
			http.StatusOK,
			"ready",
		},
		{
			"all dependencies healthy",
			HealthHandlersConfig{DBChecker: &stubChecker{}, RedisChecker: &stubChecker{}},
			http.StatusOK,
			"ready",
		},
		{
			"database down",
			HealthHandlersConfig{DBChecker: &stubChecker{err: errors.New("connection refused")}},
			http.StatusServiceUnavailable,
			"not_ready",
		},
		{
			"redis down",
			HealthHandlersConfig{DBChecker: &stubChecker{}, RedisChecker: &stubChecker{err: errors.New("timeout")}},
			http.StatusServiceUnavailable,
			"not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHealthHandlers(tt.config)
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rec := httptest.NewRecorder()
			handlers.Ready(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if resp.Status != tt.wantState {
				t.Errorf("state = %q, want %q", resp.Status, tt.wantState)
			}
		})
	}
}
