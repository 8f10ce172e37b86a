package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, context.Background(), http.StatusNotFound, ErrCodePostNotFound, "Post not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Error.Code != ErrCodePostNotFound || resp.Error.Message != "Post not found" {
		t.Errorf("body = %+v", resp)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInvalidVoteType, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodePostNotFound, http.StatusNotFound},
		{ErrCodePostDeleted, http.StatusGone},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"unknown", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCodeMapping(tt.code); got != tt.want {
			t.Errorf("StatusCodeMapping(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
