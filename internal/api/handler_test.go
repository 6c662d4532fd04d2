//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lookoutdev/lookout/internal/domain"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "bad input")

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "bad input" {
		t.Errorf("Expected error message, got %v", got["error"])
	}
}

func TestDomainErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrSessionClosed, http.StatusConflict},
		{domain.ErrStaleContext, http.StatusConflict},
		{domain.ErrClarificationPending, http.StatusConflict},
		{domain.ErrAgentUnavailable, http.StatusBadGateway},
		{domain.ErrMalformedAgentResponse, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", domain.ErrAgentUnavailable), http.StatusBadGateway},
		{fmt.Errorf("something else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		DomainError(w, tc.err)
		if w.Result().StatusCode != tc.want {
			t.Errorf("DomainError(%v): expected status %d, got %d", tc.err, tc.want, w.Result().StatusCode)
		}
	}
}
