package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/samcharles93/llmodel/internal/inference"
)

func TestAsError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{invalid("bad"), http.StatusBadRequest, ""},
		{fmt.Errorf("wrapped: %w", notFound("gone")), http.StatusNotFound, ""},
		{fmt.Errorf("run: %w", inference.ErrPromptTooLong), http.StatusBadRequest, "context_length_exceeded"},
		{inference.ErrNotLoaded, http.StatusServiceUnavailable, "model_not_loaded"},
		{context.Canceled, http.StatusRequestTimeout, "canceled"},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range tests {
		got := asError(tc.err)
		if got.Status != tc.status || got.Code != tc.code {
			t.Errorf("asError(%v) = %d/%q, want %d/%q", tc.err, got.Status, got.Code, tc.status, tc.code)
		}
	}
}
