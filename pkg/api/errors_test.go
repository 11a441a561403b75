package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/memora-app/memora/pkg/services"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"validation error", services.NewValidationError("field", "bad"), http.StatusBadRequest},
		{"not found", services.ErrNotFound, http.StatusNotFound},
		{"session not open", services.ErrSessionNotOpen, http.StatusBadRequest},
		{"already finalized", services.ErrAlreadyFinalized, http.StatusBadRequest},
		{"empty session", services.ErrSessionEmpty, http.StatusBadRequest},
		{"insufficient credits", services.ErrInsufficientCredits, http.StatusPaymentRequired},
		{"storage unavailable", services.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{"already exists", services.ErrAlreadyExists, http.StatusConflict},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("loading session: %w", services.ErrNotFound), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapServiceError(tt.err)
			assert.Equal(t, tt.wantCode, he.Code)
		})
	}
}
