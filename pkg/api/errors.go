package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/memora-app/memora/pkg/services"
)

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, services.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, services.ErrSessionNotOpen) {
		return echo.NewHTTPError(http.StatusBadRequest, "session is not open")
	}
	if errors.Is(err, services.ErrAlreadyFinalized) {
		return echo.NewHTTPError(http.StatusBadRequest, "session is already finalized")
	}
	if errors.Is(err, services.ErrSessionEmpty) {
		return echo.NewHTTPError(http.StatusBadRequest, "session has no content")
	}
	if errors.Is(err, services.ErrInsufficientCredits) {
		return echo.NewHTTPError(http.StatusPaymentRequired, "insufficient credits")
	}
	if errors.Is(err, services.ErrStorageUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "object storage is not configured")
	}
	if errors.Is(err, services.ErrAlreadyExists) {
		return echo.NewHTTPError(http.StatusConflict, "resource already exists")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
