package api

import (
	"errors"
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/memora-app/memora/pkg/payments"
)

// maxWebhookBody bounds webhook payload reads (Stripe events are small).
const maxWebhookBody = 1 << 20

// stripeWebhookHandler handles POST /webhooks/stripe.
//
// Signature verification gates everything; a bad signature is 400.
// Replayed events are acknowledged with "already_processed".
func (s *Server) stripeWebhookHandler(c *echo.Context) error {
	if s.payments == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments are not configured")
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}

	event, err := s.payments.VerifyEvent(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	outcome, err := s.payments.HandleEvent(c.Request().Context(), event)
	if err != nil {
		// Stripe retries on 5xx; reconciliation is idempotent so a retry is safe.
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process event")
	}
	return c.JSON(http.StatusOK, webhookResponse{Status: outcome})
}
