package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/memora-app/memora/pkg/models"
)

// listPackagesHandler handles GET /api/v1/payments/packages (public).
func (s *Server) listPackagesHandler(c *echo.Context) error {
	if s.payments == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments are not configured")
	}

	packages, err := s.payments.ListPackages(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	if packages == nil {
		packages = []models.CreditPackage{}
	}
	return c.JSON(http.StatusOK, packages)
}

// createCheckoutHandler handles POST /api/v1/payments/checkout.
func (s *Server) createCheckoutHandler(c *echo.Context) error {
	if s.payments == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments are not configured")
	}
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PackageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "package_id is required")
	}

	result, err := s.payments.CreateCheckout(c.Request().Context(), user.ID,
		req.PackageID, req.SuccessURL, req.CancelURL)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// createPaymentIntentHandler handles POST /api/v1/payments/payment-intent.
func (s *Server) createPaymentIntentHandler(c *echo.Context) error {
	if s.payments == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments are not configured")
	}
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req paymentIntentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PackageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "package_id is required")
	}

	result, err := s.payments.CreatePaymentIntent(c.Request().Context(), user.ID, req.PackageID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// paymentHistoryHandler handles GET /api/v1/payments/history.
func (s *Server) paymentHistoryHandler(c *echo.Context) error {
	if s.payments == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payments are not configured")
	}
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	history, err := s.payments.History(c.Request().Context(), user.ID, 25)
	if err != nil {
		return mapServiceError(err)
	}
	if history == nil {
		history = []models.Payment{}
	}
	return c.JSON(http.StatusOK, history)
}
