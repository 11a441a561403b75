package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// getMeHandler handles GET /api/v1/me.
func (s *Server) getMeHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// getCreditsHandler handles GET /api/v1/me/credits.
func (s *Server) getCreditsHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	credits, err := s.credits.Balance(c.Request().Context(), user.ID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, creditsResponse{Credits: credits})
}

// setPreferredLanguageHandler handles POST /api/v1/me/preferred-language.
func (s *Server) setPreferredLanguageHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req preferredLanguageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := s.users.SetPreferredLanguage(c.Request().Context(), user.ID, req.Language); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}

// setFCMTokenHandler handles POST /api/v1/me/fcm-token.
// An empty token clears the stored one.
func (s *Server) setFCMTokenHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req fcmTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := s.users.SetFCMToken(c.Request().Context(), user.ID, req.Token); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}
