package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/memora-app/memora/pkg/database"
)

// healthHandler handles GET /health: database reachability plus worker pool
// state when this replica runs workers.
func (s *Server) healthHandler(c *echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	body := map[string]any{"status": "healthy"}

	dbHealth := database.Health(ctx, s.db.Pool())
	body["database"] = dbHealth
	if !dbHealth.Reachable {
		body["status"] = "unhealthy"
	}

	if s.pool != nil {
		poolHealth := s.pool.Health()
		body["queue"] = poolHealth
		if !poolHealth.IsHealthy {
			body["status"] = "unhealthy"
		}
	}

	if body["status"] != "healthy" {
		return c.JSON(http.StatusServiceUnavailable, body)
	}
	return c.JSON(http.StatusOK, body)
}
