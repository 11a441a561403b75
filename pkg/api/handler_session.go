package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/memora-app/memora/pkg/models"
	"github.com/memora-app/memora/pkg/notify"
)

// sessionIDParam parses the :id path parameter.
func sessionIDParam(c *echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	return id, nil
}

// createSessionHandler handles POST /api/v1/sessions.
func (s *Server) createSessionHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	session, err := s.sessions.Create(c.Request().Context(), user.ID, req.SessionType, req.Language)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, session)
}

// listSessionsHandler handles GET /api/v1/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	limit := 25
	offset := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit: must be 1-100")
		}
		limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		offset = n
	}

	sessions, total, err := s.sessions.List(c.Request().Context(), user.ID, limit, offset)
	if err != nil {
		return mapServiceError(err)
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	return c.JSON(http.StatusOK, listSessionsResponse{
		Sessions: sessions,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	detail, err := s.sessions.GetDetail(c.Request().Context(), user.ID, sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

// deleteSessionHandler handles DELETE /api/v1/sessions/:id.
func (s *Server) deleteSessionHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	if err := s.sessions.Delete(c.Request().Context(), user.ID, sessionID); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// appendBlockHandler handles POST /api/v1/sessions/:id/blocks.
func (s *Server) appendBlockHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	var req appendBlockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	block, err := s.sessions.AppendBlock(c.Request().Context(), user.ID, sessionID,
		models.BlockType(req.BlockType), req.TextContent, req.MediaURL, req.Metadata)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, block)
}

// listBlocksHandler handles GET /api/v1/sessions/:id/blocks.
func (s *Server) listBlocksHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	// Ownership check before exposing blocks.
	if _, err := s.sessions.GetByID(c.Request().Context(), user.ID, sessionID); err != nil {
		return mapServiceError(err)
	}

	blocks, err := s.sessions.ListBlocks(c.Request().Context(), sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	if blocks == nil {
		blocks = []models.SessionBlock{}
	}
	return c.JSON(http.StatusOK, blocks)
}

// finalizeSessionHandler handles POST /api/v1/sessions/:id/finalize.
// Returns 202: processing happens asynchronously in the worker pool.
func (s *Server) finalizeSessionHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	result, err := s.sessions.Finalize(c.Request().Context(), user.ID, sessionID)
	if err != nil {
		return mapServiceError(err)
	}

	if result.Charged && result.RemainingCredits <= notify.LowCreditThreshold {
		s.notifier.LowCredits(c.Request().Context(), user, result.RemainingCredits)
	}

	return c.JSON(http.StatusAccepted, result)
}

// reprocessSessionHandler handles POST /api/v1/sessions/:id/reprocess.
// Enqueues a fresh zero-cost job for a processed or failed session.
func (s *Server) reprocessSessionHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}

	job, err := s.sessions.Reprocess(c.Request().Context(), user.ID, sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusAccepted, job)
}
