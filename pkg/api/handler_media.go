package api

import (
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/memora-app/memora/pkg/models"
)

// presignUploadHandler handles POST /api/v1/uploads/presign.
func (s *Server) presignUploadHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req presignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	result, err := s.uploads.Presign(c.Request().Context(), user.ID, req.SessionID,
		models.MediaType(req.Type), req.ContentType, s.cfg.Storage.UploadTTL)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

// commitUploadHandler handles POST /api/v1/uploads/commit.
// Committing an already-uploaded file succeeds idempotently.
func (s *Server) commitUploadHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req commitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.MediaID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "media_id is required")
	}

	media, err := s.uploads.Commit(c.Request().Context(), user.ID, req.MediaID, req.SizeBytes)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, media)
}

// deleteMediaHandler handles DELETE /api/v1/sessions/:id/media/:mediaId.
func (s *Server) deleteMediaHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	sessionID, err := sessionIDParam(c)
	if err != nil {
		return err
	}
	mediaID, err := uuid.Parse(c.Param("mediaId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid media id")
	}

	if err := s.uploads.Delete(c.Request().Context(), user.ID, sessionID, mediaID); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
