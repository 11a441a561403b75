package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// searchHandler handles POST /api/v1/search/semantic.
// Parameters come from the JSON body or from query parameters; query
// parameters win when both are present.
func (s *Server) searchHandler(c *echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req searchRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	if q := c.QueryParam("query"); q != "" {
		req.Query = q
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		req.Limit = n
	}
	if v := c.QueryParam("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid threshold")
		}
		req.Threshold = f
	}

	results, err := s.search.Search(c.Request().Context(), user.ID,
		req.Query, req.Limit, req.Threshold)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, searchResponse{Results: results})
}
