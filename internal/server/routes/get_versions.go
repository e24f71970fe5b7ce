package routes

import (
	"net/http"
	"strconv"

	"github.com/OFFIS-RIT/taxo/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

const defaultVersionLimit = 50

// GetVersionsHandler returns the registry version history, newest first.
func GetVersionsHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	limit := defaultVersionLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = parsed
	}

	ctx := c.Request().Context()
	store := c.(*middleware.AppContext).App.Store

	versions, err := store.Versions(ctx, limit)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"versions": versions})
}
