package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/taxo/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// GetTypeHandler returns one type, active or superseded, with its instance
// count and identity spread.
func GetTypeHandler(c echo.Context) error {
	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	store := c.(*middleware.AppContext).App.Store

	snap, err := store.Snapshot(ctx)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	t, err := snap.TypeByID(ctx, c.Param("id"))
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	if t == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "type not found"})
	}

	count, err := snap.InstanceCount(ctx, t.ID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	identities, err := snap.IdentityCounts(ctx, t.ID)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"version":    snap.Version(),
		"type":       t,
		"embedding":  t.DefEmbedding,
		"instances":  count,
		"identities": len(identities),
	})
}
