package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/taxo/internal/server/middleware"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"

	"github.com/labstack/echo/v4"
)

// GetTypesHandler lists the active type registry at the current version.
func GetTypesHandler(c echo.Context) error {
	type typeView struct {
		ID         string            `json:"id"`
		Kind       ontology.TypeKind `json:"kind"`
		Label      string            `json:"label"`
		LabelTrail []string          `json:"label_trail"`
		Definition string            `json:"definition"`
		Aliases    []string          `json:"aliases,omitempty"`
		IsSeed     bool              `json:"is_seed"`
		Instances  int               `json:"instances"`
		Embedding  []float32         `json:"embedding,omitempty"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	store := c.(*middleware.AppContext).App.Store
	withEmbeddings := c.QueryParam("embeddings") == "true"

	snap, err := store.Snapshot(ctx)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	types, err := snap.ActiveTypes(ctx)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	views := make([]typeView, 0, len(types))
	for i := range types {
		t := &types[i]
		count, err := snap.InstanceCount(ctx, t.ID)
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}
		v := typeView{
			ID:         t.ID,
			Kind:       t.Kind,
			Label:      t.Label(),
			LabelTrail: t.LabelTrail,
			Definition: t.Definition,
			Aliases:    t.Aliases,
			IsSeed:     t.IsSeed,
			Instances:  count,
		}
		if withEmbeddings {
			v.Embedding = t.DefEmbedding
		}
		views = append(views, v)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"version": snap.Version(),
		"types":   views,
	})
}
