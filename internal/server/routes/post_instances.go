package routes

import (
	"encoding/json"
	"net/http"

	"github.com/OFFIS-RIT/taxo/internal/queue"
	"github.com/OFFIS-RIT/taxo/internal/server/middleware"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"

	"github.com/labstack/echo/v4"
)

// PostInstancesHandler accepts one document's extracted instances and
// enqueues them for ingestion. Candidate detection runs on the worker once
// the scan interval fills up.
func PostInstancesHandler(c echo.Context) error {
	type ingestRequest struct {
		DocumentID string              `json:"document_id" validate:"required"`
		Instances  []ontology.Instance `json:"instances" validate:"required,min=1,dive"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	for _, in := range req.Instances {
		if in.ID == "" || in.TypeID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "instance without id or type_id"})
		}
	}

	body, err := json.Marshal(queue.IngestMessage{
		DocumentID: req.DocumentID,
		Instances:  req.Instances,
	})
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.IngestQueue, body); err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]any{
		"status":    "ingest queued",
		"document":  req.DocumentID,
		"instances": len(req.Instances),
	})
}
