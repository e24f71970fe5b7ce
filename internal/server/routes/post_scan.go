package routes

import (
	"encoding/json"
	"net/http"

	"github.com/OFFIS-RIT/taxo/internal/queue"
	"github.com/OFFIS-RIT/taxo/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// PostScanHandler enqueues a manual lifecycle scan. The worker runs the
// epoch; this returns as soon as the trigger is queued.
func PostScanHandler(c echo.Context) error {
	type scanRequest struct {
		Reason string `json:"reason"`
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req scanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	body, err := json.Marshal(queue.ScanMessage{Reason: req.Reason})
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.ScanQueue, body); err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "scan queued"})
}
