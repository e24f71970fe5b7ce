package queue

import (
	"context"
	"encoding/json"

	"github.com/OFFIS-RIT/taxo/pkg/engine"
	"github.com/OFFIS-RIT/taxo/pkg/logger"
)

// ScanMessage is a manual epoch trigger published by the API.
type ScanMessage struct {
	Reason string `json:"reason,omitempty"`
}

// ProcessScanMessage runs a full epoch regardless of the document counter.
func ProcessScanMessage(ctx context.Context, eng *engine.Engine, body string) error {
	var msg ScanMessage
	if body != "" {
		if err := json.Unmarshal([]byte(body), &msg); err != nil {
			logger.Warn("[Scan] unreadable scan message, running anyway", "err", err)
		}
	}

	report, err := eng.RunEpoch(ctx)
	if err != nil {
		return err
	}
	logger.Info("[Scan] manual epoch finished",
		"reason", msg.Reason,
		"version", report.EndVersion,
		"screened", report.TypesTotal,
		"commits", report.Cascade.Commits,
		"splits", report.Cascade.Splits,
		"merges", report.Cascade.Merges,
		"rejected", report.Cascade.Rejected,
	)
	return nil
}
