package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/taxo/pkg/engine"
	"github.com/OFFIS-RIT/taxo/pkg/logger"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	pgxstore "github.com/OFFIS-RIT/taxo/pkg/store/pgx"
)

// IngestMessage is one document's worth of extracted, typed instances. The
// extraction pipeline publishes one message per processed document.
type IngestMessage struct {
	DocumentID string              `json:"document_id"`
	Instances  []ontology.Instance `json:"instances"`
}

// ProcessIngestMessage stores the document's instances and advances the
// epoch counter. When the counter reaches the scan interval an epoch runs
// inline, on this consumer, so registry commits never race ingestion.
func ProcessIngestMessage(ctx context.Context, st *pgxstore.Store, eng *engine.Engine, body string) error {
	var msg IngestMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return fmt.Errorf("invalid ingest message: %w", err)
	}
	if msg.DocumentID == "" {
		return fmt.Errorf("ingest message without document_id")
	}

	if err := st.InsertInstances(ctx, msg.Instances); err != nil {
		return fmt.Errorf("storing instances of document %s: %w", msg.DocumentID, err)
	}
	logger.Info("[Ingest] stored instances", "document", msg.DocumentID, "count", len(msg.Instances))

	report, err := eng.IngestDocuments(ctx, 1)
	if err != nil {
		return fmt.Errorf("epoch after document %s: %w", msg.DocumentID, err)
	}
	if report != nil {
		logger.Info("[Ingest] scheduled epoch ran",
			"version", report.EndVersion,
			"commits", report.Cascade.Commits,
		)
	}
	return nil
}
