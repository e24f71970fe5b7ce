package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/taxo/pkg/lifecycle"
	"github.com/OFFIS-RIT/taxo/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Commit applies one registry mutation transactionally. The registry_state
// row lock serializes writers; the parent-version check inside the lock
// turns every stale commit into store.ErrVersionConflict.
func (s *Store) Commit(ctx context.Context, c *store.Commit) (*store.CommitResult, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var version int64
	if err := tx.QueryRow(ctx, `SELECT version FROM registry_state WHERE id = 1 FOR UPDATE`).Scan(&version); err != nil {
		return nil, fmt.Errorf("reading registry version: %w", err)
	}
	if c.ParentVersion != version {
		return nil, fmt.Errorf("commit built against version %d, registry at %d: %w",
			c.ParentVersion, version, store.ErrVersionConflict)
	}

	for _, t := range c.NewTypes {
		if !t.Valid() {
			return nil, fmt.Errorf("commit %s: invalid new type %q", c.CommitID, t.ID)
		}
		if err := insertType(ctx, tx, &t); err != nil {
			return nil, err
		}
	}
	for _, t := range c.UpdatedTypes {
		tag, err := tx.Exec(ctx, `
			UPDATE ontology_types
			SET definition = $2, definition_embedding = $3, aliases = $4, label_trail = $5
			WHERE id = $1`,
			t.ID, t.Definition, embeddingValue(t.DefEmbedding), t.Aliases, t.LabelTrail,
		)
		if err != nil {
			return nil, fmt.Errorf("updating type %q: %w", t.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("commit %s: updated type %q not found", c.CommitID, t.ID)
		}
	}
	for _, sup := range c.Superseded {
		tag, err := tx.Exec(ctx, `
			UPDATE ontology_types SET status = 'superseded', retirement = $2
			WHERE id = $1 AND status = 'active'`,
			sup.TypeID, string(sup.Retirement),
		)
		if err != nil {
			return nil, fmt.Errorf("superseding type %q: %w", sup.TypeID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("commit %s: superseded type %q not found or already superseded", c.CommitID, sup.TypeID)
		}
	}

	for instanceID, typeID := range c.Reassign {
		tag, err := tx.Exec(ctx, `UPDATE instances SET type_id = $2 WHERE id = $1`, instanceID, typeID)
		if err != nil {
			return nil, fmt.Errorf("reassigning instance %q: %w", instanceID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("commit %s: reassigned instance %q not found", c.CommitID, instanceID)
		}
	}
	for from, to := range c.ResidualType {
		if _, err := tx.Exec(ctx, `UPDATE instances SET type_id = $2 WHERE type_id = $1`, from, to); err != nil {
			return nil, fmt.Errorf("residual reassignment %q -> %q: %w", from, to, err)
		}
	}

	// No instance may be left on a superseded type once the commit lands.
	var orphaned int
	err = tx.QueryRow(ctx, `
		SELECT count(*)
		FROM instances i
		JOIN ontology_types t ON t.id = i.type_id
		WHERE t.status <> 'active'`,
	).Scan(&orphaned)
	if err != nil {
		return nil, err
	}
	if orphaned > 0 {
		return nil, fmt.Errorf("%w: commit %s would leave %d instances on superseded types",
			lifecycle.ErrInvariantViolation, c.CommitID, orphaned)
	}

	commitID := c.CommitID
	if commitID == "" {
		commitID = gonanoid.Must()
	}
	newVersion := version + 1

	if _, err := tx.Exec(ctx, `UPDATE registry_state SET version = $1 WHERE id = 1`, newVersion); err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO registry_versions (version, parent_version, commit_id, operation, subject_ids)
		VALUES ($1, $2, $3, $4, $5)`,
		newVersion, version, commitID, string(c.Operation), c.SubjectIDs,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &store.CommitResult{Version: newVersion, CommitID: commitID}, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
