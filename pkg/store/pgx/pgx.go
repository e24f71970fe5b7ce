// Package pgx implements store.GraphStore on PostgreSQL with pgvector for
// definition embeddings. The registry version lives in a single-row state
// table; Commit takes a row lock on it, so the single-writer property holds
// across processes.
package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Store is the PostgreSQL-backed registry and instance store.
type Store struct {
	conn   pgxIConn
	window store.Window
}

// New creates a Store over an existing connection or pool. The window policy
// applies to every snapshot read.
func New(conn pgxIConn, window store.Window) *Store {
	return &Store{conn: conn, window: window}
}

// Snapshot pins the current registry version. Reads through the snapshot see
// live table state; the version pin is what makes stale commits fail, not
// read isolation.
func (s *Store) Snapshot(ctx context.Context) (store.Snapshot, error) {
	var version int64
	err := s.conn.QueryRow(ctx, `SELECT version FROM registry_state WHERE id = 1`).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("reading registry version: %w", err)
	}
	return &snapshot{conn: s.conn, version: version, window: s.window}, nil
}

// SeedTypes loads an initial registry as version 1. Fails if the registry
// already advanced past version 0.
func (s *Store) SeedTypes(ctx context.Context, types []ontology.Type) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var version int64
	if err := tx.QueryRow(ctx, `SELECT version FROM registry_state WHERE id = 1 FOR UPDATE`).Scan(&version); err != nil {
		return fmt.Errorf("reading registry version: %w", err)
	}
	if version != 0 {
		return fmt.Errorf("registry already seeded at version %d", version)
	}

	subjects := make([]string, 0, len(types))
	for _, t := range types {
		if !t.Valid() {
			return fmt.Errorf("invalid seed type %q", t.ID)
		}
		if err := insertType(ctx, tx, &t); err != nil {
			return err
		}
		subjects = append(subjects, t.ID)
	}

	if _, err := tx.Exec(ctx, `UPDATE registry_state SET version = 1 WHERE id = 1`); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO registry_versions (version, parent_version, commit_id, operation, subject_ids)
		VALUES (1, 0, '', $1, $2)`,
		string(ontology.OpSeed), subjects,
	)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InsertInstances stores extracted instances and their role edges. Each must
// reference an active type.
func (s *Store) InsertInstances(ctx context.Context, instances []ontology.Instance) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, in := range instances {
		var kind, status string
		err := tx.QueryRow(ctx, `SELECT kind, status FROM ontology_types WHERE id = $1`, in.TypeID).Scan(&kind, &status)
		if err != nil {
			return fmt.Errorf("instance %q references unknown type %q", in.ID, in.TypeID)
		}
		if status != string(ontology.StatusActive) {
			return fmt.Errorf("instance %q references superseded type %q", in.ID, in.TypeID)
		}
		// The type graph is bipartite: edges must cross kinds. Counterpart
		// types not yet registered pass through.
		opposite := ontology.TypeKind(kind).Opposite()
		for _, e := range in.Edges {
			var counterKind string
			err := tx.QueryRow(ctx, `SELECT kind FROM ontology_types WHERE id = $1`, e.CounterpartTypeID).Scan(&counterKind)
			if errors.Is(err, pgxv5.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("resolving counterpart type of %q: %w", in.ID, err)
			}
			if counterKind != string(opposite) {
				return fmt.Errorf("instance %q: %s edge to %s-kind type %q on a %s-kind instance",
					in.ID, e.Role, counterKind, e.CounterpartTypeID, kind)
			}
		}

		props, err := json.Marshal(in.Properties)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO instances (id, type_id, identity_id, properties, created_at)
			VALUES ($1, $2, $3, $4, COALESCE($5, now()))`,
			in.ID, in.TypeID, nullable(in.IdentityID), props, nullableTime(in.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting instance %q: %w", in.ID, err)
		}
		for _, e := range in.Edges {
			_, err = tx.Exec(ctx, `
				INSERT INTO role_edges (instance_id, role, counterpart_id, counterpart_type_id)
				VALUES ($1, $2, $3, $4)`,
				in.ID, e.Role, e.CounterpartID, e.CounterpartTypeID,
			)
			if err != nil {
				return fmt.Errorf("inserting edge of %q: %w", in.ID, err)
			}
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) AffectedTypes(ctx context.Context, typeIDs []string) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT i.type_id
		FROM instances i
		JOIN role_edges e ON e.instance_id = i.id
		JOIN ontology_types t ON t.id = i.type_id
		WHERE e.counterpart_type_id = ANY($1)
		  AND NOT (i.type_id = ANY($1))
		  AND t.status = 'active'
		ORDER BY i.type_id`,
		typeIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) Versions(ctx context.Context, limit int) ([]ontology.Version, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT version, parent_version, commit_id, operation, subject_ids, created_at
		FROM registry_versions
		ORDER BY version DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ontology.Version
	for rows.Next() {
		var v ontology.Version
		var op string
		if err := rows.Scan(&v.Version, &v.ParentVersion, &v.CommitID, &op, &v.SubjectIDs, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Operation = ontology.Operation(op)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) AddDocuments(ctx context.Context, n int) (int64, error) {
	var count int64
	err := s.conn.QueryRow(ctx,
		`UPDATE registry_state SET doc_count = doc_count + $1 WHERE id = 1 RETURNING doc_count`, n,
	).Scan(&count)
	return count, err
}

func (s *Store) ResetDocumentCount(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `UPDATE registry_state SET doc_count = 0 WHERE id = 1`)
	return err
}

func insertType(ctx context.Context, tx pgxv5.Tx, t *ontology.Type) error {
	schema, err := json.Marshal(t.PropertySchema)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO ontology_types
			(id, kind, label_trail, definition, definition_embedding, property_schema,
			 status, retirement, aliases, is_seed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))`,
		t.ID, string(t.Kind), t.LabelTrail, t.Definition,
		embeddingValue(t.DefEmbedding), schema,
		string(t.Status), nullable(string(t.Retirement)), t.Aliases, t.IsSeed,
		nullableTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting type %q: %w", t.ID, err)
	}
	return nil
}

func embeddingValue(emb []float32) any {
	if len(emb) == 0 {
		return nil
	}
	return pgvector.NewVector(emb)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
