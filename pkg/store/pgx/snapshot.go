package pgx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

type snapshot struct {
	conn    pgxIConn
	version int64
	window  store.Window
}

func (s *snapshot) Version() int64 {
	return s.version
}

const typeColumns = `id, kind, label_trail, definition, definition_embedding,
	property_schema, status, COALESCE(retirement, ''), aliases, is_seed, created_at`

func (s *snapshot) ActiveTypes(ctx context.Context) ([]ontology.Type, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT `+typeColumns+` FROM ontology_types WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ontology.Type
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *snapshot) TypeByID(ctx context.Context, id string) (*ontology.Type, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT `+typeColumns+` FROM ontology_types WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanType(rows)
}

func (s *snapshot) Instances(ctx context.Context, typeID string) ([]ontology.Instance, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, type_id, COALESCE(identity_id, ''), properties, created_at
		FROM instances WHERE type_id = $1 ORDER BY id`, typeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]int)
	var out []ontology.Instance
	for rows.Next() {
		var in ontology.Instance
		var props []byte
		if err := rows.Scan(&in.ID, &in.TypeID, &in.IdentityID, &props, &in.CreatedAt); err != nil {
			return nil, err
		}
		if len(props) > 0 {
			if err := json.Unmarshal(props, &in.Properties); err != nil {
				return nil, err
			}
		}
		in.Weight = 1
		byID[in.ID] = len(out)
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	edgeRows, err := s.conn.Query(ctx, `
		SELECT e.instance_id, e.role, e.counterpart_id, e.counterpart_type_id
		FROM role_edges e
		JOIN instances i ON i.id = e.instance_id
		WHERE i.type_id = $1`, typeID)
	if err != nil {
		return nil, err
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var instanceID string
		var e ontology.RoleEdge
		if err := edgeRows.Scan(&instanceID, &e.Role, &e.CounterpartID, &e.CounterpartTypeID); err != nil {
			return nil, err
		}
		if idx, ok := byID[instanceID]; ok {
			out[idx].Edges = append(out[idx].Edges, e)
		}
	}
	if err := edgeRows.Err(); err != nil {
		return nil, err
	}

	return s.window.Apply(out, time.Now()), nil
}

func (s *snapshot) InstanceCount(ctx context.Context, typeID string) (int, error) {
	instances, err := s.Instances(ctx, typeID)
	if err != nil {
		return 0, err
	}
	return len(instances), nil
}

func (s *snapshot) IdentityCounts(ctx context.Context, typeID string) (map[string]int, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT identity_id, count(*)
		FROM instances
		WHERE type_id = $1 AND identity_id IS NOT NULL
		GROUP BY identity_id`, typeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func scanType(rows pgxv5.Rows) (*ontology.Type, error) {
	var t ontology.Type
	var kind, status, retirement string
	var emb *pgvector.Vector
	var schema []byte
	if err := rows.Scan(
		&t.ID, &kind, &t.LabelTrail, &t.Definition, &emb,
		&schema, &status, &retirement, &t.Aliases, &t.IsSeed, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.Kind = ontology.TypeKind(kind)
	t.Status = ontology.TypeStatus(status)
	t.Retirement = ontology.Retirement(retirement)
	if emb != nil {
		t.DefEmbedding = emb.Slice()
	}
	if len(schema) > 0 {
		if err := json.Unmarshal(schema, &t.PropertySchema); err != nil {
			return nil, err
		}
	}
	return &t, nil
}
