package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/taxo/internal/server/middleware"
	"github.com/OFFIS-RIT/taxo/pkg/ontology"
	"github.com/OFFIS-RIT/taxo/pkg/store"
	"github.com/OFFIS-RIT/taxo/pkg/store/memory"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New(store.FullHistory())
	err := st.SeedTypes([]ontology.Type{
		{
			ID:           "t-company",
			Kind:         ontology.KindEntity,
			LabelTrail:   []string{"company"},
			Definition:   "a commercial organisation",
			DefEmbedding: []float32{0.25, 0.5, 0.25},
			Status:       ontology.StatusActive,
			IsSeed:       true,
		},
		{
			ID:         "t-employs",
			Kind:       ontology.KindRelation,
			LabelTrail: []string{"employs"},
			Definition: "an employment relation",
			Status:     ontology.StatusActive,
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return st
}

func typesRequest(t *testing.T, st *memory.Store, target string) map[string]any {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	cc := &middleware.AppContext{
		Context: e.NewContext(req, rec),
		App:     &middleware.App{Store: st},
		User:    &middleware.AppUser{UserID: 1, Role: "admin"},
	}
	if err := GetTypesHandler(cc); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestGetTypesEmbeddings(t *testing.T) {
	st := seededStore(t)

	t.Run("omitted by default", func(t *testing.T) {
		body := typesRequest(t, st, "/api/types")
		for _, v := range body["types"].([]any) {
			view := v.(map[string]any)
			if _, ok := view["embedding"]; ok {
				t.Errorf("type %v carries an embedding without opting in", view["id"])
			}
		}
	})

	t.Run("returned on request", func(t *testing.T) {
		body := typesRequest(t, st, "/api/types?embeddings=true")
		seen := false
		for _, v := range body["types"].([]any) {
			view := v.(map[string]any)
			if view["id"] != "t-company" {
				continue
			}
			seen = true
			emb, ok := view["embedding"].([]any)
			if !ok {
				t.Fatalf("embedding missing for t-company: %v", view)
			}
			if len(emb) != 3 {
				t.Errorf("embedding has %d components, want 3", len(emb))
			}
		}
		if !seen {
			t.Fatal("t-company not in listing")
		}
	})
}

func TestGetTypeIncludesEmbedding(t *testing.T) {
	st := seededStore(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/types/t-company", nil)
	rec := httptest.NewRecorder()
	ec := e.NewContext(req, rec)
	ec.SetParamNames("id")
	ec.SetParamValues("t-company")
	cc := &middleware.AppContext{
		Context: ec,
		App:     &middleware.App{Store: st},
		User:    &middleware.AppUser{UserID: 1, Role: "admin"},
	}
	if err := GetTypeHandler(cc); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	emb, ok := body["embedding"].([]any)
	if !ok {
		t.Fatalf("embedding missing from response: %v", body)
	}
	if len(emb) != 3 {
		t.Errorf("embedding has %d components, want 3", len(emb))
	}
}
