package ai

import (
	"context"
	"fmt"
	"testing"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...GenerateOption) error {
	return nil
}

func (c *countingEmbedder) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	c.calls++
	return []float32{float32(len(input)), 1}, nil
}

func (c *countingEmbedder) ResetMetrics()            {}
func (c *countingEmbedder) GetMetrics() ModelMetrics { return ModelMetrics{} }

func TestEmbeddingCacheHitsAndMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cache := NewEmbeddingCache(inner, "test-model", 10)
	ctx := context.Background()

	first, err := cache.GenerateEmbedding(ctx, []byte("a commercial organisation"))
	if err != nil {
		t.Fatalf("GenerateEmbedding: %v", err)
	}
	second, err := cache.GenerateEmbedding(ctx, []byte("a commercial organisation"))
	if err != nil {
		t.Fatalf("GenerateEmbedding: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
	if len(second) != len(first) || second[0] != first[0] {
		t.Errorf("cached result %v differs from original %v", second, first)
	}

	if _, err := cache.GenerateEmbedding(ctx, []byte("an organised body")); err != nil {
		t.Fatalf("GenerateEmbedding: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner called %d times after new input, want 2", inner.calls)
	}
	if cache.Len() != 2 {
		t.Errorf("cache holds %d entries, want 2", cache.Len())
	}
}

func TestEmbeddingCacheCopyOnRead(t *testing.T) {
	cache := NewEmbeddingCache(&countingEmbedder{}, "test-model", 10)
	ctx := context.Background()

	got, err := cache.GenerateEmbedding(ctx, []byte("text"))
	if err != nil {
		t.Fatalf("GenerateEmbedding: %v", err)
	}
	got[0] = -999

	again, err := cache.GenerateEmbedding(ctx, []byte("text"))
	if err != nil {
		t.Fatalf("GenerateEmbedding: %v", err)
	}
	if again[0] == -999 {
		t.Error("mutating a returned embedding corrupted the cache")
	}
}

func TestEmbeddingCacheEviction(t *testing.T) {
	cache := NewEmbeddingCache(&countingEmbedder{}, "test-model", 3)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := cache.GenerateEmbedding(ctx, []byte(fmt.Sprintf("definition %d", i))); err != nil {
			t.Fatalf("GenerateEmbedding: %v", err)
		}
	}
	if cache.Len() > 3 {
		t.Errorf("cache holds %d entries, capacity is 3", cache.Len())
	}
}
