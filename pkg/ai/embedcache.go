package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// EmbeddingCache memoizes GenerateEmbedding calls of an underlying client.
// Definition texts repeat across epochs (a type's definition only changes on
// a registry commit), so the hit rate is high and the cache saves one model
// round-trip per screened type per epoch.
//
// Keys include the model label: swapping the embedding model invalidates
// every entry.
type EmbeddingCache struct {
	GraphAIClient

	model string

	mu      sync.RWMutex
	entries map[string][]float32
	cap     int
}

// NewEmbeddingCache wraps client with a cache of at most capacity entries
// (0 means unbounded). model labels the embedding model the client is
// configured with.
func NewEmbeddingCache(client GraphAIClient, model string, capacity int) *EmbeddingCache {
	return &EmbeddingCache{
		GraphAIClient: client,
		model:         model,
		entries:       make(map[string][]float32),
		cap:           capacity,
	}
}

func (c *EmbeddingCache) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	key := c.key(input)

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		out := make([]float32, len(cached))
		copy(out, cached)
		return out, nil
	}

	vec, err := c.GraphAIClient.GenerateEmbedding(ctx, input)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.cap > 0 && len(c.entries) >= c.cap {
		for k := range c.entries {
			delete(c.entries, k)
			if len(c.entries) < c.cap {
				break
			}
		}
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.entries[key] = stored
	c.mu.Unlock()

	return vec, nil
}

// Len reports the current entry count.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *EmbeddingCache) key(input []byte) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write(input)
	return hex.EncodeToString(h.Sum(nil))
}
