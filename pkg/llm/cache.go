package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// CachingClient wraps an EmbeddingClient with a content-hash cache.
// Embedding endpoints are deterministic for identical text, so repeated
// lookups of the same entity description or query string hit the cache.
type CachingClient struct {
	inner EmbeddingClient

	mu      sync.RWMutex
	entries map[string][]float32
	maxSize int
}

// NewCachingClient wraps inner with a bounded content-hash cache.
// maxSize <= 0 selects the default of 4096 entries.
func NewCachingClient(inner EmbeddingClient, maxSize int) *CachingClient {
	if maxSize <= 0 {
		maxSize = 4096
	}
	return &CachingClient{
		inner:   inner,
		entries: make(map[string][]float32),
		maxSize: maxSize,
	}
}

func contentHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// CreateEmbedding returns a cached vector when the input was seen before.
func (c *CachingClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	key := contentHash(input)

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	vector, err := c.inner.CreateEmbedding(ctx, input)
	if err != nil {
		return nil, err
	}

	c.store(key, vector)
	return vector, nil
}

// CreateEmbeddings resolves cached inputs locally and only sends misses to
// the inner client, preserving input order in the result.
func (c *CachingClient) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	result := make([][]float32, len(inputs))
	var missIdx []int
	var missInputs []string

	c.mu.RLock()
	for i, input := range inputs {
		if cached, ok := c.entries[contentHash(input)]; ok {
			result[i] = cached
		} else {
			missIdx = append(missIdx, i)
			missInputs = append(missInputs, input)
		}
	}
	c.mu.RUnlock()

	if len(missInputs) == 0 {
		return result, nil
	}

	vectors, err := c.inner.CreateEmbeddings(ctx, missInputs)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		result[idx] = vectors[j]
		c.store(contentHash(inputs[idx]), vectors[j])
	}

	return result, nil
}

// store inserts a cache entry, evicting the whole map when the bound is hit.
// Wholesale eviction is crude but keeps the cache allocation-free on reads.
func (c *CachingClient) store(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxSize {
		c.entries = make(map[string][]float32)
	}
	c.entries[key] = vector
}

// GetModel returns the inner client's model name.
func (c *CachingClient) GetModel() string {
	return c.inner.GetModel()
}

// GetEndpoint returns the inner client's endpoint.
func (c *CachingClient) GetEndpoint() string {
	return c.inner.GetEndpoint()
}
