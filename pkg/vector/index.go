// Package vector provides the entity embedding index used by the matcher.
// Two implementations are provided: a SQLite-backed store for persistence and
// an in-memory store for tests.
package vector

import (
	"context"
	"math"
)

// Payload carries the entity data stored alongside each vector.
type Payload struct {
	DataSource   string         `json:"data_source"`
	EntityType   string         `json:"entity_type"`
	EntityName   string         `json:"entity_name"`
	Content      string         `json:"content"`
	SemanticTags []string       `json:"semantic_tags,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Point is one vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// ScoredPoint is a search hit with its similarity score.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload Payload
}

// Filter narrows searches and scrolls to one data source and, optionally,
// one entity type. Empty fields match everything.
type Filter struct {
	DataSource string
	EntityType string
}

// Index is the similarity-search store consumed by the entity matcher.
type Index interface {
	// Search returns up to limit points matching filter whose cosine
	// similarity against vector is >= threshold, ordered by descending score.
	Search(ctx context.Context, vector []float32, filter Filter, limit int, threshold float64) ([]ScoredPoint, error)

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, points []Point) error

	// Scroll enumerates points matching filter in ID order. cursor is the
	// last ID of the previous page ("" for the first page). Returns the page
	// and the cursor for the next page ("" when exhausted).
	Scroll(ctx context.Context, filter Filter, cursor string, limit int) ([]Point, string, error)

	// Close releases the underlying storage.
	Close() error
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 for mismatched lengths or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (f Filter) matches(p Payload) bool {
	if f.DataSource != "" && f.DataSource != p.DataSource {
		return false
	}
	if f.EntityType != "" && f.EntityType != p.EntityType {
		return false
	}
	return true
}
