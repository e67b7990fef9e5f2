package vector

import (
	"context"
	"sort"
	"sync"

	"github.com/datapilot-ai/datapilot-engine/pkg/apperrors"
)

// MemoryIndex is an in-process Index for tests and small datasets.
type MemoryIndex struct {
	mu     sync.RWMutex
	points map[string]Point
	closed bool
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string]Point)}
}

// Upsert implements Index.
func (m *MemoryIndex) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return apperrors.ErrIndexClosed
	}
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

// Search implements Index.
func (m *MemoryIndex) Search(_ context.Context, vector []float32, filter Filter, limit int, threshold float64) ([]ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, apperrors.ErrIndexClosed
	}

	var hits []ScoredPoint
	for _, p := range m.points {
		if !filter.matches(p.Payload) {
			continue
		}
		score := CosineSimilarity(vector, p.Vector)
		if score >= threshold {
			hits = append(hits, ScoredPoint{ID: p.ID, Score: score, Payload: p.Payload})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Scroll implements Index.
func (m *MemoryIndex) Scroll(_ context.Context, filter Filter, cursor string, limit int) ([]Point, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, "", apperrors.ErrIndexClosed
	}
	if limit <= 0 {
		limit = 100
	}

	ids := make([]string, 0, len(m.points))
	for id, p := range m.points {
		if cursor != "" && id <= cursor {
			continue
		}
		if filter.matches(p.Payload) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if len(ids) > limit {
		ids = ids[:limit]
	}
	page := make([]Point, 0, len(ids))
	for _, id := range ids {
		page = append(page, m.points[id])
	}

	next := ""
	if len(page) == limit {
		next = page[len(page)-1].ID
	}
	return page, next, nil
}

// Close implements Index.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Index = (*MemoryIndex)(nil)
