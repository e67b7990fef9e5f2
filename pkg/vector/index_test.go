package vector

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"mismatched lengths", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// testPoints builds a small corpus with two data sources and two entity types.
func testPoints() []Point {
	return []Point{
		{
			ID:     "sales:table:customers",
			Vector: []float32{1, 0, 0},
			Payload: Payload{
				DataSource: "sales",
				EntityType: "table",
				EntityName: "customers",
				Content:    "Table customers",
			},
		},
		{
			ID:     "sales:column:customers.country",
			Vector: []float32{0.9, 0.1, 0},
			Payload: Payload{
				DataSource: "sales",
				EntityType: "column",
				EntityName: "customers.country",
				Content:    "Column country of table customers",
			},
		},
		{
			ID:     "sales:table:orders",
			Vector: []float32{0, 1, 0},
			Payload: Payload{
				DataSource: "sales",
				EntityType: "table",
				EntityName: "orders",
				Content:    "Table orders",
			},
		},
		{
			ID:     "hr:table:employees",
			Vector: []float32{1, 0, 0},
			Payload: Payload{
				DataSource: "hr",
				EntityType: "table",
				EntityName: "employees",
				Content:    "Table employees",
			},
		},
	}
}

// runIndexSuite exercises the Index contract shared by both implementations.
func runIndexSuite(t *testing.T, open func(t *testing.T) Index) {
	ctx := context.Background()

	t.Run("search filters by data source and orders by score", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, testPoints()))

		hits, err := idx.Search(ctx, []float32{1, 0, 0}, Filter{DataSource: "sales"}, 10, 0.3)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "sales:table:customers", hits[0].ID)
		assert.Equal(t, "sales:column:customers.country", hits[1].ID)
		assert.Greater(t, hits[0].Score, hits[1].Score)
		for _, hit := range hits {
			assert.Equal(t, "sales", hit.Payload.DataSource)
		}
	})

	t.Run("search respects threshold", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, testPoints()))

		hits, err := idx.Search(ctx, []float32{1, 0, 0}, Filter{DataSource: "sales"}, 10, 0.999)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "sales:table:customers", hits[0].ID)
	})

	t.Run("search respects limit", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, testPoints()))

		hits, err := idx.Search(ctx, []float32{1, 0.5, 0}, Filter{DataSource: "sales"}, 1, 0)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("search filters by entity type", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, testPoints()))

		hits, err := idx.Search(ctx, []float32{1, 0, 0}, Filter{DataSource: "sales", EntityType: "column"}, 10, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "column", hits[0].Payload.EntityType)
	})

	t.Run("search with no matches returns empty", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, testPoints()))

		hits, err := idx.Search(ctx, []float32{0, 0, 1}, Filter{DataSource: "sales"}, 10, 0.5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, testPoints()))

		updated := Point{
			ID:     "sales:table:customers",
			Vector: []float32{0, 0, 1},
			Payload: Payload{
				DataSource: "sales",
				EntityType: "table",
				EntityName: "customers",
				Content:    "Table customers, refreshed",
			},
		}
		require.NoError(t, idx.Upsert(ctx, []Point{updated}))

		hits, err := idx.Search(ctx, []float32{0, 0, 1}, Filter{DataSource: "sales"}, 10, 0.9)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "Table customers, refreshed", hits[0].Payload.Content)
	})

	t.Run("scroll pages through in id order", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, testPoints()))

		var ids []string
		cursor := ""
		for {
			page, next, err := idx.Scroll(ctx, Filter{DataSource: "sales"}, cursor, 2)
			require.NoError(t, err)
			for _, p := range page {
				ids = append(ids, p.ID)
			}
			if next == "" {
				break
			}
			cursor = next
		}

		assert.Equal(t, []string{
			"sales:column:customers.country",
			"sales:table:customers",
			"sales:table:orders",
		}, ids)
	})
}

func TestMemoryIndex(t *testing.T) {
	runIndexSuite(t, func(t *testing.T) Index {
		return NewMemoryIndex()
	})
}

func TestSQLiteStore(t *testing.T) {
	var n int
	runIndexSuite(t, func(t *testing.T) Index {
		n++
		path := filepath.Join(t.TempDir(), fmt.Sprintf("vectors-%d.db", n))
		store, err := OpenSQLiteStore(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestSQLiteStorePersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, testPoints()))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	hits, err := reopened.Search(ctx, []float32{1, 0, 0}, Filter{DataSource: "sales"}, 10, 0.5)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSQLiteStoreClosed(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Search(context.Background(), []float32{1}, Filter{}, 1, 0)
	assert.Error(t, err)
}

func TestSearchScoresMatchCosine(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, testPoints()))

	query := []float32{0.9, 0.1, 0}
	hits, err := idx.Search(ctx, query, Filter{DataSource: "sales"}, 1, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	want := CosineSimilarity(query, []float32{0.9, 0.1, 0})
	assert.InDelta(t, want, hits[0].Score, 1e-6)
	assert.InDelta(t, 1.0, want, 1e-9)
	assert.False(t, math.IsNaN(hits[0].Score))
}
