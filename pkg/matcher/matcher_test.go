package matcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/llm"
	"github.com/datapilot-ai/datapilot-engine/pkg/models"
	"github.com/datapilot-ai/datapilot-engine/pkg/vector"
)

// fakeEmbedder returns a fixed direction per known keyword so similarity is
// deterministic: texts about the same entity land on the same axis.
func fakeEmbedder() *llm.MockEmbeddingClient {
	embed := func(input string) []float32 {
		lower := strings.ToLower(input)
		switch {
		case strings.Contains(lower, "customer"):
			return []float32{1, 0, 0}
		case strings.Contains(lower, "order"):
			return []float32{0, 1, 0}
		default:
			return []float32{0, 0, 1}
		}
	}

	mock := llm.NewMockEmbeddingClient()
	mock.CreateEmbeddingFunc = func(_ context.Context, input string) ([]float32, error) {
		return embed(input), nil
	}
	mock.CreateEmbeddingsFunc = func(_ context.Context, inputs []string) ([][]float32, error) {
		out := make([][]float32, len(inputs))
		for i, input := range inputs {
			out[i] = embed(input)
		}
		return out, nil
	}
	return mock
}

func newTestMatcher(t *testing.T) (*EntityMatcher, *llm.MockEmbeddingClient) {
	t.Helper()
	mock := fakeEmbedder()
	m := NewEntityMatcher(mock, vector.NewMemoryIndex(), "sales", 0.3, 10, zap.NewNop())
	require.NoError(t, m.IndexMetadata(context.Background(), salesMetadata()))
	return m, mock
}

func TestIndexMetadataPointCount(t *testing.T) {
	mock := fakeEmbedder()
	idx := vector.NewMemoryIndex()
	m := NewEntityMatcher(mock, idx, "sales", 0.3, 10, zap.NewNop())
	require.NoError(t, m.IndexMetadata(context.Background(), salesMetadata()))

	// 3 tables + 6 columns, all embedded in a single batch call.
	points, _, err := idx.Scroll(context.Background(), vector.Filter{DataSource: "sales"}, "", 100)
	require.NoError(t, err)
	assert.Len(t, points, 9)
	assert.Equal(t, 1, mock.CreateEmbeddingsCalls)
}

func TestMatchReturnsRelevantEntities(t *testing.T) {
	m, _ := newTestMatcher(t)

	qc, matches, err := m.Match(context.Background(), "Show all customers", salesMetadata(), nil)
	require.NoError(t, err)
	require.NotNil(t, qc)
	require.NotEmpty(t, matches)

	// Every hit on the customer axis; orders never score above threshold.
	for _, match := range matches {
		assert.Contains(t, strings.ToLower(match.EntityName), "customer")
		assert.GreaterOrEqual(t, match.SimilarityScore, 0.3)
	}
	assert.Equal(t, []string{"customers"}, qc.EntitiesMentioned)
}

func TestMatchOrdersByScore(t *testing.T) {
	m, _ := newTestMatcher(t)

	_, matches, err := m.Match(context.Background(), "customer orders", salesMetadata(), nil)
	require.NoError(t, err)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].SimilarityScore, matches[i].SimilarityScore)
	}
}

func TestMatchNoResultsIsNotAnError(t *testing.T) {
	m, _ := newTestMatcher(t)

	qc, matches, err := m.Match(context.Background(), "weather forecast tomorrow", salesMetadata(), nil)
	require.NoError(t, err)
	require.NotNil(t, qc)
	assert.Empty(t, matches)
}

func TestMatchOptions(t *testing.T) {
	m, _ := newTestMatcher(t)
	ctx := context.Background()

	t.Run("limit override", func(t *testing.T) {
		_, matches, err := m.Match(ctx, "customers", salesMetadata(), &Options{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("entity type restriction", func(t *testing.T) {
		_, matches, err := m.Match(ctx, "customers", salesMetadata(), &Options{EntityType: models.EntityTypeTable})
		require.NoError(t, err)
		require.NotEmpty(t, matches)
		for _, match := range matches {
			assert.Equal(t, models.EntityTypeTable, match.EntityType)
		}
	})

	t.Run("stricter threshold prunes matches", func(t *testing.T) {
		_, loose, err := m.Match(ctx, "customers", salesMetadata(), nil)
		require.NoError(t, err)
		_, strict, err := m.Match(ctx, "customers", salesMetadata(), &Options{SimilarityThreshold: 0.999})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(strict), len(loose))
	})
}

func TestMatchEmbedderError(t *testing.T) {
	mock := llm.NewMockEmbeddingClient()
	mock.CreateEmbeddingFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("endpoint unavailable")
	}
	m := NewEntityMatcher(mock, vector.NewMemoryIndex(), "sales", 0.3, 10, zap.NewNop())

	_, _, err := m.Match(context.Background(), "customers", salesMetadata(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
}
