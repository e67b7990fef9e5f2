package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource"
	"github.com/datapilot-ai/datapilot-engine/pkg/executor"
	"github.com/datapilot-ai/datapilot-engine/pkg/generator"
	"github.com/datapilot-ai/datapilot-engine/pkg/llm"
	"github.com/datapilot-ai/datapilot-engine/pkg/matcher"
	"github.com/datapilot-ai/datapilot-engine/pkg/metadata"
	"github.com/datapilot-ai/datapilot-engine/pkg/planner"
	"github.com/datapilot-ai/datapilot-engine/pkg/vector"
)

type fakeConnector struct {
	ExecuteQueryFunc func(ctx context.Context, sqlQuery string) (*datasource.Rows, error)
	Executed         []string
	Closed           bool
}

func (f *fakeConnector) ExecuteQuery(ctx context.Context, sqlQuery string) (*datasource.Rows, error) {
	f.Executed = append(f.Executed, sqlQuery)
	if f.ExecuteQueryFunc != nil {
		return f.ExecuteQueryFunc(ctx, sqlQuery)
	}
	return &datasource.Rows{
		Columns: []string{"id", "name"},
		Data: []map[string]any{
			{"id": int64(1), "name": "Acme"},
			{"id": int64(2), "name": "Globex"},
		},
	}, nil
}

func (f *fakeConnector) Ping(context.Context) error { return nil }

func (f *fakeConnector) Close() error {
	f.Closed = true
	return nil
}

func salesMetadata() *metadata.DatasetMetadata {
	return &metadata.DatasetMetadata{
		DataSource: "sales",
		Tables: []metadata.TableMetadata{
			{TableName: "customers", RecordCount: 1200},
			{TableName: "orders", RecordCount: 50000},
		},
		Columns: []metadata.ColumnMetadata{
			{TableName: "customers", ColumnName: "id"},
			{TableName: "customers", ColumnName: "name"},
			{TableName: "customers", ColumnName: "country"},
			{TableName: "orders", ColumnName: "id"},
			{TableName: "orders", ColumnName: "customer_id"},
			{TableName: "orders", ColumnName: "amount"},
		},
		Relationships: []metadata.Relationship{
			{LeftTable: "orders", LeftColumn: "customer_id", RightTable: "customers", RightColumn: "id"},
		},
	}
}

// axisEmbedder maps entity keywords onto fixed axes so similarity search is
// deterministic without a live embedding endpoint.
func axisEmbedder() *llm.MockEmbeddingClient {
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

func newTestService(t *testing.T, conn *fakeConnector, embedder llm.EmbeddingClient) QueryService {
	t.Helper()
	logger := zap.NewNop()
	meta := salesMetadata()

	entityMatcher := matcher.NewEntityMatcher(embedder, vector.NewMemoryIndex(), meta.DataSource, 0.3, 10, logger)
	require.NoError(t, entityMatcher.IndexMetadata(context.Background(), meta))

	exec := executor.New(conn, executor.Config{
		MaxExecutionTime:        time.Second,
		MaxExecutionTimeCeiling: 2 * time.Second,
		MaxRows:                 1000,
	}, nil, logger)

	return NewQueryService(
		entityMatcher,
		planner.NewPlanner(1000, logger),
		generator.NewGenerator(logger),
		exec,
		meta,
		logger,
	)
}

func TestProcessQueryHappyPath(t *testing.T) {
	conn := &fakeConnector{}
	svc := newTestService(t, conn, axisEmbedder())

	result := svc.ProcessQuery(context.Background(), "Show all customers from China", nil)

	require.NotNil(t, result)
	require.True(t, result.Success)
	assert.Equal(t, "Show all customers from China", result.OriginalQuery)
	require.NotEmpty(t, result.MetadataMatches)
	require.NotNil(t, result.QueryPlan)
	assert.Equal(t, "customers", result.QueryPlan.AnchorTable())
	require.NotNil(t, result.SQLResult)
	assert.Contains(t, result.SQLResult.SQL, "FROM customers")
	require.NotNil(t, result.ExecutionResult)
	assert.Equal(t, len(result.ExecutionResult.Data), result.ExecutionResult.RowCount)
	assert.Empty(t, result.FallbackAttempts)
	assert.Empty(t, result.ErrorMessage)
	assert.Greater(t, result.ProcessingTimeMs, 0.0)
}

func TestProcessQueryNoMatchesShortCircuits(t *testing.T) {
	conn := &fakeConnector{}
	svc := newTestService(t, conn, axisEmbedder())

	result := svc.ProcessQuery(context.Background(), "weather forecast for tomorrow", nil)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, NoMatchMessage, result.ErrorMessage)
	assert.Empty(t, result.MetadataMatches)

	// Planning, generation, and execution must not run.
	assert.Nil(t, result.QueryPlan)
	assert.Nil(t, result.SQLResult)
	assert.Nil(t, result.ExecutionResult)
	assert.Empty(t, conn.Executed)
}

func TestProcessQueryFallbackRecovery(t *testing.T) {
	var calls int
	conn := &fakeConnector{
		ExecuteQueryFunc: func(_ context.Context, _ string) (*datasource.Rows, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("transient connection reset")
			}
			return &datasource.Rows{
				Columns: []string{"id"},
				Data:    []map[string]any{{"id": int64(1)}},
			}, nil
		},
	}
	svc := newTestService(t, conn, axisEmbedder())

	result := svc.ProcessQuery(context.Background(), "Show all customers", nil)

	require.True(t, result.Success)
	require.Len(t, result.FallbackAttempts, 2)
	assert.Equal(t, "primary_sql", result.FallbackAttempts[0].Strategy)
	assert.False(t, result.FallbackAttempts[0].Success)
	assert.True(t, result.FallbackAttempts[1].Success)
}

func TestProcessQueryEmbedderFailure(t *testing.T) {
	embedder := llm.NewMockEmbeddingClient()
	embedder.CreateEmbeddingsFunc = func(_ context.Context, inputs []string) ([][]float32, error) {
		out := make([][]float32, len(inputs))
		for i := range inputs {
			out[i] = []float32{1}
		}
		return out, nil
	}
	embedder.CreateEmbeddingFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("endpoint unavailable")
	}

	conn := &fakeConnector{}
	svc := newTestService(t, conn, embedder)

	result := svc.ProcessQuery(context.Background(), "Show all customers", nil)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "entity matching failed")
	assert.Empty(t, conn.Executed)
}

func TestProcessQueryPanicRecovery(t *testing.T) {
	embedder := llm.NewMockEmbeddingClient()
	embedder.CreateEmbeddingsFunc = func(_ context.Context, inputs []string) ([][]float32, error) {
		out := make([][]float32, len(inputs))
		for i := range inputs {
			out[i] = []float32{1}
		}
		return out, nil
	}
	embedder.CreateEmbeddingFunc = func(context.Context, string) ([]float32, error) {
		panic("embedder bug")
	}

	svc := newTestService(t, &fakeConnector{}, embedder)

	result := svc.ProcessQuery(context.Background(), "Show all customers", nil)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "internal error")
	assert.Contains(t, result.ErrorMessage, "embedder bug")
	assert.NotNil(t, result.MetadataMatches)
}

func TestProcessQueryHistory(t *testing.T) {
	conn := &fakeConnector{}
	svc := newTestService(t, conn, axisEmbedder())

	svc.ProcessQuery(context.Background(), "Show all customers", nil)
	svc.ProcessQuery(context.Background(), "weather forecast", nil)

	history := svc.History()
	require.Len(t, history, 2)
	assert.Equal(t, "Show all customers", history[0].Query)
	assert.True(t, history[0].Success)
	assert.Equal(t, "weather forecast", history[1].Query)
	assert.False(t, history[1].Success)
	assert.False(t, history[0].Timestamp.IsZero())
	assert.NotEmpty(t, history[0].RequestID)
	assert.NotEqual(t, history[0].RequestID, history[1].RequestID)
}

func TestQueryServiceClose(t *testing.T) {
	conn := &fakeConnector{}
	svc := newTestService(t, conn, axisEmbedder())

	require.NoError(t, svc.Close())
	assert.True(t, conn.Closed)
}
