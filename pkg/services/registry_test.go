package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/apperrors"
	"github.com/datapilot-ai/datapilot-engine/pkg/models"
)

type stubEngine struct {
	closed bool
}

func (s *stubEngine) ProcessQuery(context.Context, string, map[string]any) *models.QueryResult {
	return &models.QueryResult{Success: true}
}

func (s *stubEngine) History() []ProcessingRecord { return nil }

func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

func TestEngineRegistryGetBuildsLazily(t *testing.T) {
	var built []string
	registry := NewEngineRegistry(func(dataSource string) (QueryService, error) {
		built = append(built, dataSource)
		return &stubEngine{}, nil
	}, zap.NewNop())

	first, err := registry.Get("sales")
	require.NoError(t, err)
	second, err := registry.Get("sales")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, []string{"sales"}, built)

	_, err = registry.Get("hr")
	require.NoError(t, err)
	assert.Equal(t, []string{"sales", "hr"}, built)
	assert.ElementsMatch(t, []string{"sales", "hr"}, registry.DataSources())
}

func TestEngineRegistryBuilderError(t *testing.T) {
	registry := NewEngineRegistry(func(string) (QueryService, error) {
		return nil, errors.New("connection refused")
	}, zap.NewNop())

	_, err := registry.Get("sales")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, registry.DataSources())
}

func TestEngineRegistryRemove(t *testing.T) {
	engine := &stubEngine{}
	registry := NewEngineRegistry(func(string) (QueryService, error) {
		return engine, nil
	}, zap.NewNop())

	_, err := registry.Get("sales")
	require.NoError(t, err)

	require.NoError(t, registry.Remove("sales"))
	assert.True(t, engine.closed)
	assert.Empty(t, registry.DataSources())

	// Removing an absent engine is a no-op.
	require.NoError(t, registry.Remove("sales"))
}

func TestEngineRegistryClose(t *testing.T) {
	engines := map[string]*stubEngine{}
	registry := NewEngineRegistry(func(dataSource string) (QueryService, error) {
		e := &stubEngine{}
		engines[dataSource] = e
		return e, nil
	}, zap.NewNop())

	_, err := registry.Get("sales")
	require.NoError(t, err)
	_, err = registry.Get("hr")
	require.NoError(t, err)

	require.NoError(t, registry.Close())
	for _, e := range engines {
		assert.True(t, e.closed)
	}

	_, err = registry.Get("sales")
	assert.ErrorIs(t, err, apperrors.ErrRegistryClosed)

	// Close is idempotent.
	require.NoError(t, registry.Close())
}
