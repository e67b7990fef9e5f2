package services

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/apperrors"
)

// EngineBuilder constructs a QueryService for a data source on first use.
type EngineBuilder func(dataSource string) (QueryService, error)

// EngineRegistry manages one QueryService per data source. Engines are
// built lazily and cached; Close tears all of them down.
type EngineRegistry struct {
	mu      sync.Mutex
	builder EngineBuilder
	engines map[string]QueryService
	closed  bool
	logger  *zap.Logger
}

// NewEngineRegistry creates a registry that builds engines with builder.
func NewEngineRegistry(builder EngineBuilder, logger *zap.Logger) *EngineRegistry {
	return &EngineRegistry{
		builder: builder,
		engines: make(map[string]QueryService),
		logger:  logger.Named("engine-registry"),
	}
}

// Get returns the engine for dataSource, building it on first request.
func (r *EngineRegistry) Get(dataSource string) (QueryService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, apperrors.ErrRegistryClosed
	}
	if engine, ok := r.engines[dataSource]; ok {
		return engine, nil
	}

	engine, err := r.builder(dataSource)
	if err != nil {
		return nil, fmt.Errorf("building engine for %q: %w", dataSource, err)
	}
	r.engines[dataSource] = engine
	r.logger.Info("engine created", zap.String("data_source", dataSource))
	return engine, nil
}

// Remove closes and evicts the engine for dataSource if present.
func (r *EngineRegistry) Remove(dataSource string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	engine, ok := r.engines[dataSource]
	if !ok {
		return nil
	}
	delete(r.engines, dataSource)
	if err := engine.Close(); err != nil {
		return fmt.Errorf("closing engine for %q: %w", dataSource, err)
	}
	return nil
}

// DataSources lists the data sources with a live engine.
func (r *EngineRegistry) DataSources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.engines))
	for ds := range r.engines {
		out = append(out, ds)
	}
	return out
}

// Close tears down every engine. The registry rejects further Get calls.
func (r *EngineRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	for ds, engine := range r.engines {
		if err := engine.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing engine for %q: %w", ds, err)
		}
	}
	r.engines = nil
	return firstErr
}
