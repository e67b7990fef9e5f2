package datasource

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/apperrors"
)

// ConnectorInfo describes a registered connector type.
type ConnectorInfo struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// ConnectorFactory creates a connector from configuration.
type ConnectorFactory func(ctx context.Context, cfg *Config, logger *zap.Logger) (Connector, error)

// ConnectorRegistration contains info plus the factory for one backend type.
type ConnectorRegistration struct {
	Info    ConnectorInfo
	Factory ConnectorFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ConnectorRegistration)
)

// Register is called by each connector's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg ConnectorRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredConnectors returns info for all registered connector types.
func RegisteredConnectors() []ConnectorInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ConnectorInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	return result
}

// IsRegistered checks if a connector type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}

// New creates a connector for the configured type.
func New(ctx context.Context, cfg *Config, logger *zap.Logger) (Connector, error) {
	registryMu.RLock()
	reg, ok := registry[cfg.Type]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedDatasource, cfg.Type)
	}
	return reg.Factory(ctx, cfg, logger)
}
