package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource"
	"github.com/datapilot-ai/datapilot-engine/pkg/metadata"
	"github.com/datapilot-ai/datapilot-engine/pkg/storage"
)

// DatasetService materializes dataset files as queryable tables before a
// file-backed engine serves its first query.
type DatasetService struct {
	resolver storage.Resolver
	loader   datasource.DatasetLoader
	logger   *zap.Logger
}

// NewDatasetService creates a dataset service.
func NewDatasetService(resolver storage.Resolver, loader datasource.DatasetLoader, logger *zap.Logger) *DatasetService {
	return &DatasetService{
		resolver: resolver,
		loader:   loader,
		logger:   logger.Named("dataset-service"),
	}
}

// EnsureTables loads every table in meta from its backing file. Tables whose
// files cannot be resolved are skipped with a warning so a partially
// materialized catalog still serves the tables it has.
func (s *DatasetService) EnsureTables(ctx context.Context, meta *metadata.DatasetMetadata, userID string) error {
	var loaded int
	for _, table := range meta.Tables {
		path, err := s.resolver.Resolve(ctx, table.TableName, userID)
		if err != nil {
			s.logger.Warn("dataset file not found, skipping table",
				zap.String("table", table.TableName),
				zap.Error(err))
			continue
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".csv" {
			s.logger.Warn("unsupported dataset format, skipping table",
				zap.String("table", table.TableName),
				zap.String("format", ext))
			continue
		}

		rows, err := s.loader.LoadCSV(ctx, table.TableName, path)
		if err != nil {
			return fmt.Errorf("loading table %q from %s: %w", table.TableName, path, err)
		}
		s.logger.Info("table loaded",
			zap.String("table", table.TableName),
			zap.Int64("rows", rows))
		loaded++
	}

	s.logger.Info("dataset materialized",
		zap.Int("tables_loaded", loaded),
		zap.Int("tables_total", len(meta.Tables)))
	return nil
}
