// Package storage resolves dataset table names to the files backing them.
// Path resolution across remote object stores is an external collaborator;
// this package defines the contract and a local-directory implementation.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Resolver maps a table name (and owning user) to the URI of the dataset
// file that backs it.
type Resolver interface {
	Resolve(ctx context.Context, tableName, userID string) (string, error)
}

// LocalResolver resolves tables to files under a base directory, optionally
// scoped per user. It looks for <table>.csv, then <table>.parquet.
type LocalResolver struct {
	baseDir string
}

// NewLocalResolver creates a resolver rooted at baseDir.
func NewLocalResolver(baseDir string) *LocalResolver {
	return &LocalResolver{baseDir: baseDir}
}

var datasetExtensions = []string{".csv", ".parquet"}

// Resolve implements Resolver. User-scoped files (<base>/<user>/<table>.<ext>)
// take precedence over shared files (<base>/<table>.<ext>).
func (r *LocalResolver) Resolve(_ context.Context, tableName, userID string) (string, error) {
	var candidates []string
	if userID != "" {
		for _, ext := range datasetExtensions {
			candidates = append(candidates, filepath.Join(r.baseDir, userID, tableName+ext))
		}
	}
	for _, ext := range datasetExtensions {
		candidates = append(candidates, filepath.Join(r.baseDir, tableName+ext))
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no dataset file found for table %q", tableName)
}

var _ Resolver = (*LocalResolver)(nil)
