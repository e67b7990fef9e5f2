// Package sqlite provides the embedded analytical engine. Datasets live in a
// single SQLite file (or in memory) and CSV files can be attached as tables,
// which is how file-backed data sources are queried.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource"
	"github.com/datapilot-ai/datapilot-engine/pkg/logging"
)

// Connector executes SQL against an embedded SQLite database.
type Connector struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// NewConnector creates a connector for the database at path.
// The connection is established lazily on first use.
func NewConnector(path string, logger *zap.Logger) *Connector {
	return &Connector{
		path:   path,
		logger: logger.Named("sqlite"),
	}
}

// conn returns the open database handle, connecting on first call.
func (c *Connector) conn(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	db, err := sql.Open("sqlite", c.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps an in-memory database from being recreated
	// per pooled connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	c.logger.Debug("opened sqlite database", zap.String("path", c.path))
	c.db = db
	return db, nil
}

// ExecuteQuery implements datasource.Connector.
func (c *Connector) ExecuteQuery(ctx context.Context, sqlQuery string) (*datasource.Rows, error) {
	db, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	return datasource.ScanRows(rows)
}

// Ping implements datasource.Connector.
func (c *Connector) Ping(ctx context.Context) error {
	db, err := c.conn(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close implements datasource.Connector.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func register() {
	datasource.Register(datasource.ConnectorRegistration{
		Info: datasource.ConnectorInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "Embedded analytical engine over local dataset files",
		},
		Factory: func(_ context.Context, cfg *datasource.Config, logger *zap.Logger) (datasource.Connector, error) {
			if cfg.Database == "" {
				return nil, fmt.Errorf("sqlite database path is required")
			}
			logger.Debug("creating sqlite connector",
				zap.String("path", logging.SanitizeConnectionString(cfg.Database)))
			return NewConnector(cfg.Database, logger), nil
		},
	})
}

func init() { register() }

var (
	_ datasource.Connector     = (*Connector)(nil)
	_ datasource.DatasetLoader = (*Connector)(nil)
)
