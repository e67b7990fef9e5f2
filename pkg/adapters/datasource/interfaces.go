// Package datasource defines the backend connector contract and the registry
// connectors register themselves with. The fallback execution logic upstream
// is engine-agnostic; connectors only run SQL and return rows.
package datasource

import "context"

// Rows holds the materialized result of one row-returning statement.
// Data preserves backend row order; Columns preserves select-list order.
type Rows struct {
	Columns []string         `json:"columns"`
	Data    []map[string]any `json:"data"`
}

// Connector executes SQL against one backend. A Connector owns its
// connection, establishes it lazily on first use, and is not safe to share
// across concurrent requests without an external pool.
type Connector interface {
	// ExecuteQuery runs a single statement and materializes its rows.
	// The context deadline bounds the call; cancellation must abort it.
	ExecuteQuery(ctx context.Context, sqlQuery string) (*Rows, error)

	// Ping verifies the backend is reachable, connecting if needed.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// DatasetLoader is implemented by connectors that can attach local dataset
// files as queryable tables (the embedded analytical engine).
type DatasetLoader interface {
	// LoadCSV creates (or replaces) a table from a CSV file and returns the
	// number of rows loaded.
	LoadCSV(ctx context.Context, tableName, filePath string) (int64, error)
}

// Config is the connection configuration handed to connector factories.
type Config struct {
	Type     string // "sqlite", "postgres", "mysql", "sqlserver"
	Database string // path for sqlite, database name otherwise
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string

	// Resource ceilings. Zero values select connector defaults.
	MaxConnections    int
	ConnectionTimeout int // seconds
}
