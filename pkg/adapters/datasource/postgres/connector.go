// Package postgres provides the PostgreSQL backend connector.
package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource"
	"github.com/datapilot-ai/datapilot-engine/pkg/logging"
)

// Connector executes SQL against a PostgreSQL server via pgx.
type Connector struct {
	connStr string
	maxConn int
	logger  *zap.Logger

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewConnector creates a connector from configuration.
// The pool is established lazily on first use.
func NewConnector(cfg *datasource.Config, logger *zap.Logger) *Connector {
	return &Connector{
		connStr: buildConnectionString(cfg),
		maxConn: cfg.MaxConnections,
		logger:  logger.Named("postgres"),
	}
}

func buildConnectionString(cfg *datasource.Config) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.User, cfg.Password, cfg.Database, sslMode,
	)
}

func (c *Connector) getPool(ctx context.Context) (*pgxpool.Pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pool != nil {
		return c.pool, nil
	}

	poolCfg, err := pgxpool.ParseConfig(c.connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if c.maxConn > 0 {
		poolCfg.MaxConns = int32(c.maxConn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	c.logger.Debug("opened postgres pool",
		zap.String("conn", logging.SanitizeConnectionString(c.connStr)))
	c.pool = pool
	return pool, nil
}

// ExecuteQuery implements datasource.Connector.
func (c *Connector) ExecuteQuery(ctx context.Context, sqlQuery string) (*datasource.Rows, error) {
	pool, err := c.getPool(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	result := &datasource.Rows{
		Columns: columns,
		Data:    make([]map[string]any, 0),
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		result.Data = append(result.Data, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// Ping implements datasource.Connector.
func (c *Connector) Ping(ctx context.Context) error {
	pool, err := c.getPool(ctx)
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Close implements datasource.Connector.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	return nil
}

func init() {
	datasource.Register(datasource.ConnectorRegistration{
		Info: datasource.ConnectorInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+",
		},
		Factory: func(_ context.Context, cfg *datasource.Config, logger *zap.Logger) (datasource.Connector, error) {
			if cfg.Host == "" {
				return nil, fmt.Errorf("postgres host is required")
			}
			if cfg.Database == "" {
				return nil, fmt.Errorf("postgres database is required")
			}
			return NewConnector(cfg, logger), nil
		},
	})
}

var _ datasource.Connector = (*Connector)(nil)
