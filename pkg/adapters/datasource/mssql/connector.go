// Package mssql provides the SQL Server backend connector.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource"
	"github.com/datapilot-ai/datapilot-engine/pkg/logging"
)

// Connector executes SQL against a SQL Server instance.
type Connector struct {
	connStr string
	maxConn int
	logger  *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// NewConnector creates a connector from configuration.
// The connection is established lazily on first use.
func NewConnector(cfg *datasource.Config, logger *zap.Logger) *Connector {
	return &Connector{
		connStr: buildConnectionString(cfg),
		maxConn: cfg.MaxConnections,
		logger:  logger.Named("mssql"),
	}
}

func buildConnectionString(cfg *datasource.Config) string {
	port := cfg.Port
	if port == 0 {
		port = 1433
	}

	query := url.Values{}
	query.Set("database", cfg.Database)
	if cfg.ConnectionTimeout > 0 {
		query.Set("connection timeout", fmt.Sprintf("%d", cfg.ConnectionTimeout))
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (c *Connector) conn(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	db, err := sql.Open("sqlserver", c.connStr)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}
	if c.maxConn > 0 {
		db.SetMaxOpenConns(c.maxConn)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlserver: %w", err)
	}

	c.logger.Debug("opened sqlserver connection",
		zap.String("conn", logging.SanitizeConnectionString(c.connStr)))
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

func init() {
	datasource.Register(datasource.ConnectorRegistration{
		Info: datasource.ConnectorInfo{
			Type:        "sqlserver",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2017+",
		},
		Factory: func(_ context.Context, cfg *datasource.Config, logger *zap.Logger) (datasource.Connector, error) {
			if cfg.Host == "" {
				return nil, fmt.Errorf("sqlserver host is required")
			}
			if cfg.Database == "" {
				return nil, fmt.Errorf("sqlserver database is required")
			}
			return NewConnector(cfg, logger), nil
		},
	})
}

var _ datasource.Connector = (*Connector)(nil)
