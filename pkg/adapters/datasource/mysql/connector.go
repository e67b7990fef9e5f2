// Package mysql provides the MySQL backend connector.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot-engine/pkg/adapters/datasource"
	"github.com/datapilot-ai/datapilot-engine/pkg/logging"
)

// Connector executes SQL against a MySQL server.
type Connector struct {
	dsn     string
	maxConn int
	logger  *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// NewConnector creates a connector from configuration.
// The connection is established lazily on first use.
func NewConnector(cfg *datasource.Config, logger *zap.Logger) *Connector {
	return &Connector{
		dsn:     buildDSN(cfg),
		maxConn: cfg.MaxConnections,
		logger:  logger.Named("mysql"),
	}
}

func buildDSN(cfg *datasource.Config) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mc := gomysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	if cfg.ConnectionTimeout > 0 {
		mc.Timeout = time.Duration(cfg.ConnectionTimeout) * time.Second
	}
	return mc.FormatDSN()
}

func (c *Connector) conn(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	db, err := sql.Open("mysql", c.dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	if c.maxConn > 0 {
		db.SetMaxOpenConns(c.maxConn)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	c.logger.Debug("opened mysql connection",
		zap.String("dsn", logging.SanitizeConnectionString(c.dsn)))
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
			Type:        "mysql",
			DisplayName: "MySQL",
			Description: "Connect to MySQL 8+",
		},
		Factory: func(_ context.Context, cfg *datasource.Config, logger *zap.Logger) (datasource.Connector, error) {
			if cfg.Host == "" {
				return nil, fmt.Errorf("mysql host is required")
			}
			if cfg.Database == "" {
				return nil, fmt.Errorf("mysql database is required")
			}
			return NewConnector(cfg, logger), nil
		},
	})
}

var _ datasource.Connector = (*Connector)(nil)
