// Package database wraps the sqlx connections to the source and warehouse
// SQL Server instances.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/pkg/errors"
)

// driverName selects go-mssqldb's ordinal placeholder mode so sqlx.In
// expansion with ? bindvars works against SQL Server.
const driverName = "mssql"

// DB is the connection surface the pipelines use.
type DB interface {
	Close() error
	Connx(ctx context.Context) (*sqlx.Conn, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	Ping() error
	PingContext(ctx context.Context) error
	Rebind(query string) string
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	Stats() sql.DBStats
}

// Config holds the settings for one SQL Server connection pool.
type Config struct {
	Host            string
	Port            int
	Name            string
	UserName        string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the config as a sqlserver:// connection URL.
func (c Config) DSN() string {
	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		RawQuery: url.Values{"database": []string{c.Name}}.Encode(),
	}
	if c.UserName != "" {
		u.User = url.UserPassword(c.UserName, c.Password)
	}
	return u.String()
}

// Connect opens a pool, applies the pool limits and verifies connectivity.
func Connect(ctx context.Context, cfg Config, logger ectologger.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", cfg.Name)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to ping database %s", cfg.Name)
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"host":     cfg.Host,
		"database": cfg.Name,
	}).Info("Database connection established")

	return db, nil
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
}
