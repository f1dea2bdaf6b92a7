// Package postgres opens the lib/pq connection pool behind the run ledger.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/vecta/pkg/config"
)

const pingTimeout = 5 * time.Second

type Client struct {
	DB   *sql.DB
	host string
}

// New builds a pool from cfg and returns it only once the server answers.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	connector, err := pq.NewConnector(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Std())

	c := &Client{DB: db, host: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres %s: %w", c.host, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// Describe renders err with the server's SQLSTATE class when it came from
// PostgreSQL, e.g. "28P01 invalid_password: ...".
func Describe(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Sprintf("%s %s: %s", pqErr.Code, pqErr.Code.Name(), pqErr.Message)
	}
	return err.Error()
}
