// Package postgres opens the pgx connection pool backing the catalog.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrSnakeDoc/scout/internal/connect"
	"github.com/MrSnakeDoc/scout/internal/logger"
)

// ConnectOptions defines the pool and its connection retry behavior.
type ConnectOptions struct {
	DatabaseURL    string
	MaxConns       int32
	ConnectTimeout time.Duration
	RetryInterval  time.Duration
	MaxWait        time.Duration
	PingTimeout    time.Duration
	WarnThreshold  int
}

// New creates a pgxpool.Pool and blocks until the database answers or
// ConnectTimeout is reached.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*pgxpool.Pool, error) {
	retry := connect.Options{
		Service:        "postgres",
		Addr:           Redact(opts.DatabaseURL),
		ConnectTimeout: opts.ConnectTimeout,
		RetryInterval:  opts.RetryInterval,
		MaxWait:        opts.MaxWait,
		PingTimeout:    opts.PingTimeout,
		WarnThreshold:  opts.WarnThreshold,
	}
	if err := retry.Validate(); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := connect.WithRetry(ctx, retry, pool.Ping, log); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Redact hides the password of a connection URL for logging.
func Redact(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil || u.User == nil {
		return databaseURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
