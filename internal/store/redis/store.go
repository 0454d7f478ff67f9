// Package redis stores the catalog as JSON documents, one key per external
// id, indexed by a set. Upserts use WATCH/MULTI so concurrent writers merge
// instead of overwriting each other.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/store"
)

const (
	// DefaultMaxAttempts bounds optimistic transaction retries.
	DefaultMaxAttempts = 5
	// DefaultReportTTL is how long run reports are kept (7 days)
	DefaultReportTTL = 7 * 24 * time.Hour
	// DefaultReportHistory is how many run ids are listed
	DefaultReportHistory = 50
)

// Store handles Redis operations for catalog entries and run reports
type Store struct {
	client      *redis.Client
	logger      logger.Logger
	now         func() time.Time
	maxAttempts int
}

var (
	_ store.CatalogStore  = (*Store)(nil)
	_ store.ReportArchive = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLogger reports entries that cannot be decoded.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:      client,
		logger:      logger.Nop(),
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return domain.StorageUnavailable("redis ping", err)
	}
	return nil
}

// storageErr keeps ErrNotFound and already classified errors intact.
func storageErr(op string, err error) error {
	if err == nil || errors.Is(err, store.ErrNotFound) || domain.KindOf(err) != "" {
		return err
	}
	return domain.StorageUnavailable(op, err)
}
