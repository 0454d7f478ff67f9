// Package memory is the in-process CatalogStore. It backs tests and the
// no-infrastructure mode; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/store"
)

// Store keeps entries in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*domain.CatalogEntry // external_id -> entry
	now     func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*domain.CatalogEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.CatalogStore = (*Store)(nil)

// Upsert inserts or merges e. The returned entry is a copy.
func (s *Store) Upsert(ctx context.Context, e *domain.CatalogEntry) (*domain.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageUnavailable("memory upsert", err)
	}
	if e == nil || e.ExternalID == "" {
		return nil, fmt.Errorf("upsert: entry without external id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var stored *domain.CatalogEntry
	if existing, ok := s.entries[e.ExternalID]; ok {
		stored = domain.Merge(existing, e, now)
	} else {
		stored = domain.PrepareInsert(e, now)
	}
	s.entries[e.ExternalID] = stored

	out := *stored
	return &out, nil
}

// Get returns a copy of the entry or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, externalID string) (*domain.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageUnavailable("memory get", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[externalID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *e
	return &out, nil
}

// List returns copies matching f, newest first.
func (s *Store) List(ctx context.Context, f store.Filter) ([]*domain.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageUnavailable("memory list", err)
	}

	s.mu.RLock()
	all := make([]*domain.CatalogEntry, 0, len(s.entries))
	for _, e := range s.entries {
		c := *e
		all = append(all, &c)
	}
	s.mu.RUnlock()

	return f.Apply(all), nil
}

// UpdatePresence sets the reconciliation fields of an existing entry.
func (s *Store) UpdatePresence(ctx context.Context, externalID string, missed int, active bool) error {
	if err := ctx.Err(); err != nil {
		return domain.StorageUnavailable("memory update presence", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[externalID]
	if !ok {
		return store.ErrNotFound
	}
	if e.IsActive != active {
		e.UpdatedAt = s.now().UTC()
	}
	e.MissedCycles = missed
	e.IsActive = active
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
