package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/store"
)

// Upsert inserts or merges an entry under WATCH, retrying when another
// writer touched the key in between.
func (s *Store) Upsert(ctx context.Context, e *domain.CatalogEntry) (*domain.CatalogEntry, error) {
	if e == nil || e.ExternalID == "" {
		return nil, fmt.Errorf("upsert: entry without external id")
	}
	key := EntryKey(e.ExternalID)

	var result *domain.CatalogEntry
	txf := func(tx *redis.Tx) error {
		stored, err := readEntry(ctx, tx, key)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := s.now().UTC()
		if stored != nil {
			result = domain.Merge(stored, e, now)
		} else {
			result = domain.PrepareInsert(e, now)
		}

		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, AllEntriesKey(), e.ExternalID)
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		return nil, storageErr("redis upsert", err)
	}
	return result, nil
}

// Get retrieves an entry by external id
func (s *Store) Get(ctx context.Context, externalID string) (*domain.CatalogEntry, error) {
	e, err := readEntry(ctx, s.client, EntryKey(externalID))
	if err != nil {
		return nil, storageErr("redis get", err)
	}
	return e, nil
}

// List loads every indexed entry with one MGET and filters client side
func (s *Store) List(ctx context.Context, f store.Filter) ([]*domain.CatalogEntry, error) {
	ids, err := s.client.SMembers(ctx, AllEntriesKey()).Result()
	if err != nil {
		return nil, storageErr("redis list", fmt.Errorf("failed to get entry ids: %w", err))
	}
	if len(ids) == 0 {
		return []*domain.CatalogEntry{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = EntryKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storageErr("redis list", fmt.Errorf("failed to get entries: %w", err))
	}

	entries := make([]*domain.CatalogEntry, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Indexed but missing: skip it
			continue
		}
		var e domain.CatalogEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			id, _ := ExtractExternalID(keys[i])
			s.logger.Warn("skipping undecodable catalog entry",
				logger.String("external_id", id),
				logger.String("key", keys[i]),
				logger.Error(err))
			continue
		}
		entries = append(entries, &e)
	}

	return f.Apply(entries), nil
}

// UpdatePresence rewrites the reconciliation fields of an existing entry
func (s *Store) UpdatePresence(ctx context.Context, externalID string, missed int, active bool) error {
	key := EntryKey(externalID)

	txf := func(tx *redis.Tx) error {
		e, err := readEntry(ctx, tx, key)
		if err != nil {
			return err
		}
		if e.IsActive != active {
			e.UpdatedAt = s.now().UTC()
		}
		e.MissedCycles = missed
		e.IsActive = active

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	return storageErr("redis update presence", s.watch(ctx, txf, key))
}

// watch runs txf optimistically, retrying on redis.TxFailedErr.
func (s *Store) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	var err error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("transaction still conflicting after %d attempts: %w", s.maxAttempts, err)
}

// readEntry loads and decodes one entry. Missing keys map to store.ErrNotFound.
func readEntry(ctx context.Context, c redis.Cmdable, key string) (*domain.CatalogEntry, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	var e domain.CatalogEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &e, nil
}
