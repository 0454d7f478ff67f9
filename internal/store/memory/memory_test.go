package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newEntry(id string, price int64) *domain.CatalogEntry {
	return domain.NewEntry(domain.Candidate{
		ExternalID: id,
		Source:     domain.SourceHotmart,
		Name:       "Curso X",
		Price:      decimal.NewFromInt(price),
		Signals:    domain.Signals{Sales: 120, Rating: 4.5},
	}, 40, "")
}

func TestUpsertInsertThenUpdate(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(WithClock(clock.Now))
	ctx := context.Background()

	first, err := s.Upsert(ctx, newEntry("h1", 30))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !first.IsNew() {
		t.Errorf("first upsert should be reported as new")
	}

	clock.Advance(time.Hour)
	second, err := s.Upsert(ctx, newEntry("h1", 25))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Count())
	}
	if second.IsNew() {
		t.Errorf("second upsert reported as new")
	}
	if second.ID != first.ID {
		t.Errorf("ID changed: %s -> %s", first.ID, second.ID)
	}
	if !second.DiscoveredAt.Equal(first.DiscoveredAt) {
		t.Errorf("DiscoveredAt changed: %v -> %v", first.DiscoveredAt, second.DiscoveredAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("UpdatedAt not bumped")
	}
	if !second.Price.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Price = %s, want 25", second.Price)
	}
}

func TestUpsertKeepsAffiliation(t *testing.T) {
	s := New()
	ctx := context.Background()

	affiliated := newEntry("h1", 30)
	affiliated.AffiliateLink = "https://aff.example/h1"
	affiliated.IsAffiliated = true
	if _, err := s.Upsert(ctx, affiliated); err != nil {
		t.Fatal(err)
	}

	got, err := s.Upsert(ctx, newEntry("h1", 30))
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsAffiliated || got.AffiliateLink != "https://aff.example/h1" {
		t.Errorf("affiliation lost on re-upsert: %+v", got)
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := New().Get(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestReturnedEntriesAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	got, _ := s.Upsert(ctx, newEntry("h1", 30))
	got.Name = "mutated"

	stored, _ := s.Get(ctx, "h1")
	if stored.Name == "mutated" {
		t.Errorf("store shares memory with caller")
	}
}

func TestUpdatePresence(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.Upsert(ctx, newEntry("h1", 30))

	if err := s.UpdatePresence(ctx, "h1", 3, false); err != nil {
		t.Fatalf("UpdatePresence() error = %v", err)
	}
	got, _ := s.Get(ctx, "h1")
	if got.IsActive || got.MissedCycles != 3 {
		t.Errorf("presence not applied: active=%v missed=%d", got.IsActive, got.MissedCycles)
	}

	if err := s.UpdatePresence(ctx, "nope", 1, true); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdatePresence() on missing id = %v", err)
	}
}

func TestConcurrentUpsertsOfSameID(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Upsert(ctx, newEntry("race", int64(i))); err != nil {
				errs <- fmt.Errorf("upsert %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Upsert(ctx, newEntry("h1", 1))
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Upsert() with cancelled ctx = %v, want StorageUnavailable", err)
	}
}
