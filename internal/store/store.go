// Package store defines the catalog persistence contract shared by the
// postgres, redis and memory backends.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/MrSnakeDoc/scout/internal/domain"
)

// ErrNotFound is returned by Get when no entry has the external id.
var ErrNotFound = errors.New("catalog entry not found")

// DefaultListLimit caps List when the filter leaves Limit unset.
const DefaultListLimit = 200

// CatalogStore persists catalog entries keyed by external id.
//
// Upsert inserts unknown ids with discovered_at = updated_at = now and merges
// known ones following domain.Merge. Concurrent upserts of the same new id
// never fail on the uniqueness constraint. I/O failures are reported as
// domain.StorageUnavailable.
type CatalogStore interface {
	Upsert(ctx context.Context, e *domain.CatalogEntry) (*domain.CatalogEntry, error)
	Get(ctx context.Context, externalID string) (*domain.CatalogEntry, error)
	List(ctx context.Context, f Filter) ([]*domain.CatalogEntry, error)

	// UpdatePresence records the reconciliation counter and active flag
	// without touching the product fields.
	UpdatePresence(ctx context.Context, externalID string, missed int, active bool) error

	Ping(ctx context.Context) error
}

// ReportArchive reads back stored run reports. Report returns nil, nil once
// a run id has expired.
type ReportArchive interface {
	ReportHistory(ctx context.Context) ([]string, error)
	Report(ctx context.Context, runID string) (*domain.RunReport, error)
}

// Filter narrows List. Zero values mean "no constraint".
type Filter struct {
	Source         string
	ActiveOnly     bool
	AffiliatedOnly bool
	Limit          int
}

// Match reports whether e passes the filter.
func (f Filter) Match(e *domain.CatalogEntry) bool {
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.ActiveOnly && !e.IsActive {
		return false
	}
	if f.AffiliatedOnly && !e.IsAffiliated {
		return false
	}
	return true
}

// EffectiveLimit returns the row cap List must honour.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Apply filters, orders and truncates entries in place of a query engine.
// Backends without server-side filtering use it.
func (f Filter) Apply(entries []*domain.CatalogEntry) []*domain.CatalogEntry {
	out := make([]*domain.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if e != nil && f.Match(e) {
			out = append(out, e)
		}
	}
	SortNewestFirst(out)
	if limit := f.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortNewestFirst orders by discovered_at desc, then external_id asc.
func SortNewestFirst(entries []*domain.CatalogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.DiscoveredAt.Equal(b.DiscoveredAt) {
			return a.DiscoveredAt.After(b.DiscoveredAt)
		}
		return a.ExternalID < b.ExternalID
	})
}
