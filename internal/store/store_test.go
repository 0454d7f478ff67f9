package store

import (
	"testing"
	"time"

	"github.com/MrSnakeDoc/scout/internal/domain"
)

func TestFilterApply(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []*domain.CatalogEntry{
		{ExternalID: "b", Source: domain.SourceHotmart, IsActive: true, DiscoveredAt: base},
		{ExternalID: "a", Source: domain.SourceHotmart, IsActive: true, IsAffiliated: true, AffiliateLink: "x", DiscoveredAt: base},
		{ExternalID: "c", Source: domain.SourceAmazon, IsActive: false, DiscoveredAt: base.Add(time.Hour)},
		{ExternalID: "d", Source: domain.SourceAmazon, IsActive: true, DiscoveredAt: base.Add(2 * time.Hour)},
		nil,
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "no constraint", filter: Filter{}, want: []string{"d", "c", "a", "b"}},
		{name: "active only", filter: Filter{ActiveOnly: true}, want: []string{"d", "a", "b"}},
		{name: "by source", filter: Filter{Source: domain.SourceHotmart}, want: []string{"a", "b"}},
		{name: "affiliated", filter: Filter{AffiliatedOnly: true}, want: []string{"a"}},
		{name: "limit", filter: Filter{Limit: 2}, want: []string{"d", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(entries)
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() returned %d entries, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ExternalID != id {
					t.Errorf("Apply()[%d] = %s, want %s", i, got[i].ExternalID, id)
				}
			}
		})
	}
}

func TestEffectiveLimit(t *testing.T) {
	if got := (Filter{}).EffectiveLimit(); got != DefaultListLimit {
		t.Errorf("EffectiveLimit() = %d, want %d", got, DefaultListLimit)
	}
	if got := (Filter{Limit: 5}).EffectiveLimit(); got != 5 {
		t.Errorf("EffectiveLimit() = %d, want 5", got)
	}
}
