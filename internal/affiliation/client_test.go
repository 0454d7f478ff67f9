package affiliation

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/scout/internal/domain"
)

func TestTagLinker(t *testing.T) {
	out := NewTagLinker("", "scout-20").Affiliate(context.Background(), domain.Candidate{ExternalID: "B000000001"})
	if out.Status != Approved {
		t.Fatalf("Affiliate() = %+v", out)
	}
	if out.Link != "https://www.amazon.com/dp/B000000001?tag=scout-20" {
		t.Errorf("Link = %q", out.Link)
	}

	if out := NewTagLinker("www.amazon.com.br", "").Affiliate(context.Background(), domain.Candidate{ExternalID: "B000000001"}); out.Status != Unavailable {
		t.Errorf("missing tag should be unavailable, got %s", out.Status)
	}
}

func TestRouter(t *testing.T) {
	hotmart := ClientFunc(func(ctx context.Context, c domain.Candidate) Outcome {
		return approved("https://aff.example/" + c.ExternalID)
	})

	tests := []struct {
		name        string
		autoApprove bool
		candidate   domain.Candidate
		wantStatus  Status
		wantLink    string
	}{
		{name: "registered source", candidate: domain.Candidate{ExternalID: "h1", Source: domain.SourceHotmart}, wantStatus: Approved, wantLink: "https://aff.example/h1"},
		{name: "unregistered source", candidate: domain.Candidate{ExternalID: "m1", Source: domain.SourceMercadoLibre, Link: "https://ml/m1"}, wantStatus: Unavailable},
		{name: "auto approve uses product link", autoApprove: true, candidate: domain.Candidate{ExternalID: "m1", Source: domain.SourceMercadoLibre, Link: "https://ml/m1"}, wantStatus: Approved, wantLink: "https://ml/m1"},
		{name: "auto approve without link", autoApprove: true, candidate: domain.Candidate{ExternalID: "m2", Source: domain.SourceMercadoLibre}, wantStatus: Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(tt.autoApprove)
			r.Handle(domain.SourceHotmart, hotmart)

			out := r.Affiliate(context.Background(), tt.candidate)
			if out.Status != tt.wantStatus || out.Link != tt.wantLink {
				t.Errorf("Affiliate() = %+v, want %s %q", out, tt.wantStatus, tt.wantLink)
			}
		})
	}
}

func TestIdempotent(t *testing.T) {
	calls := 0
	next := ClientFunc(func(ctx context.Context, c domain.Candidate) Outcome {
		calls++
		return approved("https://aff.example/new")
	})

	catalog := map[string]*domain.CatalogEntry{
		"h1": {ExternalID: "h1", IsAffiliated: true, AffiliateLink: "https://aff.example/stored"},
		"h2": {ExternalID: "h2"},
	}
	lookup := func(ctx context.Context, id string) (*domain.CatalogEntry, error) {
		if id == "broken" {
			return nil, errors.New("connection refused")
		}
		return catalog[id], nil
	}

	guard := NewIdempotent(next, lookup)
	ctx := context.Background()

	if out := guard.Affiliate(ctx, domain.Candidate{ExternalID: "h1"}); out.Link != "https://aff.example/stored" {
		t.Errorf("already affiliated entry should reuse stored link, got %+v", out)
	}
	if calls != 0 {
		t.Errorf("next client called %d times for an affiliated entry", calls)
	}

	if out := guard.Affiliate(ctx, domain.Candidate{ExternalID: "h2"}); out.Link != "https://aff.example/new" {
		t.Errorf("unaffiliated entry should be requested, got %+v", out)
	}
	if out := guard.Affiliate(ctx, domain.Candidate{ExternalID: "h3"}); out.Status != Approved {
		t.Errorf("unknown entry should be requested, got %+v", out)
	}
	if calls != 2 {
		t.Errorf("next client called %d times, want 2", calls)
	}

	if out := guard.Affiliate(ctx, domain.Candidate{ExternalID: "broken"}); out.Status != Unavailable {
		t.Errorf("lookup failure should be unavailable, got %+v", out)
	}
}

func TestOutcomeErr(t *testing.T) {
	if err := approved("x").Err("hotmart"); err != nil {
		t.Errorf("approved outcome Err() = %v", err)
	}
	if err := rejected("no").Err("hotmart"); !errors.Is(err, domain.ErrAffiliationRejected) {
		t.Errorf("rejected outcome Err() = %v", err)
	}
	if err := unavailable("down").Err("hotmart"); !errors.Is(err, domain.ErrAffiliationUnavailable) {
		t.Errorf("unavailable outcome Err() = %v", err)
	}
}
