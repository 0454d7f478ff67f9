package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MrSnakeDoc/scout/internal/affiliation"
	"github.com/MrSnakeDoc/scout/internal/config"
	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/store/memory"
)

func TestBuildSources(t *testing.T) {
	tests := []struct {
		name string
		src  config.Sources
		want []string
	}{
		{
			name: "all configured",
			src: config.Sources{
				Hotmart:      config.HotmartSource{Enabled: true, ClientID: "id", ClientSecret: "secret"},
				MercadoLibre: config.MercadoLibreSource{Enabled: true, Queries: []string{"curso"}},
				Amazon:       config.AmazonSource{Enabled: true, Pages: []string{"https://www.amazon.com/gp/bestsellers/books"}},
			},
			want: []string{domain.SourceHotmart, domain.SourceMercadoLibre, domain.SourceAmazon},
		},
		{
			name: "missing credentials skip the source",
			src: config.Sources{
				Hotmart:      config.HotmartSource{Enabled: true},
				MercadoLibre: config.MercadoLibreSource{Enabled: true, Queries: []string{"ebook"}},
			},
			want: []string{domain.SourceMercadoLibre},
		},
		{
			name: "disabled sources",
			src: config.Sources{
				Hotmart: config.HotmartSource{Enabled: false, ClientID: "id", ClientSecret: "secret"},
				Amazon:  config.AmazonSource{Enabled: true},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.src
			reg, client := buildSources(&src, memory.New(), false, logger.Nop())
			got := reg.Names()
			if len(got) != len(tt.want) {
				t.Fatalf("Names() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Names()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
			if client == nil {
				t.Error("affiliation client should never be nil")
			}
		})
	}
}

func TestBuildSourcesAffiliation(t *testing.T) {
	ctx := context.Background()
	catalog := memory.New()

	stored := domain.NewEntry(domain.Candidate{
		ExternalID: "B000STORED",
		Source:     domain.SourceAmazon,
		Price:      decimal.NewFromInt(10),
	}, 0.5, "https://www.amazon.com/dp/B000STORED?tag=old-20")
	if _, err := catalog.Upsert(ctx, stored); err != nil {
		t.Fatal(err)
	}

	src := &config.Sources{
		Amazon: config.AmazonSource{
			Enabled:    true,
			Host:       "www.amazon.com",
			PartnerTag: "scout-20",
			Pages:      []string{"https://www.amazon.com/gp/bestsellers/books"},
		},
	}
	_, client := buildSources(src, catalog, false, logger.Nop())

	out := client.Affiliate(ctx, domain.Candidate{ExternalID: "B000STORED", Source: domain.SourceAmazon})
	if out.Status != affiliation.Approved || out.Link != stored.AffiliateLink {
		t.Errorf("stored entry = %+v, want the stored link", out)
	}

	out = client.Affiliate(ctx, domain.Candidate{ExternalID: "B000NEW", Source: domain.SourceAmazon, Link: "https://www.amazon.com/dp/B000NEW"})
	if out.Status != affiliation.Approved || out.Link == "" {
		t.Errorf("new entry = %+v, want a tagged link", out)
	}

	out = client.Affiliate(ctx, domain.Candidate{ExternalID: "MLA1", Source: domain.SourceMercadoLibre, Link: "https://example.com/MLA1"})
	if out.Status == affiliation.Approved {
		t.Errorf("source without client and no auto-approve = %+v", out)
	}
}

func TestCatalogLookup(t *testing.T) {
	ctx := context.Background()
	lookup := catalogLookup(memory.New())

	e, err := lookup(ctx, "missing")
	if e != nil || err != nil {
		t.Errorf("lookup(missing) = %v, %v, want nil, nil", e, err)
	}
}
