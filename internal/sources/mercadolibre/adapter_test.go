package mercadolibre

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/sources"
)

func TestAdapterFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/MLB/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("offset") != "20" || q.Get("limit") != "10" {
			t.Errorf("unexpected paging %s", r.URL.RawQuery)
		}
		switch q.Get("q") {
		case "curso":
			_, _ = w.Write([]byte(`{"results":[
				{"id":"MLB1","title":"Curso de Go","price":99.9,"currency_id":"BRL","permalink":"https://ml/MLB1","sold_quantity":50},
				{"id":"MLB2"}
			]}`))
		case "ebook":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	a, err := New(Options{BaseURL: srv.URL, Site: "mlb", Queries: []string{"curso", "ebook"}, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	page, err := a.Fetch(context.Background(), 3, 10)
	candidates := page.Candidates
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("Fetch() returned %d candidates, want 1", len(candidates))
	}
	if page.More {
		t.Error("short results should end paging")
	}
	c := candidates[0]
	if c.ExternalID != "MLB1" || c.Currency != "BRL" || c.Signals.Sales != 50 {
		t.Errorf("unexpected candidate %+v", c)
	}
	if !c.Price.Equal(decimal.RequireFromString("99.9")) {
		t.Errorf("Price = %s, want 99.9", c.Price)
	}
}

func TestAdapterAllQueriesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a, err := New(Options{BaseURL: srv.URL, Queries: []string{"curso"}, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = a.Fetch(context.Background(), 1, 10)
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("Fetch() error = %v, want SourceUnavailable", err)
	}
}

func TestAdapterUsesBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case tokenPath:
			_ = r.ParseForm()
			if r.Form.Get("client_id") != "app" || r.Form.Get("client_secret") != "s3cret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"ml-token","expires_in":"21600"}`))
		default:
			if r.Header.Get("Authorization") != "Bearer ml-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"results":[{"id":"MLA9","title":"Libro"}]}`))
		}
	}))
	defer srv.Close()

	a, err := New(Options{BaseURL: srv.URL, Queries: []string{"libro"}, ClientID: "app", ClientSecret: "s3cret", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Tokens() == nil {
		t.Fatal("adapter with credentials should own a token cache")
	}
	page, err := a.Fetch(context.Background(), 1, 10)
	candidates := page.Candidates
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(candidates) != 1 || candidates[0].ExternalID != "MLA9" {
		t.Errorf("unexpected candidates %+v", candidates)
	}
}

func TestNewRequiresQueries(t *testing.T) {
	if _, err := New(Options{Queries: []string{" ", ""}}); err == nil {
		t.Error("New() without queries should fail")
	}
}

func TestMapSkipsUntitled(t *testing.T) {
	res := Map(sources.Record{"id": "MLA1", "price": 10})
	if !res.Skipped {
		t.Error("Map() should skip items without title")
	}
}
