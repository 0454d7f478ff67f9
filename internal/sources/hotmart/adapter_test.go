package hotmart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MrSnakeDoc/scout/internal/domain"
)

type fakeHotmart struct {
	tokenCalls   atomic.Int32
	listCalls    atomic.Int32
	rejectTokens map[string]bool
	alwaysReject bool
	wantLimit    string
}

func (f *fakeHotmart) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token endpoint called with %s", r.Method)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cid" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected grant_type %q", r.Form.Get("grant_type"))
		}
		n := f.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer","expires_in":3600}`, n)
	})
	mux.HandleFunc(productsPath, func(w http.ResponseWriter, r *http.Request) {
		f.listCalls.Add(1)
		auth := r.Header.Get("Authorization")
		if f.alwaysReject || f.rejectTokens[auth] {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		wantLimit := f.wantLimit
		if wantLimit == "" {
			wantLimit = "25"
		}
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("limit") != wantLimit {
			t.Errorf("unexpected paging %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"product_id":"h1","title":"Curso X","price":"30","sales":120,"rating":4.5},
			{"product_id":"h2","price":"10"},
			{"product_id":"h3","title":"Closed","affiliate_available":false},
			{"product_id":"h4","title":"Ebook Y","price":{"value":12.5}}
		]}`))
	})
	return mux
}

func newTestAdapter(t *testing.T, srv *httptest.Server) *Adapter {
	t.Helper()
	a, err := New(Options{BaseURL: srv.URL, ClientID: "cid", ClientSecret: "secret", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestAdapterFetch(t *testing.T) {
	fake := &fakeHotmart{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	a := newTestAdapter(t, srv)
	page, err := a.Fetch(context.Background(), 2, 25)
	candidates := page.Candidates
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("Fetch() returned %d candidates, want 2", len(candidates))
	}
	if candidates[0].ExternalID != "h1" || candidates[1].ExternalID != "h4" {
		t.Errorf("unexpected candidates %+v", candidates)
	}
	if candidates[0].Signals.Sales != 120 {
		t.Errorf("Sales = %d, want 120", candidates[0].Signals.Sales)
	}
	if page.More {
		t.Error("4 records for a limit of 25 is the last page")
	}

	// The token is cached across pages.
	if _, err := a.Fetch(context.Background(), 2, 25); err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if got := fake.tokenCalls.Load(); got != 1 {
		t.Errorf("token endpoint called %d times, want 1", got)
	}
}

func TestAdapterFullPageWithSkippedRecordsHasMore(t *testing.T) {
	fake := &fakeHotmart{wantLimit: "4"}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	a := newTestAdapter(t, srv)
	page, err := a.Fetch(context.Background(), 2, 4)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(page.Candidates) != 2 {
		t.Fatalf("Fetch() returned %d candidates, want 2", len(page.Candidates))
	}
	if !page.More {
		t.Error("a full upstream page must keep paging even when records were skipped")
	}
}

func TestAdapterReauthenticatesOnce(t *testing.T) {
	fake := &fakeHotmart{rejectTokens: map[string]bool{"Bearer tok-1": true}}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	a := newTestAdapter(t, srv)
	page, err := a.Fetch(context.Background(), 2, 25)
	candidates := page.Candidates
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(candidates) != 2 {
		t.Errorf("Fetch() returned %d candidates, want 2", len(candidates))
	}
	if got := fake.tokenCalls.Load(); got != 2 {
		t.Errorf("token endpoint called %d times, want 2", got)
	}
}

func TestAdapterSecondAuthFailureIsSourceUnavailable(t *testing.T) {
	fake := &fakeHotmart{alwaysReject: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	a := newTestAdapter(t, srv)
	_, err := a.Fetch(context.Background(), 2, 25)
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("Fetch() error = %v, want SourceUnavailable", err)
	}
	if got := fake.listCalls.Load(); got != 2 {
		t.Errorf("products endpoint called %d times, want 2", got)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without credentials should fail")
	}
	if _, err := New(Options{Basic: "Y2lkOnNlY3JldA=="}); err != nil {
		t.Errorf("New() with basic credential error = %v", err)
	}
	if _, err := New(Options{Basic: "not-base64!"}); err == nil {
		t.Error("New() with a malformed basic credential should fail")
	}
}
