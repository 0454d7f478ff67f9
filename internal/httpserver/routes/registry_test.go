package routes

import (
	"net/http"
	"reflect"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/scout/internal/logger"
)

func TestGroups(t *testing.T) {
	want := []string{"investigate", "probes", "products", "reports", "root"}
	if got := Groups(); !reflect.DeepEqual(got, want) {
		t.Errorf("Groups() = %v, want %v", got, want)
	}
}

func TestRegisterAllMountsEveryRoute(t *testing.T) {
	r := chi.NewRouter()
	RegisterAll(r, deps.Deps{Logger: logger.Nop()})

	var got []string
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got = append(got, method+" "+route)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	sort.Strings(got)

	want := []string{
		"GET /",
		"GET /healthz",
		"GET /products",
		"GET /readyz",
		"GET /reports/",
		"GET /reports/{runID}",
		"GET /status",
		"POST /admin/update_products",
		"POST /investigar_now",
		"POST /investigate",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("routes = %v, want %v", got, want)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate group should panic")
		}
	}()
	Register("root", func(chi.Router, deps.Deps) {})
}
