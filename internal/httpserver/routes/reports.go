package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/scout/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/scout/internal/httpserver/mw"
)

func init() { Register("reports", registerReports) }

// Run history is operator data, same audience as readiness.
func registerReports(r chi.Router, d deps.Deps) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
		r.Get("/", handlers.Reports(d))
		r.Get("/{runID}", handlers.Report(d))
	})
}
