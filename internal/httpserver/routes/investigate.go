package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/scout/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/scout/internal/httpserver/mw"
)

func init() { Register("investigate", registerInvestigate) }

func registerInvestigate(r chi.Router, d deps.Deps) {
	guarded := r.With(mw.AdminToken(d.AdminToken, d.Logger))
	guarded.Post("/investigate", handlers.Investigate(d))
	// Legacy path still called by the sales bot.
	guarded.Post("/investigar_now", handlers.Investigate(d))
}
