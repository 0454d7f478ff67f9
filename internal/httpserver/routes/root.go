package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/scout/internal/httpserver/handlers"
)

func init() { Register("root", registerRoot) }

func registerRoot(r chi.Router, d deps.Deps) {
	r.Get("/", handlers.Root(d))
	r.Get("/status", handlers.Status(d))
}
