package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/scout/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/scout/internal/httpserver/mw"
)

func init() { Register("products", registerProducts) }

func registerProducts(r chi.Router, d deps.Deps) {
	r.Get("/products", handlers.Products(d))
	r.With(mw.AdminToken(d.AdminToken, d.Logger)).Post("/admin/update_products", handlers.UpdateProducts(d))
}
