package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
)

type rootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func Root(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Logger, http.StatusOK, rootResponse{
			Status:  "ok",
			Message: "scout is running",
		})
	}
}
