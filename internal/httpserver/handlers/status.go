package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/scout/internal/scheduler"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Kind   string `json:"kind,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type statusResponse struct {
	Scheduler  scheduler.Status           `json:"scheduler"`
	Components map[string]componentStatus `json:"components"`
}

// Status exposes the scheduler view and the store health.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		storeStatus := componentStatus{OK: true, Kind: d.StoreKind}
		if err := d.Catalog.Ping(ctx); err != nil {
			storeStatus.OK = false
			storeStatus.Impact = "discovery cycles fail before persisting"
			storeStatus.Error = err.Error()
		}

		writeJSON(w, d.Logger, http.StatusOK, statusResponse{
			Scheduler:  d.Scheduler.Status(),
			Components: map[string]componentStatus{"store": storeStatus},
		})
	}
}
