package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/scheduler"
)

type investigateResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Investigate queues a discovery cycle. It never runs the pipeline inline.
func Investigate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := d.Scheduler.Trigger()
		switch {
		case err == nil:
			d.Logger.Info("manual investigation queued via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, d.Logger, http.StatusAccepted, investigateResponse{
				OK:      true,
				Message: "✅ Investigation queued",
			})
		case errors.Is(err, scheduler.ErrBusy):
			d.Logger.Warn("investigation already queued",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, d.Logger, http.StatusTooManyRequests, investigateResponse{
				OK:      false,
				Message: "⏳ Investigation already queued, please wait",
			})
		default:
			d.Logger.Error("failed to queue investigation", logger.Error(err))
			writeError(w, d.Logger, http.StatusServiceUnavailable, err.Error())
		}
	}
}
