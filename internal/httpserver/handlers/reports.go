package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/scout/internal/logger"
)

type reportsResponse struct {
	OK     bool     `json:"ok"`
	Count  int      `json:"count"`
	RunIDs []string `json:"run_ids"`
}

// Reports lists the ids of recent runs, newest first.
func Reports(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Reports == nil {
			writeError(w, d.Logger, http.StatusNotFound, "run history not kept by the "+d.StoreKind+" store")
			return
		}

		ids, err := d.Reports.ReportHistory(r.Context())
		if err != nil {
			d.Logger.Error("failed to list reports", logger.Error(err))
			writeError(w, d.Logger, http.StatusServiceUnavailable, "report history unavailable")
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, d.Logger, http.StatusOK, reportsResponse{OK: true, Count: len(ids), RunIDs: ids})
	}
}

// Report returns one run report by id.
func Report(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Reports == nil {
			writeError(w, d.Logger, http.StatusNotFound, "run history not kept by the "+d.StoreKind+" store")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "runID"))
		if err != nil {
			writeError(w, d.Logger, http.StatusBadRequest, "invalid run id")
			return
		}

		report, err := d.Reports.Report(r.Context(), id.String())
		if err != nil {
			d.Logger.Error("failed to load report", logger.String("run_id", id.String()), logger.Error(err))
			writeError(w, d.Logger, http.StatusServiceUnavailable, "report history unavailable")
			return
		}
		if report == nil {
			writeError(w, d.Logger, http.StatusNotFound, "report not found or expired")
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, report)
	}
}
