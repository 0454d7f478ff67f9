package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrSnakeDoc/scout/internal/domain"
	"github.com/MrSnakeDoc/scout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/store"
)

// SourceManual marks entries created through the admin endpoint.
const SourceManual = "manual"

const (
	listTimeout   = 5 * time.Second
	updateTimeout = 15 * time.Second
	maxUpdateBody = 1 << 20
)

type productsResponse struct {
	OK       bool                   `json:"ok"`
	Count    int                    `json:"count"`
	Products []*domain.CatalogEntry `json:"products"`
}

// Products lists active entries, newest first.
func Products(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
		defer cancel()

		entries, err := d.Catalog.List(ctx, store.Filter{ActiveOnly: true, Limit: store.DefaultListLimit})
		if err != nil {
			d.Logger.Error("failed to list products", logger.Error(err))
			writeError(w, d.Logger, http.StatusServiceUnavailable, "catalog unavailable")
			return
		}
		if entries == nil {
			entries = []*domain.CatalogEntry{}
		}
		writeJSON(w, d.Logger, http.StatusOK, productsResponse{OK: true, Count: len(entries), Products: entries})
	}
}

// productUpdate is one manual edit. Field names follow the sales bot payload.
type productUpdate struct {
	Nombre      string           `json:"nombre"`
	Descripcion string           `json:"descripcion"`
	Precio      *decimal.Decimal `json:"precio"`
	Moneda      string           `json:"moneda"`
	Link        string           `json:"link"`
	Source      string           `json:"source"`
	Activo      *bool            `json:"activo"`
}

type updateResponse struct {
	OK      bool     `json:"ok"`
	Updated int      `json:"updated"`
	IDs     []string `json:"ids"`
}

// UpdateProducts upserts {external_id: fields} by external id. Ranking
// and affiliation of existing entries are kept.
func UpdateProducts(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]productUpdate
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBody)).Decode(&payload); err != nil {
			writeError(w, d.Logger, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		if len(payload) == 0 {
			writeError(w, d.Logger, http.StatusBadRequest, "no products in payload")
			return
		}
		for id, u := range payload {
			if strings.TrimSpace(id) == "" {
				writeError(w, d.Logger, http.StatusBadRequest, "empty product id")
				return
			}
			if u.Precio != nil && !domain.ValidPrice(*u.Precio) {
				writeError(w, d.Logger, http.StatusBadRequest, "price out of range for "+id)
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), updateTimeout)
		defer cancel()

		ids := make([]string, 0, len(payload))
		for id, u := range payload {
			id = strings.TrimSpace(id)

			existing, err := d.Catalog.Get(ctx, id)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				d.Logger.Error("failed to read product", logger.String("external_id", id), logger.Error(err))
				writeError(w, d.Logger, http.StatusServiceUnavailable, "catalog unavailable")
				return
			}

			if _, err := d.Catalog.Upsert(ctx, manualEntry(id, u, existing)); err != nil {
				d.Logger.Error("failed to update product", logger.String("external_id", id), logger.Error(err))
				writeError(w, d.Logger, http.StatusServiceUnavailable, "catalog unavailable")
				return
			}
			ids = append(ids, id)
		}

		d.Logger.Info("products updated via endpoint",
			logger.Int("count", len(ids)),
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, d.Logger, http.StatusOK, updateResponse{OK: true, Updated: len(ids), IDs: ids})
	}
}

// manualEntry merges an edit over the stored entry. Fields absent from the
// edit fall back to the stored values.
func manualEntry(id string, u productUpdate, existing *domain.CatalogEntry) *domain.CatalogEntry {
	c := domain.Candidate{
		ExternalID:  id,
		Source:      u.Source,
		Name:        u.Nombre,
		Description: u.Descripcion,
		Currency:    u.Moneda,
		Link:        u.Link,
	}
	if u.Precio != nil {
		c.Price = *u.Precio
	}

	var score float64
	if existing != nil {
		if c.Source == "" {
			c.Source = existing.Source
		}
		if c.Name == "" {
			c.Name = existing.Name
		}
		if c.Description == "" {
			c.Description = existing.Description
		}
		if u.Precio == nil {
			c.Price = existing.Price
		}
		if c.Currency == "" {
			c.Currency = existing.Currency
		}
		c.Category = existing.Category
		c.Commission = existing.Commission
		c.Signals = domain.Signals{Sales: existing.Sales, Rating: existing.Rating}
		score = existing.Score
	}
	if c.Source == "" {
		c.Source = SourceManual
	}

	e := domain.NewEntry(c, score, "")
	if u.Activo != nil {
		e.IsActive = *u.Activo
	} else if existing != nil {
		e.IsActive = existing.IsActive
	}
	return e
}
