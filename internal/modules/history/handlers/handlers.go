// Package handlers provides HTTP handlers for the price history store.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/history"
	"github.com/aristath/rotation/internal/utils"
)

// maxUploadBytes caps CSV uploads
const maxUploadBytes = 32 << 20

// Store is the subset of the history repository the handlers need
type Store interface {
	UpsertTable(ctx context.Context, table domain.PriceTable) (int, error)
	Coverage(ctx context.Context) ([]history.Coverage, error)
	LoadTable(ctx context.Context, ids []string, start, end time.Time) (domain.PriceTable, error)
}

// Handler handles price history HTTP requests
type Handler struct {
	store Store
	log   zerolog.Logger
}

// NewHandler creates a new history handler
func NewHandler(store Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "history").Logger(),
	}
}

// RegisterRoutes registers all history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/coverage", h.HandleGetCoverage)
		r.Get("/prices", h.HandleExportPrices)
		r.Post("/import", h.HandleImportCSV)
	})
}

// HandleGetCoverage handles GET /api/history/coverage
func (h *Handler) HandleGetCoverage(w http.ResponseWriter, r *http.Request) {
	coverage, err := h.store.Coverage(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get coverage")
		http.Error(w, "Failed to get coverage", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": coverage,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleImportCSV handles POST /api/history/import with a wide CSV body
// (date column followed by one close column per instrument)
func (h *Handler) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	table, err := history.LoadCSV(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidPriceTable) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	n, err := h.store.UpsertTable(r.Context(), table)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to store imported prices")
		http.Error(w, "Failed to store prices", http.StatusInternalServerError)
		return
	}

	h.log.Info().Int("rows", n).Int("instruments", len(table.Instruments())).Msg("Imported price CSV")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"rows":        n,
			"dates":       table.Len(),
			"instruments": table.Instruments(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleExportPrices handles GET /api/history/prices?ids=A,B&start=YYYYMMDD&end=YYYYMMDD
// and streams the table back as CSV
func (h *Handler) HandleExportPrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids := utils.ParseCSV(q.Get("ids"))
	if len(ids) == 0 {
		http.Error(w, "ids is required", http.StatusBadRequest)
		return
	}

	var start, end time.Time
	var err error
	if raw := q.Get("start"); raw != "" {
		if start, err = domain.ParseDate(raw); err != nil {
			http.Error(w, "Invalid start date", http.StatusBadRequest)
			return
		}
	}
	if raw := q.Get("end"); raw != "" {
		if end, err = domain.ParseDate(raw); err != nil {
			http.Error(w, "Invalid end date", http.StatusBadRequest)
			return
		}
	}

	table, err := h.store.LoadTable(r.Context(), ids, start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load prices")
		http.Error(w, "Failed to load prices", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	if err := history.WriteCSV(w, table, ids); err != nil {
		h.log.Error().Err(err).Msg("Failed to write CSV response")
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
