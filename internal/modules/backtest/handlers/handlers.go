// Package handlers provides HTTP handlers for backtest runs.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/backtest"
	"github.com/aristath/rotation/internal/modules/results"
	"github.com/aristath/rotation/internal/modules/strategy"
	"github.com/aristath/rotation/internal/services"
)

// maxBodyBytes caps strategy request bodies
const maxBodyBytes = 1 << 20

// Runner executes one strategy
type Runner interface {
	Run(ctx context.Context, cfg strategy.Config, opts services.RunOptions) (*backtest.Result, error)
}

// ResultStore reads and deletes stored runs
type ResultStore interface {
	Get(ctx context.Context, id string) (*backtest.Result, error)
	List(ctx context.Context, limit int) ([]results.Summary, error)
	Delete(ctx context.Context, id string) error
}

// Handler handles backtest HTTP requests
type Handler struct {
	runner     Runner
	store      ResultStore
	strategies []strategy.Config
	log        zerolog.Logger
}

// NewHandler creates a new backtest handler. strategies are the named
// configurations exposed under /strategies.
func NewHandler(runner Runner, store ResultStore, strategies []strategy.Config, log zerolog.Logger) *Handler {
	return &Handler{
		runner:     runner,
		store:      store,
		strategies: strategies,
		log:        log.With().Str("handler", "backtest").Logger(),
	}
}

// NAVPoint is one row of the NAV listing
type NAVPoint struct {
	Date    string  `json:"date"`
	Return  float64 `json:"return"`
	NAV     float64 `json:"nav"`
	Holding string  `json:"holding"`
}

// HandleRunBacktest handles POST /api/backtests
//
// The body is a partial strategy configuration merged onto the defaults.
// Results are stored unless ?save=false is given.
func (h *Handler) HandleRunBacktest(w http.ResponseWriter, r *http.Request) {
	cfg := strategy.DefaultConfig()
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	h.run(w, r, cfg)
}

// HandleListStrategies handles GET /api/strategies
func (h *Handler) HandleListStrategies(w http.ResponseWriter, r *http.Request) {
	h.writeData(w, http.StatusOK, h.strategies)
}

// HandleRunStrategy handles POST /api/strategies/{name}/run
func (h *Handler) HandleRunStrategy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, cfg := range h.strategies {
		if cfg.Name == name {
			h.run(w, r, cfg)
			return
		}
	}
	h.writeError(w, http.StatusNotFound, "Unknown strategy: "+name)
}

// HandleListBacktests handles GET /api/backtests
func (h *Handler) HandleListBacktests(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	summaries, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backtests")
		h.writeError(w, http.StatusInternalServerError, "Failed to list backtests")
		return
	}
	h.writeData(w, http.StatusOK, summaries)
}

// HandleGetBacktest handles GET /api/backtests/{id}
func (h *Handler) HandleGetBacktest(w http.ResponseWriter, r *http.Request) {
	result, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeData(w, http.StatusOK, result)
}

// HandleGetNAV handles GET /api/backtests/{id}/nav
func (h *Handler) HandleGetNAV(w http.ResponseWriter, r *http.Request) {
	result, ok := h.load(w, r)
	if !ok {
		return
	}

	points := make([]NAVPoint, result.Series.Len())
	for i, date := range result.Series.Dates {
		points[i] = NAVPoint{
			Date:    date.Format(domain.DateLayout),
			Return:  result.Series.Returns[i],
			NAV:     result.Series.NAV[i],
			Holding: result.Series.Label(i),
		}
	}
	h.writeData(w, http.StatusOK, points)
}

// HandleGetReport handles GET /api/backtests/{id}/report (plain text)
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	result, ok := h.load(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := backtest.Render(&buf, result); err != nil {
		h.log.Error().Err(err).Str("id", result.ID).Msg("Failed to render report")
		h.writeError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// HandleDeleteBacktest handles DELETE /api/backtests/{id}
func (h *Handler) HandleDeleteBacktest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeRunError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, cfg strategy.Config) {
	save := r.URL.Query().Get("save") != "false"

	result, err := h.runner.Run(r.Context(), cfg, services.RunOptions{Save: save})
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	status := http.StatusOK
	if save {
		status = http.StatusCreated
	}
	h.writeData(w, status, result)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*backtest.Result, bool) {
	result, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeRunError(w, err)
		return nil, false
	}
	return result, true
}

// writeRunError maps domain errors to HTTP status codes
func (h *Handler) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidParams), errors.Is(err, domain.ErrInvalidPriceTable):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmptyAfterFiltering):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrRunNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error().Err(err).Msg("Backtest request failed")
		h.writeError(w, http.StatusInternalServerError, "Backtest failed")
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
