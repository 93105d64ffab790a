package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all backtest routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/backtests", func(r chi.Router) {
		r.Get("/", h.HandleListBacktests)
		r.Post("/", h.HandleRunBacktest)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetBacktest)
			r.Delete("/", h.HandleDeleteBacktest)
			r.Get("/nav", h.HandleGetNAV)
			r.Get("/report", h.HandleGetReport)
		})
	})

	r.Route("/strategies", func(r chi.Router) {
		r.Get("/", h.HandleListStrategies)
		r.Post("/{name}/run", h.HandleRunStrategy)
	})
}
