// Package api serves the ledger over HTTP: the chart of accounts, postings,
// the journal, treasury and supplier records, the report and year close,
// plus a websocket feed of document changes.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/schoolpaypro/ledger/internal/broadcast"
	"github.com/schoolpaypro/ledger/internal/config"
	"github.com/schoolpaypro/ledger/internal/ledger"
	"github.com/schoolpaypro/ledger/internal/satellite"
)

// Handler holds the services behind the routes.
type Handler struct {
	cfg       config.APIConfig
	ledger    *ledger.Service
	satellite *satellite.Service
	hub       *broadcast.Hub
}

// New creates a Handler. hub may be nil, which disables /ws/changes.
func New(cfg config.APIConfig, l *ledger.Service, sat *satellite.Service, hub *broadcast.Hub) *Handler {
	return &Handler{cfg: cfg, ledger: l, satellite: sat, hub: hub}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Reads are open; writes need a token when a secret is configured.
	r.Get("/accounts", h.ListAccounts)
	r.Get("/accounts/{id}", h.GetAccount)
	r.Get("/accounts/{id}/next-code", h.NextCode)
	r.Get("/journal", h.ListEntries)
	r.Get("/treasury", h.ListTreasury)
	r.Get("/suppliers", h.ListSuppliers)
	r.Get("/report", h.Report)
	r.Get("/year-close", h.YearStatus)
	r.Get("/ws/changes", h.WSChanges)

	r.Group(func(r chi.Router) {
		r.Use(Auth(h.cfg.JWTSecret))
		r.Post("/accounts", h.CreateAccount)
		r.Patch("/accounts/{id}", h.UpdateAccount)
		r.Delete("/accounts/{id}", h.DeleteAccount)
		r.Post("/postings", h.PostTransactions)
		r.Post("/journal", h.RecordEntry)
		r.Post("/journal/{id}/status", h.SetEntryStatus)
		r.Post("/treasury", h.AddTreasury)
		r.Delete("/treasury/{id}", h.DeleteTreasury)
		r.Post("/suppliers", h.AddSupplier)
		r.Delete("/suppliers/{id}", h.DeleteSupplier)
		r.Post("/year-close", h.CloseYear)
		r.Post("/year-close/reopen", h.ReopenYear)
	})
	return r
}

// WSChanges streams document change events.
func (h *Handler) WSChanges(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusNotFound, "change feed disabled")
		return
	}
	broadcast.ServeWS(w, r, h.hub)
}
