package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	CurrencyDecimals int32
	Metrics          http.Handler // served at /metrics when set
}

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(svc Ledger, opts RouterOptions) http.Handler {
	h := NewHandler(svc, opts.CurrencyDecimals)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/accounts/{accountId}", func(r chi.Router) {
		r.Get("/balance", h.GetBalanceHandler)
		r.Put("/balance", h.SetBalanceHandler)
		r.Get("/transactions", h.AccountTransactionsHandler)
		r.Post("/credit", h.CreditHandler)
		r.Post("/debit", h.DebitHandler)
	})
	r.Post("/transfers", h.TransferHandler)
	r.Get("/games/{game}/transactions", h.GameTransactionsHandler)
	r.Get("/leaderboard", h.LeaderboardHandler)

	return r
}
