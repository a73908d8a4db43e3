package api

import (
	"context"
	"net/http"

	"starling-server/src/handlers"
	"starling-server/src/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const webhookPath = "/plaid/webhook"

type RouterOptions struct {
	Logger         zerolog.Logger
	JWTSecret      string
	ReadOnly       bool
	AllowedOrigins []string
	// BalanceCache enables DELETE /accounts/balances/cache when set.
	BalanceCache interface{ Clear() }
	// Verifier and Refresh enable the Plaid webhook when both are set.
	Verifier handlers.WebhookVerifier
	Refresh  func(ctx context.Context)
}

func NewRouter(d handlers.Dispatcher, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(opts.AllowedOrigins))
	r.Use(middleware.ReadOnly(opts.ReadOnly, webhookPath))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	if opts.Verifier != nil && opts.Refresh != nil {
		r.Post(webhookPath, handlers.PlaidWebhook(opts.Verifier, opts.Refresh))
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		if opts.JWTSecret != "" {
			r.Use(middleware.JWTAuth(opts.JWTSecret))
		}

		r.Get("/transactions/", handlers.GetTransactions(d))
		r.Get("/transactions/{bank_name}/{account_name}", handlers.GetTransactionsForAccount(d))

		r.Get("/accounts", handlers.GetAccounts(d))
		r.Get("/accounts/balances", handlers.GetAccountBalances(d))
		if opts.BalanceCache != nil {
			r.Delete("/accounts/balances/cache", handlers.ClearBalanceCache(opts.BalanceCache))
		}
	})

	return r
}
