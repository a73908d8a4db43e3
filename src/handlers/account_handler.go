package handlers

import (
	"net/http"

	"starling-server/src/middleware"
	"starling-server/src/models"
)

func GetAccounts(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := d.GetAccounts(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if accounts == nil {
			accounts = []models.Account{}
		}
		middleware.WriteJSON(w, http.StatusOK, accounts)
	}
}

// GetAccountBalances returns the balances that could be fetched. Failed
// accounts are listed in X-Failed-Accounts; the request only fails when no
// account succeeded.
func GetAccountBalances(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := d.GetAccountBalances(r.Context())
		if len(report.Balances) == 0 && len(report.Errors) > 0 {
			setFailedAccounts(w, report.Errors)
			writeErr(w, r, report.Errors[0].Err)
			return
		}
		setFailedAccounts(w, report.Errors)

		balances := report.Balances
		if balances == nil {
			balances = []models.AccountBalance{}
		}
		middleware.WriteJSON(w, http.StatusOK, balances)
	}
}

type cacheClearer interface {
	Clear()
}

func ClearBalanceCache(c cacheClearer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}
