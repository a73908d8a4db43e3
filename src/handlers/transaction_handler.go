package handlers

import (
	"net/http"
	"sort"

	"starling-server/src/dispatcher"
	"starling-server/src/middleware"
	"starling-server/src/models"
	"starling-server/src/util"

	"github.com/go-chi/chi/v5"
)

func window(r *http.Request) (dispatcher.Window, error) {
	q := r.URL.Query()
	return util.ParseWindow(q.Get("start"), q.Get("end"))
}

// GetTransactions syncs every account and returns the transactions oldest
// first.
func GetTransactions(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		win, err := window(r)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		report, err := d.SyncTransactionsAllAccounts(r.Context(), win)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		setFailedAccounts(w, report.Errors)
		if report.Accounts > 0 && len(report.Errors) == report.Accounts {
			writeErr(w, r, report.Errors[0].Err)
			return
		}

		txns := report.Transactions
		if txns == nil {
			txns = []models.Transaction{}
		}
		sort.SliceStable(txns, func(i, j int) bool {
			return txns[i].Time.Before(txns[j].Time)
		})
		middleware.WriteJSON(w, http.StatusOK, txns)
	}
}

func GetTransactionsForAccount(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bankName := chi.URLParam(r, "bank_name")
		accountName := chi.URLParam(r, "account_name")

		win, err := window(r)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		account, err := d.FindAccount(r.Context(), bankName, accountName)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		txns, tracked, err := d.SyncTransactionsForAccount(r.Context(), account.UUID, win)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if !tracked {
			writeErr(w, r, dispatcher.ErrAccountNotTracked)
			return
		}
		if txns == nil {
			txns = []models.Transaction{}
		}
		middleware.WriteJSON(w, http.StatusOK, txns)
	}
}
