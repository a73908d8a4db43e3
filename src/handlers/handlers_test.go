package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	store "starling-server/src/db/sql"
	"starling-server/src/dispatcher"
	"starling-server/src/models"
	"starling-server/src/providers"
	"starling-server/src/providers/plaid"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	accounts    []models.Account
	accountsErr error
	balances    dispatcher.BalanceReport
	sync        dispatcher.SyncReport
	syncErr     error
	accountTxns []models.Transaction
	tracked     bool
	accountErr  error
	gotWindow   dispatcher.Window
}

func (f *fakeDispatcher) GetAccounts(context.Context) ([]models.Account, error) {
	return f.accounts, f.accountsErr
}

func (f *fakeDispatcher) FindAccount(_ context.Context, bankName, accountName string) (models.Account, error) {
	for _, a := range f.accounts {
		if a.BankName == bankName && a.Name == accountName {
			return a, nil
		}
	}
	return models.Account{}, fmt.Errorf("account %s/%s: %w", bankName, accountName, store.ErrNotFound)
}

func (f *fakeDispatcher) GetAccountBalances(context.Context) dispatcher.BalanceReport {
	return f.balances
}

func (f *fakeDispatcher) SyncTransactionsForAccount(_ context.Context, _ uuid.UUID, w dispatcher.Window) ([]models.Transaction, bool, error) {
	f.gotWindow = w
	return f.accountTxns, f.tracked, f.accountErr
}

func (f *fakeDispatcher) SyncTransactionsAllAccounts(_ context.Context, w dispatcher.Window) (dispatcher.SyncReport, error) {
	f.gotWindow = w
	return f.sync, f.syncErr
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&providers.ProviderError{Kind: providers.ErrProviderAuth}, http.StatusBadGateway},
		{&providers.ProviderError{Kind: providers.ErrProviderUnavailable}, http.StatusServiceUnavailable},
		{&providers.ProviderError{Kind: providers.ErrProviderSchema}, http.StatusInternalServerError},
		{fmt.Errorf("build: %w", providers.ErrUnknownProvider), http.StatusInternalServerError},
		{&providers.ProviderError{Kind: providers.ErrMissingCategoryConfig}, http.StatusInternalServerError},
		{fmt.Errorf("x: %w", store.ErrNotFound), http.StatusNotFound},
		{dispatcher.ErrAccountNotTracked, http.StatusNotFound},
		{fmt.Errorf("%w: bad", dispatcher.ErrInvalidWindow), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestGetAccounts(t *testing.T) {
	account := models.Account{UUID: uuid.New(), BankName: "Starling Personal", Name: "Personal", Currency: "GBP"}
	rec := serve(GetAccounts(&fakeDispatcher{accounts: []models.Account{account}}), http.MethodGet, "/accounts")

	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, account.UUID, got[0].UUID)
	assert.Equal(t, "Personal", got[0].Name)

	rec = serve(GetAccounts(&fakeDispatcher{}), http.MethodGet, "/accounts")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(GetAccounts(&fakeDispatcher{accountsErr: errors.New("db down")}), http.MethodGet, "/accounts")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "db down", errorBody(t, rec))
}

func TestGetAccountBalancesPartialFailure(t *testing.T) {
	ok, failed := uuid.New(), uuid.New()
	d := &fakeDispatcher{balances: dispatcher.BalanceReport{
		Balances: []models.AccountBalance{{AccountUUID: ok, Currency: "GBP", ClearedBalance: decimal.NewFromInt(10)}},
		Errors:   []dispatcher.AccountError{{AccountUUID: failed, Err: &providers.ProviderError{Kind: providers.ErrProviderUnavailable}}},
	}}

	rec := serve(GetAccountBalances(d), http.MethodGet, "/accounts/balances")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, failed.String(), rec.Header().Get("X-Failed-Accounts"))
	var got []models.AccountBalance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, ok, got[0].AccountUUID)
}

func TestGetAccountBalancesAllFailed(t *testing.T) {
	failed := uuid.New()
	d := &fakeDispatcher{balances: dispatcher.BalanceReport{
		Errors: []dispatcher.AccountError{{AccountUUID: failed, Err: &providers.ProviderError{Kind: providers.ErrProviderAuth, Bank: "Starling Personal"}}},
	}}

	rec := serve(GetAccountBalances(d), http.MethodGet, "/accounts/balances")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, failed.String(), rec.Header().Get("X-Failed-Accounts"))
}

func TestGetTransactionsSortsAscending(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d := &fakeDispatcher{sync: dispatcher.SyncReport{
		Accounts: 2,
		Transactions: []models.Transaction{
			{UUID: uuid.New(), Time: base.Add(2 * time.Hour), Amount: decimal.NewFromInt(-3)},
			{UUID: uuid.New(), Time: base.Add(time.Hour), Amount: decimal.NewFromInt(-2)},
			{UUID: uuid.New(), Time: base, Amount: decimal.NewFromInt(-1)},
		},
	}}

	rec := serve(GetTransactions(d), http.MethodGet, "/transactions/")

	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.True(t, got[0].Time.Equal(base))
	assert.True(t, got[2].Time.Equal(base.Add(2*time.Hour)))
	assert.Empty(t, rec.Header().Get("X-Failed-Accounts"))
	assert.True(t, d.gotWindow.Start.IsZero())
}

func TestGetTransactionsWindowParams(t *testing.T) {
	d := &fakeDispatcher{}
	rec := serve(GetTransactions(d), http.MethodGet, "/transactions/?start=2024-03-01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d.gotWindow.Start)

	rec = serve(GetTransactions(d), http.MethodGet, "/transactions/?start=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	d.syncErr = fmt.Errorf("%w: start after end", dispatcher.ErrInvalidWindow)
	rec = serve(GetTransactions(d), http.MethodGet, "/transactions/?start=2024-03-05&end=2024-03-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTransactionsAllAccountsFailed(t *testing.T) {
	failed := uuid.New()
	d := &fakeDispatcher{sync: dispatcher.SyncReport{
		Accounts: 1,
		Errors:   []dispatcher.AccountError{{AccountUUID: failed, Err: &providers.ProviderError{Kind: providers.ErrProviderUnavailable}}},
	}}

	rec := serve(GetTransactions(d), http.MethodGet, "/transactions/")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, failed.String(), rec.Header().Get("X-Failed-Accounts"))
}

func accountRouter(d Dispatcher) http.Handler {
	r := chi.NewRouter()
	r.Get("/transactions/{bank_name}/{account_name}", GetTransactionsForAccount(d))
	return r
}

func TestGetTransactionsForAccount(t *testing.T) {
	account := models.Account{UUID: uuid.New(), BankName: "Starling Personal", Name: "Personal"}
	txn := models.Transaction{UUID: uuid.New(), AccountUUID: account.UUID, Amount: decimal.RequireFromString("-4.50")}

	d := &fakeDispatcher{accounts: []models.Account{account}, accountTxns: []models.Transaction{txn}, tracked: true}
	rec := serve(accountRouter(d), http.MethodGet, "/transactions/Starling%20Personal/Personal")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, txn.UUID, got[0].UUID)

	rec = serve(accountRouter(d), http.MethodGet, "/transactions/Starling%20Personal/Savings")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	d.tracked = false
	rec = serve(accountRouter(d), http.MethodGet, "/transactions/Starling%20Personal/Personal")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	d.tracked, d.accountErr = true, &providers.ProviderError{Kind: providers.ErrProviderAuth}
	rec = serve(accountRouter(d), http.MethodGet, "/transactions/Starling%20Personal/Personal")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestClearBalanceCache(t *testing.T) {
	c := &countingClearer{}
	rec := serve(ClearBalanceCache(c), http.MethodDelete, "/accounts/balances/cache")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, c.n)
}

type countingClearer struct{ n int }

func (c *countingClearer) Clear() { c.n++ }

type fakeVerifier struct{ err error }

func (f fakeVerifier) Verify(context.Context, []byte, http.Header) error { return f.err }

func TestPlaidWebhook(t *testing.T) {
	post := func(v WebhookVerifier, body string) (*httptest.ResponseRecorder, int) {
		refreshes := 0
		h := PlaidWebhook(v, func(context.Context) { refreshes++ })
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plaid/webhook", strings.NewReader(body)))
		return rec, refreshes
	}

	rec, n := post(fakeVerifier{}, `{"webhook_type":"TRANSACTIONS","webhook_code":"DEFAULT_UPDATE","item_id":"item-1"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, n)

	rec, n = post(fakeVerifier{}, `{"webhook_type":"ITEM","webhook_code":"ERROR"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, n)

	rec, n = post(fakeVerifier{err: fmt.Errorf("%w: body hash mismatch", plaid.ErrInvalidWebhook)}, `{"webhook_type":"TRANSACTIONS"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, n)

	rec, _ = post(fakeVerifier{err: errors.New("plaid down")}, `{}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec, _ = post(fakeVerifier{}, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
