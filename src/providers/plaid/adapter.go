package plaid

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"starling-server/src/models"
	"starling-server/src/providers"

	"github.com/google/uuid"
	plaidgo "github.com/plaid/plaid-go/v41/plaid"
	"github.com/rs/zerolog"
)

const (
	Kind     = "plaid"
	pageSize = 500
)

// Adapter serves one Plaid-linked account. The bank credential is the item's
// access token.
type Adapter struct {
	api     *plaidgo.APIClient
	bank    string
	token   string
	account uuid.UUID
	log     zerolog.Logger

	mu        sync.Mutex
	accountID string
}

var _ providers.Provider = (*Adapter)(nil)

func NewFactory(api *plaidgo.APIClient, log zerolog.Logger) providers.Factory {
	return func(ctx context.Context, b providers.Binding) (providers.Provider, error) {
		return &Adapter{api: api, bank: b.BankName, token: b.AuthToken, account: b.AccountUUID, log: log}, nil
	}
}

func (a *Adapter) AccountUUID() uuid.UUID { return a.account }

func (a *Adapter) fail(op string, resp *http.Response, err error) error {
	code := ""
	if plaidErr, convErr := plaidgo.ToPlaidError(err); convErr == nil {
		code = plaidErr.ErrorCode
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	kind := errorKind(code, status, resp != nil)
	if kind == providers.ErrProviderSchema {
		a.log.Error().Err(err).Str("bank", a.bank).Str("op", op).Str("code", code).Int("status", status).
			Msg("Plaid rejected request")
	}
	return &providers.ProviderError{Kind: kind, Bank: a.bank, Account: a.account, Op: op, Status: status, Err: err}
}

func (a *Adapter) accounts(ctx context.Context) ([]plaidgo.AccountBase, error) {
	req := plaidgo.NewAccountsGetRequest(a.token)
	resp, httpResp, err := a.api.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*req).Execute()
	if err != nil {
		return nil, a.fail("accounts", httpResp, err)
	}
	return resp.GetAccounts(), nil
}

func (a *Adapter) ListAccounts(ctx context.Context) ([]models.Account, error) {
	accounts, err := a.accounts(ctx)
	if err != nil {
		return nil, err
	}
	discovered := time.Now().UTC()
	out := make([]models.Account, 0, len(accounts))
	for _, acc := range accounts {
		balances := acc.GetBalances()
		out = append(out, models.Account{
			UUID:      AccountUUID(acc.GetAccountId()),
			BankName:  a.bank,
			Name:      acc.GetName(),
			Currency:  balances.GetIsoCurrencyCode(),
			CreatedAt: discovered,
		})
	}
	return out, nil
}

// plaidAccountID finds the Plaid id whose derived UUID is the bound account.
func (a *Adapter) plaidAccountID(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accountID != "" {
		return a.accountID, nil
	}
	if a.account == uuid.Nil {
		return "", errors.New("plaid adapter is not bound to an account")
	}
	accounts, err := a.accounts(ctx)
	if err != nil {
		return "", err
	}
	for _, acc := range accounts {
		if AccountUUID(acc.GetAccountId()) == a.account {
			a.accountID = acc.GetAccountId()
			return a.accountID, nil
		}
	}
	return "", &providers.ProviderError{
		Kind:    providers.ErrProviderSchema,
		Bank:    a.bank,
		Account: a.account,
		Op:      "accounts",
		Err:     errors.New("account no longer returned by Plaid"),
	}
}

func (a *Adapter) GetBalance(ctx context.Context) (models.AccountBalance, error) {
	id, err := a.plaidAccountID(ctx)
	if err != nil {
		return models.AccountBalance{}, err
	}
	req := plaidgo.NewAccountsBalanceGetRequest(a.token)
	req.SetOptions(plaidgo.AccountsBalanceGetRequestOptions{AccountIds: &[]string{id}})
	resp, httpResp, err := a.api.PlaidApi.AccountsBalanceGet(ctx).AccountsBalanceGetRequest(*req).Execute()
	if err != nil {
		return models.AccountBalance{}, a.fail("balance", httpResp, err)
	}
	for _, acc := range resp.GetAccounts() {
		if acc.GetAccountId() != id {
			continue
		}
		b := acc.GetBalances()
		return toBalance(a.account, b.GetIsoCurrencyCode(), b.GetCurrent(), b.GetAvailable(), b.Available.IsSet()), nil
	}
	return models.AccountBalance{}, &providers.ProviderError{
		Kind: providers.ErrProviderSchema, Bank: a.bank, Account: a.account, Op: "balance",
		Err: errors.New("account missing from balance response"),
	}
}

func (a *Adapter) GetTransactionsBetween(ctx context.Context, start, end time.Time) ([]models.Transaction, error) {
	id, err := a.plaidAccountID(ctx)
	if err != nil {
		return nil, err
	}
	start, end = start.UTC(), end.UTC()

	var out []models.Transaction
	for offset := int32(0); ; {
		req := plaidgo.NewTransactionsGetRequest(a.token, start.Format("2006-01-02"), end.Format("2006-01-02"))
		count := int32(pageSize)
		req.SetOptions(plaidgo.TransactionsGetRequestOptions{
			AccountIds: &[]string{id},
			Count:      &count,
			Offset:     &offset,
		})
		resp, httpResp, err := a.api.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*req).Execute()
		if err != nil {
			return nil, a.fail("transactions", httpResp, err)
		}

		page := resp.GetTransactions()
		for _, t := range page {
			txn, err := toTransaction(plaidTxn{
				ID:       t.GetTransactionId(),
				Amount:   t.GetAmount(),
				Currency: t.GetIsoCurrencyCode(),
				Name:     t.GetName(),
				Merchant: t.GetMerchantName(),
				Date:     t.GetDate(),
				Datetime: t.GetDatetime(),
			}, a.account)
			if err != nil {
				return nil, &providers.ProviderError{Kind: providers.ErrProviderSchema, Bank: a.bank, Account: a.account, Op: "transactions", Err: err}
			}
			if inWindow(txn.Time, t.GetDatetime().IsZero(), start, end) {
				out = append(out, txn)
			}
		}

		offset += int32(len(page))
		if len(page) == 0 || offset >= resp.GetTotalTransactions() {
			break
		}
	}
	return out, nil
}
