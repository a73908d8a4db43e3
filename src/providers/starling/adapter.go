package starling

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"starling-server/src/models"
	"starling-server/src/providers"

	"github.com/google/uuid"
)

const Kind = "starling"

// Adapter serves one Starling account, or account discovery when unbound.
type Adapter struct {
	client   *client
	bank     string
	account  uuid.UUID
	category uuid.UUID
}

var _ providers.Provider = (*Adapter)(nil)

// NewFactory returns a factory that resolves each bound account's default
// category through helper before handing out an adapter.
func NewFactory(opts Options, helper *CategoryHelper) providers.Factory {
	return func(ctx context.Context, b providers.Binding) (providers.Provider, error) {
		return New(opts, helper, b)
	}
}

func New(opts Options, helper *CategoryHelper, b providers.Binding) (*Adapter, error) {
	a := &Adapter{
		client:  newClient(opts, b.BankName, b.AuthToken, b.AccountUUID),
		bank:    b.BankName,
		account: b.AccountUUID,
	}
	if b.AccountUUID == uuid.Nil {
		return a, nil
	}

	if helper == nil {
		return nil, errors.New("starling adapter needs a category helper to bind an account")
	}
	category, ok, err := helper.Resolve(b.AccountUUID)
	if err != nil {
		return nil, fmt.Errorf("resolve default category for %s: %w", b.AccountUUID, err)
	}
	if !ok {
		return nil, &providers.ProviderError{
			Kind:    providers.ErrMissingCategoryConfig,
			Bank:    b.BankName,
			Account: b.AccountUUID,
		}
	}
	a.category = category
	return a, nil
}

func (a *Adapter) AccountUUID() uuid.UUID { return a.account }

func (a *Adapter) ListAccounts(ctx context.Context) ([]models.Account, error) {
	accounts, err := a.accounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Account, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, models.Account{
			UUID:      acc.UUID,
			BankName:  a.bank,
			Name:      acc.Name,
			Currency:  acc.Currency,
			CreatedAt: acc.CreatedAt,
		})
	}
	return out, nil
}

func (a *Adapter) accounts(ctx context.Context) ([]account, error) {
	body, err := a.client.get(ctx, "accounts", "/accounts", nil)
	if err != nil {
		return nil, err
	}
	accounts, err := parseAccounts(body)
	if err != nil {
		return nil, schemaError(a.client, "accounts", body, err)
	}
	return accounts, nil
}

func (a *Adapter) GetBalance(ctx context.Context) (models.AccountBalance, error) {
	if err := a.requireAccount(); err != nil {
		return models.AccountBalance{}, err
	}
	body, err := a.client.get(ctx, "balance", "/accounts/"+a.account.String()+"/balance", nil)
	if err != nil {
		return models.AccountBalance{}, err
	}
	balance, err := parseBalance(body, a.account)
	if err != nil {
		return models.AccountBalance{}, schemaError(a.client, "balance", body, err)
	}
	return balance, nil
}

func (a *Adapter) GetTransactionsBetween(ctx context.Context, start, end time.Time) ([]models.Transaction, error) {
	if err := a.requireAccount(); err != nil {
		return nil, err
	}
	start, end = start.UTC(), end.UTC()
	path := fmt.Sprintf("/feed/account/%s/category/%s/transactions-between", a.account, a.category)
	params := url.Values{}
	params.Set("minTransactionTimestamp", start.Format(timestampLayout))
	params.Set("maxTransactionTimestamp", end.Format(timestampLayout))

	body, err := a.client.get(ctx, "transactions", path, params)
	if err != nil {
		return nil, err
	}
	fetched, err := parseFeed(body, a.account)
	if err != nil {
		return nil, schemaError(a.client, "transactions", body, err)
	}

	out := fetched[:0]
	for _, t := range fetched {
		if !t.Time.Before(start) && t.Time.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (a *Adapter) requireAccount() error {
	if a.account == uuid.Nil {
		return errors.New("starling adapter is not bound to an account")
	}
	return nil
}
