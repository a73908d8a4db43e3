package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"starling-server/src/db"
	"starling-server/src/models"
	"starling-server/src/providers"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrAccountNotTracked = errors.New("account has no provider connection")

// Store is the slice of the persistence layer the dispatcher needs.
type Store interface {
	SelectBanks(ctx context.Context) ([]models.Bank, error)
	SelectAccounts(ctx context.Context) ([]models.Account, error)
	SelectAccountByName(ctx context.Context, bankName, accountName string) (models.Account, error)
	UpsertTransaction(ctx context.Context, t models.Transaction) error
}

type Options struct {
	IntervalDays    int
	ProviderTimeout time.Duration
	Concurrency     int
	// Balances is optional; nil disables balance caching.
	Balances *db.BalanceCache
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.IntervalDays <= 0 {
		o.IntervalDays = 7
	}
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = 30 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// AccountError is a failure confined to one account within a batch.
type AccountError struct {
	AccountUUID uuid.UUID `json:"account_uuid"`
	BankName    string    `json:"bank_name"`
	Err         error     `json:"-"`
}

func (e AccountError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.AccountUUID, e.BankName, e.Err)
}

func (e AccountError) Unwrap() error { return e.Err }

type BalanceReport struct {
	Balances []models.AccountBalance
	Errors   []AccountError
}

type SyncReport struct {
	// Accounts is the number of stored accounts the sync covered.
	Accounts     int
	Transactions []models.Transaction
	Errors       []AccountError
}

type binding struct {
	bank     string
	account  uuid.UUID
	provider providers.Provider
	err      error
}

// Dispatcher routes account operations to the provider bound to each account
// and writes fetched transactions through to the store.
type Dispatcher struct {
	store    Store
	registry *providers.Registry
	opts     Options

	mu       sync.RWMutex
	bindings []binding
	index    map[uuid.UUID]int
}

// New binds one provider per stored account. A bank without a registered
// provider fails the whole build; other per-account failures are kept and
// reported whenever that account is used.
func New(ctx context.Context, store Store, registry *providers.Registry, opts Options) (*Dispatcher, error) {
	d := &Dispatcher{store: store, registry: registry, opts: opts.withDefaults()}
	if err := d.Reload(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload rebuilds the provider bindings from the store.
func (d *Dispatcher) Reload(ctx context.Context) error {
	banks, err := d.store.SelectBanks(ctx)
	if err != nil {
		return fmt.Errorf("load banks: %w", err)
	}

	var bindings []binding
	index := make(map[uuid.UUID]int)
	for _, bank := range banks {
		factory, err := d.registry.Lookup(bank.Name)
		if err != nil {
			return err
		}
		for _, account := range bank.Accounts {
			p, err := factory(ctx, providers.Binding{
				BankName:    bank.Name,
				AuthToken:   bank.AuthToken,
				AccountUUID: account,
			})
			if err != nil {
				d.opts.Logger.Warn().Err(err).Str("bank", bank.Name).Str("account", account.String()).
					Msg("Account has no usable provider")
				p = nil
			}
			index[account] = len(bindings)
			bindings = append(bindings, binding{bank: bank.Name, account: account, provider: p, err: err})
		}
	}

	d.mu.Lock()
	d.bindings, d.index = bindings, index
	d.mu.Unlock()

	d.opts.Logger.Debug().Int("accounts", len(bindings)).Msg("Provider bindings loaded")
	return nil
}

func (d *Dispatcher) snapshot() []binding {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bindings
}

func (d *Dispatcher) lookup(account uuid.UUID) (binding, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[account]
	if !ok {
		return binding{}, false
	}
	return d.bindings[i], true
}

// GetAccounts returns the stored accounts. Providers are not consulted.
func (d *Dispatcher) GetAccounts(ctx context.Context) ([]models.Account, error) {
	return d.store.SelectAccounts(ctx)
}

// FindAccount resolves a bank name and account name to a stored account.
func (d *Dispatcher) FindAccount(ctx context.Context, bankName, accountName string) (models.Account, error) {
	return d.store.SelectAccountByName(ctx, bankName, accountName)
}

// GetAccountBalances fetches every bound account's balance. Balances keep the
// binding order; failing accounts are reported without stopping the rest.
func (d *Dispatcher) GetAccountBalances(ctx context.Context) BalanceReport {
	bindings := d.snapshot()
	balances := make([]*models.AccountBalance, len(bindings))
	errs := make([]error, len(bindings))

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)
	for i, b := range bindings {
		if b.provider == nil {
			errs[i] = b.err
			continue
		}
		if d.opts.Balances != nil {
			if cached, ok := d.opts.Balances.Get(b.account); ok {
				balances[i] = &cached
				continue
			}
		}
		g.Go(func() error {
			balance, err := d.balance(ctx, b)
			if err != nil {
				errs[i] = err
				return nil
			}
			balances[i] = &balance
			if d.opts.Balances != nil {
				d.opts.Balances.Set(balance)
			}
			return nil
		})
	}
	_ = g.Wait()

	var report BalanceReport
	for i, b := range bindings {
		if errs[i] != nil {
			d.opts.Logger.Error().Err(errs[i]).Str("bank", b.bank).Str("account", b.account.String()).
				Msg("Failed to fetch balance")
			report.Errors = append(report.Errors, AccountError{AccountUUID: b.account, BankName: b.bank, Err: errs[i]})
			continue
		}
		report.Balances = append(report.Balances, *balances[i])
	}
	return report
}

func (d *Dispatcher) balance(ctx context.Context, b binding) (models.AccountBalance, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.opts.ProviderTimeout)
	defer cancel()
	balance, err := b.provider.GetBalance(callCtx)
	if err != nil {
		return models.AccountBalance{}, d.timeoutError(callCtx, b, "balance", err)
	}
	return balance, nil
}

// SyncTransactionsForAccount fetches the account's transactions in the window,
// upserts each one, and returns them in provider order. tracked is false when
// the account has no provider binding.
func (d *Dispatcher) SyncTransactionsForAccount(ctx context.Context, account uuid.UUID, w Window) (txns []models.Transaction, tracked bool, err error) {
	start, end, err := w.Resolve(d.opts.Now(), d.interval())
	if err != nil {
		return nil, false, err
	}
	b, ok := d.lookup(account)
	if !ok {
		return nil, false, nil
	}
	txns, err = d.sync(ctx, b, start, end)
	return txns, true, err
}

func (d *Dispatcher) sync(ctx context.Context, b binding, start, end time.Time) ([]models.Transaction, error) {
	if b.provider == nil {
		return nil, b.err
	}
	log := d.opts.Logger.With().Str("bank", b.bank).Str("account", b.account.String()).Logger()

	callCtx, cancel := context.WithTimeout(ctx, d.opts.ProviderTimeout)
	txns, err := b.provider.GetTransactionsBetween(callCtx, start, end)
	if err != nil {
		err = d.timeoutError(callCtx, b, "transactions", err)
	}
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch transactions")
		return nil, err
	}

	for _, t := range txns {
		if err := d.store.UpsertTransaction(ctx, t); err != nil {
			log.Error().Err(err).Str("transaction", t.UUID.String()).Msg("Failed to store transaction")
			return nil, fmt.Errorf("store transaction %s: %w", t.UUID, err)
		}
	}
	if d.opts.Balances != nil {
		d.opts.Balances.Del(b.account)
	}

	log.Info().Int("count", len(txns)).Time("start", start).Time("end", end).Msg("Synced transactions")
	return txns, nil
}

// SyncTransactionsAllAccounts syncs every stored account and returns all
// fetched transactions, newest first. Accounts fail independently.
func (d *Dispatcher) SyncTransactionsAllAccounts(ctx context.Context, w Window) (SyncReport, error) {
	start, end, err := w.Resolve(d.opts.Now(), d.interval())
	if err != nil {
		return SyncReport{}, err
	}
	accounts, err := d.store.SelectAccounts(ctx)
	if err != nil {
		return SyncReport{}, err
	}

	results := make([][]models.Transaction, len(accounts))
	errs := make([]error, len(accounts))

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)
	for i, account := range accounts {
		g.Go(func() error {
			b, ok := d.lookup(account.UUID)
			if !ok {
				errs[i] = ErrAccountNotTracked
				return nil
			}
			results[i], errs[i] = d.sync(ctx, b, start, end)
			return nil
		})
	}
	_ = g.Wait()

	report := SyncReport{Accounts: len(accounts)}
	for i, account := range accounts {
		if errs[i] != nil {
			report.Errors = append(report.Errors, AccountError{AccountUUID: account.UUID, BankName: account.BankName, Err: errs[i]})
			continue
		}
		report.Transactions = append(report.Transactions, results[i]...)
	}
	sort.SliceStable(report.Transactions, func(i, j int) bool {
		return report.Transactions[i].Time.After(report.Transactions[j].Time)
	})
	return report, nil
}

func (d *Dispatcher) interval() time.Duration {
	return time.Duration(d.opts.IntervalDays) * 24 * time.Hour
}

// timeoutError reports a call that ran out of time as the provider being unavailable.
func (d *Dispatcher) timeoutError(callCtx context.Context, b binding, op string, err error) error {
	if errors.Is(err, providers.ErrProviderUnavailable) || !errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return err
	}
	return &providers.ProviderError{
		Kind:    providers.ErrProviderUnavailable,
		Bank:    b.bank,
		Account: b.account,
		Op:      op,
		Err:     err,
	}
}
