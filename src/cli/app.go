package cli

import (
	"context"
	"fmt"
	"time"

	"starling-server/src/config"
	"starling-server/src/db"
	store "starling-server/src/db/sql"
	"starling-server/src/dispatcher"
	"starling-server/src/models"
	"starling-server/src/providers"
	"starling-server/src/providers/plaid"
	"starling-server/src/providers/starling"

	"github.com/google/uuid"
	plaidgo "github.com/plaid/plaid-go/v41/plaid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Store is the persistence surface the commands use.
type Store interface {
	dispatcher.Store
	SelectAccount(ctx context.Context, accountUUID uuid.UUID) (models.Account, error)
	UpsertAccount(ctx context.Context, authToken string, account models.Account) error
	DeleteBank(ctx context.Context, name string) ([]uuid.UUID, error)
	DeleteAccount(ctx context.Context, accountUUID uuid.UUID) error
	LastTransactionTime(ctx context.Context, accountUUID uuid.UUID) (time.Time, bool, error)

	UpsertCategory(ctx context.Context, c models.Category) (models.Category, error)
	DeleteCategory(ctx context.Context, c models.Category) error
	SelectCategories(ctx context.Context) ([]models.Category, error)
	RenameCategory(ctx context.Context, c models.Category, newName string) error
	ChangeCategoryGroup(ctx context.Context, c models.Category, newGroup string) error
	AssignCategory(ctx context.Context, counterpartyName string, c models.Category) (int64, error)

	UpsertDisplayName(ctx context.Context, d models.DisplayName) error
	DeleteDisplayName(ctx context.Context, name string) error
	SelectDisplayNames(ctx context.Context) ([]models.DisplayName, error)
}

// App is built once per process and handed to every command.
type App struct {
	Config     *config.Config
	Log        zerolog.Logger
	Store      Store
	Registry   *providers.Registry
	Categories *starling.CategoryHelper
	// Plaid is nil unless Plaid credentials are configured.
	Plaid *plaidgo.APIClient

	closers []func()
}

// Open migrates the database and wires the store, providers and category
// helper from cfg.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("DB connection failed: %w", err)
	}

	app := &App{
		Config:  cfg,
		Log:     log,
		Store:   store.NewStore(pool),
		closers: []func(){pool.Close},
	}
	app.Categories = starling.NewCategoryHelper(cfg.Starling.CategoryFile, app.starlingOptions())
	if cfg.Plaid.Enabled() {
		app.Plaid, err = plaid.NewClient(cfg.Plaid.ClientID, cfg.Plaid.Secret, cfg.Plaid.Env)
		if err != nil {
			app.Close()
			return nil, err
		}
	}
	app.Registry = app.buildRegistry()
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) starlingOptions() starling.Options {
	return starling.Options{
		BaseURL: a.Config.Starling.BaseURL,
		Timeout: a.Config.Sync.ProviderTimeout,
		Limiter: rate.NewLimiter(rate.Limit(a.Config.Starling.RequestsPerSecond), a.Config.Starling.Burst),
		Logger:  a.Log,
	}
}

func (a *App) buildRegistry() *providers.Registry {
	reg := providers.NewRegistry()
	reg.Register(starling.Kind, starling.NewFactory(a.starlingOptions(), a.Categories))
	if a.Plaid != nil {
		reg.Register(plaid.Kind, plaid.NewFactory(a.Plaid, a.Log))
	}
	for bank, kind := range a.Config.BankProviders {
		reg.Bind(bank, kind)
	}
	return reg
}

func (a *App) dispatcher(ctx context.Context, balances *db.BalanceCache) (*dispatcher.Dispatcher, error) {
	return dispatcher.New(ctx, a.Store, a.Registry, dispatcher.Options{
		IntervalDays:    a.Config.Sync.IntervalDays,
		ProviderTimeout: a.Config.Sync.ProviderTimeout,
		Concurrency:     a.Config.Sync.Concurrency,
		Balances:        balances,
		Logger:          a.Log,
	})
}
