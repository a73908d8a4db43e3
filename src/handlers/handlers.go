package handlers

import (
	"context"

	"starling-server/src/dispatcher"
	"starling-server/src/models"

	"github.com/google/uuid"
)

// Dispatcher is the sync core as seen by the HTTP handlers.
type Dispatcher interface {
	GetAccounts(ctx context.Context) ([]models.Account, error)
	FindAccount(ctx context.Context, bankName, accountName string) (models.Account, error)
	GetAccountBalances(ctx context.Context) dispatcher.BalanceReport
	SyncTransactionsForAccount(ctx context.Context, account uuid.UUID, w dispatcher.Window) ([]models.Transaction, bool, error)
	SyncTransactionsAllAccounts(ctx context.Context, w dispatcher.Window) (dispatcher.SyncReport, error)
}
