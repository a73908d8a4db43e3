package providers

import (
	"context"
	"time"

	"starling-server/src/models"

	"github.com/google/uuid"
)

// Provider is a connection to one account at one bank. All methods return
// canonical models; provider wire formats never leave the adapter.
type Provider interface {
	AccountUUID() uuid.UUID
	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetBalance(ctx context.Context) (models.AccountBalance, error)
	// GetTransactionsBetween returns transactions in [start, end).
	GetTransactionsBetween(ctx context.Context, start, end time.Time) ([]models.Transaction, error)
}

// Binding is everything a factory needs to build a Provider. AccountUUID is
// uuid.Nil when the caller only wants to discover accounts.
type Binding struct {
	BankName    string
	AuthToken   string
	AccountUUID uuid.UUID
}

type Factory func(ctx context.Context, b Binding) (Provider, error)
