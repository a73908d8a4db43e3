package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Bank struct {
	Name      string      `json:"name"`
	AuthToken string      `json:"-"`
	Accounts  []uuid.UUID `json:"accounts"`
}

type Account struct {
	UUID      uuid.UUID `json:"uuid"`
	BankName  string    `json:"bank_name"`
	Name      string    `json:"account_name"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountRow is an account as stored, together with its bank credential.
type AccountRow struct {
	Account
	AuthToken string `json:"-"`
}

// AccountBalance is fetched live from a provider and never persisted.
type AccountBalance struct {
	AccountUUID      uuid.UUID       `json:"account_uuid"`
	Currency         string          `json:"currency"`
	ClearedBalance   decimal.Decimal `json:"cleared_balance"`
	EffectiveBalance decimal.Decimal `json:"effective_balance"`
	PendingAmount    decimal.Decimal `json:"pending_transactions"`
}
