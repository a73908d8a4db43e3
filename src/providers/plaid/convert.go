package plaid

import (
	"fmt"
	"strings"
	"time"

	"starling-server/src/models"
	"starling-server/src/providers"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// idNamespace seeds the UUIDs derived from Plaid's opaque identifiers so the
// same Plaid object always maps to the same row.
var idNamespace = uuid.MustParse("0c3bd7a4-5d0f-4f58-9e6e-2d1c8a7f4b10")

func AccountUUID(plaidAccountID string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte("account:"+plaidAccountID))
}

func TransactionUUID(plaidTransactionID string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte("transaction:"+plaidTransactionID))
}

func counterpartyUUID(name string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte("counterparty:"+strings.ToLower(strings.TrimSpace(name))))
}

// plaidTxn is the subset of a Plaid transaction the adapter uses.
type plaidTxn struct {
	ID       string
	Amount   float64
	Currency string
	Name     string
	Merchant string
	Date     string
	Datetime time.Time
}

// toTransaction converts to the canonical model. Plaid reports outflows as
// positive amounts, so the sign is flipped.
func toTransaction(p plaidTxn, account uuid.UUID) (models.Transaction, error) {
	if p.ID == "" {
		return models.Transaction{}, fmt.Errorf("transaction without id")
	}
	at := p.Datetime
	if at.IsZero() {
		day, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return models.Transaction{}, fmt.Errorf("transaction %s date %q: %w", p.ID, p.Date, err)
		}
		at = day
	}
	name := p.Merchant
	if name == "" {
		name = p.Name
	}
	return models.Transaction{
		UUID:        TransactionUUID(p.ID),
		AccountUUID: account,
		Time:        at.UTC(),
		Counterparty: models.Counterparty{
			UUID: counterpartyUUID(name),
			Name: name,
		},
		Amount:    decimal.NewFromFloat(p.Amount).Neg(),
		Currency:  p.Currency,
		Reference: p.Name,
	}, nil
}

// inWindow reports whether a transaction at t falls in [start, end). Plaid
// gives some transactions only a date; those match on the calendar day of
// start, since Plaid returns them for start_date.
func inWindow(t time.Time, dateOnly bool, start, end time.Time) bool {
	if !t.Before(end) {
		return false
	}
	if dateOnly {
		y, m, d := start.UTC().Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return !t.Before(start)
}

// errorKind classifies a failed Plaid call. hasResponse is false when the
// request never got an HTTP response.
func errorKind(code string, status int, hasResponse bool) error {
	switch code {
	case "INVALID_ACCESS_TOKEN", "ITEM_LOGIN_REQUIRED", "INVALID_API_KEYS", "ACCESS_NOT_GRANTED":
		return providers.ErrProviderAuth
	case "RATE_LIMIT_EXCEEDED", "INTERNAL_SERVER_ERROR", "PRODUCT_NOT_READY", "INSTITUTION_DOWN", "INSTITUTION_NOT_RESPONDING":
		return providers.ErrProviderUnavailable
	}
	if !hasResponse {
		return providers.ErrProviderUnavailable
	}
	return providers.KindForStatus(status)
}

// toBalance treats Plaid's current balance as cleared. The available balance,
// when reported, already nets out pending activity.
func toBalance(account uuid.UUID, currency string, current, available float64, hasAvailable bool) models.AccountBalance {
	cleared := decimal.NewFromFloat(current)
	effective := cleared
	if hasAvailable {
		effective = decimal.NewFromFloat(available)
	}
	return models.AccountBalance{
		AccountUUID:      account,
		Currency:         currency,
		ClearedBalance:   cleared,
		EffectiveBalance: effective,
		PendingAmount:    effective.Sub(cleared),
	}
}
