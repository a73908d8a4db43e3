package starling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"starling-server/src/models"
	"starling-server/src/providers"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// counterpartyNamespace seeds UUIDs for feed items that carry no counterparty uid.
var counterpartyNamespace = uuid.MustParse("6f1f8b86-4f3e-4d0b-9a57-5ab0f7e5c3a1")

type accountJSON struct {
	AccountUID      string    `json:"accountUid"`
	AccountType     string    `json:"accountType"`
	DefaultCategory string    `json:"defaultCategory"`
	Currency        string    `json:"currency"`
	CreatedAt       time.Time `json:"createdAt"`
	Name            string    `json:"name"`
}

type accountsJSON struct {
	Accounts *[]accountJSON `json:"accounts"`
}

type amountJSON struct {
	Currency   string `json:"currency"`
	MinorUnits *int64 `json:"minorUnits"`
}

type balanceJSON struct {
	ClearedBalance      *amountJSON `json:"clearedBalance"`
	EffectiveBalance    *amountJSON `json:"effectiveBalance"`
	PendingTransactions *amountJSON `json:"pendingTransactions"`
}

type feedItemJSON struct {
	FeedItemUID      string      `json:"feedItemUid"`
	CategoryUID      string      `json:"categoryUid"`
	Amount           *amountJSON `json:"amount"`
	Direction        string      `json:"direction"`
	TransactionTime  time.Time   `json:"transactionTime"`
	Status           string      `json:"status"`
	CounterPartyUID  string      `json:"counterPartyUid"`
	CounterPartyName string      `json:"counterPartyName"`
	Reference        string      `json:"reference"`
}

type feedJSON struct {
	FeedItems *[]feedItemJSON `json:"feedItems"`
}

// account is a validated /accounts entry.
type account struct {
	UUID            uuid.UUID
	DefaultCategory uuid.UUID
	Currency        string
	CreatedAt       time.Time
	Name            string
}

var errShape = errors.New("response shape")

func parseAccounts(body []byte) ([]account, error) {
	var raw accountsJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.Accounts == nil {
		return nil, fmt.Errorf("%w: missing accounts", errShape)
	}
	out := make([]account, 0, len(*raw.Accounts))
	for i, a := range *raw.Accounts {
		id, err := uuid.Parse(a.AccountUID)
		if err != nil {
			return nil, fmt.Errorf("%w: accounts[%d].accountUid: %v", errShape, i, err)
		}
		if a.Currency == "" {
			return nil, fmt.Errorf("%w: accounts[%d].currency missing", errShape, i)
		}
		acc := account{UUID: id, Currency: a.Currency, CreatedAt: a.CreatedAt.UTC(), Name: a.Name}
		if a.DefaultCategory != "" {
			cat, err := uuid.Parse(a.DefaultCategory)
			if err != nil {
				return nil, fmt.Errorf("%w: accounts[%d].defaultCategory: %v", errShape, i, err)
			}
			acc.DefaultCategory = cat
		}
		out = append(out, acc)
	}
	return out, nil
}

func parseBalance(body []byte, accountUUID uuid.UUID) (models.AccountBalance, error) {
	var raw balanceJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.AccountBalance{}, err
	}
	cleared, err := raw.ClearedBalance.decimal("clearedBalance")
	if err != nil {
		return models.AccountBalance{}, err
	}
	effective, err := raw.EffectiveBalance.decimal("effectiveBalance")
	if err != nil {
		return models.AccountBalance{}, err
	}
	pending, err := raw.PendingTransactions.decimal("pendingTransactions")
	if err != nil {
		return models.AccountBalance{}, err
	}
	return models.AccountBalance{
		AccountUUID:      accountUUID,
		Currency:         raw.ClearedBalance.Currency,
		ClearedBalance:   cleared,
		EffectiveBalance: effective,
		PendingAmount:    pending,
	}, nil
}

func parseFeed(body []byte, accountUUID uuid.UUID) ([]models.Transaction, error) {
	var raw feedJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.FeedItems == nil {
		return nil, fmt.Errorf("%w: missing feedItems", errShape)
	}
	out := make([]models.Transaction, 0, len(*raw.FeedItems))
	for i, item := range *raw.FeedItems {
		t, err := item.transaction(accountUUID)
		if err != nil {
			return nil, fmt.Errorf("feedItems[%d]: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (a *amountJSON) decimal(field string) (decimal.Decimal, error) {
	if a == nil || a.MinorUnits == nil || a.Currency == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: %s missing", errShape, field)
	}
	return decimal.New(*a.MinorUnits, -minorUnitExponent(a.Currency)), nil
}

func (f feedItemJSON) transaction(accountUUID uuid.UUID) (models.Transaction, error) {
	id, err := uuid.Parse(f.FeedItemUID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%w: feedItemUid: %v", errShape, err)
	}
	if f.TransactionTime.IsZero() {
		return models.Transaction{}, fmt.Errorf("%w: transactionTime missing", errShape)
	}
	amount, err := f.Amount.decimal("amount")
	if err != nil {
		return models.Transaction{}, err
	}
	switch strings.ToUpper(f.Direction) {
	case "OUT":
		amount = amount.Neg()
	case "IN":
	default:
		return models.Transaction{}, fmt.Errorf("%w: direction %q", errShape, f.Direction)
	}

	return models.Transaction{
		UUID:        id,
		AccountUUID: accountUUID,
		Time:        f.TransactionTime.UTC(),
		Counterparty: models.Counterparty{
			UUID: counterpartyUUID(f.CounterPartyUID, f.CounterPartyName),
			Name: f.CounterPartyName,
		},
		Amount:    amount,
		Currency:  f.Amount.Currency,
		Reference: f.Reference,
	}, nil
}

func counterpartyUUID(uid, name string) uuid.UUID {
	if id, err := uuid.Parse(uid); err == nil {
		return id
	}
	return uuid.NewSHA1(counterpartyNamespace, []byte(strings.ToLower(strings.TrimSpace(name))))
}

// minorUnitExponent follows ISO 4217.
func minorUnitExponent(currency string) int32 {
	switch strings.ToUpper(currency) {
	case "JPY", "KRW", "ISK", "CLP", "VND", "XAF", "XOF":
		return 0
	case "BHD", "KWD", "OMR", "JOD", "TND", "LYD", "IQD":
		return 3
	default:
		return 2
	}
}

func schemaError(c *client, op string, body []byte, err error) error {
	c.log.Error().Err(err).Str("bank", c.bank).Str("op", op).Bytes("payload", body).
		Msg("Starling response failed validation")
	return c.fail(providers.ErrProviderSchema, op, 0, body, err)
}
