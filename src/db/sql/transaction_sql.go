package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"starling-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transactionColumns = `
	t.uuid::text, t.account_uuid::text, t.occurred_at,
	c.uuid::text, c.name, COALESCE(c.display_name, ''),
	t.amount::text, t.currency, t.reference, COALESCE(t.category_uuid::text, '')
`

func (s *Store) SelectTransactionsForAccount(ctx context.Context, accountUUID uuid.UUID) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN counterparties c ON c.uuid = t.counterparty_uuid
		WHERE t.account_uuid = $1::uuid
		ORDER BY t.occurred_at DESC, t.uuid
	`
	rows, err := s.db.Query(ctx, query, accountUUID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

func (s *Store) SelectTransaction(ctx context.Context, transactionUUID uuid.UUID) (models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN counterparties c ON c.uuid = t.counterparty_uuid
		WHERE t.uuid = $1::uuid
	`
	var t models.Transaction
	if err := scanTransaction(s.db.QueryRow(ctx, query, transactionUUID.String()), &t); err != nil {
		return models.Transaction{}, mapError(err)
	}
	return t, nil
}

// LastTransactionTime reports the newest stored transaction time for an account.
func (s *Store) LastTransactionTime(ctx context.Context, accountUUID uuid.UUID) (time.Time, bool, error) {
	query := `SELECT occurred_at FROM transactions WHERE account_uuid = $1::uuid ORDER BY occurred_at DESC LIMIT 1`
	var last time.Time
	err := s.db.QueryRow(ctx, query, accountUUID.String()).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return last.UTC(), true, nil
}

func scanTransaction(row pgx.Row, t *models.Transaction) error {
	var id, accountID, counterpartyID, amount, categoryID string
	var ts time.Time
	err := row.Scan(&id, &accountID, &ts,
		&counterpartyID, &t.Counterparty.Name, &t.Counterparty.DisplayName,
		&amount, &t.Currency, &t.Reference, &categoryID)
	if err != nil {
		return err
	}

	if t.UUID, err = uuid.Parse(id); err != nil {
		return fmt.Errorf("transaction uuid %q: %w", id, err)
	}
	if t.AccountUUID, err = uuid.Parse(accountID); err != nil {
		return fmt.Errorf("account uuid %q: %w", accountID, err)
	}
	if t.Counterparty.UUID, err = uuid.Parse(counterpartyID); err != nil {
		return fmt.Errorf("counterparty uuid %q: %w", counterpartyID, err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return fmt.Errorf("amount %q: %w", amount, err)
	}
	if categoryID != "" {
		category, err := uuid.Parse(categoryID)
		if err != nil {
			return fmt.Errorf("category uuid %q: %w", categoryID, err)
		}
		t.CategoryUUID = &category
	}
	t.Time = ts.UTC()
	return nil
}

// UpsertCounterparty inserts the counterparty or refreshes its name. A stored
// display name for the raw name is applied on insert.
func (s *Store) UpsertCounterparty(ctx context.Context, c models.Counterparty) error {
	return upsertCounterparty(ctx, s.db, c)
}

func upsertCounterparty(ctx context.Context, q querier, c models.Counterparty) error {
	query := `
		INSERT INTO counterparties (uuid, name, display_name)
		VALUES ($1::uuid, $2, (SELECT display_name FROM display_names WHERE name = $2))
		ON CONFLICT (uuid) DO UPDATE SET
			name = EXCLUDED.name,
			display_name = COALESCE(EXCLUDED.display_name, counterparties.display_name)
	`
	_, err := q.Exec(ctx, query, c.UUID.String(), c.Name)
	return err
}

// UpsertTransaction writes the counterparty and then the transaction in one
// database transaction. A category already assigned locally is kept when the
// incoming record carries none.
func (s *Store) UpsertTransaction(ctx context.Context, t models.Transaction) error {
	var category *string
	if t.CategoryUUID != nil {
		c := t.CategoryUUID.String()
		category = &c
	}

	err := s.inTx(ctx, func(q querier) error {
		if err := upsertCounterparty(ctx, q, t.Counterparty); err != nil {
			return err
		}
		query := `
			INSERT INTO transactions (uuid, account_uuid, occurred_at, counterparty_uuid, amount, currency, reference, category_uuid)
			VALUES ($1::uuid, $2::uuid, $3, $4::uuid, $5::numeric, $6, $7, $8::uuid)
			ON CONFLICT (uuid) DO UPDATE SET
				account_uuid = EXCLUDED.account_uuid,
				occurred_at = EXCLUDED.occurred_at,
				counterparty_uuid = EXCLUDED.counterparty_uuid,
				amount = EXCLUDED.amount,
				currency = EXCLUDED.currency,
				reference = EXCLUDED.reference,
				category_uuid = COALESCE(EXCLUDED.category_uuid, transactions.category_uuid)
		`
		_, err := q.Exec(ctx, query,
			t.UUID.String(),
			t.AccountUUID.String(),
			t.Time.UTC(),
			t.Counterparty.UUID.String(),
			t.Amount.String(),
			t.Currency,
			t.Reference,
			category,
		)
		return err
	})
	return mapError(err)
}

// DeleteTransactionsForAccount removes every transaction of one account and
// reports how many went.
func (s *Store) DeleteTransactionsForAccount(ctx context.Context, accountUUID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM transactions WHERE account_uuid = $1::uuid`, accountUUID.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
