package db

import (
	"context"
	"fmt"
	"time"

	"starling-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `a.uuid::text, b.name, a.name, a.currency, a.created_at`

// SelectBanks returns every bank with its credential and account UUIDs.
func (s *Store) SelectBanks(ctx context.Context) ([]models.Bank, error) {
	query := `
		SELECT b.name, b.auth_token, COALESCE(a.uuid::text, '')
		FROM banks b
		LEFT JOIN accounts a ON a.bank_id = b.id
		ORDER BY b.name, a.created_at, a.uuid
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var banks []models.Bank
	for rows.Next() {
		var name, token, accountUUID string
		if err := rows.Scan(&name, &token, &accountUUID); err != nil {
			return nil, err
		}
		if len(banks) == 0 || banks[len(banks)-1].Name != name {
			banks = append(banks, models.Bank{Name: name, AuthToken: token})
		}
		if accountUUID == "" {
			continue
		}
		id, err := uuid.Parse(accountUUID)
		if err != nil {
			return nil, err
		}
		last := &banks[len(banks)-1]
		last.Accounts = append(last.Accounts, id)
	}

	return banks, rows.Err()
}

// SelectAccounts returns canonical accounts ordered by bank and creation time.
func (s *Store) SelectAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.SelectAccountsWithBank(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]models.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, row.Account)
	}
	return accounts, nil
}

// SelectAccountsWithBank returns the raw rows including each bank credential.
func (s *Store) SelectAccountsWithBank(ctx context.Context) ([]models.AccountRow, error) {
	query := `
		SELECT ` + accountColumns + `, b.auth_token
		FROM accounts a
		JOIN banks b ON b.id = a.bank_id
		ORDER BY b.name, a.created_at, a.uuid
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.AccountRow
	for rows.Next() {
		var row models.AccountRow
		if err := scanAccount(rows, &row.Account, &row.AuthToken); err != nil {
			return nil, err
		}
		accounts = append(accounts, row)
	}

	return accounts, rows.Err()
}

func (s *Store) SelectAccount(ctx context.Context, accountUUID uuid.UUID) (models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		JOIN banks b ON b.id = a.bank_id
		WHERE a.uuid = $1::uuid
	`
	var account models.Account
	if err := scanAccount(s.db.QueryRow(ctx, query, accountUUID.String()), &account); err != nil {
		return models.Account{}, mapError(err)
	}
	return account, nil
}

// SelectAccountByName finds an account by bank name and account name.
func (s *Store) SelectAccountByName(ctx context.Context, bankName, accountName string) (models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		JOIN banks b ON b.id = a.bank_id
		WHERE b.name = $1 AND a.name = $2
		ORDER BY a.created_at
		LIMIT 1
	`
	var account models.Account
	if err := scanAccount(s.db.QueryRow(ctx, query, bankName, accountName), &account); err != nil {
		return models.Account{}, mapError(err)
	}
	return account, nil
}

func scanAccount(row pgx.Row, a *models.Account, extra ...any) error {
	var id string
	var createdAt time.Time
	dest := append([]any{&id, &a.BankName, &a.Name, &a.Currency, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("account uuid %q: %w", id, err)
	}
	a.UUID = parsed
	a.CreatedAt = createdAt.UTC()
	return nil
}

// UpsertBank creates the bank or replaces its credential.
func (s *Store) UpsertBank(ctx context.Context, name, authToken string) error {
	_, err := upsertBank(ctx, s.db, name, authToken)
	return err
}

func upsertBank(ctx context.Context, q querier, name, authToken string) (int64, error) {
	query := `
		INSERT INTO banks (name, auth_token)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET auth_token = EXCLUDED.auth_token
		RETURNING id
	`
	var id int64
	err := q.QueryRow(ctx, query, name, authToken).Scan(&id)
	return id, err
}

// UpsertAccount ensures the owning bank exists and inserts the account, or
// updates it in place when its UUID is already stored.
func (s *Store) UpsertAccount(ctx context.Context, authToken string, account models.Account) error {
	return s.inTx(ctx, func(q querier) error {
		bankID, err := upsertBank(ctx, q, account.BankName, authToken)
		if err != nil {
			return err
		}
		query := `
			INSERT INTO accounts (uuid, bank_id, name, currency, created_at)
			VALUES ($1::uuid, $2, $3, $4, $5)
			ON CONFLICT (uuid) DO UPDATE SET
				bank_id = EXCLUDED.bank_id,
				name = EXCLUDED.name,
				currency = EXCLUDED.currency,
				created_at = EXCLUDED.created_at
		`
		_, err = q.Exec(ctx, query, account.UUID.String(), bankID, account.Name, account.Currency, account.CreatedAt.UTC())
		return err
	})
}

// DeleteBank removes the bank with its accounts and their transactions, and
// returns the UUIDs of the removed accounts.
func (s *Store) DeleteBank(ctx context.Context, name string) ([]uuid.UUID, error) {
	var removed []uuid.UUID
	err := s.inTx(ctx, func(q querier) error {
		rows, err := q.Query(ctx, `
			SELECT a.uuid::text FROM accounts a
			JOIN banks b ON b.id = a.bank_id
			WHERE b.name = $1
		`, name)
		if err != nil {
			return err
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		for _, id := range ids {
			parsed, err := uuid.Parse(id)
			if err != nil {
				return err
			}
			removed = append(removed, parsed)
		}

		tag, err := q.Exec(ctx, `DELETE FROM banks WHERE name = $1`, name)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// DeleteAccount removes the account and all of its transactions.
func (s *Store) DeleteAccount(ctx context.Context, accountUUID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE uuid = $1::uuid`, accountUUID.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
