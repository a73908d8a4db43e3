package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"starling-server/src/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewStore(mock), mock
}

func TestUpsertAccount(t *testing.T) {
	store, mock := newMockStore(t)
	account := models.Account{
		UUID:      uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		BankName:  "Starling Personal",
		Name:      "Personal",
		Currency:  "GBP",
		CreatedAt: time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO banks").
		WithArgs("Starling Personal", "token-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(account.UUID.String(), int64(7), "Personal", "GBP", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpsertAccount(context.Background(), "token-1", account))
}

func TestUpsertAccountRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO banks").
		WithArgs("Starling Personal", "token-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	account := models.Account{UUID: uuid.New(), BankName: "Starling Personal", Name: "Personal", Currency: "GBP"}
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(account.UUID.String(), int64(7), "Personal", "GBP", pgxmock.AnyArg()).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := store.UpsertAccount(context.Background(), "token-1", account)
	assert.ErrorIs(t, err, boom)
}

func TestSelectBanksGroupsAccounts(t *testing.T) {
	store, mock := newMockStore(t)
	a1, a2 := uuid.New(), uuid.New()

	mock.ExpectQuery("FROM banks b").WillReturnRows(
		pgxmock.NewRows([]string{"name", "auth_token", "uuid"}).
			AddRow("Starling Business", "tok-b", a1.String()).
			AddRow("Starling Business", "tok-b", a2.String()).
			AddRow("Starling Personal", "tok-p", ""),
	)

	banks, err := store.SelectBanks(context.Background())
	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, "Starling Business", banks[0].Name)
	assert.Equal(t, "tok-b", banks[0].AuthToken)
	assert.Equal(t, []uuid.UUID{a1, a2}, banks[0].Accounts)
	assert.Equal(t, "Starling Personal", banks[1].Name)
	assert.Empty(t, banks[1].Accounts)
}

func TestSelectAccountNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	missing := uuid.New()
	mock.ExpectQuery("WHERE a.uuid").WithArgs(missing.String()).WillReturnError(pgx.ErrNoRows)

	_, err := store.SelectAccount(context.Background(), missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	txn := models.Transaction{
		UUID:         uuid.New(),
		AccountUUID:  uuid.New(),
		Time:         time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC),
		Counterparty: models.Counterparty{UUID: uuid.New(), Name: "Tesco"},
		Amount:       decimal.RequireFromString("-12.50"),
		Currency:     "GBP",
		Reference:    "groceries",
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO counterparties").
		WithArgs(txn.Counterparty.UUID.String(), "Tesco").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.UUID.String(), txn.AccountUUID.String(), pgxmock.AnyArg(), txn.Counterparty.UUID.String(),
			"-12.5", "GBP", "groceries", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.UpsertTransaction(context.Background(), txn))
}

func TestUpsertTransactionUnknownAccount(t *testing.T) {
	store, mock := newMockStore(t)

	txn := models.Transaction{
		UUID:         uuid.New(),
		AccountUUID:  uuid.New(),
		Counterparty: models.Counterparty{UUID: uuid.New(), Name: "Tesco"},
		Amount:       decimal.RequireFromString("-1"),
		Currency:     "GBP",
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO counterparties").
		WithArgs(txn.Counterparty.UUID.String(), "Tesco").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.UUID.String(), txn.AccountUUID.String(), pgxmock.AnyArg(), txn.Counterparty.UUID.String(),
			"-1", "GBP", "", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	err := store.UpsertTransaction(context.Background(), txn)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSelectTransactionsForAccount(t *testing.T) {
	store, mock := newMockStore(t)
	account, txnID, cpID, catID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	ts := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("FROM transactions t").
		WithArgs(account.String()).
		WillReturnRows(pgxmock.NewRows([]string{"uuid", "account_uuid", "occurred_at", "cp_uuid", "name", "display_name", "amount", "currency", "reference", "category_uuid"}).
			AddRow(txnID.String(), account.String(), ts, cpID.String(), "TESCO 123", "Tesco", "-12.5000", "GBP", "groceries", catID.String()).
			AddRow(uuid.NewString(), account.String(), ts.Add(-time.Hour), cpID.String(), "TESCO 123", "Tesco", "3.0000", "GBP", "", ""))

	txns, err := store.SelectTransactionsForAccount(context.Background(), account)
	require.NoError(t, err)
	require.Len(t, txns, 2)

	assert.Equal(t, txnID, txns[0].UUID)
	assert.Equal(t, account, txns[0].AccountUUID)
	assert.Equal(t, ts, txns[0].Time)
	assert.Equal(t, "Tesco", txns[0].Counterparty.DisplayedName())
	assert.True(t, decimal.RequireFromString("-12.5").Equal(txns[0].Amount))
	require.NotNil(t, txns[0].CategoryUUID)
	assert.Equal(t, catID, *txns[0].CategoryUUID)
	assert.Nil(t, txns[1].CategoryUUID)
}

func TestDeleteBankNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT a.uuid").WithArgs("Monzo").WillReturnRows(pgxmock.NewRows([]string{"uuid"}))
	mock.ExpectExec("DELETE FROM banks").WithArgs("Monzo").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	_, err := store.DeleteBank(context.Background(), "Monzo")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteBankReturnsAccounts(t *testing.T) {
	store, mock := newMockStore(t)
	a1 := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT a.uuid").WithArgs("Starling Personal").
		WillReturnRows(pgxmock.NewRows([]string{"uuid"}).AddRow(a1.String()))
	mock.ExpectExec("DELETE FROM banks").WithArgs("Starling Personal").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	removed, err := store.DeleteBank(context.Background(), "Starling Personal")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a1}, removed)
}

func TestAssignCategory(t *testing.T) {
	store, mock := newMockStore(t)
	catID := uuid.New()

	mock.ExpectQuery("SELECT c.uuid::text").WithArgs("Mandatory", "Food").
		WillReturnRows(pgxmock.NewRows([]string{"uuid"}).AddRow(catID.String()))
	mock.ExpectExec("UPDATE transactions t").WithArgs("Tesco", catID.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := store.AssignCategory(context.Background(), "Tesco", models.Category{GroupName: "Mandatory", Name: "Food"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestAssignCategoryMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT c.uuid::text").WithArgs("Mandatory", "Rent").WillReturnError(pgx.ErrNoRows)

	_, err := store.AssignCategory(context.Background(), "Tesco", models.Category{GroupName: "Mandatory", Name: "Rent"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenameCategoryConflict(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE categories c").WithArgs("Mandatory", "Food", "Energy").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.RenameCategory(context.Background(), models.Category{GroupName: "Mandatory", Name: "Food"}, "Energy")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestDeleteDisplayNameClearsOverride(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM display_names").WithArgs("TESCO 123").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("UPDATE counterparties SET display_name = NULL").WithArgs("TESCO 123").WillReturnResult(pgxmock.NewResult("UPDATE", 4))
	mock.ExpectCommit()

	require.NoError(t, store.DeleteDisplayName(context.Background(), "TESCO 123"))
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(pgx.ErrNoRows), ErrNotFound)

	dup := &pgconn.PgError{Code: "23505"}
	err := mapError(dup)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.ErrorIs(t, err, dup)

	other := errors.New("other")
	assert.Equal(t, other, mapError(other))
}
