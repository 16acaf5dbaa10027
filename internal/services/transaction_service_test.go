package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/duweku/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transactionRowColumns = []string{"id", "workspace_id", "account_id", "transfer_to_account_id", "category_id", "user_id",
	"type", "amount", "description", "date", "source", "status", "batch_id", "receipt_object", "created_at", "updated_at"}

func transactionRow(rows *sqlmock.Rows, id, txType, amount, status string, toAccount any) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "ws-1", "acc-1", toAccount, nil, "user-1", txType, amount, "Beli kopi",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "chat-text", status, nil, nil, now, now)
}

// sameArg matches whatever value it sees first and then requires every
// later use to carry the same value.
type sameArg struct {
	seen  bool
	value driver.Value
}

func (a *sameArg) Match(v driver.Value) bool {
	if v == nil {
		return false
	}
	if !a.seen {
		a.seen, a.value = true, v
		return true
	}
	return a.value == v
}

func expenseDraft(amount int64) models.Transaction {
	desc := "Beli kopi"
	cat := "cat-1"
	return models.Transaction{
		WorkspaceID: "ws-1",
		AccountID:   "acc-1",
		CategoryID:  &cat,
		UserID:      "user-1",
		Type:        models.TransactionTypeExpense,
		Amount:      decimal.NewFromInt(amount),
		Description: &desc,
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Source:      models.SourceChatText,
	}
}

func TestTransactionService_StagePending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	ctx := context.Background()

	t.Run("single transaction has no batch id", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "ws-1", "acc-1", nil, "cat-1", "user-1", "expense", decimal.NewFromInt(20000),
				"Beli kopi", "2024-01-01", "chat-text", "pending", nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		staged, err := service.StagePending(ctx, []models.Transaction{expenseDraft(20000)})
		require.NoError(t, err)
		require.Len(t, staged, 1)
		assert.NotEmpty(t, staged[0].ID)
		assert.Nil(t, staged[0].BatchID)
		assert.Equal(t, models.StatusPending, staged[0].Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("multiple transactions share one batch id", func(t *testing.T) {
		batch := &sameArg{}
		mock.ExpectBegin()
		for i := 0; i < 3; i++ {
			mock.ExpectExec("INSERT INTO transactions").
				WithArgs(sqlmock.AnyArg(), "ws-1", "acc-1", nil, "cat-1", "user-1", "expense", sqlmock.AnyArg(),
					"Beli kopi", "2024-01-01", "chat-text", "pending", batch, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
		}
		mock.ExpectCommit()

		staged, err := service.StagePending(ctx, []models.Transaction{expenseDraft(1000), expenseDraft(2000), expenseDraft(3000)})
		require.NoError(t, err)
		require.Len(t, staged, 3)
		require.NotNil(t, staged[0].BatchID)
		assert.Equal(t, *staged[0].BatchID, *staged[2].BatchID)
		assert.NotEqual(t, staged[0].ID, staged[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back the whole batch", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO transactions").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO transactions").WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := service.StagePending(ctx, []models.Transaction{expenseDraft(1000), expenseDraft(2000)})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid drafts never reach the database", func(t *testing.T) {
		zero := expenseDraft(0)
		subCent := expenseDraft(0)
		subCent.Amount = decimal.RequireFromString("0.004")

		src := "acc-1"
		sameAccount := expenseDraft(1000)
		sameAccount.Type = models.TransactionTypeTransfer
		sameAccount.CategoryID = nil
		sameAccount.TransferToAccountID = &src

		noDest := expenseDraft(1000)
		noDest.Type = models.TransactionTypeTransfer
		noDest.CategoryID = nil

		dest := "acc-2"
		withCategory := expenseDraft(1000)
		withCategory.Type = models.TransactionTypeTransfer
		withCategory.TransferToAccountID = &dest

		for _, draft := range []models.Transaction{zero, subCent, sameAccount, noDest, withCategory} {
			_, err := service.StagePending(ctx, []models.Transaction{draft})
			assert.True(t, errors.Is(err, ErrInvalidTransaction))
		}
		_, err := service.StagePending(ctx, nil)
		assert.True(t, errors.Is(err, ErrInvalidTransaction))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionService_GetPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	ctx := context.Background()

	t.Run("pending transaction", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1 AND workspace_id = \\$2").
			WithArgs("tx-1", "ws-1").
			WillReturnRows(transactionRow(sqlmock.NewRows(transactionRowColumns), "tx-1", "expense", "20000", "pending", nil))

		tx, err := service.GetPending(ctx, "ws-1", "tx-1")
		require.NoError(t, err)
		assert.Equal(t, "tx-1", tx.ID)
		assert.True(t, decimal.NewFromInt(20000).Equal(tx.Amount))
		assert.Equal(t, "Beli kopi", tx.DescriptionText())
		assert.Nil(t, tx.TransferToAccountID)
	})

	t.Run("confirmed transaction", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("tx-1", "ws-1").
			WillReturnRows(transactionRow(sqlmock.NewRows(transactionRowColumns), "tx-1", "expense", "20000", "confirmed", nil))

		_, err := service.GetPending(ctx, "ws-1", "tx-1")
		assert.True(t, errors.Is(err, ErrAlreadyProcessed))
	})

	t.Run("missing transaction", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("tx-9", "ws-1").
			WillReturnRows(sqlmock.NewRows(transactionRowColumns))

		_, err := service.GetPending(ctx, "ws-1", "tx-9")
		assert.True(t, errors.Is(err, ErrTransactionNotFound))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionService_Retype(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)
	ctx := context.Background()

	t.Run("expense to transfer", func(t *testing.T) {
		dest := "acc-2"
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id = \\$1 AND workspace_id = \\$2 FOR UPDATE").
			WithArgs("tx-1", "ws-1").
			WillReturnRows(transactionRow(sqlmock.NewRows(transactionRowColumns), "tx-1", "expense", "20000", "pending", nil))
		mock.ExpectExec("UPDATE transactions SET type = \\$1, transfer_to_account_id = \\$2, category_id = NULL").
			WithArgs("transfer", "acc-2", sqlmock.AnyArg(), "tx-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := service.Retype(ctx, "ws-1", "tx-1", models.TransactionTypeTransfer, &dest)
		require.NoError(t, err)
		assert.Equal(t, "transfer", tx.Type)
		assert.Equal(t, "acc-2", *tx.TransferToAccountID)
		assert.Nil(t, tx.CategoryID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transfer back to expense", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("tx-1", "ws-1").
			WillReturnRows(transactionRow(sqlmock.NewRows(transactionRowColumns), "tx-1", "transfer", "20000", "pending", "acc-2"))
		mock.ExpectExec("UPDATE transactions").
			WithArgs("expense", nil, sqlmock.AnyArg(), "tx-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := service.Retype(ctx, "ws-1", "tx-1", models.TransactionTypeExpense, nil)
		require.NoError(t, err)
		assert.Nil(t, tx.TransferToAccountID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already confirmed", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("tx-1", "ws-1").
			WillReturnRows(transactionRow(sqlmock.NewRows(transactionRowColumns), "tx-1", "expense", "20000", "confirmed", nil))
		mock.ExpectRollback()

		_, err := service.Retype(ctx, "ws-1", "tx-1", models.TransactionTypeExpense, nil)
		assert.True(t, errors.Is(err, ErrAlreadyProcessed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transfer onto its own source", func(t *testing.T) {
		src := "acc-1"
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("tx-1", "ws-1").
			WillReturnRows(transactionRow(sqlmock.NewRows(transactionRowColumns), "tx-1", "expense", "20000", "pending", nil))
		mock.ExpectRollback()

		_, err := service.Retype(ctx, "ws-1", "tx-1", models.TransactionTypeTransfer, &src)
		assert.True(t, errors.Is(err, ErrInvalidTransaction))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionService_RecentTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewTransactionService(db)

	mock.ExpectQuery("SELECT (.+) FROM transactions t JOIN accounts a").
		WithArgs("ws-1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "amount", "description", "date", "status", "account", "to_account", "category"}).
			AddRow("tx-1", "expense", "20000", "Beli kopi", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "confirmed", "Tunai", "", "Makanan & Minuman").
			AddRow("tx-2", "transfer", "50000", nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "confirmed", "Tunai", "Bank BCA", ""))

	list, err := service.RecentTransactions(context.Background(), "ws-1", 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Makanan & Minuman", list[0].CategoryName)
	assert.Equal(t, "Bank BCA", list[1].ToAccountName)
	assert.Nil(t, list[1].Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}
