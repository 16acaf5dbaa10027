package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/duweku/backend/internal/logger"
	"github.com/duweku/backend/internal/models"
	"github.com/google/uuid"
)

const transactionColumns = `id, workspace_id, account_id, transfer_to_account_id, category_id, user_id, type, amount, description, date, source, status, batch_id, receipt_object, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.AccountID, &t.TransferToAccountID, &t.CategoryID, &t.UserID,
		&t.Type, &t.Amount, &t.Description, &t.Date, &t.Source, &t.Status, &t.BatchID, &t.ReceiptObject,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TransactionService stages extracted transactions and serves pending reads.
// It never touches account balances.
type TransactionService struct {
	db *sql.DB
}

func NewTransactionService(db *sql.DB) *TransactionService {
	return &TransactionService{db: db}
}

func validateStaged(t models.Transaction) error {
	if !IsValidAmount(t.Amount) {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	if t.WorkspaceID == "" || t.AccountID == "" || t.UserID == "" {
		return fmt.Errorf("%w: workspace, account and user are required", ErrInvalidTransaction)
	}
	switch t.Type {
	case models.TransactionTypeTransfer:
		if t.TransferToAccountID == nil || *t.TransferToAccountID == "" {
			return fmt.Errorf("%w: transfer needs a destination account", ErrInvalidTransaction)
		}
		if *t.TransferToAccountID == t.AccountID {
			return fmt.Errorf("%w: transfer destination must differ from source", ErrInvalidTransaction)
		}
		if t.CategoryID != nil {
			return fmt.Errorf("%w: transfer cannot have a category", ErrInvalidTransaction)
		}
	case models.TransactionTypeIncome, models.TransactionTypeExpense:
		if t.TransferToAccountID != nil {
			return fmt.Errorf("%w: only transfers have a destination account", ErrInvalidTransaction)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, t.Type)
	}
	return nil
}

// StagePending inserts the transactions as pending in one database
// transaction. More than one row shares a fresh batch id.
func (s *TransactionService) StagePending(ctx context.Context, txs []models.Transaction) ([]models.Transaction, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: nothing to stage", ErrInvalidTransaction)
	}
	for i := range txs {
		if err := validateStaged(txs[i]); err != nil {
			return nil, err
		}
	}

	var batchID *string
	if len(txs) > 1 {
		id := uuid.New().String()
		batchID = &id
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	now := time.Now()
	staged := make([]models.Transaction, len(txs))
	for i, t := range txs {
		t.ID = uuid.New().String()
		t.Status = models.StatusPending
		t.BatchID = batchID
		t.CreatedAt = now
		t.UpdatedAt = now
		if t.Date.IsZero() {
			t.Date = now
		}

		_, err := dbTx.ExecContext(ctx, `
			INSERT INTO transactions (`+transactionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			t.ID, t.WorkspaceID, t.AccountID, t.TransferToAccountID, t.CategoryID, t.UserID,
			t.Type, t.Amount, t.Description, t.Date.Format(models.DateLayout), t.Source, t.Status, t.BatchID, t.ReceiptObject,
			t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("stage transaction %d: %w", i+1, err)
		}
		staged[i] = t
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	event := log.Info().Int("count", len(staged)).Str("workspace_id", staged[0].WorkspaceID)
	if batchID != nil {
		event = event.Str("batch_id", *batchID)
	}
	event.Msg("Staged pending transactions")

	return staged, nil
}

// GetPending loads a transaction of the workspace and requires it to be pending.
func (s *TransactionService) GetPending(ctx context.Context, workspaceID, id string) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1 AND workspace_id = $2`, id, workspaceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !t.IsPending() {
		return nil, ErrAlreadyProcessed
	}
	return t, nil
}

// Retype relabels a pending transaction. A transfer needs a destination
// distinct from the source; any category is cleared.
func (s *TransactionService) Retype(ctx context.Context, workspaceID, id, newType string, toAccountID *string) (*models.Transaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	current, err := scanTransaction(dbTx.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1 AND workspace_id = $2
		FOR UPDATE`, id, workspaceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !current.IsPending() {
		return nil, ErrAlreadyProcessed
	}

	next := *current
	next.Type = newType
	next.TransferToAccountID = toAccountID
	next.CategoryID = nil
	if err := validateStaged(next); err != nil {
		return nil, err
	}

	next.UpdatedAt = time.Now()
	_, err = dbTx.ExecContext(ctx, `
		UPDATE transactions
		SET type = $1, transfer_to_account_id = $2, category_id = NULL, updated_at = $3
		WHERE id = $4 AND status = 'pending'`,
		next.Type, next.TransferToAccountID, next.UpdatedAt, next.ID)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}
	return &next, nil
}

// RecentTransactions lists the latest confirmed transactions of a workspace.
func (s *TransactionService) RecentTransactions(ctx context.Context, workspaceID string, limit int) ([]models.TransactionSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.type, t.amount, t.description, t.date, t.status,
			a.name, COALESCE(ta.name, ''), COALESCE(c.name, '')
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		LEFT JOIN accounts ta ON ta.id = t.transfer_to_account_id
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.workspace_id = $1 AND t.status = 'confirmed'
		ORDER BY t.date DESC, t.created_at DESC
		LIMIT $2`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.TransactionSummary
	for rows.Next() {
		var sum models.TransactionSummary
		if err := rows.Scan(&sum.ID, &sum.Type, &sum.Amount, &sum.Description, &sum.Date, &sum.Status,
			&sum.AccountName, &sum.ToAccountName, &sum.CategoryName); err != nil {
			return nil, err
		}
		sum.WorkspaceID = workspaceID
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}
