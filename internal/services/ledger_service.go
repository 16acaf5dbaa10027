package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/duweku/backend/internal/audit"
	"github.com/duweku/backend/internal/logger"
	"github.com/duweku/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Settlement is the outcome of a confirm: the transactions that moved from
// pending to confirmed and the resulting balances of every touched account.
type Settlement struct {
	Transactions []models.Transaction
	Balances     []models.AccountBalance
	// NegativeAccounts names debited accounts whose balance went below zero.
	// Confirmation still applies; this is only a warning for the user.
	NegativeAccounts []string
}

// LedgerService is the settlement engine. Every confirm runs in one database
// transaction: claim the pending rows, lock the affected accounts in id
// order, apply the deltas, journal every leg in ledger_entries, commit.
type LedgerService struct {
	db    *sql.DB
	audit *audit.Logger
}

func NewLedgerService(db *sql.DB, auditLogger *audit.Logger) *LedgerService {
	if auditLogger == nil {
		auditLogger = audit.NewLogger(zerolog.Nop())
	}
	return &LedgerService{db: db, audit: auditLogger}
}

// Confirm settles a single pending transaction. A transaction that is no
// longer pending yields ErrAlreadyProcessed and leaves balances untouched.
func (s *LedgerService) Confirm(ctx context.Context, workspaceID, id string) (*Settlement, error) {
	return s.settle(ctx, workspaceID, id, "", func(tx *sql.Tx, now time.Time) (*sql.Rows, error) {
		return tx.QueryContext(ctx, `
			UPDATE transactions SET status = 'confirmed', updated_at = $1
			WHERE id = $2 AND workspace_id = $3 AND status = 'pending'
			RETURNING `+transactionColumns,
			now, id, workspaceID)
	})
}

// ConfirmBatch settles every still-pending member of a batch atomically.
func (s *LedgerService) ConfirmBatch(ctx context.Context, workspaceID, batchID string) (*Settlement, error) {
	return s.settle(ctx, workspaceID, "", batchID, func(tx *sql.Tx, now time.Time) (*sql.Rows, error) {
		return tx.QueryContext(ctx, `
			UPDATE transactions SET status = 'confirmed', updated_at = $1
			WHERE batch_id = $2 AND workspace_id = $3 AND status = 'pending'
			RETURNING `+transactionColumns,
			now, batchID, workspaceID)
	})
}

type claimFunc func(tx *sql.Tx, now time.Time) (*sql.Rows, error)

func (s *LedgerService) settle(ctx context.Context, workspaceID, id, batchID string, claim claimFunc) (*Settlement, error) {
	log := logger.FromContext(ctx)

	result, err := s.settleTx(ctx, claim, workspaceID)
	if err != nil {
		if !errors.Is(err, ErrAlreadyProcessed) {
			s.audit.LogError(id, batchID, err)
			log.Error().Err(err).Str("transaction_id", id).Str("batch_id", batchID).Msg("Settlement failed")
		}
		return nil, err
	}

	ids := make([]string, len(result.Transactions))
	for i, t := range result.Transactions {
		ids[i] = t.ID
	}
	s.audit.LogSettlement(ids, batchID, BalanceDeltas(result.Transactions))
	return result, nil
}

func (s *LedgerService) settleTx(ctx context.Context, claim claimFunc, workspaceID string) (*Settlement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	rows, err := claim(tx, now)
	if err != nil {
		return nil, fmt.Errorf("claim pending transactions: %w", err)
	}
	var confirmed []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		confirmed = append(confirmed, *t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(confirmed) == 0 {
		return nil, ErrAlreadyProcessed
	}

	deltas := BalanceDeltas(confirmed)
	accountIDs := make([]string, 0, len(deltas))
	for accountID := range deltas {
		accountIDs = append(accountIDs, accountID)
	}
	// Lock accounts in consistent order to prevent deadlocks
	sort.Strings(accountIDs)

	result := &Settlement{Transactions: confirmed}
	opening := make(map[string]decimal.Decimal, len(accountIDs))
	for _, accountID := range accountIDs {
		account, err := s.lockAccount(ctx, tx, workspaceID, accountID)
		if err != nil {
			return nil, err
		}
		opening[account.ID] = account.Balance

		delta := deltas[accountID]
		newBalance := account.Balance.Add(delta)
		if err := s.updateAccountBalance(ctx, tx, account.ID, newBalance, account.Version, now); err != nil {
			return nil, err
		}

		result.Balances = append(result.Balances, models.AccountBalance{
			AccountID: account.ID,
			Name:      account.Name,
			Balance:   newBalance,
		})
		if delta.IsNegative() && newBalance.IsNegative() {
			result.NegativeAccounts = append(result.NegativeAccounts, account.Name)
		}
	}

	if err := s.journal(ctx, tx, confirmed, opening, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// journal writes one ledger entry per leg, in transaction order, carrying the
// running balance of the account after that leg.
func (s *LedgerService) journal(ctx context.Context, tx *sql.Tx, confirmed []models.Transaction, opening map[string]decimal.Decimal, now time.Time) error {
	running := make(map[string]decimal.Decimal, len(opening))
	for id, balance := range opening {
		running[id] = balance
	}

	for _, t := range confirmed {
		for _, l := range legs(t) {
			running[l.accountID] = running[l.accountID].Add(l.amount)
			entryType := models.EntryCredit
			if l.amount.IsNegative() {
				entryType = models.EntryDebit
			}
			if err := s.createLedgerEntry(ctx, tx, t.ID, l.accountID, l.amount, entryType, running[l.accountID], now); err != nil {
				return fmt.Errorf("write ledger entry for %s: %w", t.ID, err)
			}
		}
	}
	return nil
}

func (s *LedgerService) createLedgerEntry(ctx context.Context, tx *sql.Tx, transactionID, accountID string, amount decimal.Decimal, entryType string, balance decimal.Decimal, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (transaction_id, account_id, amount, entry_type, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		transactionID, accountID, amount, entryType, balance, now)
	return err
}

type leg struct {
	accountID string
	amount    decimal.Decimal
}

// legs lists the signed balance changes one transaction applies.
func legs(t models.Transaction) []leg {
	switch t.Type {
	case models.TransactionTypeIncome:
		return []leg{{t.AccountID, t.Amount}}
	case models.TransactionTypeExpense:
		return []leg{{t.AccountID, t.Amount.Neg()}}
	case models.TransactionTypeTransfer:
		out := []leg{{t.AccountID, t.Amount.Neg()}}
		if t.TransferToAccountID != nil {
			out = append(out, leg{*t.TransferToAccountID, t.Amount})
		}
		return out
	}
	return nil
}

// BalanceDeltas aggregates the balance change each transaction applies per account.
func BalanceDeltas(txs []models.Transaction) map[string]decimal.Decimal {
	deltas := make(map[string]decimal.Decimal)
	for _, t := range txs {
		for _, l := range legs(t) {
			deltas[l.accountID] = deltas[l.accountID].Add(l.amount)
		}
	}
	return deltas
}

func (s *LedgerService) lockAccount(ctx context.Context, tx *sql.Tx, workspaceID, accountID string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, balance, version
		FROM accounts
		WHERE id = $1 AND workspace_id = $2
		FOR UPDATE`, accountID, workspaceID).Scan(&account.ID, &account.Name, &account.Balance, &account.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *LedgerService) updateAccountBalance(ctx context.Context, tx *sql.Tx, accountID string, newBalance decimal.Decimal, version int, now time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, now, accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", accountID)
	}
	return nil
}

// Delete discards a pending transaction. Pending rows never touched a
// balance, so nothing else changes.
func (s *LedgerService) Delete(ctx context.Context, workspaceID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE id = $1 AND workspace_id = $2 AND status = 'pending'`, id, workspaceID)
	if err != nil {
		s.audit.LogError(id, "", err)
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyProcessed
	}
	s.audit.LogDeletion(id, "", int(n))
	return nil
}

// DeleteBatch discards every still-pending member of a batch.
func (s *LedgerService) DeleteBatch(ctx context.Context, workspaceID, batchID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE batch_id = $1 AND workspace_id = $2 AND status = 'pending'`, batchID, workspaceID)
	if err != nil {
		s.audit.LogError("", batchID, err)
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrAlreadyProcessed
	}
	s.audit.LogDeletion("", batchID, int(n))
	return int(n), nil
}
