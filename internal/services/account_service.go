package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/duweku/backend/internal/audit"
	"github.com/duweku/backend/internal/models"
)

// AccountService reads the accounts and categories a workspace can use and
// manages the default account flag.
type AccountService struct {
	db    *sql.DB
	audit *audit.Logger
}

func NewAccountService(db *sql.DB, auditLogger *audit.Logger) *AccountService {
	if auditLogger == nil {
		auditLogger = audit.NewLogger(zerolog.Nop())
	}
	return &AccountService{db: db, audit: auditLogger}
}

// ActiveAccounts returns active accounts in stable fetch order (creation
// time, then id). The resolver's tie-break depends on this order.
func (s *AccountService) ActiveAccounts(ctx context.Context, workspaceID string) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, type, balance, is_default, is_active, version, created_at, updated_at
		FROM accounts
		WHERE workspace_id = $1 AND is_active = true
		ORDER BY created_at ASC, id ASC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.Name, &a.Type, &a.Balance, &a.IsDefault, &a.IsActive,
			&a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// VisibleCategories returns workspace categories followed by global ones.
func (s *AccountService) VisibleCategories(ctx context.Context, workspaceID string) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, type, is_system
		FROM categories
		WHERE workspace_id = $1 OR workspace_id IS NULL
		ORDER BY workspace_id IS NULL, name ASC, id ASC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Type, &c.IsSystem); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// SetDefaultAccount flags one active account as default and clears the flag
// on every other account of the workspace in a single statement.
func (s *AccountService) SetDefaultAccount(ctx context.Context, workspaceID, accountID string) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var account models.Account
	err = tx.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, type, balance
		FROM accounts
		WHERE id = $1 AND workspace_id = $2 AND is_active = true
		FOR UPDATE`, accountID, workspaceID).
		Scan(&account.ID, &account.WorkspaceID, &account.Name, &account.Type, &account.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET is_default = (id = $1), updated_at = $2
		WHERE workspace_id = $3`, accountID, time.Now(), workspaceID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audit.LogOperation("set_default_account", account.ID, "workspace="+workspaceID)
	account.IsDefault = true
	account.IsActive = true
	return &account, nil
}
