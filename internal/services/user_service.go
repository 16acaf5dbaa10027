package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/duweku/backend/internal/models"
)

const userColumns = `id, email, name, role, ai_mode, ai_api_key, telegram_chat_id, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.AIMode, &u.AIAPIKey, &u.TelegramChatID, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserService maps chat handles to users and users to their workspace.
type UserService struct {
	db *sql.DB
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) FindByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE telegram_chat_id = $1`, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotLinked
	}
	return u, err
}

// LinkChat binds chatID to the user. A chat belongs to at most one user, so
// any previous owner of the chat is unlinked in the same transaction.
func (s *UserService) LinkChat(ctx context.Context, userID string, chatID int64) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET telegram_chat_id = NULL
		WHERE telegram_chat_id = $1 AND id <> $2`, chatID, userID); err != nil {
		return nil, err
	}

	u, err := scanUser(tx.QueryRowContext(ctx, `
		UPDATE users SET telegram_chat_id = $1
		WHERE id = $2
		RETURNING `+userColumns, chatID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return u, nil
}

// WorkspaceFor returns the user's personal workspace, or the first workspace
// they joined when they have no personal one.
func (s *UserService) WorkspaceFor(ctx context.Context, userID string) (*models.Workspace, error) {
	var w models.Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT w.id, w.name, w.type, w.currency
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1
		ORDER BY (w.type = 'personal') DESC, m.created_at ASC
		LIMIT 1`, userID).Scan(&w.ID, &w.Name, &w.Type, &w.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoWorkspace
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
