package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/duweku/backend/internal/logger"
	domain "github.com/duweku/backend/internal/models"
	"github.com/duweku/backend/internal/services"
)

// TelegramAPI is the slice of *bot.Bot the orchestrator talks to.
type TelegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

type Users interface {
	FindByChatID(ctx context.Context, chatID int64) (*domain.User, error)
	LinkChat(ctx context.Context, userID string, chatID int64) (*domain.User, error)
	WorkspaceFor(ctx context.Context, userID string) (*domain.Workspace, error)
}

type LinkVerifier interface {
	VerifyLinkToken(ctx context.Context, code string) (string, error)
}

type Accounts interface {
	ActiveAccounts(ctx context.Context, workspaceID string) ([]domain.Account, error)
	VisibleCategories(ctx context.Context, workspaceID string) ([]domain.Category, error)
	SetDefaultAccount(ctx context.Context, workspaceID, accountID string) (*domain.Account, error)
}

type Staging interface {
	StagePending(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error)
	GetPending(ctx context.Context, workspaceID, id string) (*domain.Transaction, error)
	Retype(ctx context.Context, workspaceID, id, newType string, toAccountID *string) (*domain.Transaction, error)
	RecentTransactions(ctx context.Context, workspaceID string, limit int) ([]domain.TransactionSummary, error)
}

type Settlement interface {
	Confirm(ctx context.Context, workspaceID, id string) (*services.Settlement, error)
	ConfirmBatch(ctx context.Context, workspaceID, batchID string) (*services.Settlement, error)
	Delete(ctx context.Context, workspaceID, id string) error
	DeleteBatch(ctx context.Context, workspaceID, batchID string) (int, error)
}

type Extractor interface {
	Extract(ctx context.Context, in services.ExtractionInput) (*services.ExtractionResult, error)
}

type Dialogs interface {
	Start(ctx context.Context, state services.DialogState) (*services.DialogState, error)
	Load(ctx context.Context, token string) (*services.DialogState, error)
	BindPrompt(ctx context.Context, state *services.DialogState, messageID int) error
	LookupPrompt(ctx context.Context, chatID int64, messageID int) (*services.DialogState, error)
	Finish(ctx context.Context, state *services.DialogState) error
}

type Deduper interface {
	MarkProcessed(ctx context.Context, updateID int64) (bool, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type ReceiptArchiver interface {
	Archive(ctx context.Context, workspaceID, fileID string, data []byte) string
}

// Deps groups the collaborators of the orchestrator. Dedup, Voice and
// Receipts are optional.
type Deps struct {
	Users      Users
	Links      LinkVerifier
	Accounts   Accounts
	Staging    Staging
	Settlement Settlement
	Extractor  Extractor
	Dialogs    Dialogs
	Dedup      Deduper
	Voice      Transcriber
	Receipts   ReceiptArchiver
}

// Orchestrator turns Telegram updates into ledger operations. It holds no
// per-chat state; everything a dialog needs travels in callback payloads or
// the dialog store.
type Orchestrator struct {
	tg   TelegramAPI
	deps Deps

	botUsername string
	download    func(ctx context.Context, url string) ([]byte, error)
	now         func() time.Time
}

func NewOrchestrator(tg TelegramAPI, deps Deps, botUsername string) *Orchestrator {
	return &Orchestrator{
		tg:          tg,
		deps:        deps,
		botUsername: botUsername,
		download:    httpDownload,
		now:         time.Now,
	}
}

// session is the linked identity behind a chat.
type session struct {
	chatID    int64
	user      *domain.User
	workspace *domain.Workspace
}

// HandleUpdate processes one update. It never panics and never returns an
// error: every failure becomes a chat message or a log line.
func (o *Orchestrator) HandleUpdate(ctx context.Context, update *models.Update) {
	if update == nil {
		return
	}

	log := logger.FromContext(ctx).With().Int64("update_id", update.ID).Logger()
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic while handling update")
			if chatID := chatOf(update); chatID != 0 {
				o.send(ctx, chatID, msgInternalError, nil)
			}
		}
	}()

	if o.deps.Dedup != nil {
		fresh, err := o.deps.Dedup.MarkProcessed(ctx, update.ID)
		if err != nil {
			log.Warn().Err(err).Msg("Dedup check failed, processing anyway")
		} else if !fresh {
			log.Info().Msg("Skipping duplicate update")
			return
		}
	}

	switch {
	case update.CallbackQuery != nil:
		o.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		o.handleMessage(ctx, update.Message)
	default:
		log.Debug().Msg("Ignoring unsupported update")
	}
}

func chatOf(update *models.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
		return update.CallbackQuery.Message.Message.Chat.ID
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

// loadSession resolves the chat to its linked user and workspace. When it
// returns nil the user has already been told why.
func (o *Orchestrator) loadSession(ctx context.Context, chatID int64) *session {
	user, err := o.deps.Users.FindByChatID(ctx, chatID)
	if errors.Is(err, services.ErrChatNotLinked) {
		o.send(ctx, chatID, msgNotLinked, nil)
		return nil
	}
	if err != nil {
		o.fail(ctx, chatID, "find linked user", err)
		return nil
	}

	ws, err := o.deps.Users.WorkspaceFor(ctx, user.ID)
	if errors.Is(err, services.ErrNoWorkspace) {
		o.send(ctx, chatID, msgNoWorkspace, nil)
		return nil
	}
	if err != nil {
		o.fail(ctx, chatID, "find workspace", err)
		return nil
	}

	return &session{chatID: chatID, user: user, workspace: ws}
}

func (o *Orchestrator) send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) *models.Message {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}

	msg, err := o.tg.SendMessage(ctx, params)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
		return nil
	}
	return msg
}

// edit rewrites a message in place, falling back to a new message when there
// is nothing to edit.
func (o *Orchestrator) edit(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) {
	if messageID == 0 {
		o.send(ctx, chatID, text, markup)
		return
	}

	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := o.tg.EditMessageText(ctx, params); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Int64("chat_id", chatID).Int("message_id", messageID).Msg("Failed to edit message, sending new one")
		o.send(ctx, chatID, text, markup)
	}
}

func (o *Orchestrator) answer(ctx context.Context, callbackID, text string, alert bool) {
	_, err := o.tg.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Failed to answer callback query")
	}
}

// fail logs an unexpected error and tells the user something went wrong.
func (o *Orchestrator) fail(ctx context.Context, chatID int64, op string, err error) {
	log := logger.FromContext(ctx)
	log.Error().Err(err).Int64("chat_id", chatID).Str("op", op).Msg("Bot operation failed")
	o.send(ctx, chatID, fmt.Sprintf(msgOperationFailed, escape(err.Error())), nil)
}

func (o *Orchestrator) fetchFile(ctx context.Context, fileID string) ([]byte, error) {
	f, err := o.tg.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return o.download(ctx, o.tg.FileDownloadLink(f))
}

func httpDownload(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}

func sessionLogger(ctx context.Context, s *session) zerolog.Logger {
	return logger.FromContext(ctx).With().
		Int64("chat_id", s.chatID).
		Str("user_id", s.user.ID).
		Str("workspace_id", s.workspace.ID).
		Logger()
}

func (o *Orchestrator) chatLogger(ctx context.Context, chatID int64) zerolog.Logger {
	return logger.FromContext(ctx).With().Int64("chat_id", chatID).Logger()
}
