package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	domain "github.com/duweku/backend/internal/models"
)

const historyLimit = 10

// parseCommand splits "/cmd@BotName args" into "cmd" and "args".
func parseCommand(text, botUsername string) (string, string) {
	head, args, _ := strings.Cut(text, " ")
	cmd := strings.TrimPrefix(head, "/")
	if name, target, ok := strings.Cut(cmd, "@"); ok {
		if botUsername != "" && !strings.EqualFold(target, botUsername) {
			return "", ""
		}
		cmd = name
	}
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

func (o *Orchestrator) handleCommand(ctx context.Context, msg *models.Message, text string) {
	chatID := msg.Chat.ID
	cmd, args := parseCommand(text, o.botUsername)

	switch cmd {
	case "":
		return
	case "start":
		o.handleStart(ctx, msg, args)
		return
	case "help":
		o.send(ctx, chatID, msgHelp, nil)
		return
	}

	s := o.loadSession(ctx, chatID)
	if s == nil {
		return
	}

	switch cmd {
	case "info":
		o.handleInfo(ctx, s)
	case "saldo":
		o.handleBalances(ctx, s)
	case "transaksi":
		o.handleHistory(ctx, s)
	case "transfer":
		o.handleTransferStart(ctx, s)
	case "gantisaldo":
		o.handleDefaultPicker(ctx, s)
	default:
		o.send(ctx, chatID, msgUnknownCommand, nil)
	}
}

// handleStart links the chat when a token is present, otherwise greets.
func (o *Orchestrator) handleStart(ctx context.Context, msg *models.Message, token string) {
	chatID := msg.Chat.ID

	if token == "" {
		user, err := o.deps.Users.FindByChatID(ctx, chatID)
		if err != nil {
			o.send(ctx, chatID, msgLinkInstructions, nil)
			return
		}
		o.send(ctx, chatID, fmt.Sprintf(msgWelcome, escape(user.Name)), nil)
		return
	}

	userID, err := o.deps.Links.VerifyLinkToken(ctx, token)
	if err != nil {
		log := o.chatLogger(ctx, chatID)
		log.Info().Err(err).Msg("Rejected link token")
		o.send(ctx, chatID, msgInvalidLink, nil)
		return
	}

	user, err := o.deps.Users.LinkChat(ctx, userID, chatID)
	if err != nil {
		log := o.chatLogger(ctx, chatID)
		log.Warn().Err(err).Msg("Failed to link chat")
		o.send(ctx, chatID, msgInvalidLink, nil)
		return
	}

	log := o.chatLogger(ctx, chatID)
	log.Info().Str("user_id", user.ID).Msg("Linked Telegram chat")
	o.send(ctx, chatID, fmt.Sprintf(msgLinked, escape(user.Name)), nil)
}

func (o *Orchestrator) handleInfo(ctx context.Context, s *session) {
	mode := "kunci server"
	if s.user.AIMode == domain.AIModeBYOK {
		mode = "kunci pribadi (BYOK)"
	}

	text := fmt.Sprintf("ℹ️ <b>Info akun</b>\n\n<b>Nama:</b> %s\n<b>Email:</b> %s\n<b>Workspace:</b> %s (%s)\n<b>Mata uang:</b> %s\n<b>Mode AI:</b> %s",
		escape(s.user.Name), escape(s.user.Email),
		escape(s.workspace.Name), escape(s.workspace.Type),
		escape(s.workspace.Currency), mode)
	o.send(ctx, s.chatID, text, nil)
}

func (o *Orchestrator) handleBalances(ctx context.Context, s *session) {
	accounts, err := o.deps.Accounts.ActiveAccounts(ctx, s.workspace.ID)
	if err != nil {
		o.fail(ctx, s.chatID, "list balances", err)
		return
	}
	if len(accounts) == 0 {
		o.send(ctx, s.chatID, msgNoAccount, nil)
		return
	}
	o.send(ctx, s.chatID, renderBalances(accounts), nil)
}

func (o *Orchestrator) handleHistory(ctx context.Context, s *session) {
	items, err := o.deps.Staging.RecentTransactions(ctx, s.workspace.ID, historyLimit)
	if err != nil {
		o.fail(ctx, s.chatID, "list transactions", err)
		return
	}
	if len(items) == 0 {
		o.send(ctx, s.chatID, msgNoHistory, nil)
		return
	}
	o.send(ctx, s.chatID, renderHistory(items), nil)
}

func (o *Orchestrator) handleDefaultPicker(ctx context.Context, s *session) {
	accounts, err := o.deps.Accounts.ActiveAccounts(ctx, s.workspace.ID)
	if err != nil {
		o.fail(ctx, s.chatID, "list accounts", err)
		return
	}
	if len(accounts) == 0 {
		o.send(ctx, s.chatID, msgNoAccount, nil)
		return
	}

	keyboard := accountKeyboard(accounts,
		func(a domain.Account) string {
			if a.IsDefault {
				return "⭐ " + a.Name
			}
			return a.Name
		},
		func(a domain.Account) string { return payload(actionSetDefault, a.ID) })
	o.send(ctx, s.chatID, msgPickDefault, keyboard)
}
