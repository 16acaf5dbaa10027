package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	domain "github.com/duweku/backend/internal/models"
	"github.com/duweku/backend/internal/services"
)

// Guided transfer:
//
//	/transfer            -> tr_from:<account>
//	tr_from:<account>    -> dialog started, tr_to:<token>:<account>
//	tr_to:<token>:<acct> -> forced-reply amount prompt bound to the dialog
//	reply to the prompt  -> parsed amount, staged without any AI call
func (o *Orchestrator) handleTransferStart(ctx context.Context, s *session) {
	accounts, err := o.deps.Accounts.ActiveAccounts(ctx, s.workspace.ID)
	if err != nil {
		o.fail(ctx, s.chatID, "list accounts", err)
		return
	}
	if len(accounts) < 2 {
		o.send(ctx, s.chatID, msgNeedTwoAccounts, nil)
		return
	}

	keyboard := accountKeyboard(accounts, accountName, func(a domain.Account) string {
		return payload(actionTransferFrom, a.ID)
	})
	o.send(ctx, s.chatID, msgPickFrom, keyboard)
}

func destinationKeyboard(token string, accounts []domain.Account) *models.InlineKeyboardMarkup {
	return accountKeyboard(accounts, accountName, func(a domain.Account) string {
		return payload(actionTransferTo, token, a.ID)
	})
}

func (o *Orchestrator) handleTransferFrom(ctx context.Context, s *session, cb callback) {
	accounts, err := o.deps.Accounts.ActiveAccounts(ctx, s.workspace.ID)
	if err != nil {
		o.answer(ctx, cb.id, "", false)
		o.fail(ctx, s.chatID, "list accounts", err)
		return
	}
	from, ok := findAccount(accounts, cb.arg)
	if !ok {
		o.answer(ctx, cb.id, msgAccountMissing, true)
		return
	}
	targets := excludeAccount(accounts, from.ID)
	if len(targets) == 0 {
		o.answer(ctx, cb.id, msgNeedTwoAccounts, true)
		return
	}

	state, err := o.deps.Dialogs.Start(ctx, services.DialogState{
		Kind:          services.DialogTransfer,
		ChatID:        s.chatID,
		UserID:        s.user.ID,
		WorkspaceID:   s.workspace.ID,
		FromAccountID: from.ID,
	})
	if err != nil {
		o.answer(ctx, cb.id, "", false)
		o.fail(ctx, s.chatID, "start dialog", err)
		return
	}

	o.answer(ctx, cb.id, "", false)
	o.edit(ctx, s.chatID, cb.messageID, fmt.Sprintf(msgPickTo, escape(from.Name)), destinationKeyboard(state.Token, targets))
}

func (o *Orchestrator) handleTransferTo(ctx context.Context, s *session, cb callback) {
	token, accountID, ok := strings.Cut(cb.arg, ":")
	if !ok {
		o.answer(ctx, cb.id, msgUnknownAction, false)
		return
	}

	state, err := o.deps.Dialogs.Load(ctx, token)
	if err == nil && (state.ChatID != s.chatID || state.WorkspaceID != s.workspace.ID) {
		err = services.ErrDialogExpired
	}
	switch {
	case errors.Is(err, services.ErrDialogExpired):
		o.answer(ctx, cb.id, msgDialogExpired, true)
		o.edit(ctx, s.chatID, cb.messageID, msgDialogExpired, nil)
		return
	case err != nil:
		o.answer(ctx, cb.id, "", false)
		o.fail(ctx, s.chatID, "load dialog", err)
		return
	}

	accounts, err := o.deps.Accounts.ActiveAccounts(ctx, s.workspace.ID)
	if err != nil {
		o.answer(ctx, cb.id, "", false)
		o.fail(ctx, s.chatID, "list accounts", err)
		return
	}
	from, okFrom := findAccount(accounts, state.FromAccountID)
	to, okTo := findAccount(accounts, accountID)
	if !okFrom || !okTo {
		o.answer(ctx, cb.id, msgAccountMissing, true)
		return
	}
	if from.ID == to.ID {
		o.answer(ctx, cb.id, msgSameAccount, true)
		return
	}

	if state.Kind == services.DialogRetype {
		o.finishRetype(ctx, s, cb, state, to)
		return
	}

	state.ToAccountID = to.ID
	o.answer(ctx, cb.id, "", false)
	o.edit(ctx, s.chatID, cb.messageID, fmt.Sprintf(msgTransferRoute, escape(from.Name), escape(to.Name)), nil)
	o.promptAmount(ctx, s, state, from, to)
}

// promptAmount sends a forced-reply prompt and binds it to the dialog so the
// reply is correlated by message id.
func (o *Orchestrator) promptAmount(ctx context.Context, s *session, state *services.DialogState, from, to domain.Account) {
	prompt := o.send(ctx, s.chatID, fmt.Sprintf(msgAskAmount, escape(from.Name), escape(to.Name)), &models.ForceReply{
		ForceReply:            true,
		InputFieldPlaceholder: "contoh: 50rb",
	})
	if prompt == nil {
		return
	}
	if err := o.deps.Dialogs.BindPrompt(ctx, state, prompt.ID); err != nil {
		o.fail(ctx, s.chatID, "bind prompt", err)
	}
}

func (o *Orchestrator) finishRetype(ctx context.Context, s *session, cb callback, state *services.DialogState, to domain.Account) {
	toID := to.ID
	tx, err := o.deps.Staging.Retype(ctx, s.workspace.ID, state.TransactionID, domain.TransactionTypeTransfer, &toID)
	switch {
	case isProcessed(err):
		o.answer(ctx, cb.id, msgAlreadyProcessed, false)
		o.finishDialog(ctx, s, state)
		return
	case err != nil:
		o.answer(ctx, cb.id, "", false)
		o.fail(ctx, s.chatID, "retype transaction", err)
		return
	}

	o.finishDialog(ctx, s, state)
	o.answer(ctx, cb.id, "", false)
	o.edit(ctx, s.chatID, cb.messageID, o.view(ctx, s).renderPending(*tx), pendingKeyboard(*tx))
}

// handleTransferAmount completes a guided transfer from the amount reply.
func (o *Orchestrator) handleTransferAmount(ctx context.Context, s *session, state *services.DialogState, text string) {
	if state.Kind != services.DialogTransfer || state.ToAccountID == "" {
		o.send(ctx, s.chatID, msgDialogExpired, nil)
		return
	}

	accounts, err := o.deps.Accounts.ActiveAccounts(ctx, s.workspace.ID)
	if err != nil {
		o.fail(ctx, s.chatID, "list accounts", err)
		return
	}
	from, okFrom := findAccount(accounts, state.FromAccountID)
	to, okTo := findAccount(accounts, state.ToAccountID)
	if !okFrom || !okTo {
		o.finishDialog(ctx, s, state)
		o.send(ctx, s.chatID, msgAccountMissing+" "+msgDialogExpired, nil)
		return
	}

	amount := services.ParseAmount(text)
	if !services.IsValidAmount(amount) {
		o.send(ctx, s.chatID, msgInvalidAmount, nil)
		o.promptAmount(ctx, s, state, from, to)
		return
	}

	desc := fmt.Sprintf("Transfer %s ke %s", from.Name, to.Name)
	toID := to.ID
	staged, err := o.deps.Staging.StagePending(ctx, []domain.Transaction{{
		WorkspaceID:         s.workspace.ID,
		AccountID:           from.ID,
		TransferToAccountID: &toID,
		UserID:              s.user.ID,
		Type:                domain.TransactionTypeTransfer,
		Amount:              amount,
		Description:         &desc,
		Date:                o.now(),
		Source:              domain.SourceManual,
	}})
	if err != nil {
		o.fail(ctx, s.chatID, "stage transfer", err)
		return
	}
	o.finishDialog(ctx, s, state)

	view := newLedgerView(accounts, nil)
	o.send(ctx, s.chatID, view.renderPending(staged[0]), pendingKeyboard(staged[0]))
}

func (o *Orchestrator) finishDialog(ctx context.Context, s *session, state *services.DialogState) {
	if err := o.deps.Dialogs.Finish(ctx, state); err != nil {
		log := sessionLogger(ctx, s)
		log.Warn().Err(err).Str("token", state.Token).Msg("Failed to clear dialog")
	}
}
