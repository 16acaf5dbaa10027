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

// callback is a button press reduced to what the handlers need.
type callback struct {
	id        string
	chatID    int64
	messageID int
	arg       string
}

func (o *Orchestrator) handleCallback(ctx context.Context, cq *models.CallbackQuery) {
	cb := callback{id: cq.ID, chatID: cq.From.ID}
	if m := cq.Message.Message; m != nil {
		cb.chatID = m.Chat.ID
		cb.messageID = m.ID
	}

	action, arg, _ := strings.Cut(cq.Data, ":")
	cb.arg = arg

	s := o.loadSession(ctx, cb.chatID)
	if s == nil {
		o.answer(ctx, cb.id, "", false)
		return
	}

	log := sessionLogger(ctx, s)
	log.Debug().Str("action", action).Str("arg", arg).Msg("Handling callback")

	switch action {
	case actionConfirm:
		settlement, err := o.deps.Settlement.Confirm(ctx, s.workspace.ID, arg)
		o.finishSettlement(ctx, s, cb, settlement, err)
	case actionConfirmBatch:
		settlement, err := o.deps.Settlement.ConfirmBatch(ctx, s.workspace.ID, arg)
		o.finishSettlement(ctx, s, cb, settlement, err)
	case actionDelete:
		err := o.deps.Settlement.Delete(ctx, s.workspace.ID, arg)
		o.finishDelete(ctx, s, cb, msgDeleted, err)
	case actionDeleteBatch:
		n, err := o.deps.Settlement.DeleteBatch(ctx, s.workspace.ID, arg)
		o.finishDelete(ctx, s, cb, fmt.Sprintf(msgBatchDeleted, n), err)
	case actionSwitchToExpense:
		o.handleSwitchToExpense(ctx, s, cb)
	case actionSwitchToTransfer:
		o.handleSwitchToTransfer(ctx, s, cb)
	case actionSetDefault:
		o.handleSetDefault(ctx, s, cb)
	case actionTransferFrom:
		o.handleTransferFrom(ctx, s, cb)
	case actionTransferTo:
		o.handleTransferTo(ctx, s, cb)
	default:
		o.answer(ctx, cb.id, msgUnknownAction, false)
	}
}

// isProcessed reports errors that mean another delivery already settled or
// removed the transaction.
func isProcessed(err error) bool {
	return errors.Is(err, services.ErrAlreadyProcessed) || errors.Is(err, services.ErrTransactionNotFound)
}

func (o *Orchestrator) finishSettlement(ctx context.Context, s *session, cb callback, settlement *services.Settlement, err error) {
	switch {
	case isProcessed(err):
		o.answer(ctx, cb.id, msgAlreadyProcessed, false)
		return
	case err != nil:
		log := sessionLogger(ctx, s)
		log.Error().Err(err).Str("arg", cb.arg).Msg("Settlement failed")
		o.answer(ctx, cb.id, "❌ Gagal menyimpan", true)
		o.send(ctx, s.chatID, fmt.Sprintf(msgSaveFailed, escape(err.Error())), nil)
		return
	}

	o.answer(ctx, cb.id, msgSaved, false)
	view := o.view(ctx, s)
	o.edit(ctx, s.chatID, cb.messageID, view.renderSettlement(settlement), nil)
}

func (o *Orchestrator) finishDelete(ctx context.Context, s *session, cb callback, done string, err error) {
	switch {
	case isProcessed(err):
		o.answer(ctx, cb.id, msgAlreadyProcessed, false)
		return
	case err != nil:
		o.answer(ctx, cb.id, "", false)
		o.fail(ctx, s.chatID, "delete transaction", err)
		return
	}

	o.answer(ctx, cb.id, done, false)
	o.edit(ctx, s.chatID, cb.messageID, done, nil)
}

// view loads names for rendering; a failed lookup degrades to "?" labels.
func (o *Orchestrator) view(ctx context.Context, s *session) ledgerView {
	accounts, err := o.deps.Accounts.ActiveAccounts(ctx, s.workspace.ID)
	if err != nil {
		log := sessionLogger(ctx, s)
		log.Warn().Err(err).Msg("Failed to load accounts for rendering")
	}
	categories, err := o.deps.Accounts.VisibleCategories(ctx, s.workspace.ID)
	if err != nil {
		log := sessionLogger(ctx, s)
		log.Warn().Err(err).Msg("Failed to load categories for rendering")
	}
	return newLedgerView(accounts, categories)
}

func (o *Orchestrator) handleSwitchToExpense(ctx context.Context, s *session, cb callback) {
	tx, err := o.deps.Staging.Retype(ctx, s.workspace.ID, cb.arg, domain.TransactionTypeExpense, nil)
	switch {
	case isProcessed(err):
		o.answer(ctx, cb.id, msgAlreadyProcessed, false)
		return
	case err != nil:
		o.answer(ctx, cb.id, "", false)
		o.fail(ctx, s.chatID, "retype transaction", err)
		return
	}

	o.answer(ctx, cb.id, "", false)
	o.edit(ctx, s.chatID, cb.messageID, o.view(ctx, s).renderPending(*tx), pendingKeyboard(*tx))
}

// handleSwitchToTransfer asks for the destination; the retype happens once
// the user picks one (see handleTransferTo).
func (o *Orchestrator) handleSwitchToTransfer(ctx context.Context, s *session, cb callback) {
	tx, err := o.deps.Staging.GetPending(ctx, s.workspace.ID, cb.arg)
	switch {
	case isProcessed(err):
		o.answer(ctx, cb.id, msgAlreadyProcessed, false)
		return
	case err != nil:
		o.answer(ctx, cb.id, "", false)
		o.fail(ctx, s.chatID, "load pending transaction", err)
		return
	}

	accounts, err := o.deps.Accounts.ActiveAccounts(ctx, s.workspace.ID)
	if err != nil {
		o.answer(ctx, cb.id, "", false)
		o.fail(ctx, s.chatID, "list accounts", err)
		return
	}
	targets := excludeAccount(accounts, tx.AccountID)
	if len(targets) == 0 {
		o.answer(ctx, cb.id, msgNeedTwoAccounts, true)
		return
	}

	state, err := o.deps.Dialogs.Start(ctx, services.DialogState{
		Kind:          services.DialogRetype,
		ChatID:        s.chatID,
		UserID:        s.user.ID,
		WorkspaceID:   s.workspace.ID,
		FromAccountID: tx.AccountID,
		TransactionID: tx.ID,
	})
	if err != nil {
		o.answer(ctx, cb.id, "", false)
		o.fail(ctx, s.chatID, "start dialog", err)
		return
	}

	from := newLedgerView(accounts, nil).accountName(tx.AccountID)
	o.answer(ctx, cb.id, "", false)
	o.edit(ctx, s.chatID, cb.messageID, fmt.Sprintf(msgPickRetypeDest, escape(from)), destinationKeyboard(state.Token, targets))
}

func (o *Orchestrator) handleSetDefault(ctx context.Context, s *session, cb callback) {
	account, err := o.deps.Accounts.SetDefaultAccount(ctx, s.workspace.ID, cb.arg)
	switch {
	case errors.Is(err, services.ErrAccountNotFound):
		o.answer(ctx, cb.id, msgAccountMissing, true)
		return
	case err != nil:
		o.answer(ctx, cb.id, "", false)
		o.fail(ctx, s.chatID, "set default account", err)
		return
	}

	text := fmt.Sprintf(msgDefaultSet, escape(account.Name))
	o.answer(ctx, cb.id, "⭐ "+account.Name, false)
	o.edit(ctx, s.chatID, cb.messageID, text, nil)
}

func excludeAccount(accounts []domain.Account, id string) []domain.Account {
	out := make([]domain.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}

func findAccount(accounts []domain.Account, id string) (domain.Account, bool) {
	for _, a := range accounts {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Account{}, false
}
