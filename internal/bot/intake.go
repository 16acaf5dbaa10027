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

// intake is one piece of user input on its way to the extraction call.
type intake struct {
	requestType   string
	source        string
	text          string
	images        []services.Image
	receiptObject string
	progress      *models.Message
}

func messageID(m *models.Message) int {
	if m == nil {
		return 0
	}
	return m.ID
}

func (o *Orchestrator) handleMessage(ctx context.Context, msg *models.Message) {
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		o.handleCommand(ctx, msg, text)
		return
	}
	if text == "" && len(msg.Photo) == 0 && msg.Voice == nil {
		return
	}

	s := o.loadSession(ctx, msg.Chat.ID)
	if s == nil {
		return
	}

	switch {
	case len(msg.Photo) > 0:
		o.handlePhoto(ctx, s, msg)
	case msg.Voice != nil:
		o.handleVoice(ctx, s, msg)
	default:
		o.handleText(ctx, s, msg, text)
	}
}

// handleText checks for a reply to a dialog prompt before falling back to
// free-text extraction.
func (o *Orchestrator) handleText(ctx context.Context, s *session, msg *models.Message, text string) {
	if msg.ReplyToMessage != nil {
		state, err := o.deps.Dialogs.LookupPrompt(ctx, s.chatID, msg.ReplyToMessage.ID)
		switch {
		case err == nil && state.WorkspaceID == s.workspace.ID:
			o.handleTransferAmount(ctx, s, state, text)
			return
		case err != nil && !errors.Is(err, services.ErrDialogExpired):
			log := sessionLogger(ctx, s)
			log.Warn().Err(err).Msg("Failed to look up dialog prompt")
		}
	}

	progress := o.send(ctx, s.chatID, msgReading, nil)
	o.extractAndStage(ctx, s, intake{
		requestType: "text",
		source:      domain.SourceChatText,
		text:        text,
		progress:    progress,
	})
}

func (o *Orchestrator) handlePhoto(ctx context.Context, s *session, msg *models.Message) {
	progress := o.send(ctx, s.chatID, msgReadingReceipt, nil)
	photo := largestPhoto(msg.Photo)

	data, err := o.fetchFile(ctx, photo.FileID)
	if err != nil {
		log := sessionLogger(ctx, s)
		log.Error().Err(err).Str("file_id", photo.FileID).Msg("Failed to download photo")
		o.edit(ctx, s.chatID, messageID(progress), msgDownloadFailed, nil)
		return
	}

	var receiptObject string
	if o.deps.Receipts != nil {
		receiptObject = o.deps.Receipts.Archive(ctx, s.workspace.ID, photo.FileUniqueID, data)
	}

	o.extractAndStage(ctx, s, intake{
		requestType:   "image",
		source:        domain.SourceChatImage,
		text:          strings.TrimSpace(msg.Caption),
		images:        []services.Image{{MIMEType: "image/jpeg", Data: data}},
		receiptObject: receiptObject,
		progress:      progress,
	})
}

// largestPhoto picks the highest-resolution variant Telegram sent.
func largestPhoto(sizes []models.PhotoSize) models.PhotoSize {
	best := sizes[0]
	for _, p := range sizes[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best
}

func (o *Orchestrator) handleVoice(ctx context.Context, s *session, msg *models.Message) {
	if o.deps.Voice == nil {
		o.send(ctx, s.chatID, msgVoiceDisabled, nil)
		return
	}

	progress := o.send(ctx, s.chatID, msgListening, nil)
	data, err := o.fetchFile(ctx, msg.Voice.FileID)
	if err != nil {
		log := sessionLogger(ctx, s)
		log.Error().Err(err).Str("file_id", msg.Voice.FileID).Msg("Failed to download voice note")
		o.edit(ctx, s.chatID, messageID(progress), msgDownloadFailed, nil)
		return
	}

	text, err := o.deps.Voice.Transcribe(ctx, data)
	switch {
	case errors.Is(err, services.ErrVoiceUnavailable):
		o.edit(ctx, s.chatID, messageID(progress), msgVoiceDisabled, nil)
		return
	case err != nil:
		log := sessionLogger(ctx, s)
		log.Warn().Err(err).Msg("Voice transcription failed")
		o.edit(ctx, s.chatID, messageID(progress), msgEmptyVoice, nil)
		return
	}

	o.extractAndStage(ctx, s, intake{
		requestType: "voice",
		source:      domain.SourceChatVoice,
		text:        text,
		progress:    progress,
	})
}

// extractAndStage runs extraction, resolves every proposed transaction and
// stages them as pending. Nothing is staged unless every item resolves.
func (o *Orchestrator) extractAndStage(ctx context.Context, s *session, in intake) {
	log := sessionLogger(ctx, s)
	progressID := messageID(in.progress)
	reply := func(text string) { o.edit(ctx, s.chatID, progressID, text, nil) }

	accounts, err := o.deps.Accounts.ActiveAccounts(ctx, s.workspace.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load accounts")
		reply(fmt.Sprintf(msgOperationFailed, escape(err.Error())))
		return
	}
	if len(accounts) == 0 {
		reply(msgNoAccount)
		return
	}
	categories, err := o.deps.Accounts.VisibleCategories(ctx, s.workspace.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load categories")
		reply(fmt.Sprintf(msgOperationFailed, escape(err.Error())))
		return
	}

	result, err := o.deps.Extractor.Extract(ctx, services.ExtractionInput{
		User:        s.user,
		RequestType: in.requestType,
		Text:        in.text,
		Images:      in.images,
		Accounts:    accounts,
		Categories:  categories,
		Today:       o.now(),
	})
	switch {
	case errors.Is(err, services.ErrExtractionTimeout):
		reply(msgTimeout)
		return
	case errors.Is(err, services.ErrMissingAPIKey):
		reply(msgMissingKey)
		return
	case err != nil:
		log.Error().Err(err).Msg("Extraction failed")
		reply(fmt.Sprintf(msgOperationFailed, escape(err.Error())))
		return
	}

	switch result.Kind {
	case services.ResultNotTransaction:
		if result.Reply != "" {
			reply(escape(result.Reply))
		} else {
			reply(msgNotTransaction)
		}
		return
	case services.ResultMalformed:
		reply(msgMalformed)
		return
	}

	drafts := make([]domain.Transaction, 0, len(result.Transactions))
	for _, ex := range result.Transactions {
		if !services.IsValidAmount(ex.Amount) {
			reply(msgInvalidAmount)
			return
		}

		res, err := services.Resolve(accounts, categories, ex)
		switch {
		case errors.Is(err, services.ErrDestinationNotFound):
			reply(fmt.Sprintf(msgUnknownDest, escape(ex.ToAccountGuess), escape(accountList(accounts))))
			return
		case errors.Is(err, services.ErrNoAccounts):
			reply(msgNoAccount)
			return
		case err != nil:
			reply(fmt.Sprintf(msgOperationFailed, escape(err.Error())))
			return
		}

		drafts = append(drafts, draftFrom(s, ex, res, in))
	}

	staged, err := o.deps.Staging.StagePending(ctx, drafts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to stage transactions")
		reply(fmt.Sprintf(msgOperationFailed, escape(err.Error())))
		return
	}
	log.Info().Int("count", len(staged)).Str("source", in.source).Msg("Staged pending transactions")

	view := newLedgerView(accounts, categories)
	if len(staged) == 1 {
		o.edit(ctx, s.chatID, progressID, view.renderPending(staged[0]), pendingKeyboard(staged[0]))
		return
	}
	o.edit(ctx, s.chatID, progressID, view.renderBatch(staged), batchKeyboard(*staged[0].BatchID))
}

func draftFrom(s *session, ex services.ExtractedTransaction, res *services.Resolution, in intake) domain.Transaction {
	tx := domain.Transaction{
		WorkspaceID: s.workspace.ID,
		AccountID:   res.Account.ID,
		UserID:      s.user.ID,
		Type:        ex.Type,
		Amount:      ex.Amount,
		Date:        ex.Date,
		Source:      in.source,
	}
	if ex.Description != "" {
		desc := ex.Description
		tx.Description = &desc
	}
	if res.ToAccount != nil {
		to := res.ToAccount.ID
		tx.TransferToAccountID = &to
	}
	if res.Category != nil && ex.Type != domain.TransactionTypeTransfer {
		cat := res.Category.ID
		tx.CategoryID = &cat
	}
	if in.receiptObject != "" {
		obj := in.receiptObject
		tx.ReceiptObject = &obj
	}
	return tx
}

func accountList(accounts []domain.Account) string {
	names := make([]string, len(accounts))
	for i, a := range accounts {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
