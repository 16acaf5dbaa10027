package bot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"

	domain "github.com/duweku/backend/internal/models"
	"github.com/duweku/backend/internal/services"
)

const (
	testChatID    int64 = 4242
	accTunai            = "acc-tunai"
	accBCA              = "acc-bca"
	catFood             = "cat-food"
	catSalary           = "cat-salary"
	validLinkToken      = "good-token"
)

// fakeStore is an in-memory workspace standing in for the postgres-backed
// services.
type fakeStore struct {
	mu         sync.Mutex
	users      map[string]*domain.User
	workspace  domain.Workspace
	accounts   []domain.Account
	categories []domain.Category
	txs        map[string]*domain.Transaction
	order      []string
	nextTx     int
	nextBatch  int

	failConfirm error
}

func newFakeStore() *fakeStore {
	chat := testChatID
	return &fakeStore{
		users: map[string]*domain.User{
			"user-1": {ID: "user-1", Name: "Sari", Email: "sari@example.com", AIMode: domain.AIModeGlobal, TelegramChatID: &chat},
			"user-2": {ID: "user-2", Name: "Budi", Email: "budi@example.com", AIMode: domain.AIModeBYOK},
		},
		workspace: domain.Workspace{ID: "ws-1", Name: "Keluarga Sari", Type: "personal", Currency: "IDR"},
		accounts: []domain.Account{
			{ID: accTunai, WorkspaceID: "ws-1", Name: "Tunai", Type: "cash", Balance: decimal.NewFromInt(100000), IsDefault: true, IsActive: true},
			{ID: accBCA, WorkspaceID: "ws-1", Name: "Bank BCA", Type: "bank", Balance: decimal.NewFromInt(500000), IsActive: true},
		},
		categories: []domain.Category{
			{ID: catFood, Name: "Makanan & Minuman", Type: domain.TransactionTypeExpense},
			{ID: catSalary, Name: "Gaji", Type: domain.TransactionTypeIncome},
		},
		txs: map[string]*domain.Transaction{},
	}
}

func (f *fakeStore) FindByChatID(_ context.Context, chatID int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.TelegramChatID != nil && *u.TelegramChatID == chatID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, services.ErrChatNotLinked
}

func (f *fakeStore) LinkChat(_ context.Context, userID string, chatID int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	for _, other := range f.users {
		if other.TelegramChatID != nil && *other.TelegramChatID == chatID {
			other.TelegramChatID = nil
		}
	}
	u.TelegramChatID = &chatID
	cp := *u
	return &cp, nil
}

func (f *fakeStore) WorkspaceFor(context.Context, string) (*domain.Workspace, error) {
	ws := f.workspace
	return &ws, nil
}

func (f *fakeStore) VerifyLinkToken(_ context.Context, token string) (string, error) {
	if token == validLinkToken {
		return "user-2", nil
	}
	return "", services.ErrInvalidLinkToken
}

func (f *fakeStore) ActiveAccounts(context.Context, string) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) VisibleCategories(context.Context, string) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Category(nil), f.categories...), nil
}

func (f *fakeStore) SetDefaultAccount(_ context.Context, _ string, accountID string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accountByID(accountID).ID == "" {
		return nil, services.ErrAccountNotFound
	}
	for i := range f.accounts {
		f.accounts[i].IsDefault = f.accounts[i].ID == accountID
	}
	cp := *f.accountByID(accountID)
	return &cp, nil
}

func (f *fakeStore) StagePending(_ context.Context, txs []domain.Transaction) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var batchID *string
	if len(txs) > 1 {
		f.nextBatch++
		id := fmt.Sprintf("batch-%d", f.nextBatch)
		batchID = &id
	}
	out := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		f.nextTx++
		tx.ID = fmt.Sprintf("tx-%d", f.nextTx)
		tx.Status = domain.StatusPending
		tx.BatchID = batchID
		stored := tx
		f.txs[tx.ID] = &stored
		f.order = append(f.order, tx.ID)
		out[i] = tx
	}
	return out, nil
}

func (f *fakeStore) GetPending(_ context.Context, _ string, id string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return nil, services.ErrTransactionNotFound
	}
	if !tx.IsPending() {
		return nil, services.ErrAlreadyProcessed
	}
	cp := *tx
	return &cp, nil
}

func (f *fakeStore) Retype(_ context.Context, _ string, id, newType string, toAccountID *string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return nil, services.ErrTransactionNotFound
	}
	if !tx.IsPending() {
		return nil, services.ErrAlreadyProcessed
	}
	tx.Type = newType
	tx.TransferToAccountID = toAccountID
	tx.CategoryID = nil
	cp := *tx
	return &cp, nil
}

func (f *fakeStore) RecentTransactions(_ context.Context, _ string, limit int) ([]domain.TransactionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TransactionSummary
	for i := len(f.order) - 1; i >= 0 && len(out) < limit; i-- {
		tx := f.txs[f.order[i]]
		if tx == nil || tx.IsPending() {
			continue
		}
		sum := domain.TransactionSummary{Transaction: *tx, AccountName: f.accountByID(tx.AccountID).Name}
		if tx.TransferToAccountID != nil {
			sum.ToAccountName = f.accountByID(*tx.TransferToAccountID).Name
		}
		out = append(out, sum)
	}
	return out, nil
}

func (f *fakeStore) accountByID(id string) *domain.Account {
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			return &f.accounts[i]
		}
	}
	return &domain.Account{}
}

func (f *fakeStore) Confirm(_ context.Context, _ string, id string) (*services.Settlement, error) {
	return f.settle(func(tx *domain.Transaction) bool { return tx.ID == id })
}

func (f *fakeStore) ConfirmBatch(_ context.Context, _ string, batchID string) (*services.Settlement, error) {
	return f.settle(func(tx *domain.Transaction) bool { return tx.BatchID != nil && *tx.BatchID == batchID })
}

// settle mirrors the claim-then-apply semantics of the ledger: only pending
// rows are claimed and a failure leaves everything untouched.
func (f *fakeStore) settle(match func(*domain.Transaction) bool) (*services.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var claimed []domain.Transaction
	for _, id := range f.order {
		tx := f.txs[id]
		if tx != nil && match(tx) && tx.IsPending() {
			claimed = append(claimed, *tx)
		}
	}
	if len(claimed) == 0 {
		return nil, services.ErrAlreadyProcessed
	}
	if f.failConfirm != nil {
		return nil, f.failConfirm
	}

	deltas := services.BalanceDeltas(claimed)
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	settlement := &services.Settlement{}
	for _, id := range ids {
		acc := f.accountByID(id)
		acc.Balance = acc.Balance.Add(deltas[id])
		settlement.Balances = append(settlement.Balances, domain.AccountBalance{AccountID: id, Name: acc.Name, Balance: acc.Balance})
		if deltas[id].IsNegative() && acc.Balance.IsNegative() {
			settlement.NegativeAccounts = append(settlement.NegativeAccounts, acc.Name)
		}
	}
	for i := range claimed {
		f.txs[claimed[i].ID].Status = domain.StatusConfirmed
		claimed[i].Status = domain.StatusConfirmed
	}
	settlement.Transactions = claimed
	return settlement, nil
}

func (f *fakeStore) Delete(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok || !tx.IsPending() {
		return services.ErrAlreadyProcessed
	}
	delete(f.txs, id)
	return nil
}

func (f *fakeStore) DeleteBatch(_ context.Context, _ string, batchID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, tx := range f.txs {
		if tx.BatchID != nil && *tx.BatchID == batchID && tx.IsPending() {
			delete(f.txs, id)
			n++
		}
	}
	if n == 0 {
		return 0, services.ErrAlreadyProcessed
	}
	return n, nil
}

func (f *fakeStore) tx(id string) *domain.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txs[id]
}

func (f *fakeStore) balance(accountID string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accountByID(accountID).Balance
}

func (f *fakeStore) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, tx := range f.txs {
		if tx.IsPending() {
			n++
		}
	}
	return n
}

type fakeExtractor struct {
	mu     sync.Mutex
	calls  []services.ExtractionInput
	result func(in services.ExtractionInput) (*services.ExtractionResult, error)
}

func (f *fakeExtractor) Extract(_ context.Context, in services.ExtractionInput) (*services.ExtractionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	f.mu.Unlock()
	return f.result(in)
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, []byte) (string, error) { return f.text, f.err }

type fakeArchiver struct{ objects []string }

func (f *fakeArchiver) Archive(_ context.Context, workspaceID, fileID string, _ []byte) string {
	obj := services.ReceiptObjectName(workspaceID, fileID, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f.objects = append(f.objects, obj)
	return obj
}

// outbound is one message the bot sent or edited.
type outbound struct {
	chatID    int64
	messageID int
	text      string
	markup    models.ReplyMarkup
	edited    bool
}

type fakeTelegram struct {
	mu      sync.Mutex
	nextID  int
	out     []outbound
	answers []bot.AnswerCallbackQueryParams
}

func (f *fakeTelegram) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	chatID, _ := p.ChatID.(int64)
	f.out = append(f.out, outbound{chatID: chatID, messageID: f.nextID, text: p.Text, markup: p.ReplyMarkup})
	return &models.Message{ID: f.nextID, Chat: models.Chat{ID: chatID}, Text: p.Text}, nil
}

func (f *fakeTelegram) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chatID, _ := p.ChatID.(int64)
	f.out = append(f.out, outbound{chatID: chatID, messageID: p.MessageID, text: p.Text, markup: p.ReplyMarkup, edited: true})
	return &models.Message{ID: p.MessageID, Chat: models.Chat{ID: chatID}, Text: p.Text}, nil
}

func (f *fakeTelegram) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, *p)
	return true, nil
}

func (f *fakeTelegram) GetFile(_ context.Context, p *bot.GetFileParams) (*models.File, error) {
	return &models.File{FileID: p.FileID, FilePath: "files/" + p.FileID}, nil
}

func (f *fakeTelegram) FileDownloadLink(file *models.File) string {
	return "https://files.test/" + file.FilePath
}

func (f *fakeTelegram) last() outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.out) == 0 {
		return outbound{}
	}
	return f.out[len(f.out)-1]
}

func (f *fakeTelegram) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return ""
	}
	return f.answers[len(f.answers)-1].Text
}

// callbackData flattens an inline keyboard into its payloads.
func callbackData(markup models.ReplyMarkup) []string {
	kb, ok := markup.(*models.InlineKeyboardMarkup)
	if !ok {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.CallbackData)
		}
	}
	return out
}

type harness struct {
	store     *fakeStore
	tg        *fakeTelegram
	extractor *fakeExtractor
	archiver  *fakeArchiver
	bot       *Orchestrator
	updateID  int64
}

func newHarness() *harness {
	h := &harness{
		store:     newFakeStore(),
		tg:        &fakeTelegram{},
		extractor: &fakeExtractor{},
		archiver:  &fakeArchiver{},
	}
	h.extractor.result = func(services.ExtractionInput) (*services.ExtractionResult, error) {
		return &services.ExtractionResult{Kind: services.ResultNotTransaction}, nil
	}

	h.bot = NewOrchestrator(h.tg, Deps{
		Users:      h.store,
		Links:      h.store,
		Accounts:   h.store,
		Staging:    h.store,
		Settlement: h.store,
		Extractor:  h.extractor,
		Dialogs:    services.NewDialogService(nil, 0),
		Dedup:      services.NewDedupService(services.DedupBackendMemory, nil, nil, 100, 0),
		Voice:      fakeTranscriber{text: "beli bensin 50rb"},
		Receipts:   h.archiver,
	}, "DuweKuBot")
	h.bot.download = func(context.Context, string) ([]byte, error) { return []byte("jpeg-bytes"), nil }
	h.bot.now = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }
	return h
}

func (h *harness) nextUpdate() int64 {
	h.updateID++
	return h.updateID
}

func (h *harness) sendText(text string) {
	h.bot.HandleUpdate(context.Background(), &models.Update{
		ID:      h.nextUpdate(),
		Message: &models.Message{ID: 1000 + int(h.updateID), Chat: models.Chat{ID: testChatID}, Text: text},
	})
}

func (h *harness) replyTo(messageID int, text string) {
	h.bot.HandleUpdate(context.Background(), &models.Update{
		ID: h.nextUpdate(),
		Message: &models.Message{
			ID:             1000 + int(h.updateID),
			Chat:           models.Chat{ID: testChatID},
			Text:           text,
			ReplyToMessage: &models.Message{ID: messageID, Chat: models.Chat{ID: testChatID}},
		},
	})
}

func (h *harness) press(messageID int, data string) {
	h.bot.HandleUpdate(context.Background(), &models.Update{
		ID: h.nextUpdate(),
		CallbackQuery: &models.CallbackQuery{
			ID:      fmt.Sprintf("cb-%d", h.updateID),
			From:    models.User{ID: testChatID},
			Message: models.MaybeInaccessibleMessage{Message: &models.Message{ID: messageID, Chat: models.Chat{ID: testChatID}}},
			Data:    data,
		},
	})
}

func expenseResult(amount int64, description, category string) *services.ExtractionResult {
	return &services.ExtractionResult{
		Kind: services.ResultTransactions,
		Transactions: []services.ExtractedTransaction{{
			Amount:        decimal.NewFromInt(amount),
			Date:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Description:   description,
			Type:          domain.TransactionTypeExpense,
			CategoryGuess: category,
		}},
	}
}
