package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/duweku/backend/internal/logger"
	"github.com/duweku/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Image is an inline attachment passed to the model.
type Image struct {
	MIMEType string
	Data     []byte
}

// Completion is the raw model output.
type Completion struct {
	Text       string
	TokensUsed int
}

// Provider is a single request/response LLM completion endpoint.
type Provider interface {
	Name() string
	Complete(ctx context.Context, apiKey, prompt string, images []Image) (*Completion, error)
}

// KeyResolver picks the API key used for a user's extraction calls.
type KeyResolver interface {
	KeyFor(user *models.User) (string, error)
}

// AILogRecorder persists extraction call metadata.
type AILogRecorder interface {
	Record(ctx context.Context, entry models.AILog) error
}

type ExtractionInput struct {
	User        *models.User
	RequestType string // text, image, voice
	Text        string
	Images      []Image
	Accounts    []models.Account
	Categories  []models.Category
	Today       time.Time
}

// ExtractedTransaction is one validated transaction proposed by the model.
// Guess fields are free text and must go through the resolver.
type ExtractedTransaction struct {
	Amount           decimal.Decimal
	Date             time.Time
	Description      string `validate:"max=255"`
	Type             string `validate:"required,oneof=income expense transfer"`
	CategoryGuess    string
	FromAccountGuess string
	ToAccountGuess   string
}

type ResultKind int

const (
	ResultTransactions ResultKind = iota + 1
	ResultNotTransaction
	ResultMalformed
)

func (k ResultKind) String() string {
	switch k {
	case ResultTransactions:
		return "transactions"
	case ResultNotTransaction:
		return "not_transaction"
	case ResultMalformed:
		return "malformed"
	}
	return "unknown"
}

// ExtractionResult is the tagged outcome of an extraction call.
type ExtractionResult struct {
	Kind         ResultKind
	Transactions []ExtractedTransaction
	Reply        string // for ResultNotTransaction
	Problem      string // for ResultMalformed
	Raw          string
}

type ExtractionService struct {
	provider  Provider
	keys      KeyResolver
	aiLogs    AILogRecorder
	validator *ValidationHelper
	timeout   time.Duration
}

func NewExtractionService(provider Provider, keys KeyResolver, aiLogs AILogRecorder, timeout time.Duration) *ExtractionService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExtractionService{
		provider:  provider,
		keys:      keys,
		aiLogs:    aiLogs,
		validator: NewValidationHelper(),
		timeout:   timeout,
	}
}

// Extract sends the input to the model under a bounded timeout and returns
// a validated, tagged result. Provider failures and timeouts are errors; an
// unusable response is a ResultMalformed value.
func (s *ExtractionService) Extract(ctx context.Context, in ExtractionInput) (*ExtractionResult, error) {
	log := logger.FromContext(ctx)

	apiKey, err := s.keys.KeyFor(in.User)
	if err != nil {
		return nil, err
	}

	today := in.Today
	if today.IsZero() {
		today = time.Now()
	}
	in.Today = today

	prompt := BuildPrompt(in)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	completion, err := s.provider.Complete(callCtx, apiKey, prompt, in.Images)
	latency := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrExtractionTimeout, s.timeout)
		} else {
			err = fmt.Errorf("%s completion failed: %w", s.provider.Name(), err)
		}
		s.recordCall(ctx, in, 0, latency, err)
		log.Error().Err(err).Str("provider", s.provider.Name()).Msg("Extraction call failed")
		return nil, err
	}

	result := s.ParseExtraction(completion.Text, today)
	var callErr error
	if result.Kind == ResultMalformed {
		callErr = errors.New("AI response format error: " + result.Problem)
		log.Warn().Str("problem", result.Problem).Str("raw", truncate(completion.Text, 300)).Msg("Malformed extraction response")
	}
	s.recordCall(ctx, in, completion.TokensUsed, latency, callErr)

	return result, nil
}

func (s *ExtractionService) recordCall(ctx context.Context, in ExtractionInput, tokens int, latency time.Duration, callErr error) {
	if s.aiLogs == nil || in.User == nil {
		return
	}

	entry := models.AILog{
		UserID:       in.User.ID,
		RequestType:  in.RequestType,
		InputSummary: truncate(in.Text, 100),
		TokensUsed:   tokens,
		LatencyMs:    latency.Milliseconds(),
		Status:       "success",
		CreatedAt:    time.Now(),
	}
	if entry.InputSummary == "" && len(in.Images) > 0 {
		entry.InputSummary = fmt.Sprintf("[%d image(s)]", len(in.Images))
	}
	if callErr != nil {
		entry.Status = "error"
		entry.ErrorMessage = callErr.Error()
	}

	// The chat turn may already be past its deadline; the log row is still written.
	if err := s.aiLogs.Record(context.WithoutCancel(ctx), entry); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Failed to record AI log")
	}
}

// BuildPrompt renders the extraction instructions with the workspace's live
// categories and accounts.
func BuildPrompt(in ExtractionInput) string {
	var sb strings.Builder

	sb.WriteString("You are a bookkeeping assistant for an Indonesian personal finance app.\n")
	sb.WriteString("Extract every financial transaction from the user's input.\n")
	sb.WriteString(fmt.Sprintf("Today's date is %s. Use it when the input has no date.\n\n", in.Today.Format(models.DateLayout)))

	byType := map[string][]string{}
	for _, c := range in.Categories {
		byType[c.Type] = append(byType[c.Type], c.Name)
	}
	sb.WriteString("Available categories:\n")
	for _, t := range []string{models.TransactionTypeExpense, models.TransactionTypeIncome} {
		names := byType[t]
		if len(names) == 0 {
			names = []string{"(none)"}
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", t, strings.Join(names, ", ")))
	}

	if len(in.Accounts) > 0 {
		names := make([]string, 0, len(in.Accounts))
		for _, a := range in.Accounts {
			names = append(names, a.Name)
		}
		sb.WriteString("User accounts: " + strings.Join(names, ", ") + "\n")
	}

	sb.WriteString("\nRules:\n")
	sb.WriteString("- Pick category_guess from the available categories when one fits; only propose a new short label when nothing fits.\n")
	sb.WriteString("- type is one of income, expense, transfer. Transfers move money between two of the user's accounts.\n")
	sb.WriteString("- amount is a positive number in rupiah. Expand shorthand: 20rb = 20000, 50k = 50000, 1jt = 1000000.\n")
	sb.WriteString("- from_account_guess / to_account_guess name the accounts mentioned, or empty string.\n")
	sb.WriteString("- For a receipt photo, return one expense with the receipt total and the merchant as description.\n")
	sb.WriteString("- If the input is not about money, set is_transaction to false and write a short friendly reply in Indonesian.\n\n")

	sb.WriteString("Return ONLY raw JSON, no Markdown, in this shape:\n")
	sb.WriteString(`{"is_transaction": true, "reply": "", "transactions": [{"amount": 20000, "date": "YYYY-MM-DD", "description": "...", "type": "expense", "category_guess": "...", "from_account_guess": "", "to_account_guess": ""}]}`)
	sb.WriteString("\n")

	if strings.TrimSpace(in.Text) != "" {
		sb.WriteString("\nUser input:\n")
		sb.WriteString(in.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}

type rawTransaction struct {
	Amount           json.RawMessage `json:"amount"`
	Total            json.RawMessage `json:"total"`
	Date             string          `json:"date"`
	Description      string          `json:"description"`
	Merchant         string          `json:"merchant"`
	Type             string          `json:"type"`
	CategoryGuess    string          `json:"category_guess"`
	FromAccountGuess string          `json:"from_account_guess"`
	ToAccountGuess   string          `json:"to_account_guess"`
}

// ParseExtraction turns raw model text into a tagged result. It accepts an
// envelope with a transactions list, a bare transaction object or a bare list.
func (s *ExtractionService) ParseExtraction(raw string, today time.Time) *ExtractionResult {
	clean := CleanModelJSON(raw)
	malformed := func(problem string) *ExtractionResult {
		return &ExtractionResult{Kind: ResultMalformed, Problem: problem, Raw: raw}
	}

	if clean == "" {
		return malformed("empty response")
	}

	var items []rawTransaction
	if strings.HasPrefix(clean, "[") {
		if err := json.Unmarshal([]byte(clean), &items); err != nil {
			return malformed(err.Error())
		}
	} else {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal([]byte(clean), &envelope); err != nil {
			return malformed(err.Error())
		}

		if flag, ok := envelope["is_transaction"]; ok {
			var isTx bool
			if err := json.Unmarshal(flag, &isTx); err == nil && !isTx {
				reply := stringField(envelope, "reply")
				if reply == "" {
					reply = stringField(envelope, "message")
				}
				return &ExtractionResult{Kind: ResultNotTransaction, Reply: reply, Raw: raw}
			}
		}

		switch {
		case envelope["transactions"] != nil:
			if err := json.Unmarshal(envelope["transactions"], &items); err != nil {
				return malformed("transactions: " + err.Error())
			}
		case envelope["amount"] != nil || envelope["total"] != nil:
			var single rawTransaction
			if err := json.Unmarshal([]byte(clean), &single); err != nil {
				return malformed(err.Error())
			}
			items = []rawTransaction{single}
		default:
			return malformed("no transactions in response")
		}
	}

	if len(items) == 0 {
		return malformed("no transactions in response")
	}

	out := make([]ExtractedTransaction, 0, len(items))
	for i, item := range items {
		tx, err := s.normalize(item, today)
		if err != nil {
			return malformed(fmt.Sprintf("transaction %d: %v", i+1, err))
		}
		out = append(out, tx)
	}

	return &ExtractionResult{Kind: ResultTransactions, Transactions: out, Raw: raw}
}

func (s *ExtractionService) normalize(item rawTransaction, today time.Time) (ExtractedTransaction, error) {
	amountRaw := item.Amount
	if len(amountRaw) == 0 || string(amountRaw) == "null" {
		amountRaw = item.Total
	}
	amount, err := parseJSONAmount(amountRaw)
	if err != nil {
		return ExtractedTransaction{}, err
	}
	if !IsValidAmount(amount) {
		return ExtractedTransaction{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	txType := strings.ToLower(strings.TrimSpace(item.Type))
	if txType == "" {
		txType = models.TransactionTypeExpense
	}

	description := strings.TrimSpace(item.Description)
	if description == "" {
		description = strings.TrimSpace(item.Merchant)
	}

	tx := ExtractedTransaction{
		Amount:           amount,
		Date:             parseLooseDate(item.Date, today),
		Description:      description,
		Type:             txType,
		CategoryGuess:    strings.TrimSpace(item.CategoryGuess),
		FromAccountGuess: strings.TrimSpace(item.FromAccountGuess),
		ToAccountGuess:   strings.TrimSpace(item.ToAccountGuess),
	}
	if err := s.validator.ValidateStruct(tx); err != nil {
		return ExtractedTransaction{}, err
	}
	return tx, nil
}

func parseJSONAmount(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, errors.New("missing amount")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, err
		}
		return ParseAmount(s), nil
	}
	amount, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %s: %w", raw, err)
	}
	return amount, nil
}

func parseLooseDate(value string, today time.Time) time.Time {
	value = strings.TrimSpace(value)
	if len(value) >= len(models.DateLayout) {
		if d, err := time.Parse(models.DateLayout, value[:len(models.DateLayout)]); err == nil {
			return d
		}
	}
	y, m, d := today.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func stringField(envelope map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := envelope[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return strings.TrimSpace(s)
}

// CleanModelJSON strips Markdown code fences and any prose around the JSON value.
func CleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
