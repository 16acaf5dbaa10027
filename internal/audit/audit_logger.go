package audit

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type Event struct {
	Timestamp     time.Time       `json:"timestamp"`
	EventType     string          `json:"event_type"`
	TransactionID string          `json:"transaction_id,omitempty"`
	BatchID       string          `json:"batch_id,omitempty"`
	AccountID     string          `json:"account_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Details       any             `json:"details,omitempty"`
}

// Logger writes settlement and identity events as structured audit records.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(log zerolog.Logger) *Logger {
	return &Logger{log: log.With().Str("component", "audit").Logger()}
}

// LogSettlement records a confirmed transaction or batch with the balance
// deltas applied per account.
func (a *Logger) LogSettlement(transactionIDs []string, batchID string, deltas map[string]decimal.Decimal) {
	total := decimal.Zero
	details := make(map[string]string, len(deltas))
	for accountID, delta := range deltas {
		details[accountID] = delta.String()
		total = total.Add(delta.Abs())
	}

	event := Event{
		Timestamp: time.Now(),
		EventType: "SETTLEMENT_CONFIRMED",
		BatchID:   batchID,
		Amount:    total,
		Status:    "SUCCESS",
		Details: map[string]any{
			"transactions": transactionIDs,
			"deltas":       details,
		},
	}
	if len(transactionIDs) == 1 {
		event.TransactionID = transactionIDs[0]
	}
	a.write(event)
}

func (a *Logger) LogDeletion(transactionID, batchID string, count int) {
	a.write(Event{
		Timestamp:     time.Now(),
		EventType:     "PENDING_DELETED",
		TransactionID: transactionID,
		BatchID:       batchID,
		Status:        "SUCCESS",
		Details:       map[string]int{"count": count},
	})
}

func (a *Logger) LogError(transactionID, batchID string, err error) {
	a.write(Event{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		BatchID:       batchID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) LogOperation(operation, accountID, details string) {
	a.write(Event{
		Timestamp: time.Now(),
		EventType: operation,
		AccountID: accountID,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	})
}

func (a *Logger) write(event Event) {
	a.log.Info().Interface("audit", event).Msg("AUDIT")
}
