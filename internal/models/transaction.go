package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeIncome   = "income"
	TransactionTypeExpense  = "expense"
	TransactionTypeTransfer = "transfer"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
)

const (
	SourceManual    = "manual"
	SourceChatText  = "chat-text"
	SourceChatImage = "chat-image"
	SourceChatVoice = "chat-voice"
	SourceAPI       = "api"
)

// DateLayout is the calendar-date format used for transaction dates.
const DateLayout = "2006-01-02"

// Transaction is a ledger movement inside a workspace. Pending rows have not
// touched any balance; confirmed rows have been applied exactly once.
type Transaction struct {
	ID                  string          `json:"id" db:"id"`
	WorkspaceID         string          `json:"workspace_id" db:"workspace_id"`
	AccountID           string          `json:"account_id" db:"account_id"`
	TransferToAccountID *string         `json:"transfer_to_account_id,omitempty" db:"transfer_to_account_id"`
	CategoryID          *string         `json:"category_id,omitempty" db:"category_id"`
	UserID              string          `json:"user_id" db:"user_id"`
	Type                string          `json:"type" db:"type"`
	Amount              decimal.Decimal `json:"amount" db:"amount"`
	Description         *string         `json:"description,omitempty" db:"description"`
	Date                time.Time       `json:"date" db:"date"`
	Source              string          `json:"source" db:"source"`
	Status              string          `json:"status" db:"status"`
	BatchID             *string         `json:"batch_id,omitempty" db:"batch_id"`
	ReceiptObject       *string         `json:"receipt_object,omitempty" db:"receipt_object"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// IsPending reports whether the transaction still awaits confirmation.
func (t *Transaction) IsPending() bool {
	return t.Status == StatusPending
}

// DescriptionText returns the description or an empty string.
func (t *Transaction) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// TransactionSummary is a confirmed or pending transaction joined with the
// names shown in chat listings.
type TransactionSummary struct {
	Transaction
	AccountName   string `json:"account_name"`
	ToAccountName string `json:"to_account_name,omitempty"`
	CategoryName  string `json:"category_name,omitempty"`
}
