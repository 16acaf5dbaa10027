package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountTypeCash       = "cash"
	AccountTypeBank       = "bank"
	AccountTypeEWallet    = "e-wallet"
	AccountTypeCreditCard = "credit_card"
	AccountTypeInvestment = "investment"
	AccountTypeOther      = "other"
)

// Account is a balance-bearing container within a workspace.
type Account struct {
	ID          string          `json:"id" db:"id"`
	WorkspaceID string          `json:"workspace_id" db:"workspace_id"`
	Name        string          `json:"name" db:"name"`
	Type        string          `json:"type" db:"type"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	IsDefault   bool            `json:"is_default" db:"is_default"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	Version     int             `json:"version" db:"version"` // for optimistic locking
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Category labels transactions of one type. A nil WorkspaceID marks a global
// system category visible to every workspace.
type Category struct {
	ID          string  `json:"id" db:"id"`
	WorkspaceID *string `json:"workspace_id,omitempty" db:"workspace_id"`
	Name        string  `json:"name" db:"name"`
	Type        string  `json:"type" db:"type"`
	IsSystem    bool    `json:"is_system" db:"is_system"`
}

const (
	EntryDebit  = "DEBIT"
	EntryCredit = "CREDIT"
)

// LedgerEntry records one leg of a confirmed transaction against one account,
// with the account balance after the leg.
type LedgerEntry struct {
	ID            int64           `json:"id" db:"id"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	AccountID     string          `json:"account_id" db:"account_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	EntryType     string          `json:"entry_type" db:"entry_type"` // DEBIT or CREDIT
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// AccountBalance is the post-settlement balance of one account.
type AccountBalance struct {
	AccountID string          `json:"account_id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
}
