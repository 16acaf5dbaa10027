package models

import "time"

const (
	AIModeGlobal = "global"
	AIModeBYOK   = "byok"
)

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           string    `json:"role"`
	AIMode         string    `json:"ai_mode"`
	AIAPIKey       *string   `json:"-"` // encrypted bundle, only for byok
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Workspace is the tenant boundary owning accounts, categories and transactions.
type Workspace struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"` // personal, business, family, organization, community
	Currency string `json:"currency"`
}

// AILog records one call to the extraction provider.
type AILog struct {
	UserID       string    `json:"user_id"`
	RequestType  string    `json:"request_type"` // text, image, voice
	InputSummary string    `json:"input_summary"`
	TokensUsed   int       `json:"tokens_used"`
	LatencyMs    int64     `json:"latency_ms"`
	Status       string    `json:"status"` // success, error
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
