package services

import "errors"

var (
	ErrAlreadyProcessed    = errors.New("transaction already processed")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInvalidAmount       = errors.New("invalid amount")

	ErrNoAccounts          = errors.New("no account found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrDestinationNotFound = errors.New("destination account not found")

	ErrChatNotLinked    = errors.New("chat is not linked to any user")
	ErrUserNotFound     = errors.New("user not found")
	ErrNoWorkspace      = errors.New("user has no workspace")
	ErrInvalidLinkToken = errors.New("invalid or expired link token")

	ErrExtractionTimeout = errors.New("AI request timed out")
	ErrMissingAPIKey     = errors.New("AI API key is not configured")
	ErrVoiceUnavailable  = errors.New("voice transcription is not available")

	ErrDialogExpired = errors.New("dialog expired")
)
