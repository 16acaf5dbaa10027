package services

import (
	"fmt"

	"github.com/duweku/backend/internal/models"
)

// Decrypter opens encrypted user secrets.
type Decrypter interface {
	Decrypt(encoded string) (string, error)
}

// AIKeyService chooses between the server key (ai_mode=global) and the
// user's own decrypted key (ai_mode=byok).
type AIKeyService struct {
	globalKey string
	vault     Decrypter
}

func NewAIKeyService(globalKey string, vault Decrypter) *AIKeyService {
	return &AIKeyService{globalKey: globalKey, vault: vault}
}

func (s *AIKeyService) KeyFor(user *models.User) (string, error) {
	if user != nil && user.AIMode == models.AIModeBYOK {
		if user.AIAPIKey == nil || *user.AIAPIKey == "" {
			return "", fmt.Errorf("%w: add your own key in the dashboard", ErrMissingAPIKey)
		}
		if s.vault == nil {
			return "", fmt.Errorf("%w: key decryption is not configured", ErrMissingAPIKey)
		}
		key, err := s.vault.Decrypt(*user.AIAPIKey)
		if err != nil {
			return "", fmt.Errorf("decrypt user AI key: %w", err)
		}
		return key, nil
	}

	if s.globalKey == "" {
		return "", ErrMissingAPIKey
	}
	return s.globalKey, nil
}
