package services

import (
	"errors"
	"testing"

	"github.com/duweku/backend/internal/keyvault"
	"github.com/duweku/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIKeyService_KeyFor(t *testing.T) {
	vault, err := keyvault.New("secret", "", 1000)
	require.NoError(t, err)
	sealed, err := vault.Encrypt("user-key")
	require.NoError(t, err)

	service := NewAIKeyService("server-key", vault)

	t.Run("global mode uses server key", func(t *testing.T) {
		key, err := service.KeyFor(&models.User{AIMode: models.AIModeGlobal})
		require.NoError(t, err)
		assert.Equal(t, "server-key", key)
	})

	t.Run("byok decrypts user key", func(t *testing.T) {
		key, err := service.KeyFor(&models.User{AIMode: models.AIModeBYOK, AIAPIKey: &sealed})
		require.NoError(t, err)
		assert.Equal(t, "user-key", key)
	})

	t.Run("byok without stored key", func(t *testing.T) {
		_, err := service.KeyFor(&models.User{AIMode: models.AIModeBYOK})
		assert.True(t, errors.Is(err, ErrMissingAPIKey))
	})

	t.Run("no server key", func(t *testing.T) {
		_, err := NewAIKeyService("", vault).KeyFor(&models.User{AIMode: models.AIModeGlobal})
		assert.True(t, errors.Is(err, ErrMissingAPIKey))
	})
}
