package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-telegram/bot/models"

	"github.com/duweku/backend/internal/logger"
	"github.com/duweku/backend/internal/services"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *models.Update)
}

type WebhookHandler struct {
	updates UpdateHandler
	secret  string
}

func NewWebhookHandler(updates UpdateHandler, secret string) *WebhookHandler {
	return &WebhookHandler{updates: updates, secret: secret}
}

// HandleUpdate receives a Telegram update. Anything that gets past the
// secret check is answered 200 so Telegram does not redeliver it; failures
// are reported to the chat by the orchestrator.
func (h *WebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(secretTokenHeader)), []byte(h.secret)) != 1 {
		log.Warn().Str("remote", r.RemoteAddr).Msg("Rejected webhook with bad secret token")
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	var update models.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Warn().Err(err).Msg("Ignoring undecodable webhook body")
		services.SendJSON(w, map[string]bool{"ok": true})
		return
	}

	// Settlement must not be cut short if Telegram drops the connection.
	ctx := context.WithoutCancel(r.Context())
	h.updates.HandleUpdate(ctx, &update)

	services.SendJSON(w, map[string]bool{"ok": true})
}
