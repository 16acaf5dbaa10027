package handlers

import (
	"context"
	"net/http"

	"github.com/duweku/backend/internal/logger"
	"github.com/duweku/backend/internal/middleware"
	"github.com/duweku/backend/internal/services"
)

type LinkIssuer interface {
	IssueLinkToken(ctx context.Context, userID string) (*services.TelegramLink, error)
}

type LinkHandler struct {
	links LinkIssuer
}

func NewLinkHandler(links LinkIssuer) *LinkHandler {
	return &LinkHandler{links: links}
}

// TelegramLink issues a one-hour deep link (and its QR code) that binds the
// caller's account to a Telegram chat via /start.
func (h *LinkHandler) TelegramLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	link, err := h.links.IssueLinkToken(r.Context(), userID)
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to issue Telegram link")
		services.SendErrorResponse(w, "Failed to create link", http.StatusInternalServerError, nil)
		return
	}

	services.SendJSON(w, map[string]any{
		"success": true,
		"data":    link,
	})
}
