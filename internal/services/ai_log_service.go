package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/duweku/backend/internal/models"
)

type AILogService struct {
	db *sql.DB
}

func NewAILogService(db *sql.DB) *AILogService {
	return &AILogService{db: db}
}

func (s *AILogService) Record(ctx context.Context, entry models.AILog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var errMsg sql.NullString
	if entry.ErrorMessage != "" {
		errMsg = sql.NullString{String: entry.ErrorMessage, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_logs (user_id, request_type, input_summary, tokens_used, latency_ms, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.UserID, entry.RequestType, entry.InputSummary, entry.TokensUsed, entry.LatencyMs, entry.Status, errMsg, entry.CreatedAt)
	return err
}
