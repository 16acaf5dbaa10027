package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/duweku/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAILogService_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAILogService(db)
	at := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO ai_logs").
		WithArgs("user-1", "text", "Beli kopi 20rb", int64(120), int64(850), "success", sql.NullString{}, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = service.Record(context.Background(), models.AILog{
		UserID: "user-1", RequestType: "text", InputSummary: "Beli kopi 20rb",
		TokensUsed: 120, LatencyMs: 850, Status: "success", CreatedAt: at,
	})
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO ai_logs").
		WithArgs("user-1", "image", "[image]", int64(0), int64(30000), "error", "AI request timed out", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	err = service.Record(context.Background(), models.AILog{
		UserID: "user-1", RequestType: "image", InputSummary: "[image]",
		LatencyMs: 30000, Status: "error", ErrorMessage: ErrExtractionTimeout.Error(),
	})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
