package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
)

type objectWriterFunc func(ctx context.Context, object, contentType string, data []byte) error

// ReceiptService archives receipt photos so a staged transaction can point
// back at the image it was read from.
type ReceiptService struct {
	bucket string
	write  objectWriterFunc
}

// NewReceiptService returns a service that silently skips archiving when no
// client or bucket is configured.
func NewReceiptService(client *storage.Client, bucket string) *ReceiptService {
	s := &ReceiptService{bucket: bucket}
	if client == nil || bucket == "" {
		return s
	}
	s.write = func(ctx context.Context, object, contentType string, data []byte) error {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		if _, err := w.Write(data); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	}
	return s
}

func ReceiptObjectName(workspaceID, fileID string, at time.Time) string {
	return fmt.Sprintf("receipts/%s/%s/%s.jpg", workspaceID, at.Format("2006-01-02"), fileID)
}

// Archive uploads the photo and returns its object name, or "" when archiving
// is disabled or failed. Failures never block staging.
func (s *ReceiptService) Archive(ctx context.Context, workspaceID, fileID string, data []byte) string {
	if s == nil || s.write == nil {
		return ""
	}

	object := ReceiptObjectName(workspaceID, fileID, time.Now())
	if err := s.write(ctx, object, "image/jpeg", data); err != nil {
		log.Warn().Err(err).Str("bucket", s.bucket).Str("object", object).Msg("Failed to archive receipt")
		return ""
	}
	return object
}
