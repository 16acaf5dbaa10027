package services

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoiceService_Transcribe(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		service := NewVoiceService(context.Background(), false, "")
		assert.False(t, service.Available())

		_, err := service.Transcribe(context.Background(), []byte("ogg"))
		assert.ErrorIs(t, err, ErrVoiceUnavailable)
		assert.NoError(t, service.Close())
	})

	t.Run("joins first alternatives", func(t *testing.T) {
		service := NewVoiceService(context.Background(), false, "")
		var got *speechpb.RecognizeRequest
		service.recognize = func(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			got = req
			return &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "beli bensin"}, {Transcript: "beli pensil"}}},
				{},
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "lima puluh ribu"}}},
			}}, nil
		}

		text, err := service.Transcribe(context.Background(), []byte("ogg"))
		require.NoError(t, err)
		assert.Equal(t, "beli bensin lima puluh ribu", text)
		assert.Equal(t, speechpb.RecognitionConfig_OGG_OPUS, got.GetConfig().GetEncoding())
		assert.Equal(t, int32(48000), got.GetConfig().GetSampleRateHertz())
		assert.Equal(t, "id-ID", got.GetConfig().GetLanguageCode())
	})

	t.Run("empty result", func(t *testing.T) {
		service := NewVoiceService(context.Background(), false, "en-US")
		service.recognize = func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return &speechpb.RecognizeResponse{}, nil
		}
		_, err := service.Transcribe(context.Background(), []byte("ogg"))
		assert.EqualError(t, err, "no transcription results")
	})

	t.Run("recognizer error", func(t *testing.T) {
		service := NewVoiceService(context.Background(), false, "")
		service.recognize = func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return nil, errors.New("quota")
		}
		_, err := service.Transcribe(context.Background(), []byte("ogg"))
		assert.EqualError(t, err, "recognition failed: quota")
	})
}
