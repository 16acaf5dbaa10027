package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"
)

// Telegram voice notes are OGG/Opus at 48kHz.
const (
	voiceSampleRate      = 48000
	DefaultVoiceLanguage = "id-ID"
)

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

type VoiceService struct {
	recognize    recognizeFunc
	close        func() error
	languageCode string
	timeout      time.Duration
}

// NewVoiceService dials Cloud Speech. When the client cannot be created the
// service stays usable but every call returns ErrVoiceUnavailable.
func NewVoiceService(ctx context.Context, enabled bool, languageCode string) *VoiceService {
	if languageCode == "" {
		languageCode = DefaultVoiceLanguage
	}
	s := &VoiceService{languageCode: languageCode, timeout: 30 * time.Second}
	if !enabled {
		return s
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize speech client, voice notes disabled")
		return s
	}
	s.recognize = func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	}
	s.close = client.Close
	return s
}

func (s *VoiceService) Available() bool { return s.recognize != nil }

// Transcribe turns a voice note into text that the extraction pipeline can
// treat like a typed chat message.
func (s *VoiceService) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if s.recognize == nil {
		return "", ErrVoiceUnavailable
	}
	if len(audio) == 0 {
		return "", errors.New("audio data is empty")
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_OGG_OPUS,
			SampleRateHertz:            voiceSampleRate,
			LanguageCode:               s.languageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.recognize(timeoutCtx, req)
	if err != nil {
		return "", fmt.Errorf("recognition failed: %w", err)
	}

	var transcript strings.Builder
	for _, result := range resp.GetResults() {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		transcript.WriteString(result.GetAlternatives()[0].GetTranscript())
		transcript.WriteString(" ")
	}

	text := strings.TrimSpace(transcript.String())
	if text == "" {
		return "", errors.New("no transcription results")
	}
	return text, nil
}

func (s *VoiceService) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
