package services

import (
	"context"

	"github.com/duweku/backend/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, apiKey, prompt string, images []Image) (*Completion, error) {
	args := m.Called(ctx, apiKey, prompt, images)
	if fn, ok := args.Get(0).(func(context.Context) (*Completion, error)); ok {
		return fn(ctx)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Completion), args.Error(1)
}

type MockAILogRecorder struct {
	mock.Mock
}

func (m *MockAILogRecorder) Record(ctx context.Context, entry models.AILog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type staticKeys string

func (k staticKeys) KeyFor(*models.User) (string, error) { return string(k), nil }
