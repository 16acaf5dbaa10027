package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

type DialogKind string

const (
	// DialogTransfer is the guided /transfer flow: source, destination, amount.
	DialogTransfer DialogKind = "transfer"
	// DialogRetype picks the destination when a pending expense becomes a transfer.
	DialogRetype DialogKind = "retype"
)

// DialogState is the few bytes a guided dialog carries between turns.
type DialogState struct {
	Token           string     `json:"token"`
	Kind            DialogKind `json:"kind"`
	ChatID          int64      `json:"chat_id"`
	UserID          string     `json:"user_id"`
	WorkspaceID     string     `json:"workspace_id"`
	FromAccountID   string     `json:"from_account_id"`
	ToAccountID     string     `json:"to_account_id,omitempty"`
	TransactionID   string     `json:"transaction_id,omitempty"`
	PromptMessageID int        `json:"prompt_message_id,omitempty"`
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// DialogService keeps short-lived dialog state keyed by an opaque token.
// Redis is used when available; otherwise state lives in process memory.
type DialogService struct {
	redis    *redis.Client
	ttl      time.Duration
	newToken func() (string, error)
	now      func() time.Time

	mu     sync.Mutex
	memory map[string]memoryEntry
}

func NewDialogService(redisClient *redis.Client, ttl time.Duration) *DialogService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DialogService{
		redis:    redisClient,
		ttl:      ttl,
		newToken: generateDialogToken,
		now:      time.Now,
		memory:   make(map[string]memoryEntry),
	}
}

func generateDialogToken() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate dialog token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func dialogKey(token string) string {
	return fmt.Sprintf("dialog:%s", token)
}

func promptKey(chatID int64, messageID int) string {
	return fmt.Sprintf("dialog:prompt:%d:%d", chatID, messageID)
}

// Start stores a new dialog and returns it with its token.
func (s *DialogService) Start(ctx context.Context, state DialogState) (*DialogState, error) {
	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	state.Token = token
	if err := s.Save(ctx, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *DialogService) Save(ctx context.Context, state *DialogState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.put(ctx, dialogKey(state.Token), string(data))
}

// Load returns ErrDialogExpired when the token is unknown or timed out.
func (s *DialogService) Load(ctx context.Context, token string) (*DialogState, error) {
	data, err := s.get(ctx, dialogKey(token))
	if err != nil {
		return nil, err
	}

	var state DialogState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode dialog state: %w", err)
	}
	return &state, nil
}

// BindPrompt ties a forced-reply prompt message to the dialog so the user's
// reply can be correlated by message id.
func (s *DialogService) BindPrompt(ctx context.Context, state *DialogState, messageID int) error {
	state.PromptMessageID = messageID
	if err := s.Save(ctx, state); err != nil {
		return err
	}
	return s.put(ctx, promptKey(state.ChatID, messageID), state.Token)
}

// LookupPrompt finds the dialog whose prompt message the user replied to.
func (s *DialogService) LookupPrompt(ctx context.Context, chatID int64, messageID int) (*DialogState, error) {
	token, err := s.get(ctx, promptKey(chatID, messageID))
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, token)
}

// Finish removes the dialog and its prompt binding.
func (s *DialogService) Finish(ctx context.Context, state *DialogState) error {
	keys := []string{dialogKey(state.Token)}
	if state.PromptMessageID != 0 {
		keys = append(keys, promptKey(state.ChatID, state.PromptMessageID))
	}
	return s.del(ctx, keys...)
}

func (s *DialogService) put(ctx context.Context, key, value string) error {
	if s.redis != nil {
		return s.redis.Set(ctx, key, value, s.ttl).Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.memory {
		if now.After(e.expiresAt) {
			delete(s.memory, k)
		}
	}
	s.memory[key] = memoryEntry{value: value, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *DialogService) get(ctx context.Context, key string) (string, error) {
	if s.redis != nil {
		value, err := s.redis.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", ErrDialogExpired
		}
		return value, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.memory[key]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.memory, key)
		return "", ErrDialogExpired
	}
	return entry.value, nil
}

func (s *DialogService) del(ctx context.Context, keys ...string) error {
	if s.redis != nil {
		return s.redis.Del(ctx, keys...).Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.memory, k)
	}
	return nil
}
