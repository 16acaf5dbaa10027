package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/skip2/go-qrcode"
)

const (
	LinkTokenType = "telegram_link"
	linkTokenTTL  = time.Hour
)

// TelegramLink is what the dashboard shows to start linking a chat. Code is
// the /start parameter: Telegram only accepts up to 64 characters of
// [A-Za-z0-9_-], so the signed token stays server side under that code.
type TelegramLink struct {
	Code      string    `json:"code"`
	URL       string    `json:"url"`
	QRCode    string    `json:"qr_code"` // base64 PNG of URL
	ExpiresAt time.Time `json:"expires_at"`
}

type linkEntry struct {
	token     string
	expiresAt time.Time
}

// LinkService issues and verifies the short-lived tokens exchanged through
// the bot's /start command. Codes are single use.
type LinkService struct {
	secret      []byte
	botUsername string
	redis       *redis.Client
	now         func() time.Time
	newCode     func() (string, error)

	mu     sync.Mutex
	memory map[string]linkEntry
}

func NewLinkService(secret, botUsername string, redisClient *redis.Client) *LinkService {
	if botUsername == "" {
		botUsername = "DuweKuBot"
	}
	return &LinkService{
		secret:      []byte(secret),
		botUsername: botUsername,
		redis:       redisClient,
		now:         time.Now,
		newCode:     generateLinkCode,
		memory:      make(map[string]linkEntry),
	}
}

// generateLinkCode returns 22 URL-safe characters.
func generateLinkCode() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate link code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func linkKey(code string) string {
	return fmt.Sprintf("link:%s", code)
}

func (s *LinkService) IssueLinkToken(ctx context.Context, userID string) (*TelegramLink, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	now := s.now()
	expiresAt := now.Add(linkTokenTTL)
	signed, err := s.sign(userID, now, expiresAt)
	if err != nil {
		return nil, err
	}

	code, err := s.newCode()
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, code, signed, expiresAt); err != nil {
		return nil, fmt.Errorf("store link code: %w", err)
	}

	link := fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername, code)
	qrImage, err := renderQR(link)
	if err != nil {
		return nil, err
	}

	return &TelegramLink{Code: code, URL: link, QRCode: qrImage, ExpiresAt: expiresAt}, nil
}

func (s *LinkService) sign(userID string, now, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"type": LinkTokenType,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	})
	return token.SignedString(s.secret)
}

func (s *LinkService) store(ctx context.Context, code, token string, expiresAt time.Time) error {
	if s.redis != nil {
		return s.redis.Set(ctx, linkKey(code), token, linkTokenTTL).Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.memory {
		if !s.now().Before(e.expiresAt) {
			delete(s.memory, k)
		}
	}
	s.memory[code] = linkEntry{token: token, expiresAt: expiresAt}
	return nil
}

// consume returns the token stored under code and removes it.
func (s *LinkService) consume(ctx context.Context, code string) (string, error) {
	if s.redis != nil {
		token, err := s.redis.Get(ctx, linkKey(code)).Result()
		if errors.Is(err, redis.Nil) {
			return "", ErrInvalidLinkToken
		}
		if err != nil {
			return "", err
		}
		if err := s.redis.Del(ctx, linkKey(code)).Err(); err != nil {
			return "", err
		}
		return token, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.memory[code]
	if !ok {
		return "", ErrInvalidLinkToken
	}
	delete(s.memory, code)
	return e.token, nil
}

// VerifyLinkToken redeems a /start code and returns the user id it was issued for.
func (s *LinkService) VerifyLinkToken(ctx context.Context, code string) (string, error) {
	token, err := s.consume(ctx, code)
	if err != nil {
		return "", err
	}
	return s.verify(token)
}

func (s *LinkService) verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidLinkToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["type"] != LinkTokenType {
		return "", ErrInvalidLinkToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidLinkToken
	}
	return sub, nil
}

func renderQR(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
