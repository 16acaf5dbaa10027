package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	DedupBackendPostgres = "postgres"
	DedupBackendRedis    = "redis"
	DedupBackendMemory   = "memory"
)

// DedupService drops repeated deliveries of the same provider update.
// The postgres backend relies on the processed_updates primary key, so it
// is correct across many concurrent instances. The memory ring only covers
// a single process and is meant for local runs.
type DedupService struct {
	backend string
	db      *sql.DB
	redis   *redis.Client
	ttl     time.Duration

	mu       sync.Mutex
	ring     []int64
	next     int
	seen     map[int64]struct{}
	capacity int
}

func NewDedupService(backend string, db *sql.DB, redisClient *redis.Client, capacity int, ttl time.Duration) *DedupService {
	if capacity <= 0 {
		capacity = 100
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	switch backend {
	case DedupBackendRedis:
		if redisClient == nil {
			backend = DedupBackendPostgres
		}
	case DedupBackendMemory:
	default:
		backend = DedupBackendPostgres
	}
	if backend == DedupBackendPostgres && db == nil {
		backend = DedupBackendMemory
	}

	return &DedupService{
		backend:  backend,
		db:       db,
		redis:    redisClient,
		ttl:      ttl,
		ring:     make([]int64, 0, capacity),
		seen:     make(map[int64]struct{}, capacity),
		capacity: capacity,
	}
}

func (s *DedupService) Backend() string { return s.backend }

// MarkProcessed records the update id and reports whether this is its first
// delivery.
func (s *DedupService) MarkProcessed(ctx context.Context, updateID int64) (bool, error) {
	switch s.backend {
	case DedupBackendPostgres:
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO processed_updates (update_id, received_at)
			VALUES ($1, $2)
			ON CONFLICT (update_id) DO NOTHING`, updateID, time.Now())
		if err != nil {
			return false, fmt.Errorf("record update %d: %w", updateID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return false, err
		}
		return n == 1, nil

	case DedupBackendRedis:
		return s.redis.SetNX(ctx, fmt.Sprintf("tg:update:%d", updateID), 1, s.ttl).Result()
	}

	return s.markInMemory(updateID), nil
}

// markInMemory keeps the last capacity ids; the oldest id is evicted first.
func (s *DedupService) markInMemory(updateID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[updateID]; ok {
		return false
	}

	if len(s.ring) < s.capacity {
		s.ring = append(s.ring, updateID)
	} else {
		delete(s.seen, s.ring[s.next])
		s.ring[s.next] = updateID
		s.next = (s.next + 1) % s.capacity
	}
	s.seen[updateID] = struct{}{}
	return true
}

// Prune deletes processed update ids older than the dedup TTL. Only the
// postgres backend needs it; redis keys expire on their own.
func (s *DedupService) Prune(ctx context.Context) (int64, error) {
	if s.backend != DedupBackendPostgres {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM processed_updates
		WHERE received_at < $1`, time.Now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
