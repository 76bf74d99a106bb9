package chatjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists jobs for the poll window.
type Store interface {
	Save(ctx context.Context, job *Job, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Job, error)
}

// memoryEntry holds a job with its expiry.
type memoryEntry struct {
	job     Job
	expires time.Time
}

// MemoryStore keeps jobs in process memory. Used when Redis is not configured
// and in tests.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryEntry)}
}

// Save stores a copy of the job with expiry.
func (s *MemoryStore) Save(_ context.Context, job *Job, ttl time.Duration) error {
	if job == nil || job.ID == "" {
		return errors.New("chatjob: empty job")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[job.ID] = memoryEntry{job: *job, expires: time.Now().Add(ttl)}
	return nil
}

// Get returns a copy of the job if present and not expired.
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if time.Now().After(entry.expires) {
		delete(s.items, id)
		return nil, ErrJobNotFound
	}
	job := entry.job
	return &job, nil
}

// RedisStore keeps jobs in Redis so results survive process restarts and are
// shared across instances.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps a Redis client as a job store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// jobKey builds the Redis key for a job id.
func jobKey(id string) string {
	return "chatjob:" + id
}

// Save serializes the job into Redis with the TTL.
func (s *RedisStore) Save(ctx context.Context, job *Job, ttl time.Duration) error {
	if job == nil || job.ID == "" {
		return errors.New("chatjob: empty job")
	}
	payload, errMarshal := json.Marshal(job)
	if errMarshal != nil {
		return fmt.Errorf("chatjob: marshal job: %w", errMarshal)
	}
	if errSet := s.rdb.Set(ctx, jobKey(job.ID), payload, ttl).Err(); errSet != nil {
		return fmt.Errorf("chatjob: store job: %w", errSet)
	}
	return nil
}

// Get deserializes the job from Redis.
func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	val, errGet := s.rdb.Get(ctx, jobKey(id)).Result()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("chatjob: load job: %w", errGet)
	}
	var job Job
	if errUnmarshal := json.Unmarshal([]byte(val), &job); errUnmarshal != nil {
		return nil, fmt.Errorf("chatjob: unmarshal job: %w", errUnmarshal)
	}
	return &job, nil
}
