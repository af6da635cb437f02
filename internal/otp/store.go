package otp

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// errNoCode is returned by stores when no live code exists for a phone.
var errNoCode = errors.New("otp: no code")

// Record is a pending code: its bcrypt hash and failed attempts so far.
type Record struct {
	Hash     []byte
	Attempts int
}

// Store keeps pending codes until they expire or are consumed.
type Store interface {
	Save(ctx context.Context, phone string, hash []byte, ttl time.Duration) error
	Load(ctx context.Context, phone string) (Record, error)
	IncrementAttempts(ctx context.Context, phone string) (int, error)
	Delete(ctx context.Context, phone string) error
}

const redisPrefix = "otp:v1:"

// RedisStore keeps codes in a Redis hash per phone with a TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed code store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, phone string, hash []byte, ttl time.Duration) error {
	key := redisPrefix + phone
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, "hash", string(hash), "attempts", 0)
		p.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Load(ctx context.Context, phone string) (Record, error) {
	values, err := s.client.HGetAll(ctx, redisPrefix+phone).Result()
	if err != nil {
		return Record{}, err
	}
	hash, ok := values["hash"]
	if !ok {
		if len(values) > 0 {
			// attempts counter left behind by a racing expiry
			s.client.Del(ctx, redisPrefix+phone)
		}
		return Record{}, errNoCode
	}
	attempts, _ := strconv.Atoi(values["attempts"])
	return Record{Hash: []byte(hash), Attempts: attempts}, nil
}

func (s *RedisStore) IncrementAttempts(ctx context.Context, phone string) (int, error) {
	n, err := s.client.HIncrBy(ctx, redisPrefix+phone, "attempts", 1).Result()
	return int(n), err
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	return s.client.Del(ctx, redisPrefix+phone).Err()
}

type memoryEntry struct {
	record  Record
	expires time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore builds an in-process code store for development.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *memoryStore) Save(_ context.Context, phone string, hash []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[phone] = memoryEntry{record: Record{Hash: hash}, expires: s.now().Add(ttl)}
	return nil
}

func (s *memoryStore) Load(_ context.Context, phone string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(phone)
	if !ok {
		return Record{}, errNoCode
	}
	return entry.record, nil
}

func (s *memoryStore) IncrementAttempts(_ context.Context, phone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(phone)
	if !ok {
		return 0, errNoCode
	}
	entry.record.Attempts++
	s.entries[phone] = entry
	return entry.record.Attempts, nil
}

func (s *memoryStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, phone)
	return nil
}

// live returns the unexpired entry for phone. Callers hold mu.
func (s *memoryStore) live(phone string) (memoryEntry, bool) {
	entry, ok := s.entries[phone]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(entry.expires) {
		delete(s.entries, phone)
		return memoryEntry{}, false
	}
	return entry, true
}
