package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	delegationDomain "github.com/allisson/consentbroker/internal/delegation/domain"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// stateBytes is the entropy of an anti-forgery state.
const stateBytes = 32

// GenerateState returns a random URL-safe anti-forgery state.
func GenerateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate consent state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MemoryStateStore keeps pending consent requests in process memory.
type MemoryStateStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewMemoryStateStore creates a store whose entries expire after ttl.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{cache: cache.New(ttl, 2*ttl)}
}

// Save stores pending under its state.
func (s *MemoryStateStore) Save(ctx context.Context, pending *delegationDomain.PendingConsent) error {
	s.cache.SetDefault(pending.State, *pending)
	return nil
}

// Peek returns the pending request for state without removing it.
func (s *MemoryStateStore) Peek(ctx context.Context, state string) (*delegationDomain.PendingConsent, error) {
	value, ok := s.cache.Get(state)
	if !ok {
		return nil, delegationDomain.ErrConsentStateNotFound
	}
	pending := value.(delegationDomain.PendingConsent)
	return &pending, nil
}

// Consume returns and removes the pending request for state.
func (s *MemoryStateStore) Consume(ctx context.Context, state string) (*delegationDomain.PendingConsent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.cache.Get(state)
	if !ok {
		return nil, delegationDomain.ErrConsentStateNotFound
	}
	s.cache.Delete(state)

	pending := value.(delegationDomain.PendingConsent)
	return &pending, nil
}

// RedisStateStore keeps pending consent requests in Redis so any replica can
// consume a state another replica issued.
type RedisStateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStateStore creates a store writing keys under prefix with the given ttl.
func NewRedisStateStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStateStore {
	if prefix == "" {
		prefix = "consent_state"
	}
	return &RedisStateStore{client: client, prefix: prefix, ttl: ttl}
}

// Save stores pending under its state.
func (s *RedisStateStore) Save(ctx context.Context, pending *delegationDomain.PendingConsent) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to encode consent state: %w", err)
	}

	if err := s.client.Set(ctx, s.key(pending.State), payload, s.ttl).Err(); err != nil {
		return apperrors.Wrap(apperrors.ErrUnavailable, fmt.Sprintf("failed to store consent state: %v", err))
	}
	return nil
}

// Peek returns the pending request for state without removing it.
func (s *RedisStateStore) Peek(ctx context.Context, state string) (*delegationDomain.PendingConsent, error) {
	if state == "" {
		return nil, delegationDomain.ErrConsentStateNotFound
	}
	return s.decode(s.client.Get(ctx, s.key(state)).Bytes())
}

// Consume atomically reads and deletes the pending request for state.
func (s *RedisStateStore) Consume(ctx context.Context, state string) (*delegationDomain.PendingConsent, error) {
	if state == "" {
		return nil, delegationDomain.ErrConsentStateNotFound
	}
	return s.decode(s.client.GetDel(ctx, s.key(state)).Bytes())
}

func (s *RedisStateStore) decode(payload []byte, err error) (*delegationDomain.PendingConsent, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, delegationDomain.ErrConsentStateNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, fmt.Sprintf("failed to read consent state: %v", err))
	}

	var pending delegationDomain.PendingConsent
	if err := json.Unmarshal(payload, &pending); err != nil {
		return nil, fmt.Errorf("failed to decode consent state: %w", err)
	}
	return &pending, nil
}

func (s *RedisStateStore) key(state string) string {
	return s.prefix + ":" + state
}
