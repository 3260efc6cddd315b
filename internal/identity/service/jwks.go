package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-jose/go-jose/v4"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/allisson/consentbroker/internal/errors"
)

const jwksCacheKey = "jwks"

// maxJWKSSize bounds the key set document read from the identity provider.
const maxJWKSSize = 1 << 20

// defaultMinRefreshInterval is the minimum time between refreshes forced by an
// unknown kid.
const defaultMinRefreshInterval = 30 * time.Second

// JWKSKeySet fetches and caches the identity provider's JSON Web Key Set. An unknown
// kid forces a refresh so rotated keys are picked up before the cache expires, at
// most once per minRefreshInterval. Concurrent refreshes share one fetch.
type JWKSKeySet struct {
	url                string
	client             *http.Client
	cache              *cache.Cache
	maxRetries         uint64
	minRefreshInterval time.Duration
	logger             *slog.Logger

	group      singleflight.Group
	mu         sync.Mutex
	lastForced time.Time
}

// NewJWKSKeySet creates a key set served from url and cached for ttl.
func NewJWKSKeySet(url string, ttl, timeout time.Duration, maxRetries int, logger *slog.Logger) *JWKSKeySet {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &JWKSKeySet{
		url:                url,
		client:             &http.Client{Timeout: timeout},
		cache:              cache.New(ttl, 2*ttl),
		maxRetries:         uint64(maxRetries),
		minRefreshInterval: defaultMinRefreshInterval,
		logger:             logger,
	}
}

// Key returns the public key registered under kid.
func (s *JWKSKeySet) Key(ctx context.Context, kid string) (any, error) {
	if cached, ok := s.cache.Get(jwksCacheKey); ok {
		if key, found := lookupKey(cached.(*jose.JSONWebKeySet), kid); found {
			return key, nil
		}
		if !s.allowForcedRefresh() {
			return nil, fmt.Errorf("signing key '%s' not found: %w", kid, apperrors.ErrUnauthorized)
		}
	}

	keySet, err := s.refresh(ctx)
	if err != nil {
		return nil, err
	}

	key, found := lookupKey(keySet, kid)
	if !found {
		return nil, fmt.Errorf("signing key '%s' not found: %w", kid, apperrors.ErrUnauthorized)
	}
	return key, nil
}

// allowForcedRefresh claims the forced refresh slot when minRefreshInterval has
// passed since the last one.
func (s *JWKSKeySet) allowForcedRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if !s.lastForced.IsZero() && now.Sub(s.lastForced) < s.minRefreshInterval {
		return false
	}
	s.lastForced = now
	return true
}

func (s *JWKSKeySet) refresh(ctx context.Context) (*jose.JSONWebKeySet, error) {
	value, err, _ := s.group.Do(jwksCacheKey, func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return value.(*jose.JSONWebKeySet), nil
}

func (s *JWKSKeySet) load(ctx context.Context) (*jose.JSONWebKeySet, error) {
	var keySet *jose.JSONWebKeySet

	operation := func() error {
		fetched, err := s.fetch(ctx)
		if err != nil {
			return err
		}
		keySet = fetched
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("jwks fetch failed, retrying",
			slog.String("url", s.url),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, fmt.Sprintf("failed to fetch signing keys: %v", err))
	}

	s.cache.SetDefault(jwksCacheKey, keySet)
	return keySet, nil
}

func (s *JWKSKeySet) fetch(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSSize))
	if err != nil {
		return nil, err
	}

	var keySet jose.JSONWebKeySet
	if err := json.Unmarshal(body, &keySet); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("invalid jwks document: %w", err))
	}
	return &keySet, nil
}

func lookupKey(keySet *jose.JSONWebKeySet, kid string) (any, bool) {
	for _, key := range keySet.Key(kid) {
		if key.Use == "" || key.Use == "sig" {
			return key.Key, true
		}
	}
	return nil, false
}
