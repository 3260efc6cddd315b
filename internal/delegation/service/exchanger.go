package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	delegationDomain "github.com/allisson/consentbroker/internal/delegation/domain"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// RFC 8693 token exchange identifiers.
const (
	tokenExchangeGrantType = "urn:ietf:params:oauth:grant-type:token-exchange"
	accessTokenType        = "urn:ietf:params:oauth:token-type:access_token"
)

// maxTokenResponseSize bounds the identity provider's token response.
const maxTokenResponseSize = 64 << 10

// tokenResponse is the subset of the token endpoint response we read.
type tokenResponse struct {
	AccessToken     string `json:"access_token"`
	IssuedTokenType string `json:"issued_token_type"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int    `json:"expires_in"`
}

// TokenExchangeConfig configures the OAuth client used for the exchange.
type TokenExchangeConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	MaxRetries   int
}

// RFC8693Exchanger exchanges a user's access token for one bound to a destination
// audience at the identity provider's token endpoint.
type RFC8693Exchanger struct {
	cfg    TokenExchangeConfig
	client *http.Client
	logger *slog.Logger
}

// NewRFC8693Exchanger creates an exchanger.
func NewRFC8693Exchanger(cfg TokenExchangeConfig, logger *slog.Logger) *RFC8693Exchanger {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &RFC8693Exchanger{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Exchange returns a token for audience. Connection failures and 5xx answers are
// retried with exponential backoff; a 4xx answer fails immediately with
// ErrTokenExchangeRejected.
func (e *RFC8693Exchanger) Exchange(ctx context.Context, subjectToken, audience string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", tokenExchangeGrantType)
	form.Set("subject_token", subjectToken)
	form.Set("subject_token_type", accessTokenType)
	form.Set("requested_token_type", accessTokenType)
	form.Set("audience", audience)
	form.Set("client_id", e.cfg.ClientID)
	if e.cfg.ClientSecret != "" {
		form.Set("client_secret", e.cfg.ClientSecret)
	}
	encoded := form.Encode()

	var token string
	operation := func() error {
		exchanged, err := e.exchangeOnce(ctx, encoded)
		if err != nil {
			return err
		}
		token = exchanged
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.cfg.MaxRetries)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		e.logger.Debug("token exchange attempt failed, retrying",
			slog.String("audience", audience),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", err
	}
	return token, nil
}

func (e *RFC8693Exchanger) exchangeOnce(ctx context.Context, form string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.TokenURL, strings.NewReader(form))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to build token exchange request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrUnavailable, fmt.Sprintf("token endpoint unreachable: %v", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrUnavailable, fmt.Sprintf("failed to read token response: %v", err))
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", apperrors.Wrap(
			apperrors.ErrUnavailable,
			fmt.Sprintf("token endpoint returned status %d", resp.StatusCode),
		)
	case resp.StatusCode != http.StatusOK:
		return "", backoff.Permanent(fmt.Errorf(
			"status %d: %s: %w",
			resp.StatusCode,
			strings.TrimSpace(string(body)),
			delegationDomain.ErrTokenExchangeRejected,
		))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", backoff.Permanent(fmt.Errorf("invalid token response: %w", err))
	}
	if token.AccessToken == "" {
		return "", backoff.Permanent(fmt.Errorf("token response has no access_token: %w",
			delegationDomain.ErrTokenExchangeRejected))
	}
	return token.AccessToken, nil
}
