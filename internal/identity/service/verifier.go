package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/allisson/consentbroker/internal/errors"
	identityDomain "github.com/allisson/consentbroker/internal/identity/domain"
)

// userClaims are the claims read from inbound user tokens.
type userClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// JWTVerifier verifies asymmetric JWTs against a KeySet.
type JWTVerifier struct {
	keys     KeySet
	issuer   string
	audience string
}

// NewJWTVerifier creates a verifier. Empty issuer or audience disables that check.
func NewJWTVerifier(keys KeySet, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify parses token and checks signature, expiry, issuer and audience.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*identityDomain.Principal, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "PS256", "EdDSA"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}

	claims := &userClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	}, options...)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrUnavailable) {
			return nil, err
		}
		if apperrors.Is(err, jwt.ErrTokenInvalidAudience) {
			return nil, fmt.Errorf("%v: %w", err, identityDomain.ErrInvalidAudience)
		}
		return nil, fmt.Errorf("%v: %w", err, identityDomain.ErrInvalidToken)
	}

	if claims.Subject == "" {
		return nil, identityDomain.ErrMissingSubject
	}

	principal := &identityDomain.Principal{
		Subject:  claims.Subject,
		Username: claims.PreferredUsername,
		Issuer:   claims.Issuer,
		Audience: claims.Audience,
		Token:    token,
	}
	if principal.Username == "" {
		principal.Username = claims.Subject
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}
