// Package service verifies bearer tokens against the identity provider's signing keys.
package service

import (
	"context"

	identityDomain "github.com/allisson/consentbroker/internal/identity/domain"
)

// KeySet resolves token signing keys by key id.
type KeySet interface {
	// Key returns the public key for kid.
	Key(ctx context.Context, kid string) (any, error)
}

// TokenVerifier turns a raw bearer token into a verified Principal.
type TokenVerifier interface {
	// Verify checks signature, issuer, expiry and audience. Unverifiable tokens fail
	// with ErrUnauthorized; an unreachable key source fails with ErrUnavailable.
	Verify(ctx context.Context, token string) (*identityDomain.Principal, error)
}
