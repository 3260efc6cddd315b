// Package domain defines the authenticated caller identity.
package domain

import (
	"slices"
	"time"

	"github.com/allisson/consentbroker/internal/errors"
)

// Identity errors.
var (
	// ErrInvalidToken indicates the bearer token failed verification.
	ErrInvalidToken = errors.Wrap(errors.ErrUnauthorized, "invalid token")

	// ErrMissingSubject indicates a verified token carries no subject identity.
	ErrMissingSubject = errors.Wrap(errors.ErrUnauthorized, "token has no subject")

	// ErrInvalidAudience indicates the token was not issued for this service.
	ErrInvalidAudience = errors.Wrap(errors.ErrForbidden, "invalid audience")
)

// Principal is the user behind a verified bearer token. The user identity is the
// opaque subject string issued by the identity provider.
type Principal struct {
	Subject   string
	Username  string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	// Token is the raw bearer token, forwarded or exchanged on delegated calls.
	Token string
}

// HasAudience reports whether the token was issued for audience.
func (p *Principal) HasAudience(audience string) bool {
	return slices.Contains(p.Audience, audience)
}
