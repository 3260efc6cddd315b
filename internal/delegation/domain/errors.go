package domain

import (
	"fmt"
	"net/http"

	"github.com/allisson/consentbroker/internal/errors"
)

// Delegation errors.
var (
	// ErrDestinationNotFound indicates the destination is not configured.
	ErrDestinationNotFound = errors.Wrap(errors.ErrNotFound, "destination not found")

	// ErrOperationNotDeclared indicates the destination manifest has no matching operation.
	ErrOperationNotDeclared = errors.Wrap(errors.ErrNotFound, "operation not declared by destination")

	// ErrNonCanonicalPath indicates a delegated path with empty, "." or ".." segments.
	ErrNonCanonicalPath = errors.Wrap(errors.ErrInvalidInput, "delegated path must be canonical")

	// ErrConsentStateNotFound indicates the state is unknown, expired or already used.
	ErrConsentStateNotFound = errors.Wrap(errors.ErrInvalidInput, "invalid or expired consent state")

	// ErrConsentStateMismatch indicates the state belongs to another user.
	ErrConsentStateMismatch = errors.Wrap(errors.ErrForbidden, "consent state was issued to another user")

	// ErrInvalidDecision indicates a decision other than grant or deny.
	ErrInvalidDecision = errors.Wrap(errors.ErrInvalidInput, "decision must be 'grant' or 'deny'")

	// ErrNothingApproved indicates none of the selected operations were pending.
	ErrNothingApproved = errors.Wrap(errors.ErrInvalidInput, "no approved operation matches the consent request")

	// ErrResponseTooLarge indicates the destination response exceeded the relay limit.
	ErrResponseTooLarge = errors.Wrap(errors.ErrUnavailable, "destination response too large")

	// ErrTokenExchangeRejected indicates the identity provider refused the exchange.
	ErrTokenExchangeRejected = errors.New("token exchange rejected")
)

// ConsentRequiredError is returned when the user has not granted every capability an
// operation requires. It carries the challenge to send back to the caller.
type ConsentRequiredError struct {
	Challenge *Challenge
}

func (e *ConsentRequiredError) Error() string {
	return fmt.Sprintf(
		"consent required for %d operation(s) on '%s'",
		len(e.Challenge.MissingOperations),
		e.Challenge.Destination.ID,
	)
}

// Unwrap classifies the challenge as a forbidden outcome.
func (e *ConsentRequiredError) Unwrap() error {
	return errors.ErrForbidden
}

// UpstreamRejectedError is returned when the destination answers with a non-2xx
// status. The destination's status and body are passed through unchanged.
type UpstreamRejectedError struct {
	Destination string
	StatusCode  int
	Header      http.Header
	Body        []byte
}

func (e *UpstreamRejectedError) Error() string {
	return fmt.Sprintf("destination '%s' rejected the request with status %d", e.Destination, e.StatusCode)
}

// Forbidden reports whether the destination refused the caller's credential.
func (e *UpstreamRejectedError) Forbidden() bool {
	return e.StatusCode == http.StatusForbidden
}
