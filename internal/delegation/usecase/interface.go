// Package usecase drives delegated calls through consent checking, token exchange
// and forwarding, and records users' consent decisions.
package usecase

import (
	"context"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	delegationDomain "github.com/allisson/consentbroker/internal/delegation/domain"
	manifestDomain "github.com/allisson/consentbroker/internal/manifest/domain"
)

// ConsentClient checks and records consent grants, either in-process or against a
// remote broker.
type ConsentClient interface {
	Check(ctx context.Context, input consentDomain.CheckConsentInput) (*consentDomain.ConsentCheck, error)
	Grant(ctx context.Context, input consentDomain.GrantConsentInput) error
}

// DestinationCatalog resolves configured destinations by application name.
type DestinationCatalog interface {
	Get(id string) (*delegationDomain.Destination, error)
}

// ManifestSource fetches a destination's capability manifest.
type ManifestSource interface {
	Fetch(ctx context.Context, url string) (*manifestDomain.Manifest, error)
}

// TokenExchanger obtains a credential scoped to audience from a user's token.
type TokenExchanger interface {
	Exchange(ctx context.Context, subjectToken, audience string) (string, error)
}

// Forwarder calls a destination and returns its response. Transport failures are
// reported as ErrUnavailable; any HTTP status is a response, not an error.
type Forwarder interface {
	Forward(ctx context.Context, req *delegationDomain.ForwardRequest) (*delegationDomain.ForwardResponse, error)
}

// StateStore keeps pending consent requests behind one-shot anti-forgery states.
type StateStore interface {
	Save(ctx context.Context, pending *delegationDomain.PendingConsent) error
	// Peek returns the pending request without removing it.
	Peek(ctx context.Context, state string) (*delegationDomain.PendingConsent, error)
	// Consume returns and removes the pending request. Unknown, expired or already
	// consumed states fail with ErrConsentStateNotFound.
	Consume(ctx context.Context, state string) (*delegationDomain.PendingConsent, error)
}

// DelegationUseCase runs the delegation protocol.
type DelegationUseCase interface {
	// Delegate relays a call to a destination when the user has consented. The
	// result is returned on failure too so callers can inspect the visited states.
	Delegate(ctx context.Context, input *delegationDomain.DelegateInput) (*delegationDomain.Result, error)

	// RecordDecision applies the user's answer to a consent challenge.
	RecordDecision(ctx context.Context, input delegationDomain.DecisionInput) (*delegationDomain.DecisionOutcome, error)
}
