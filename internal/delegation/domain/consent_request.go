package domain

import (
	"slices"
	"time"
)

// Consent decisions.
const (
	DecisionGrant = "grant"
	DecisionDeny  = "deny"
)

// PendingConsent is the server-side record behind an anti-forgery state. It is
// consumed exactly once when the user's decision arrives.
type PendingConsent struct {
	State          string    `json:"state"`
	UserID         string    `json:"user_id"`
	RequestingApp  string    `json:"requesting_app"`
	DestinationApp string    `json:"destination_app"`
	Operations     []string  `json:"operations"`
	RedirectURI    string    `json:"redirect_uri,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Approved returns the operations to grant. An empty selection approves every
// pending operation; otherwise only the pending operations the user selected are
// kept, in pending order.
func (p *PendingConsent) Approved(selected []string) []string {
	if len(selected) == 0 {
		return slices.Clone(p.Operations)
	}
	approved := make([]string, 0, len(selected))
	for _, operation := range p.Operations {
		if slices.Contains(selected, operation) {
			approved = append(approved, operation)
		}
	}
	return approved
}

// DecisionInput is a user's answer to a consent challenge.
type DecisionInput struct {
	UserID     string
	State      string
	Decision   string
	Operations []string
}

// DecisionOutcome describes what a decision recorded.
type DecisionOutcome struct {
	Decision       string
	RequestingApp  string
	DestinationApp string
	Granted        []string
	RedirectURI    string
}
