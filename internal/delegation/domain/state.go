// Package domain defines the delegation protocol: its states, destinations, pending
// consent requests and the challenge returned when consent is missing.
package domain

// State is a step of a delegated call.
type State string

// Delegation states. A call moves Authenticated → ConsentChecked → Denied | Granted;
// granted calls continue Exchanging → Forwarding → Completed | Failed.
const (
	StateAuthenticated  State = "authenticated"
	StateConsentChecked State = "consent_checked"
	StateDenied         State = "denied"
	StateGranted        State = "granted"
	StateExchanging     State = "exchanging"
	StateForwarding     State = "forwarding"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDenied || s == StateCompleted || s == StateFailed
}
