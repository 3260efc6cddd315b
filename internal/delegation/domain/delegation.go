package domain

import (
	"net/http"

	identityDomain "github.com/allisson/consentbroker/internal/identity/domain"
)

// DelegateInput is an inbound call to relay to a destination on behalf of a user.
type DelegateInput struct {
	Principal   *identityDomain.Principal
	Destination string
	Method      string
	Path        string
	RawQuery    string
	Header      http.Header
	Body        []byte
	// RedirectURI is handed back to the consent UI when consent is missing.
	RedirectURI string
}

// Result records the states a delegated call went through and, once forwarded,
// the destination response.
type Result struct {
	States         []State
	TokenExchanged bool
	StatusCode     int
	Header         http.Header
	Body           []byte
}

// Enter appends a state to the trace.
func (r *Result) Enter(state State) {
	r.States = append(r.States, state)
}

// Current is the last state entered.
func (r *Result) Current() State {
	if len(r.States) == 0 {
		return ""
	}
	return r.States[len(r.States)-1]
}

// ForwardRequest is the call made to a destination.
type ForwardRequest struct {
	Destination *Destination
	Method      string
	Path        string
	RawQuery    string
	Header      http.Header
	Body        []byte
	Token       string
}

// ForwardResponse is the destination's answer.
type ForwardResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
