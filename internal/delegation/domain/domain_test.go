package domain

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/allisson/consentbroker/internal/errors"
)

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateDenied.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateGranted.Terminal())
	assert.False(t, StateForwarding.Terminal())
}

func TestDestination_Validate(t *testing.T) {
	valid := Destination{ID: "service-b", BaseURL: "http://localhost:8002", Audience: "banking-service"}
	assert.NoError(t, valid.Validate())

	missingAudience := valid
	missingAudience.Audience = ""
	assert.Error(t, missingAudience.Validate())

	badURL := valid
	badURL.BaseURL = "ftp://bank"
	assert.Error(t, badURL.Validate())
}

func TestDestination_URLs(t *testing.T) {
	destination := Destination{ID: "service-b", BaseURL: "http://localhost:8002/"}

	assert.Equal(t, "http://localhost:8002/.well-known/capability-manifest", destination.ResolvedManifestURL())
	assert.Equal(t, "http://localhost:8002/withdraw", destination.URL("/withdraw", ""))
	assert.Equal(t, "http://localhost:8002/accounts/1?full=true", destination.URL("accounts/1", "full=true"))

	destination.ManifestURL = "http://manifests.internal/service-b.json"
	assert.Equal(t, "http://manifests.internal/service-b.json", destination.ResolvedManifestURL())
}

func TestPendingConsent_Approved(t *testing.T) {
	pending := &PendingConsent{Operations: []string{"withdraw", "view_balance"}}

	t.Run("EmptySelectionApprovesAll", func(t *testing.T) {
		approved := pending.Approved(nil)
		assert.Equal(t, []string{"withdraw", "view_balance"}, approved)

		approved[0] = "changed"
		assert.Equal(t, "withdraw", pending.Operations[0])
	})

	t.Run("Intersection", func(t *testing.T) {
		assert.Equal(t, []string{"view_balance"}, pending.Approved([]string{"view_balance", "transfer"}))
	})

	t.Run("NoOverlap", func(t *testing.T) {
		assert.Empty(t, pending.Approved([]string{"transfer"}))
	})
}

func TestResult_Trace(t *testing.T) {
	result := &Result{}
	assert.Equal(t, State(""), result.Current())

	result.Enter(StateAuthenticated)
	result.Enter(StateConsentChecked)
	assert.Equal(t, StateConsentChecked, result.Current())
	assert.Equal(t, []State{StateAuthenticated, StateConsentChecked}, result.States)
}

func TestErrors(t *testing.T) {
	consentErr := &ConsentRequiredError{Challenge: &Challenge{
		Destination:       ChallengeService{ID: "service-b"},
		MissingOperations: []MissingOperation{{Capability: "withdraw"}},
	}}
	assert.ErrorIs(t, consentErr, errors.ErrForbidden)
	assert.Contains(t, consentErr.Error(), "service-b")

	rejected := &UpstreamRejectedError{Destination: "service-b", StatusCode: http.StatusForbidden}
	assert.True(t, rejected.Forbidden())
	assert.False(t, (&UpstreamRejectedError{StatusCode: http.StatusBadRequest}).Forbidden())

	assert.ErrorIs(t, ErrConsentStateNotFound, errors.ErrInvalidInput)
	assert.ErrorIs(t, ErrConsentStateMismatch, errors.ErrForbidden)
	assert.ErrorIs(t, ErrDestinationNotFound, errors.ErrNotFound)
}
