package usecase

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	delegationDomain "github.com/allisson/consentbroker/internal/delegation/domain"
	"github.com/allisson/consentbroker/internal/delegation/usecase/mocks"
	apperrors "github.com/allisson/consentbroker/internal/errors"
	identityDomain "github.com/allisson/consentbroker/internal/identity/domain"
	manifestDomain "github.com/allisson/consentbroker/internal/manifest/domain"
	"github.com/allisson/consentbroker/internal/metrics"
)

const manifestURL = "http://bank.internal/.well-known/capability-manifest"

type fakeDestinations map[string]*delegationDomain.Destination

func (f fakeDestinations) Get(id string) (*delegationDomain.Destination, error) {
	if destination, ok := f[id]; ok {
		return destination, nil
	}
	return nil, delegationDomain.ErrDestinationNotFound
}

type recordingMetrics struct {
	mu        sync.Mutex
	outcomes  []string
	fallbacks int
}

func (r *recordingMetrics) RecordOutcome(ctx context.Context, destination, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingMetrics) RecordExchangeFallback(ctx context.Context, destination string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks++
}

func bankManifest() *manifestDomain.Manifest {
	return &manifestDomain.Manifest{
		ServiceID:    "service-b",
		DisplayName:  "Banking Service",
		ConsentUIURL: "http://localhost:3000/consent",
		Operations: []manifestDomain.Operation{
			{
				Method:               http.MethodPost,
				Path:                 "/withdraw",
				RequiredCapabilities: []string{"withdraw"},
				CapabilityDescriptions: map[string]string{
					"withdraw": "Withdraw money on your behalf",
				},
			},
			{
				Method:               http.MethodPost,
				Path:                 "/transfer",
				RequiredCapabilities: []string{"view_balance", "withdraw"},
			},
		},
		Capabilities: []manifestDomain.CapabilityInfo{
			{Name: "withdraw", DisplayName: "Withdraw funds", Risk: manifestDomain.RiskHigh},
			{Name: "view_balance", DisplayName: "View balance", Description: "Read your balance", Risk: manifestDomain.RiskLow},
		},
	}
}

type delegationFixture struct {
	consent   *mocks.MockConsentClient
	manifests *mocks.MockManifestSource
	exchanger *mocks.MockTokenExchanger
	forwarder *mocks.MockForwarder
	states    *mocks.MockStateStore
	metrics   *recordingMetrics
	useCase   DelegationUseCase
}

func newDelegationFixture(t *testing.T, withExchanger bool) *delegationFixture {
	t.Helper()

	f := &delegationFixture{
		consent:   mocks.NewMockConsentClient(t),
		manifests: mocks.NewMockManifestSource(t),
		exchanger: mocks.NewMockTokenExchanger(t),
		forwarder: mocks.NewMockForwarder(t),
		states:    mocks.NewMockStateStore(t),
		metrics:   &recordingMetrics{},
	}

	destinations := fakeDestinations{
		"service-b": {
			ID:          "service-b",
			DisplayName: "Bank",
			BaseURL:     "http://bank.internal",
			Audience:    "banking-service",
		},
	}

	var exchanger TokenExchanger
	if withExchanger {
		exchanger = f.exchanger
	}

	f.useCase = NewDelegationUseCase(
		Config{AppName: "service-a", DefaultConsentUIURL: "http://broker/consent"},
		f.consent,
		destinations,
		f.manifests,
		exchanger,
		f.forwarder,
		f.states,
		func() (string, error) { return "state-123", nil },
		f.metrics,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func withdrawInput() *delegationDomain.DelegateInput {
	return &delegationDomain.DelegateInput{
		Principal: &identityDomain.Principal{
			Subject:  "alice",
			Username: "alice",
			Token:    "user-token",
		},
		Destination: "service-b",
		Method:      http.MethodPost,
		Path:        "/withdraw",
		Body:        []byte(`{"amount":100}`),
		RedirectURI: "http://app.example.com/done",
	}
}

func (f *delegationFixture) expectCheck(granted map[string]bool) {
	f.manifests.On("Fetch", mock.Anything, manifestURL).Return(bankManifest(), nil).Once()
	f.consent.On("Check", mock.Anything, mock.MatchedBy(func(input consentDomain.CheckConsentInput) bool {
		return input.UserID == "alice" &&
			input.RequestingAppName == "service-a" &&
			input.DestinationAppName == "service-b"
	})).Return(consentDomain.NewConsentCheck(granted), nil).Once()
}

func TestDelegationUseCase_Delegate(t *testing.T) {
	ctx := context.Background()

	t.Run("Completed_WithExchangedToken", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.expectCheck(map[string]bool{"withdraw": true})
		f.exchanger.On("Exchange", mock.Anything, "user-token", "banking-service").Return("scoped-token", nil).Once()
		f.forwarder.On("Forward", mock.Anything, mock.MatchedBy(func(req *delegationDomain.ForwardRequest) bool {
			return req.Token == "scoped-token" &&
				req.Destination.ID == "service-b" &&
				req.Path == "/withdraw" &&
				string(req.Body) == `{"amount":100}`
		})).Return(&delegationDomain.ForwardResponse{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       []byte(`{"status":"ok","withdrawn":100}`),
		}, nil).Once()

		result, err := f.useCase.Delegate(ctx, withdrawInput())

		require.NoError(t, err)
		assert.Equal(t, []delegationDomain.State{
			delegationDomain.StateAuthenticated,
			delegationDomain.StateConsentChecked,
			delegationDomain.StateGranted,
			delegationDomain.StateExchanging,
			delegationDomain.StateForwarding,
			delegationDomain.StateCompleted,
		}, result.States)
		assert.True(t, result.TokenExchanged)
		assert.Equal(t, http.StatusOK, result.StatusCode)
		assert.Equal(t, `{"status":"ok","withdrawn":100}`, string(result.Body))
		assert.Equal(t, []string{metrics.OutcomeCompleted}, f.metrics.outcomes)
	})

	t.Run("ExchangeFailureFallsBackToOriginalToken", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.expectCheck(map[string]bool{"withdraw": true})
		f.exchanger.On("Exchange", mock.Anything, "user-token", "banking-service").
			Return("", apperrors.ErrUnavailable).Once()
		f.forwarder.On("Forward", mock.Anything, mock.MatchedBy(func(req *delegationDomain.ForwardRequest) bool {
			return req.Token == "user-token"
		})).Return(&delegationDomain.ForwardResponse{StatusCode: http.StatusOK, Body: []byte(`{}`)}, nil).Once()

		result, err := f.useCase.Delegate(ctx, withdrawInput())

		require.NoError(t, err)
		assert.False(t, result.TokenExchanged)
		assert.Equal(t, delegationDomain.StateCompleted, result.Current())
		assert.Equal(t, 1, f.metrics.fallbacks)
	})

	t.Run("NoExchangerForwardsOriginalToken", func(t *testing.T) {
		f := newDelegationFixture(t, false)
		f.expectCheck(map[string]bool{"withdraw": true})
		f.forwarder.On("Forward", mock.Anything, mock.MatchedBy(func(req *delegationDomain.ForwardRequest) bool {
			return req.Token == "user-token"
		})).Return(&delegationDomain.ForwardResponse{StatusCode: http.StatusCreated}, nil).Once()

		result, err := f.useCase.Delegate(ctx, withdrawInput())

		require.NoError(t, err)
		assert.NotContains(t, result.States, delegationDomain.StateExchanging)
		assert.Equal(t, http.StatusCreated, result.StatusCode)
	})

	t.Run("ConsentRequired", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.expectCheck(map[string]bool{"withdraw": false})
		f.states.On("Save", mock.Anything, mock.MatchedBy(func(p *delegationDomain.PendingConsent) bool {
			return p.State == "state-123" &&
				p.UserID == "alice" &&
				p.RequestingApp == "service-a" &&
				p.DestinationApp == "service-b" &&
				assert.ObjectsAreEqual([]string{"withdraw"}, p.Operations) &&
				p.RedirectURI == "http://app.example.com/done"
		})).Return(nil).Once()

		result, err := f.useCase.Delegate(ctx, withdrawInput())

		var consentErr *delegationDomain.ConsentRequiredError
		require.ErrorAs(t, err, &consentErr)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)

		challenge := consentErr.Challenge
		assert.Equal(t, delegationDomain.ConsentRequiredCode, challenge.Error)
		assert.Equal(t, "service-b", challenge.Destination.ID)
		assert.Equal(t, "Banking Service", challenge.Destination.DisplayName)
		assert.Equal(t, "http://localhost:3000/consent", challenge.ConsentURL)
		require.Len(t, challenge.MissingOperations, 1)
		assert.Equal(t, "withdraw", challenge.MissingOperations[0].Capability)
		assert.Equal(t, "Withdraw money on your behalf", challenge.MissingOperations[0].Description)
		assert.Equal(t, "high", challenge.MissingOperations[0].Risk)
		assert.Equal(t, "state-123", challenge.Params.State)
		assert.Equal(t, "service-a", challenge.Params.RequestingApp)
		assert.Equal(t, "service-b", challenge.Params.DestinationApp)
		assert.Equal(t, []string{"withdraw"}, challenge.Params.Operations)
		assert.Equal(t, "http://app.example.com/done", challenge.Params.RedirectURI)

		assert.Equal(t, delegationDomain.StateDenied, result.Current())
		assert.Equal(t, []string{metrics.OutcomeConsentRequired}, f.metrics.outcomes)
	})

	t.Run("ConsentRequired_OnlyMissingCapabilities", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.expectCheck(map[string]bool{"view_balance": true, "withdraw": false})
		f.states.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

		input := withdrawInput()
		input.Path = "/transfer"
		_, err := f.useCase.Delegate(ctx, input)

		var consentErr *delegationDomain.ConsentRequiredError
		require.ErrorAs(t, err, &consentErr)
		assert.Equal(t, []string{"withdraw"}, consentErr.Challenge.Params.Operations)
		assert.Equal(t, "Withdraw funds", consentErr.Challenge.MissingOperations[0].Description)
	})

	t.Run("StateStoreFailure", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.expectCheck(map[string]bool{"withdraw": false})
		f.states.On("Save", mock.Anything, mock.Anything).Return(apperrors.ErrUnavailable).Once()

		_, err := f.useCase.Delegate(ctx, withdrawInput())

		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	})

	t.Run("DestinationRejects", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.expectCheck(map[string]bool{"withdraw": true})
		f.exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return("scoped-token", nil).Once()
		f.forwarder.On("Forward", mock.Anything, mock.Anything).Return(&delegationDomain.ForwardResponse{
			StatusCode: http.StatusForbidden,
			Body:       []byte(`{"detail":"Invalid audience. Expected 'banking-service'"}`),
		}, nil).Once()

		result, err := f.useCase.Delegate(ctx, withdrawInput())

		var rejected *delegationDomain.UpstreamRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.True(t, rejected.Forbidden())
		assert.Contains(t, string(rejected.Body), "Invalid audience")
		assert.Equal(t, delegationDomain.StateFailed, result.Current())
		assert.Equal(t, []string{metrics.OutcomeUpstreamDenied}, f.metrics.outcomes)
	})

	t.Run("DestinationUnreachable", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.expectCheck(map[string]bool{"withdraw": true})
		f.exchanger.On("Exchange", mock.Anything, mock.Anything, mock.Anything).Return("scoped-token", nil).Once()
		f.forwarder.On("Forward", mock.Anything, mock.Anything).
			Return(nil, apperrors.Wrap(apperrors.ErrUnavailable, "destination 'service-b' unreachable")).Once()

		result, err := f.useCase.Delegate(ctx, withdrawInput())

		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		assert.NotErrorIs(t, err, apperrors.ErrForbidden)
		assert.Equal(t, delegationDomain.StateFailed, result.Current())
		assert.Equal(t, []string{metrics.OutcomeFailed}, f.metrics.outcomes)
	})

	t.Run("MissingSubject", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		input := withdrawInput()
		input.Principal.Subject = ""

		result, err := f.useCase.Delegate(ctx, input)

		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
		assert.Empty(t, result.States)
	})

	t.Run("UnknownDestination", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		input := withdrawInput()
		input.Destination = "service-z"

		_, err := f.useCase.Delegate(ctx, input)

		assert.ErrorIs(t, err, delegationDomain.ErrDestinationNotFound)
	})

	t.Run("NonCanonicalPath", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		input := withdrawInput()
		input.Path = "/withdraw/.."

		result, err := f.useCase.Delegate(ctx, input)

		assert.ErrorIs(t, err, delegationDomain.ErrNonCanonicalPath)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Equal(t, delegationDomain.StateAuthenticated, result.Current())
		f.manifests.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})

	t.Run("UndeclaredOperation", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.manifests.On("Fetch", mock.Anything, manifestURL).Return(bankManifest(), nil).Once()
		input := withdrawInput()
		input.Method = http.MethodDelete

		_, err := f.useCase.Delegate(ctx, input)

		assert.ErrorIs(t, err, delegationDomain.ErrOperationNotDeclared)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("ManifestUnavailable", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.manifests.On("Fetch", mock.Anything, manifestURL).Return(nil, apperrors.ErrUnavailable).Once()

		_, err := f.useCase.Delegate(ctx, withdrawInput())

		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	})

	t.Run("ConsentCheckFailure", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.manifests.On("Fetch", mock.Anything, manifestURL).Return(bankManifest(), nil).Once()
		f.consent.On("Check", mock.Anything, mock.Anything).
			Return(nil, consentDomain.ApplicationNotFound("service-a")).Once()

		result, err := f.useCase.Delegate(ctx, withdrawInput())

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.Equal(t, delegationDomain.StateAuthenticated, result.Current())
	})
}

func TestDelegationUseCase_RecordDecision(t *testing.T) {
	ctx := context.Background()

	pending := func() *delegationDomain.PendingConsent {
		return &delegationDomain.PendingConsent{
			State:          "state-123",
			UserID:         "alice",
			RequestingApp:  "service-a",
			DestinationApp: "service-b",
			Operations:     []string{"view_balance", "withdraw"},
			RedirectURI:    "http://app.example.com/done",
		}
	}

	t.Run("GrantAllPending", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.states.On("Peek", mock.Anything, "state-123").Return(pending(), nil).Once()
		f.states.On("Consume", mock.Anything, "state-123").Return(pending(), nil).Once()
		f.consent.On("Grant", mock.Anything, consentDomain.GrantConsentInput{
			UserID:             "alice",
			RequestingAppName:  "service-a",
			DestinationAppName: "service-b",
			Capabilities:       []string{"view_balance", "withdraw"},
		}).Return(nil).Once()

		outcome, err := f.useCase.RecordDecision(ctx, delegationDomain.DecisionInput{
			UserID:   "alice",
			State:    "state-123",
			Decision: delegationDomain.DecisionGrant,
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"view_balance", "withdraw"}, outcome.Granted)
		assert.Equal(t, "http://app.example.com/done", outcome.RedirectURI)
	})

	t.Run("GrantOnlyApprovedIntersection", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.states.On("Peek", mock.Anything, "state-123").Return(pending(), nil).Once()
		f.states.On("Consume", mock.Anything, "state-123").Return(pending(), nil).Once()
		f.consent.On("Grant", mock.Anything, consentDomain.GrantConsentInput{
			UserID:             "alice",
			RequestingAppName:  "service-a",
			DestinationAppName: "service-b",
			Capabilities:       []string{"withdraw"},
		}).Return(nil).Once()

		outcome, err := f.useCase.RecordDecision(ctx, delegationDomain.DecisionInput{
			UserID:     "alice",
			State:      "state-123",
			Decision:   delegationDomain.DecisionGrant,
			Operations: []string{"withdraw", "transfer"},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"withdraw"}, outcome.Granted)
		assert.Equal(t, "service-a", outcome.RequestingApp)
		assert.Equal(t, "service-b", outcome.DestinationApp)
	})

	t.Run("NothingApprovedKeepsState", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.states.On("Peek", mock.Anything, "state-123").Return(pending(), nil).Once()

		_, err := f.useCase.RecordDecision(ctx, delegationDomain.DecisionInput{
			UserID:     "alice",
			State:      "state-123",
			Decision:   delegationDomain.DecisionGrant,
			Operations: []string{"transfer"},
		})

		assert.ErrorIs(t, err, delegationDomain.ErrNothingApproved)
		f.states.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
	})

	t.Run("DenyRecordsNothing", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.states.On("Peek", mock.Anything, "state-123").Return(pending(), nil).Once()
		f.states.On("Consume", mock.Anything, "state-123").Return(pending(), nil).Once()

		outcome, err := f.useCase.RecordDecision(ctx, delegationDomain.DecisionInput{
			UserID:   "alice",
			State:    "state-123",
			Decision: delegationDomain.DecisionDeny,
		})

		require.NoError(t, err)
		assert.Equal(t, delegationDomain.DecisionDeny, outcome.Decision)
		assert.Empty(t, outcome.Granted)
		f.consent.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything)
	})

	t.Run("StateOfAnotherUserIsNotSpent", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.states.On("Peek", mock.Anything, "state-123").Return(pending(), nil).Once()

		_, err := f.useCase.RecordDecision(ctx, delegationDomain.DecisionInput{
			UserID:   "mallory",
			State:    "state-123",
			Decision: delegationDomain.DecisionDeny,
		})

		assert.ErrorIs(t, err, delegationDomain.ErrConsentStateMismatch)
		f.states.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
	})

	t.Run("GrantFailureRestoresState", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.states.On("Peek", mock.Anything, "state-123").Return(pending(), nil).Once()
		f.states.On("Consume", mock.Anything, "state-123").Return(pending(), nil).Once()
		f.consent.On("Grant", mock.Anything, mock.Anything).Return(apperrors.ErrUnavailable).Once()
		f.states.On("Save", mock.Anything, mock.MatchedBy(func(p *delegationDomain.PendingConsent) bool {
			return p.State == "state-123" && p.UserID == "alice"
		})).Return(nil).Once()

		_, err := f.useCase.RecordDecision(ctx, delegationDomain.DecisionInput{
			UserID:   "alice",
			State:    "state-123",
			Decision: delegationDomain.DecisionGrant,
		})

		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	})

	t.Run("StateSpentConcurrently", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.states.On("Peek", mock.Anything, "state-123").Return(pending(), nil).Once()
		f.states.On("Consume", mock.Anything, "state-123").
			Return(nil, delegationDomain.ErrConsentStateNotFound).Once()

		_, err := f.useCase.RecordDecision(ctx, delegationDomain.DecisionInput{
			UserID:   "alice",
			State:    "state-123",
			Decision: delegationDomain.DecisionGrant,
		})

		assert.ErrorIs(t, err, delegationDomain.ErrConsentStateNotFound)
		f.consent.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything)
	})

	t.Run("UnknownState", func(t *testing.T) {
		f := newDelegationFixture(t, true)
		f.states.On("Peek", mock.Anything, "forged").Return(nil, delegationDomain.ErrConsentStateNotFound).Once()

		_, err := f.useCase.RecordDecision(ctx, delegationDomain.DecisionInput{
			UserID:   "alice",
			State:    "forged",
			Decision: delegationDomain.DecisionGrant,
		})

		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("InvalidDecision", func(t *testing.T) {
		f := newDelegationFixture(t, true)

		_, err := f.useCase.RecordDecision(ctx, delegationDomain.DecisionInput{
			UserID:   "alice",
			State:    "state-123",
			Decision: "maybe",
		})

		assert.ErrorIs(t, err, delegationDomain.ErrInvalidDecision)
		f.states.AssertNotCalled(t, "Peek", mock.Anything, mock.Anything)
	})
}
