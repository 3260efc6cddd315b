package usecase

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	delegationDomain "github.com/allisson/consentbroker/internal/delegation/domain"
	apperrors "github.com/allisson/consentbroker/internal/errors"
	identityDomain "github.com/allisson/consentbroker/internal/identity/domain"
	manifestDomain "github.com/allisson/consentbroker/internal/manifest/domain"
	"github.com/allisson/consentbroker/internal/metrics"
)

// Config holds the delegation settings of this deployment.
type Config struct {
	// AppName is the registered application this deployment acts as.
	AppName string
	// DefaultConsentUIURL is used when a destination manifest names no consent UI.
	DefaultConsentUIURL string
}

// delegationUseCase implements DelegationUseCase.
type delegationUseCase struct {
	cfg          Config
	consent      ConsentClient
	destinations DestinationCatalog
	manifests    ManifestSource
	exchanger    TokenExchanger
	forwarder    Forwarder
	states       StateStore
	newState     func() (string, error)
	metrics      metrics.DelegationMetrics
	logger       *slog.Logger
}

// NewDelegationUseCase creates a DelegationUseCase. A nil exchanger forwards the
// user's original token without attempting an exchange.
func NewDelegationUseCase(
	cfg Config,
	consent ConsentClient,
	destinations DestinationCatalog,
	manifests ManifestSource,
	exchanger TokenExchanger,
	forwarder Forwarder,
	states StateStore,
	newState func() (string, error),
	delegationMetrics metrics.DelegationMetrics,
	logger *slog.Logger,
) DelegationUseCase {
	if delegationMetrics == nil {
		delegationMetrics = metrics.NewNoOpDelegationMetrics()
	}
	return &delegationUseCase{
		cfg:          cfg,
		consent:      consent,
		destinations: destinations,
		manifests:    manifests,
		exchanger:    exchanger,
		forwarder:    forwarder,
		states:       states,
		newState:     newState,
		metrics:      delegationMetrics,
		logger:       logger,
	}
}

// Delegate runs the delegation state machine for one call.
func (d *delegationUseCase) Delegate(
	ctx context.Context,
	input *delegationDomain.DelegateInput,
) (*delegationDomain.Result, error) {
	result := &delegationDomain.Result{}

	principal := input.Principal
	if principal == nil || principal.Subject == "" {
		return result, identityDomain.ErrMissingSubject
	}
	d.enter(result, delegationDomain.StateAuthenticated, input)

	if !manifestDomain.IsCanonicalPath(input.Path) {
		return result, apperrors.Wrap(delegationDomain.ErrNonCanonicalPath, input.Path)
	}

	destination, err := d.destinations.Get(input.Destination)
	if err != nil {
		return result, err
	}

	manifest, err := d.manifests.Fetch(ctx, destination.ResolvedManifestURL())
	if err != nil {
		return result, err
	}

	operation, ok := manifest.MatchOperation(input.Method, input.Path)
	if !ok {
		return result, apperrors.Wrap(
			delegationDomain.ErrOperationNotDeclared,
			input.Method+" "+input.Path+" on '"+destination.ID+"'",
		)
	}

	check, err := d.consent.Check(ctx, consentDomain.CheckConsentInput{
		UserID:             principal.Subject,
		RequestingAppName:  d.cfg.AppName,
		DestinationAppName: destination.ID,
		Capabilities:       operation.RequiredCapabilities,
	})
	if err != nil {
		return result, err
	}
	d.enter(result, delegationDomain.StateConsentChecked, input)

	if !check.AllGranted {
		d.enter(result, delegationDomain.StateDenied, input)
		challenge, err := d.challenge(ctx, input, destination, manifest, operation, check)
		if err != nil {
			return result, err
		}
		d.metrics.RecordOutcome(ctx, destination.ID, metrics.OutcomeConsentRequired)
		return result, &delegationDomain.ConsentRequiredError{Challenge: challenge}
	}
	d.enter(result, delegationDomain.StateGranted, input)

	token := principal.Token
	if d.exchanger != nil {
		d.enter(result, delegationDomain.StateExchanging, input)
		exchanged, err := d.exchanger.Exchange(ctx, principal.Token, destination.Audience)
		if err != nil {
			d.logger.Warn("token exchange failed, forwarding original token",
				slog.String("destination", destination.ID),
				slog.String("audience", destination.Audience),
				slog.Any("error", err),
			)
			d.metrics.RecordExchangeFallback(ctx, destination.ID)
		} else {
			token = exchanged
			result.TokenExchanged = true
		}
	}

	d.enter(result, delegationDomain.StateForwarding, input)
	response, err := d.forwarder.Forward(ctx, &delegationDomain.ForwardRequest{
		Destination: destination,
		Method:      input.Method,
		Path:        input.Path,
		RawQuery:    input.RawQuery,
		Header:      input.Header,
		Body:        input.Body,
		Token:       token,
	})
	if err != nil {
		d.enter(result, delegationDomain.StateFailed, input)
		d.metrics.RecordOutcome(ctx, destination.ID, metrics.OutcomeFailed)
		return result, err
	}

	result.StatusCode = response.StatusCode
	result.Header = response.Header
	result.Body = response.Body

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		d.enter(result, delegationDomain.StateFailed, input)
		d.metrics.RecordOutcome(ctx, destination.ID, metrics.OutcomeUpstreamDenied)
		return result, &delegationDomain.UpstreamRejectedError{
			Destination: destination.ID,
			StatusCode:  response.StatusCode,
			Header:      response.Header,
			Body:        response.Body,
		}
	}

	d.enter(result, delegationDomain.StateCompleted, input)
	d.metrics.RecordOutcome(ctx, destination.ID, metrics.OutcomeCompleted)
	return result, nil
}

// challenge stores a pending consent request and builds the payload pointing the
// user to the destination's consent UI.
func (d *delegationUseCase) challenge(
	ctx context.Context,
	input *delegationDomain.DelegateInput,
	destination *delegationDomain.Destination,
	manifest *manifestDomain.Manifest,
	operation *manifestDomain.Operation,
	check *consentDomain.ConsentCheck,
) (*delegationDomain.Challenge, error) {
	missing := check.Missing(operation.RequiredCapabilities)

	state, err := d.newState()
	if err != nil {
		return nil, err
	}

	pending := &delegationDomain.PendingConsent{
		State:          state,
		UserID:         input.Principal.Subject,
		RequestingApp:  d.cfg.AppName,
		DestinationApp: destination.ID,
		Operations:     missing,
		RedirectURI:    input.RedirectURI,
		CreatedAt:      time.Now().UTC(),
	}
	if err := d.states.Save(ctx, pending); err != nil {
		return nil, err
	}

	missingOperations := make([]delegationDomain.MissingOperation, 0, len(missing))
	for _, capability := range missing {
		entry := delegationDomain.MissingOperation{
			Capability:  capability,
			Description: manifest.Describe(operation, capability),
		}
		if info, ok := manifest.Capability(capability); ok {
			entry.Risk = string(info.Risk)
		}
		missingOperations = append(missingOperations, entry)
	}

	displayName := manifest.DisplayName
	if displayName == "" {
		displayName = destination.DisplayName
	}
	consentURL := manifest.ConsentUIURL
	if consentURL == "" {
		consentURL = d.cfg.DefaultConsentUIURL
	}

	return &delegationDomain.Challenge{
		Error:             delegationDomain.ConsentRequiredCode,
		Destination:       delegationDomain.ChallengeService{ID: destination.ID, DisplayName: displayName},
		MissingOperations: missingOperations,
		ConsentURL:        consentURL,
		Params: delegationDomain.ChallengeParams{
			RequestingApp:  d.cfg.AppName,
			DestinationApp: destination.ID,
			Operations:     missing,
			RedirectURI:    input.RedirectURI,
			State:          state,
		},
	}, nil
}

// RecordDecision consumes the anti-forgery state and grants the approved operations
// for the requester and destination stored with it. The state is left in place when
// it belongs to another user or nothing was approved, and restored when the grant
// fails.
func (d *delegationUseCase) RecordDecision(
	ctx context.Context,
	input delegationDomain.DecisionInput,
) (*delegationDomain.DecisionOutcome, error) {
	if input.Decision != delegationDomain.DecisionGrant && input.Decision != delegationDomain.DecisionDeny {
		return nil, delegationDomain.ErrInvalidDecision
	}

	pending, err := d.states.Peek(ctx, input.State)
	if err != nil {
		return nil, err
	}
	if pending.UserID != input.UserID {
		return nil, delegationDomain.ErrConsentStateMismatch
	}

	var approved []string
	if input.Decision == delegationDomain.DecisionGrant {
		approved = pending.Approved(input.Operations)
		if len(approved) == 0 {
			return nil, delegationDomain.ErrNothingApproved
		}
	}

	if _, err := d.states.Consume(ctx, input.State); err != nil {
		return nil, err
	}

	outcome := &delegationDomain.DecisionOutcome{
		Decision:       input.Decision,
		RequestingApp:  pending.RequestingApp,
		DestinationApp: pending.DestinationApp,
		RedirectURI:    pending.RedirectURI,
	}
	if input.Decision == delegationDomain.DecisionDeny {
		d.logger.Info("consent denied",
			slog.String("requesting_app", pending.RequestingApp),
			slog.String("destination_app", pending.DestinationApp),
		)
		return outcome, nil
	}

	if err := d.consent.Grant(ctx, consentDomain.GrantConsentInput{
		UserID:             pending.UserID,
		RequestingAppName:  pending.RequestingApp,
		DestinationAppName: pending.DestinationApp,
		Capabilities:       approved,
	}); err != nil {
		if restoreErr := d.states.Save(ctx, pending); restoreErr != nil {
			d.logger.Error("failed to restore consent state",
				slog.String("destination_app", pending.DestinationApp),
				slog.Any("error", restoreErr),
			)
		}
		return nil, err
	}

	outcome.Granted = approved
	d.logger.Info("consent granted",
		slog.String("requesting_app", pending.RequestingApp),
		slog.String("destination_app", pending.DestinationApp),
		slog.Any("capabilities", approved),
	)
	return outcome, nil
}

func (d *delegationUseCase) enter(
	result *delegationDomain.Result,
	state delegationDomain.State,
	input *delegationDomain.DelegateInput,
) {
	result.Enter(state)
	d.logger.Debug("delegation state",
		slog.String("state", string(state)),
		slog.String("destination", input.Destination),
		slog.String("path", input.Path),
	)
}
