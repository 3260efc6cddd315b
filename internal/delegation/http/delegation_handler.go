// Package http exposes the delegation protocol: relaying calls to destinations on
// behalf of authenticated users and recording their consent decisions.
package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/consentbroker/internal/delegation/domain"
	"github.com/allisson/consentbroker/internal/delegation/http/dto"
	delegationUseCase "github.com/allisson/consentbroker/internal/delegation/usecase"
	apperrors "github.com/allisson/consentbroker/internal/errors"
	"github.com/allisson/consentbroker/internal/httputil"
	identityHTTP "github.com/allisson/consentbroker/internal/identity/http"
	manifestDomain "github.com/allisson/consentbroker/internal/manifest/domain"
	customValidation "github.com/allisson/consentbroker/internal/validation"
)

const (
	// StateHeader reports the last delegation state the request reached.
	StateHeader = "X-Delegation-State"

	// RedirectURIHeader carries where the consent UI should send the user afterwards.
	RedirectURIHeader = "X-Consent-Redirect-Uri"

	// maxRequestBody caps the body relayed to a destination.
	maxRequestBody = 1 << 20
)

// DelegationHandler handles delegated calls and consent decisions.
type DelegationHandler struct {
	delegationUseCase delegationUseCase.DelegationUseCase
	logger            *slog.Logger
}

// NewDelegationHandler creates a new delegation handler.
func NewDelegationHandler(
	delegationUseCase delegationUseCase.DelegationUseCase,
	logger *slog.Logger,
) *DelegationHandler {
	return &DelegationHandler{
		delegationUseCase: delegationUseCase,
		logger:            logger,
	}
}

// DelegateHandler relays the request to the destination named in the path.
// ANY /v1/delegate/:destination/*path - Returns the destination response verbatim,
// 403 with a consent challenge when consent is missing, or 503 when the destination
// is unreachable.
func (h *DelegationHandler) DelegateHandler(c *gin.Context) {
	principal, ok := identityHTTP.GetPrincipal(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	if !manifestDomain.IsCanonicalPath(c.Param("path")) {
		httputil.HandleErrorGin(c, domain.ErrNonCanonicalPath, h.logger)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody+1))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("failed to read request body: %w", err), h.logger)
		return
	}
	if len(body) > maxRequestBody {
		c.JSON(http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
			Error:   "request_too_large",
			Message: fmt.Sprintf("request body exceeds %d bytes", maxRequestBody),
		})
		return
	}

	result, err := h.delegationUseCase.Delegate(c.Request.Context(), &domain.DelegateInput{
		Principal:   principal,
		Destination: c.Param("destination"),
		Method:      c.Request.Method,
		Path:        c.Param("path"),
		RawQuery:    c.Request.URL.RawQuery,
		Header:      c.Request.Header,
		Body:        body,
		RedirectURI: c.GetHeader(RedirectURIHeader),
	})
	if result != nil && result.Current() != "" {
		c.Header(StateHeader, string(result.Current()))
	}
	if err != nil {
		h.handleDelegateError(c, err)
		return
	}

	c.Data(result.StatusCode, result.Header.Get("Content-Type"), result.Body)
}

func (h *DelegationHandler) handleDelegateError(c *gin.Context, err error) {
	var consentErr *domain.ConsentRequiredError
	if errors.As(err, &consentErr) {
		h.logger.Info("consent required",
			slog.String("destination", consentErr.Challenge.Destination.ID),
			slog.Int("missing_operations", len(consentErr.Challenge.MissingOperations)),
		)
		c.JSON(http.StatusForbidden, dto.MapChallengeToResponse(consentErr.Challenge))
		return
	}

	var upstreamErr *domain.UpstreamRejectedError
	if errors.As(err, &upstreamErr) {
		h.logger.Warn("destination rejected delegated request",
			slog.String("destination", upstreamErr.Destination),
			slog.Int("status_code", upstreamErr.StatusCode),
		)
		c.Data(upstreamErr.StatusCode, upstreamErr.Header.Get("Content-Type"), upstreamErr.Body)
		return
	}

	httputil.HandleErrorGin(c, err, h.logger)
}

// DecisionHandler records the authenticated user's answer to a consent challenge.
// POST /v1/consent/decisions - Returns 400 when the state is unknown, expired or used.
func (h *DelegationHandler) DecisionHandler(c *gin.Context) {
	principal, ok := identityHTTP.GetPrincipal(c.Request.Context())
	if !ok {
		httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, h.logger)
		return
	}

	var req dto.DecisionRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	outcome, err := h.delegationUseCase.RecordDecision(c.Request.Context(), req.ToInput(principal.Subject))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDecisionOutcomeToResponse(outcome))
}
