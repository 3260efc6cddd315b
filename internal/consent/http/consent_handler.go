package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/consentbroker/internal/consent/http/dto"
	consentUseCase "github.com/allisson/consentbroker/internal/consent/usecase"
	"github.com/allisson/consentbroker/internal/httputil"
	customValidation "github.com/allisson/consentbroker/internal/validation"
)

// ConsentHandler handles HTTP requests for granting, checking and revoking consent.
type ConsentHandler struct {
	consentUseCase consentUseCase.ConsentUseCase
	logger         *slog.Logger
}

// NewConsentHandler creates a new consent handler.
func NewConsentHandler(consentUseCase consentUseCase.ConsentUseCase, logger *slog.Logger) *ConsentHandler {
	return &ConsentHandler{
		consentUseCase: consentUseCase,
		logger:         logger,
	}
}

// GrantHandler records consent for every capability in the request.
// POST /v1/consent - Returns 400 when a capability is not declared by the destination.
func (h *ConsentHandler) GrantHandler(c *gin.Context) {
	var req dto.ConsentRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.consentUseCase.Grant(c.Request.Context(), req.ToGrantInput()); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Consent granted successfully"})
}

// CheckHandler reports which capabilities the user granted. GET binds the query string
// (capabilities may repeat), POST binds a JSON body.
// GET|POST /v1/consent/check
func (h *ConsentHandler) CheckHandler(c *gin.Context) {
	var req dto.ConsentRequest

	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	check, err := h.consentUseCase.Check(c.Request.Context(), req.ToCheckInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapConsentCheckToResponse(check))
}

// RevokeHandler deletes a single consent grant.
// DELETE /v1/consent/users/:user_id/capability - Returns 204, or 404 when nothing matched.
func (h *ConsentHandler) RevokeHandler(c *gin.Context) {
	var req dto.RevokeConsentRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.consentUseCase.Revoke(c.Request.Context(), req.ToInput(c.Param("user_id"))); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// RevokeAllForUserHandler deletes every consent grant of a user.
// DELETE /v1/consent/users/:user_id
func (h *ConsentHandler) RevokeAllForUserHandler(c *gin.Context) {
	count, err := h.consentUseCase.RevokeAllForUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.CountResponse{Count: count})
}

// RevokeAllHandler deletes every consent grant.
// DELETE /v1/consent/all
func (h *ConsentHandler) RevokeAllHandler(c *gin.Context) {
	count, err := h.consentUseCase.RevokeAll(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.CountResponse{Count: count})
}

// ListForUserHandler lists a user's consent grants, most recent first.
// GET /v1/consent/users/:user_id
func (h *ConsentHandler) ListForUserHandler(c *gin.Context) {
	consents, err := h.consentUseCase.ListForUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapConsentsToListResponse(consents))
}
