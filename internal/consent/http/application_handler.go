// Package http provides HTTP handlers for the application registry and consent grants.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	"github.com/allisson/consentbroker/internal/consent/http/dto"
	consentUseCase "github.com/allisson/consentbroker/internal/consent/usecase"
	"github.com/allisson/consentbroker/internal/httputil"
	customValidation "github.com/allisson/consentbroker/internal/validation"
)

// ApplicationHandler handles HTTP requests for application and capability registration.
type ApplicationHandler struct {
	applicationUseCase consentUseCase.ApplicationUseCase
	logger             *slog.Logger
}

// NewApplicationHandler creates a new application handler.
func NewApplicationHandler(
	applicationUseCase consentUseCase.ApplicationUseCase,
	logger *slog.Logger,
) *ApplicationHandler {
	return &ApplicationHandler{
		applicationUseCase: applicationUseCase,
		logger:             logger,
	}
}

// parseApplicationID reads the :id URL parameter.
func parseApplicationID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid application id: must be a positive integer")
	}
	return id, nil
}

// CreateHandler registers a new application.
// POST /v1/applications - Returns 201 Created, or 409 when the name is taken.
func (h *ApplicationHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateApplicationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	app, err := h.applicationUseCase.Create(c.Request.Context(), req.Name)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapApplicationToResponse(app))
}

// ListHandler lists every application ordered by name.
// GET /v1/applications
func (h *ApplicationHandler) ListHandler(c *gin.Context) {
	apps, err := h.applicationUseCase.List(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapApplicationsToListResponse(apps))
}

// GetHandler returns an application with its declared capabilities.
// GET /v1/applications/:id
func (h *ApplicationHandler) GetHandler(c *gin.Context) {
	id, err := parseApplicationID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	detail, err := h.applicationUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapApplicationDetailToResponse(detail))
}

// DeleteHandler removes an application, its capabilities and every consent grant naming it.
// DELETE /v1/applications/:id - Returns 204 No Content.
func (h *ApplicationHandler) DeleteHandler(c *gin.Context) {
	id, err := parseApplicationID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := h.applicationUseCase.Delete(c.Request.Context(), id); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// AddCapabilityHandler declares a capability on an application.
// PUT /v1/applications/:id/capabilities - Returns 201 Created, or 409 when already declared.
func (h *ApplicationHandler) AddCapabilityHandler(c *gin.Context) {
	id, err := parseApplicationID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	var req dto.CapabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	added, err := h.applicationUseCase.AddCapability(c.Request.Context(), id, req.Capability)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	if !added {
		httputil.HandleErrorGin(
			c,
			fmt.Errorf("capability '%s': %w", req.Capability, consentDomain.ErrCapabilityAlreadyExists),
			h.logger,
		)
		return
	}

	c.JSON(http.StatusCreated, dto.MessageResponse{Message: "Capability added successfully"})
}

// ListCapabilitiesHandler lists the capabilities an application declares.
// GET /v1/applications/:id/capabilities
func (h *ApplicationHandler) ListCapabilitiesHandler(c *gin.Context) {
	id, err := parseApplicationID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	capabilities, err := h.applicationUseCase.ListCapabilities(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.CapabilitiesResponse{Capabilities: capabilities})
}

// RemoveCapabilityHandler removes a declared capability.
// DELETE /v1/applications/:id/capabilities/:capability - Returns 204 No Content.
func (h *ApplicationHandler) RemoveCapabilityHandler(c *gin.Context) {
	id, err := parseApplicationID(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := h.applicationUseCase.RemoveCapability(c.Request.Context(), id, c.Param("capability")); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}
