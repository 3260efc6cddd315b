// Package http publishes the capability manifest of this deployment.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	manifestDomain "github.com/allisson/consentbroker/internal/manifest/domain"
)

// ManifestPath is the well-known location of a service's capability manifest.
const ManifestPath = "/.well-known/capability-manifest"

// ManifestHandler serves a read-only capability manifest.
type ManifestHandler struct {
	manifest *manifestDomain.Manifest
	logger   *slog.Logger
}

// NewManifestHandler creates a handler publishing manifest. A nil manifest answers 404.
func NewManifestHandler(manifest *manifestDomain.Manifest, logger *slog.Logger) *ManifestHandler {
	return &ManifestHandler{
		manifest: manifest,
		logger:   logger,
	}
}

// GetHandler returns the manifest document.
// GET /.well-known/capability-manifest
func (h *ManifestHandler) GetHandler(c *gin.Context) {
	if h.manifest == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "this service does not publish a capability manifest",
		})
		return
	}

	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, h.manifest)
}
