package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/consentbroker/internal/errors"
	"github.com/allisson/consentbroker/internal/httputil"
	identityService "github.com/allisson/consentbroker/internal/identity/service"
)

const bearerPrefix = "bearer "

// AuthenticationMiddleware verifies the Bearer token in the Authorization header and
// stores the resulting Principal in the request context.
//
// Error handling:
//   - Missing, malformed or unverifiable token → 401 Unauthorized
//   - Token issued for another audience → 403 Forbidden
//   - Signing keys unavailable → 503 Service Unavailable
func AuthenticationMiddleware(verifier identityService.TokenVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Debug("authentication failed: missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		principal, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Debug("authentication failed", slog.String("error", err.Error()))
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), principal))

		logger.Debug("authentication successful",
			slog.String("subject", principal.Subject),
			slog.String("username", principal.Username))

		c.Next()
	}
}

// RequireAudience rejects principals whose token was not issued for audience.
// MUST be used after AuthenticationMiddleware.
func RequireAudience(audience string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c.Request.Context())
		if !ok {
			logger.Error("audience check: no authenticated principal in context")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if !principal.HasAudience(audience) {
			logger.Debug("audience check failed",
				slog.String("subject", principal.Subject),
				slog.Any("audience", principal.Audience),
				slog.String("expected", audience))
			c.JSON(http.StatusForbidden, httputil.ErrorResponse{
				Error:   "forbidden",
				Message: fmt.Sprintf("Invalid audience. Expected '%s'", audience),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// bearerToken extracts the token from a "Bearer <token>" header, matching the scheme
// case-insensitively.
func bearerToken(header string) (string, bool) {
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
