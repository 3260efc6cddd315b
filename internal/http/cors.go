package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	delegationHTTP "github.com/allisson/consentbroker/internal/delegation/http"
)

// createCORSMiddleware allows a browser-hosted consent UI on another origin to post
// decisions and read the delegation state header. Returns nil when CORS is disabled
// or no usable origin is configured. Entries that are not http(s) origins are
// dropped with a warning; "*" is refused because credentials are allowed.
func createCORSMiddleware(enabled bool, allowOriginsStr string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := make([]string, 0)
	for _, origin := range parseOrigins(allowOriginsStr) {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			logger.Warn("ignoring invalid CORS origin", slog.String("origin", origin))
			continue
		}
		origins = append(origins, strings.TrimRight(origin, "/"))
	}
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no valid origins configured, CORS will not be applied")
		return nil
	}

	logger.Info("CORS enabled", slog.Any("origins", origins))

	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowHeaders: []string{
			"Authorization",
			"Content-Type",
			delegationHTTP.RedirectURIHeader,
		},
		ExposeHeaders: []string{
			"X-Request-Id",
			delegationHTTP.StateHeader,
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// parseOrigins splits a comma-separated origin list, dropping blanks.
func parseOrigins(originsStr string) []string {
	if originsStr == "" {
		return nil
	}

	var origins []string
	for _, part := range strings.Split(originsStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
