package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCreateCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		origins string
		wantNil bool
	}{
		{name: "disabled", enabled: false, origins: "https://consent.example.com", wantNil: true},
		{name: "enabled without origins", enabled: true, origins: "", wantNil: true},
		{name: "enabled with only separators", enabled: true, origins: " , ", wantNil: true},
		{name: "enabled with origins", enabled: true, origins: "https://consent.example.com,https://admin.example.com"},
		{name: "wildcard refused", enabled: true, origins: "*", wantNil: true},
		{name: "only invalid origins", enabled: true, origins: "consent.example.com, ftp://files", wantNil: true},
		{name: "invalid entries dropped", enabled: true, origins: "consent.example.com,https://consent.example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := createCORSMiddleware(tt.enabled, tt.origins, testLogger())
			if tt.wantNil {
				assert.Nil(t, middleware)
			} else {
				assert.NotNil(t, middleware)
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
	assert.Equal(t,
		[]string{"https://consent.example.com", "https://admin.example.com"},
		parseOrigins(" https://consent.example.com , https://admin.example.com "),
	)
}

func corsRouter(enabled bool) *gin.Engine {
	router := gin.New()
	if middleware := createCORSMiddleware(enabled, "https://consent.example.com", testLogger()); middleware != nil {
		router.Use(middleware)
	}
	router.POST("/v1/consent/decisions", func(c *gin.Context) {
		c.Header("X-Delegation-State", "completed")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestCORS_ConsentUIOriginAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/consent/decisions", nil)
	req.Header.Set("Origin", "https://consent.example.com")
	corsRouter(true).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://consent.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Delegation-State")
}

func TestCORS_NoHeadersWhenDisabled(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/consent/decisions", nil)
	req.Header.Set("Origin", "https://consent.example.com")
	corsRouter(false).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightAllowsRedirectHeader(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/v1/consent/decisions", nil)
	req.Header.Set("Origin", "https://consent.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, X-Consent-Redirect-Uri")
	corsRouter(true).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Consent-Redirect-Uri")
}
