// Package integration provides end-to-end tests of the consent broker against both
// PostgreSQL and MySQL, with in-process identity provider and destination services.
package integration

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/consentbroker/internal/app"
	"github.com/allisson/consentbroker/internal/config"
	"github.com/allisson/consentbroker/internal/testutil"
)

const (
	testIssuer = "http://idp.test/realms/master"
	testKeyID  = "integration-key"
	userID     = "3f1c2a-alice"
)

const destinationManifest = `service_id: service-b
display_name: Banking Service
consent_ui_url: http://localhost:3000/consent
operations:
  - method: GET
    path: /balance
    description: Read the account balance
    required_capabilities: [view_balance]
capabilities:
  - name: view_balance
    display_name: View balance
    description: Read-only access to the account balance
    risk: low
`

// destinationService records the authorization each forwarded call carried.
type destinationService struct {
	server *httptest.Server
	mu     sync.Mutex
	auth   []string
}

func newDestinationService(t *testing.T) *destinationService {
	t.Helper()

	d := &destinationService{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/capability-manifest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(destinationManifest))
	})
	mux.HandleFunc("GET /balance", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.auth = append(d.auth, r.Header.Get("Authorization"))
		d.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balance":1500}`))
	})
	d.server = httptest.NewServer(mux)
	t.Cleanup(d.server.Close)
	return d
}

func (d *destinationService) calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.auth...)
}

// integrationTestContext holds all dependencies and state for integration testing.
type integrationTestContext struct {
	container   *app.Container
	db          *sql.DB
	server      *httptest.Server
	idp         *httptest.Server
	destination *destinationService
	key         *rsa.PrivateKey
	dbDriver    string
}

// userToken signs an access token for the test user.
func (ctx *integrationTestContext) userToken(t *testing.T) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":                userID,
		"preferred_username": "alice",
		"iss":                testIssuer,
		"aud":                []string{"service-a"},
		"exp":                time.Now().Add(5 * time.Minute).Unix(),
		"iat":                time.Now().Unix(),
	})
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(ctx.key)
	require.NoError(t, err)
	return signed
}

// makeRequest performs an HTTP request and returns the response and body.
func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path string,
	body interface{},
	token string,
	headers map[string]string,
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ctx.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	//nolint:gosec // controlled test environment with localhost URLs
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logf("Warning: failed to close response body: %v", closeErr)
	}

	return resp, respBody
}

// newIdentityProvider serves the JWKS of a freshly generated signing key.
func newIdentityProvider(t *testing.T) (*httptest.Server, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keySet := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     testKeyID,
			Algorithm: "RS256",
			Use:       "sig",
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keySet)
	}))
	return server, key
}

// setupIntegrationTest initializes all components for integration testing.
func setupIntegrationTest(t *testing.T, dbDriver string) *integrationTestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)

	var db *sql.DB
	var dsn string
	if dbDriver == "postgres" {
		testutil.SkipIfNoPostgres(t)
		db = testutil.SetupPostgresDB(t)
		dsn = testutil.GetPostgresTestDSN()
	} else {
		testutil.SkipIfNoMySQL(t)
		db = testutil.SetupMySQLDB(t)
		dsn = testutil.GetMySQLTestDSN()
	}

	idp, key := newIdentityProvider(t)
	destination := newDestinationService(t)

	destinationsFile := filepath.Join(t.TempDir(), "destinations.yaml")
	destinations := fmt.Sprintf(`destinations:
  - id: service-b
    display_name: Banking Service
    base_url: %s
    audience: service-b
`, destination.server.URL)
	require.NoError(t, os.WriteFile(destinationsFile, []byte(destinations), 0o600))

	cfg := &config.Config{
		DBDriver:             dbDriver,
		DBConnectionString:   dsn,
		DBMaxOpenConnections: 10,
		DBMaxIdleConnections: 5,
		DBConnMaxLifetime:    time.Hour,
		ServerHost:           "localhost",
		ServerPort:           8080,
		LogLevel:             "error",
		AppName:              "service-a",
		AuthIssuer:           testIssuer,
		AuthJWKSURL:          idp.URL,
		AuthJWKSCacheTTL:     time.Minute,
		ConsentUIURL:         "http://localhost:3000/consent",
		ConsentStateBackend:  "memory",
		ConsentStateTTL:      5 * time.Minute,
		DestinationsFile:     destinationsFile,
		UpstreamTimeout:      5 * time.Second,
		UpstreamMaxRetries:   0,
		ManifestCacheTTL:     time.Minute,
	}

	container := app.NewContainer(cfg)

	httpSrv, err := container.HTTPServer()
	require.NoError(t, err, "failed to get HTTP server")

	handler := httpSrv.GetHandler()
	require.NotNil(t, handler, "handler should not be nil after SetupRouter")

	testServer := httptest.NewServer(handler)

	t.Logf("Integration test setup complete for %s", dbDriver)

	return &integrationTestContext{
		container:   container,
		db:          db,
		server:      testServer,
		idp:         idp,
		destination: destination,
		key:         key,
		dbDriver:    dbDriver,
	}
}

// teardownIntegrationTest cleans up all resources.
func teardownIntegrationTest(t *testing.T, ctx *integrationTestContext) {
	t.Helper()

	if ctx.server != nil {
		ctx.server.Close()
	}
	if ctx.idp != nil {
		ctx.idp.Close()
	}

	if ctx.container != nil {
		if err := ctx.container.Shutdown(context.Background()); err != nil {
			t.Logf("Warning: container shutdown error: %v", err)
		}
	}

	if ctx.db != nil {
		testutil.TeardownDB(t, ctx.db)
	}

	t.Logf("Integration test teardown complete for %s", ctx.dbDriver)
}

var testCases = []struct {
	name     string
	dbDriver string
}{
	{"PostgreSQL", "postgres"},
	{"MySQL", "mysql"},
}

// TestIntegration_Health_BasicChecks validates the health and readiness endpoints.
func TestIntegration_Health_BasicChecks(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := setupIntegrationTest(t, tc.dbDriver)
			defer teardownIntegrationTest(t, ctx)

			t.Run("01_HealthCheck", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/health", nil, "", nil)
				assert.Equal(t, http.StatusOK, resp.StatusCode)
				assert.JSONEq(t, `{"status":"healthy"}`, string(body))
			})

			t.Run("02_ReadinessCheck", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/ready", nil, "", nil)
				assert.Equal(t, http.StatusOK, resp.StatusCode)

				var response map[string]interface{}
				require.NoError(t, json.Unmarshal(body, &response))
				assert.Equal(t, "ready", response["status"])
			})
		})
	}
}

// TestIntegration_Delegation_CompleteFlow walks a delegated call through the consent
// challenge, the user's decision, the relayed call and revocation.
func TestIntegration_Delegation_CompleteFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := setupIntegrationTest(t, tc.dbDriver)
			defer teardownIntegrationTest(t, ctx)

			token := ctx.userToken(t)
			var state string

			t.Run("01_RegisterApplications", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/applications",
					map[string]string{"name": "service-a"}, "", nil)
				require.Equal(t, http.StatusCreated, resp.StatusCode)

				resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/applications",
					map[string]string{"name": "service-b"}, "", nil)
				require.Equal(t, http.StatusCreated, resp.StatusCode)

				var created struct {
					ID int64 `json:"id"`
				}
				require.NoError(t, json.Unmarshal(body, &created))

				resp, _ = ctx.makeRequest(t, http.MethodPut,
					fmt.Sprintf("/v1/applications/%d/capabilities", created.ID),
					map[string]string{"capability": "view_balance"}, "", nil)
				require.Equal(t, http.StatusCreated, resp.StatusCode)

				resp, _ = ctx.makeRequest(t, http.MethodPost, "/v1/applications",
					map[string]string{"name": "service-a"}, "", nil)
				assert.Equal(t, http.StatusConflict, resp.StatusCode)
			})

			t.Run("02_DelegateWithoutTokenIsRejected", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodGet, "/v1/delegate/service-b/balance", nil, "", nil)
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
				assert.Empty(t, ctx.destination.calls())
			})

			t.Run("03_ConsentRequired", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/delegate/service-b/balance", nil, token,
					map[string]string{"X-Consent-Redirect-Uri": "http://localhost:8001/callback"})
				require.Equal(t, http.StatusForbidden, resp.StatusCode)

				var challenge struct {
					Error             string `json:"error"`
					MissingOperations []struct {
						Capability string `json:"capability"`
					} `json:"missing_operations"`
					Params struct {
						RequestingApp  string `json:"requesting_app"`
						DestinationApp string `json:"destination_app"`
						State          string `json:"state"`
					} `json:"params"`
				}
				require.NoError(t, json.Unmarshal(body, &challenge))
				assert.Equal(t, "consent_required", challenge.Error)
				require.Len(t, challenge.MissingOperations, 1)
				assert.Equal(t, "view_balance", challenge.MissingOperations[0].Capability)
				assert.Equal(t, "service-a", challenge.Params.RequestingApp)
				assert.Equal(t, "service-b", challenge.Params.DestinationApp)
				require.NotEmpty(t, challenge.Params.State)
				assert.Equal(t, challenge.Params.State, resp.Header.Get("X-Delegation-State"))

				state = challenge.Params.State
				assert.Empty(t, ctx.destination.calls())
			})

			t.Run("04_GrantDecision", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/consent/decisions", map[string]interface{}{
					"state":      state,
					"decision":   "grant",
					"operations": []string{"view_balance"},
				}, token, nil)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				assert.JSONEq(t, `{
					"decision": "grant",
					"requesting_app": "service-a",
					"destination_app": "service-b",
					"granted": ["view_balance"],
					"redirect_uri": "http://localhost:8001/callback"
				}`, string(body))

				resp, _ = ctx.makeRequest(t, http.MethodPost, "/v1/consent/decisions", map[string]interface{}{
					"state":    state,
					"decision": "grant",
				}, token, nil)
				assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			})

			t.Run("05_DelegatedCallIsRelayed", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/delegate/service-b/balance", nil, token, nil)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				assert.JSONEq(t, `{"balance":1500}`, string(body))

				calls := ctx.destination.calls()
				require.Len(t, calls, 1)
				assert.Equal(t, "Bearer "+token, calls[0])
			})

			t.Run("06_ListUserConsents", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/consent/users/"+userID, nil, "", nil)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				var list struct {
					Data []struct {
						RequestingAppName  string `json:"requesting_app_name"`
						DestinationAppName string `json:"destination_app_name"`
						Capability         string `json:"capability"`
					} `json:"data"`
				}
				require.NoError(t, json.Unmarshal(body, &list))
				require.Len(t, list.Data, 1)
				assert.Equal(t, "service-a", list.Data[0].RequestingAppName)
				assert.Equal(t, "service-b", list.Data[0].DestinationAppName)
				assert.Equal(t, "view_balance", list.Data[0].Capability)
			})

			t.Run("07_RevokeRestoresChallenge", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodDelete, "/v1/consent/users/"+userID, nil, "", nil)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				assert.JSONEq(t, `{"count":1}`, string(body))
				assert.Equal(t, 0, testutil.CountRows(t, ctx.db, "user_consents"))

				resp, _ = ctx.makeRequest(t, http.MethodGet, "/v1/delegate/service-b/balance", nil, token, nil)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				assert.Len(t, ctx.destination.calls(), 1)
			})

			t.Run("08_UnknownDestination", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodGet, "/v1/delegate/service-x/balance", nil, token, nil)
				assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			})
		})
	}
}
