package commands

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	consentMocks "github.com/allisson/consentbroker/internal/consent/usecase/mocks"
	manifestService "github.com/allisson/consentbroker/internal/manifest/service"
)

const testManifest = `service_id: service-b
display_name: Banking Service
consent_ui_url: http://localhost:3000/consent
operations:
  - method: GET
    path: /balance
    description: Read the account balance
    required_capabilities: [view_balance]
  - method: POST
    path: /withdraw
    description: Withdraw money from the account
    required_capabilities: [withdraw]
capabilities:
  - name: view_balance
    display_name: View balance
    description: Read-only access to the account balance
    risk: low
  - name: withdraw
    display_name: Withdraw money
    description: Move money out of the account
    risk: high
`

func writeManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o600))
	return path
}

func TestRunSyncManifest(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	capabilities := []string{"view_balance", "withdraw"}

	t.Run("from-file", func(t *testing.T) {
		useCase := consentMocks.NewMockApplicationUseCase(t)
		useCase.On("Sync", ctx, "service-b", capabilities).Return(&consentDomain.SyncResult{
			Application:       &consentDomain.Application{ID: 2, Name: "service-b"},
			Created:           true,
			AddedCapabilities: capabilities,
		}, nil)

		var out bytes.Buffer
		err := RunSyncManifest(ctx, useCase, nil, logger, &out, writeManifest(t), "", "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Application service-b registered")
		require.Contains(t, out.String(), "  + view_balance")
		require.Contains(t, out.String(), "  + withdraw")
	})

	t.Run("from-url-json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write([]byte(testManifest))
		}))
		defer server.Close()

		useCase := consentMocks.NewMockApplicationUseCase(t)
		useCase.On("Sync", ctx, "service-b", capabilities).Return(&consentDomain.SyncResult{
			Application:          &consentDomain.Application{ID: 2, Name: "service-b"},
			Created:              false,
			AddedCapabilities:    []string{"withdraw"},
			ExistingCapabilities: []string{"view_balance"},
		}, nil)

		fetcher := manifestService.NewFetcher(time.Minute, time.Second, 0, logger)

		var out bytes.Buffer
		err := RunSyncManifest(ctx, useCase, fetcher, logger, &out, "", server.URL, "json")

		require.NoError(t, err)
		require.JSONEq(t, `{
			"application": "service-b",
			"created": false,
			"added_capabilities": ["withdraw"],
			"existing_capabilities": ["view_balance"]
		}`, out.String())
	})

	t.Run("nothing-new", func(t *testing.T) {
		useCase := consentMocks.NewMockApplicationUseCase(t)
		useCase.On("Sync", ctx, "service-b", capabilities).Return(&consentDomain.SyncResult{
			Application:          &consentDomain.Application{ID: 2, Name: "service-b"},
			ExistingCapabilities: capabilities,
		}, nil)

		var out bytes.Buffer
		err := RunSyncManifest(ctx, useCase, nil, logger, &out, writeManifest(t), "", "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"added_capabilities": []`)
	})

	t.Run("no-source", func(t *testing.T) {
		useCase := consentMocks.NewMockApplicationUseCase(t)

		var out bytes.Buffer
		err := RunSyncManifest(ctx, useCase, nil, logger, &out, "", "", "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "one of --file or --url is required")
	})

	t.Run("both-sources", func(t *testing.T) {
		useCase := consentMocks.NewMockApplicationUseCase(t)

		var out bytes.Buffer
		err := RunSyncManifest(ctx, useCase, nil, logger, &out, "manifest.yaml", "http://localhost", "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "only one of --file or --url")
	})

	t.Run("missing-file", func(t *testing.T) {
		useCase := consentMocks.NewMockApplicationUseCase(t)

		var out bytes.Buffer
		err := RunSyncManifest(
			ctx, useCase, nil, logger, &out, filepath.Join(t.TempDir(), "missing.yaml"), "", "text",
		)

		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to load manifest")
	})
}
