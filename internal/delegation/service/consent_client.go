package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	apperrors "github.com/allisson/consentbroker/internal/errors"
	"github.com/allisson/consentbroker/internal/httputil"
)

// maxConsentResponseSize bounds responses read from a remote broker.
const maxConsentResponseSize = 1 << 20

// consentPayload is the grant request body of the consent API.
type consentPayload struct {
	UserID             string   `json:"user_id"`
	RequestingAppName  string   `json:"requesting_app_name"`
	DestinationAppName string   `json:"destination_app_name"`
	Capabilities       []string `json:"capabilities"`
}

// consentCheckPayload is the check response body of the consent API.
type consentCheckPayload struct {
	Granted    map[string]bool `json:"granted"`
	AllGranted bool            `json:"all_granted"`
}

// RemoteConsentClient talks to the consent API of another broker deployment.
type RemoteConsentClient struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewRemoteConsentClient creates a client for the broker at baseURL. Connection
// failures and 5xx answers are retried up to maxRetries times.
func NewRemoteConsentClient(baseURL string, timeout time.Duration, maxRetries int, logger *slog.Logger) *RemoteConsentClient {
	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = logger
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &RemoteConsentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Check asks the remote broker which capabilities the user granted.
func (c *RemoteConsentClient) Check(
	ctx context.Context,
	input consentDomain.CheckConsentInput,
) (*consentDomain.ConsentCheck, error) {
	query := url.Values{}
	query.Set("user_id", input.UserID)
	query.Set("requesting_app_name", input.RequestingAppName)
	query.Set("destination_app_name", input.DestinationAppName)
	for _, capability := range input.Capabilities {
		query.Add("capabilities", capability)
	}

	var payload consentCheckPayload
	if err := c.do(ctx, http.MethodGet, "/v1/consent/check?"+query.Encode(), nil, &payload); err != nil {
		return nil, err
	}

	granted := make(map[string]bool, len(input.Capabilities))
	for _, capability := range input.Capabilities {
		granted[capability] = payload.Granted[capability]
	}
	return consentDomain.NewConsentCheck(granted), nil
}

// Grant records the user's consent on the remote broker.
func (c *RemoteConsentClient) Grant(ctx context.Context, input consentDomain.GrantConsentInput) error {
	body, err := json.Marshal(consentPayload{
		UserID:             input.UserID,
		RequestingAppName:  input.RequestingAppName,
		DestinationAppName: input.DestinationAppName,
		Capabilities:       input.Capabilities,
	})
	if err != nil {
		return fmt.Errorf("failed to encode consent grant: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/v1/consent", body, nil)
}

func (c *RemoteConsentClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reqBody any
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build consent request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrUnavailable, fmt.Sprintf("consent service unreachable: %v", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxConsentResponseSize))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrUnavailable, fmt.Sprintf("failed to read consent response: %v", err))
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return remoteError(resp.StatusCode, payload)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("invalid consent response: %w", err)
	}
	return nil
}

// remoteError maps a consent API error response back onto the domain sentinels.
func remoteError(status int, payload []byte) error {
	var errorResponse httputil.ErrorResponse
	_ = json.Unmarshal(payload, &errorResponse)

	message := errorResponse.Message
	if message == "" {
		message = fmt.Sprintf("consent service returned status %d", status)
	}

	switch {
	case status == http.StatusNotFound:
		return apperrors.Wrap(apperrors.ErrNotFound, message)
	case status == http.StatusConflict:
		return apperrors.Wrap(apperrors.ErrConflict, message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apperrors.Wrap(apperrors.ErrInvalidInput, message)
	case status == http.StatusUnauthorized:
		return apperrors.Wrap(apperrors.ErrUnauthorized, message)
	case status == http.StatusForbidden:
		return apperrors.Wrap(apperrors.ErrForbidden, message)
	case status >= http.StatusInternalServerError:
		return apperrors.Wrap(apperrors.ErrUnavailable, message)
	default:
		return fmt.Errorf("unexpected consent service status %d: %s", status, message)
	}
}
