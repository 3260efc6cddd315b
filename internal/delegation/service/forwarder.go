package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	delegationDomain "github.com/allisson/consentbroker/internal/delegation/domain"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// maxForwardResponseSize bounds the destination response relayed to the caller.
const maxForwardResponseSize = 10 << 20

// forwardedHeaders are the inbound headers passed on to destinations.
var forwardedHeaders = []string{"Accept", "Accept-Language", "Content-Type", "X-Request-Id"}

// HTTPForwarder calls destinations over HTTP with the delegated credential.
type HTTPForwarder struct {
	client          *retryablehttp.Client
	maxResponseSize int64
}

// NewHTTPForwarder creates a forwarder. Only connection failures are retried, so a
// request that reached the destination is never sent twice.
func NewHTTPForwarder(timeout time.Duration, maxRetries int, logger *slog.Logger) *HTTPForwarder {
	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = logger
	client.CheckRetry = retryOnConnectionFailure
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPForwarder{client: client, maxResponseSize: maxForwardResponseSize}
}

// Forward sends req to its destination. Any HTTP status is returned as a response;
// only an unreachable destination is an error.
func (f *HTTPForwarder) Forward(
	ctx context.Context,
	req *delegationDomain.ForwardRequest,
) (*delegationDomain.ForwardResponse, error) {
	var body any
	if len(req.Body) > 0 {
		body = req.Body
	}

	outbound, err := retryablehttp.NewRequestWithContext(
		ctx,
		req.Method,
		req.Destination.URL(req.Path, req.RawQuery),
		body,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build destination request: %w", err)
	}

	for _, name := range forwardedHeaders {
		if value := req.Header.Get(name); value != "" {
			outbound.Header.Set(name, value)
		}
	}
	if req.Token != "" {
		outbound.Header.Set("Authorization", "Bearer "+req.Token)
	}

	resp, err := f.client.Do(outbound)
	if err != nil {
		return nil, apperrors.Wrap(
			apperrors.ErrUnavailable,
			fmt.Sprintf("destination '%s' unreachable: %v", req.Destination.ID, err),
		)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, f.maxResponseSize+1))
	if err != nil {
		return nil, apperrors.Wrap(
			apperrors.ErrUnavailable,
			fmt.Sprintf("failed to read response from '%s': %v", req.Destination.ID, err),
		)
	}
	if int64(len(payload)) > f.maxResponseSize {
		return nil, apperrors.Wrap(
			delegationDomain.ErrResponseTooLarge,
			fmt.Sprintf("'%s' exceeded %d bytes", req.Destination.ID, f.maxResponseSize),
		)
	}

	return &delegationDomain.ForwardResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       payload,
	}, nil
}

// retryOnConnectionFailure retries only when no response was received.
func retryOnConnectionFailure(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return err != nil && resp == nil, nil
}
