package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/patrickmn/go-cache"

	apperrors "github.com/allisson/consentbroker/internal/errors"
	manifestDomain "github.com/allisson/consentbroker/internal/manifest/domain"
)

// maxManifestSize bounds the manifest document read from a destination.
const maxManifestSize = 1 << 20

// Fetcher retrieves destination manifests over HTTP and caches them by URL.
type Fetcher struct {
	client *retryablehttp.Client
	cache  *cache.Cache
	logger *slog.Logger
}

// NewFetcher creates a Fetcher. Manifests are cached for ttl; timeout bounds each
// attempt and maxRetries the number of retries on connection failures or 5xx.
func NewFetcher(ttl, timeout time.Duration, maxRetries int, logger *slog.Logger) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = maxRetries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = logger

	return &Fetcher{
		client: client,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Fetch returns the manifest published at url, from cache when fresh. Unreachable
// destinations map to ErrUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*manifestDomain.Manifest, error) {
	if cached, ok := f.cache.Get(url); ok {
		return cached.(*manifestDomain.Manifest), nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build manifest request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, fmt.Sprintf("failed to fetch manifest from %s: %v", url, err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Wrap(
			apperrors.ErrUnavailable,
			fmt.Sprintf("manifest endpoint %s returned status %d", url, resp.StatusCode),
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, fmt.Sprintf("failed to read manifest: %v", err))
	}

	manifest, err := Parse(body)
	if err != nil {
		return nil, err
	}

	f.cache.SetDefault(url, manifest)
	if f.logger != nil {
		f.logger.Debug("manifest fetched", slog.String("url", url), slog.String("service_id", manifest.ServiceID))
	}
	return manifest, nil
}

// Invalidate drops a cached manifest.
func (f *Fetcher) Invalidate(url string) {
	f.cache.Delete(url)
}
