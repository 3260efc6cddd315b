package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	consentUseCase "github.com/allisson/consentbroker/internal/consent/usecase"
	manifestDomain "github.com/allisson/consentbroker/internal/manifest/domain"
	manifestService "github.com/allisson/consentbroker/internal/manifest/service"
)

// ManifestFetcher retrieves a published manifest by URL.
type ManifestFetcher interface {
	Fetch(ctx context.Context, url string) (*manifestDomain.Manifest, error)
}

// loadManifest reads a manifest from a local file or a published URL. Exactly one
// source must be given.
func loadManifest(ctx context.Context, fetcher ManifestFetcher, file, url string) (*manifestDomain.Manifest, error) {
	switch {
	case file != "" && url != "":
		return nil, fmt.Errorf("only one of --file or --url may be given")
	case file != "":
		return manifestService.LoadFile(file)
	case url != "":
		return fetcher.Fetch(ctx, url)
	default:
		return nil, fmt.Errorf("one of --file or --url is required")
	}
}

// syncManifest registers the manifest's service and its capability catalogue.
func syncManifest(
	ctx context.Context,
	applicationUseCase consentUseCase.ApplicationUseCase,
	logger *slog.Logger,
	manifest *manifestDomain.Manifest,
) (*consentDomain.SyncResult, error) {
	result, err := applicationUseCase.Sync(ctx, manifest.ServiceID, manifest.CapabilityNames())
	if err != nil {
		return nil, fmt.Errorf("failed to sync manifest of %s: %w", manifest.ServiceID, err)
	}

	logger.Info("manifest synced",
		slog.String("service_id", manifest.ServiceID),
		slog.Bool("created", result.Created),
		slog.Int("added_capabilities", len(result.AddedCapabilities)),
		slog.Int("existing_capabilities", len(result.ExistingCapabilities)),
	)
	return result, nil
}

// RunSyncManifest registers a destination and its declared capabilities from its
// capability manifest, read either from a file or from the published URL.
func RunSyncManifest(
	ctx context.Context,
	applicationUseCase consentUseCase.ApplicationUseCase,
	fetcher ManifestFetcher,
	logger *slog.Logger,
	writer io.Writer,
	file string,
	url string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	manifest, err := loadManifest(ctx, fetcher, file, url)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	result, err := syncManifest(ctx, applicationUseCase, logger, manifest)
	if err != nil {
		return err
	}

	if format == "json" {
		added := result.AddedCapabilities
		if added == nil {
			added = []string{}
		}
		existing := result.ExistingCapabilities
		if existing == nil {
			existing = []string{}
		}
		return outputJSON(map[string]any{
			"application":           manifest.ServiceID,
			"created":               result.Created,
			"added_capabilities":    added,
			"existing_capabilities": existing,
		}, writer)
	}

	status := "already registered"
	if result.Created {
		status = "registered"
	}
	_, _ = fmt.Fprintf(writer, "Application %s %s\n", manifest.ServiceID, status)
	for _, capability := range result.AddedCapabilities {
		_, _ = fmt.Fprintf(writer, "  + %s\n", capability)
	}
	for _, capability := range result.ExistingCapabilities {
		_, _ = fmt.Fprintf(writer, "  = %s\n", capability)
	}
	return nil
}
