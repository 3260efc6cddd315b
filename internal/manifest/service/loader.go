// Package service loads capability manifests from files and fetches them from
// destination services.
package service

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/allisson/consentbroker/internal/errors"
	manifestDomain "github.com/allisson/consentbroker/internal/manifest/domain"
)

// Parse decodes and validates a manifest document. YAML and JSON are both accepted.
func Parse(data []byte) (*manifestDomain.Manifest, error) {
	var manifest manifestDomain.Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("invalid manifest document: %v", err))
	}
	if err := manifest.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("invalid manifest: %v", err))
	}
	return &manifest, nil
}

// LoadFile reads and validates a manifest from disk.
func LoadFile(path string) (*manifestDomain.Manifest, error) {
	//nolint:gosec // path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return Parse(data)
}
