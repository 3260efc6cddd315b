package domain

import (
	"strings"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/consentbroker/internal/validation"
)

// DefaultManifestPath is appended to a destination's base URL when no manifest URL
// is configured.
const DefaultManifestPath = "/.well-known/capability-manifest"

// Destination is a service this deployment may call on behalf of users. ID is the
// destination's registered application name.
type Destination struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	BaseURL     string `yaml:"base_url"`
	// Audience is the token audience the destination accepts.
	Audience    string `yaml:"audience"`
	ManifestURL string `yaml:"manifest_url"`
}

// Validate checks the destination definition.
func (d *Destination) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.ID, validation.Required, customValidation.Identifier),
		validation.Field(&d.BaseURL, validation.Required, customValidation.HTTPURL),
		validation.Field(&d.Audience, validation.Required),
		validation.Field(&d.ManifestURL, customValidation.HTTPURL),
	)
}

// ResolvedManifestURL returns where the destination publishes its capability manifest.
func (d *Destination) ResolvedManifestURL() string {
	if d.ManifestURL != "" {
		return d.ManifestURL
	}
	return strings.TrimRight(d.BaseURL, "/") + DefaultManifestPath
}

// URL joins the destination base URL with path and an optional raw query.
func (d *Destination) URL(path, rawQuery string) string {
	url := strings.TrimRight(d.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		url += "?" + rawQuery
	}
	return url
}
