// Package domain defines the capability manifest a destination service publishes:
// its protected operations, the capabilities each one requires and a catalogue of
// every capability with a risk classification.
package domain

import (
	"fmt"
	"path"
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/consentbroker/internal/validation"
)

// Risk classifies how sensitive a capability is.
type Risk string

// Risk levels.
const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Manifest is the self-description a destination service publishes.
type Manifest struct {
	ServiceID    string           `yaml:"service_id"     json:"service_id"`
	DisplayName  string           `yaml:"display_name"   json:"display_name"`
	ConsentUIURL string           `yaml:"consent_ui_url" json:"consent_ui_url"`
	Operations   []Operation      `yaml:"operations"     json:"operations"`
	Capabilities []CapabilityInfo `yaml:"capabilities"   json:"capabilities"`
	Metadata     Metadata         `yaml:"metadata"       json:"metadata"`
}

// Operation is a protected endpoint of the destination service.
type Operation struct {
	Method                 string            `yaml:"method"                  json:"method"`
	Path                   string            `yaml:"path"                    json:"path"`
	Description            string            `yaml:"description"             json:"description"`
	RequiredCapabilities   []string          `yaml:"required_capabilities"   json:"required_capabilities"`
	CapabilityDescriptions map[string]string `yaml:"capability_descriptions" json:"capability_descriptions,omitempty"`
}

// CapabilityInfo is an entry of the flat capability catalogue.
type CapabilityInfo struct {
	Name        string `yaml:"name"         json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description"  json:"description"`
	Risk        Risk   `yaml:"risk"         json:"risk"`
}

// Metadata describes the manifest document itself.
type Metadata struct {
	SchemaVersion string    `yaml:"schema_version" json:"schema_version"`
	LastUpdated   time.Time `yaml:"last_updated"   json:"last_updated"`
	Contact       string    `yaml:"contact"        json:"contact,omitempty"`
}

// Validate checks the manifest structure and that every capability an operation
// requires is present in the catalogue.
func (m *Manifest) Validate() error {
	err := validation.ValidateStruct(m,
		validation.Field(&m.ServiceID, validation.Required, customValidation.Identifier),
		validation.Field(&m.DisplayName, validation.Required),
		validation.Field(&m.ConsentUIURL, validation.Required, customValidation.HTTPURL),
		validation.Field(&m.Operations, validation.Required),
		validation.Field(&m.Capabilities, validation.Required),
	)
	if err != nil {
		return err
	}

	catalogue := make(map[string]bool, len(m.Capabilities))
	for i := range m.Capabilities {
		if err := m.Capabilities[i].Validate(); err != nil {
			return fmt.Errorf("capabilities[%d]: %w", i, err)
		}
		catalogue[m.Capabilities[i].Name] = true
	}

	for i := range m.Operations {
		op := &m.Operations[i]
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operations[%d]: %w", i, err)
		}
		for _, capability := range op.RequiredCapabilities {
			if !catalogue[capability] {
				return fmt.Errorf(
					"operations[%d]: capability '%s' is not in the capability catalogue",
					i,
					capability,
				)
			}
		}
	}
	return nil
}

// Validate checks a single operation.
func (o *Operation) Validate() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.Method, validation.Required, customValidation.HTTPMethod),
		validation.Field(&o.Path, validation.Required, validation.By(func(value interface{}) error {
			if !strings.HasPrefix(o.Path, "/") {
				return validation.NewError("validation_path", "must start with '/'")
			}
			return nil
		})),
		validation.Field(&o.RequiredCapabilities, validation.Required, validation.Each(customValidation.Identifier)),
	)
}

// Validate checks a catalogue entry.
func (c *CapabilityInfo) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required, customValidation.Identifier),
		validation.Field(&c.Risk, validation.Required, validation.In(RiskLow, RiskMedium, RiskHigh)),
	)
}

// MatchOperation finds the operation for a method and request path. Template segments
// written as {param} or :param match any single non-empty path segment. Paths that
// are not canonical never match.
func (m *Manifest) MatchOperation(method, requestPath string) (*Operation, bool) {
	if !IsCanonicalPath(requestPath) {
		return nil, false
	}
	requested := splitPath(requestPath)
	for i := range m.Operations {
		op := &m.Operations[i]
		if !strings.EqualFold(op.Method, method) {
			continue
		}
		if segmentsMatch(splitPath(op.Path), requested) {
			return op, true
		}
	}
	return nil, false
}

// IsCanonicalPath reports whether p is absolute and already clean: no empty, "." or
// ".." segments and no trailing slash. A destination that normalizes a non-canonical
// path may serve a different operation than the one it matched here.
func IsCanonicalPath(p string) bool {
	return strings.HasPrefix(p, "/") && p == path.Clean(p)
}

// Capability returns the catalogue entry for a capability name.
func (m *Manifest) Capability(name string) (CapabilityInfo, bool) {
	for _, info := range m.Capabilities {
		if info.Name == name {
			return info, true
		}
	}
	return CapabilityInfo{}, false
}

// CapabilityNames returns the catalogue names in declaration order.
func (m *Manifest) CapabilityNames() []string {
	names := make([]string, 0, len(m.Capabilities))
	for _, info := range m.Capabilities {
		names = append(names, info.Name)
	}
	return names
}

// Describe returns the human description of a capability for an operation, preferring
// the operation's own wording over the catalogue entry.
func (m *Manifest) Describe(op *Operation, capability string) string {
	if op != nil {
		if description, ok := op.CapabilityDescriptions[capability]; ok && description != "" {
			return description
		}
	}
	if info, ok := m.Capability(capability); ok {
		if info.Description != "" {
			return info.Description
		}
		return info.DisplayName
	}
	return capability
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func isParam(segment string) bool {
	return strings.HasPrefix(segment, ":") ||
		(strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}"))
}

func segmentsMatch(template, requested []string) bool {
	if len(template) != len(requested) {
		return false
	}
	for i, segment := range template {
		if isParam(segment) {
			if requested[i] == "" {
				return false
			}
			continue
		}
		if segment != requested[i] {
			return false
		}
	}
	return true
}
