package domain

import (
	"fmt"

	"github.com/allisson/consentbroker/internal/errors"
)

// Registry and consent errors.
var (
	// ErrApplicationNotFound indicates the application does not exist.
	ErrApplicationNotFound = errors.Wrap(errors.ErrNotFound, "application not found")

	// ErrApplicationAlreadyExists indicates an application with the same name is registered.
	ErrApplicationAlreadyExists = errors.Wrap(errors.ErrConflict, "application already exists")

	// ErrCapabilityNotFound indicates the application does not declare the capability.
	ErrCapabilityNotFound = errors.Wrap(errors.ErrNotFound, "capability not found")

	// ErrCapabilityAlreadyExists indicates the application already declares the capability.
	ErrCapabilityAlreadyExists = errors.Wrap(errors.ErrConflict, "capability already exists")

	// ErrCapabilityNotDeclared indicates a grant referenced a capability the destination never declared.
	ErrCapabilityNotDeclared = errors.Wrap(errors.ErrInvalidInput, "capability not declared")

	// ErrConsentNotFound indicates there is no matching consent grant.
	ErrConsentNotFound = errors.Wrap(errors.ErrNotFound, "consent not found")
)

// ApplicationNotFound returns ErrApplicationNotFound naming the missing application.
func ApplicationNotFound(name string) error {
	return fmt.Errorf("application '%s': %w", name, ErrApplicationNotFound)
}

// CapabilityNotDeclared returns ErrCapabilityNotDeclared naming the capability and destination.
func CapabilityNotDeclared(capability, destination string) error {
	return fmt.Errorf(
		"capability '%s' not found for application '%s': %w",
		capability,
		destination,
		ErrCapabilityNotDeclared,
	)
}
