// Package domain defines the registry of applications, their declared capabilities
// and the consent grants users give requesting applications.
package domain

import "time"

// Application is a registered participant service. Whether it acts as a requester
// or a destination is decided per transaction and not stored.
type Application struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// ApplicationDetail is an application together with the capabilities it declares.
type ApplicationDetail struct {
	Application
	Capabilities []string
}

// SyncResult describes the outcome of registering an application and its
// capabilities from a capability manifest.
type SyncResult struct {
	Application          *Application
	Created              bool
	AddedCapabilities    []string
	ExistingCapabilities []string
}
