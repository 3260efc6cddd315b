package domain

import "time"

// Consent is a user's authorization for a requesting application to invoke one
// capability on a destination application.
type Consent struct {
	ID                 int64
	UserID             string
	RequestingAppID    int64
	RequestingAppName  string
	DestinationAppID   int64
	DestinationAppName string
	Capability         string
	GrantedAt          time.Time
}

// ConsentCheck is the result of checking a set of capabilities for one
// (user, requester, destination) triple. Every requested capability is present in
// Granted.
type ConsentCheck struct {
	Granted    map[string]bool
	AllGranted bool
}

// NewConsentCheck builds a ConsentCheck from per-capability results. An empty
// request is never considered fully granted.
func NewConsentCheck(granted map[string]bool) *ConsentCheck {
	all := len(granted) > 0
	for _, ok := range granted {
		if !ok {
			all = false
			break
		}
	}
	return &ConsentCheck{Granted: granted, AllGranted: all}
}

// Missing returns the capabilities that were not granted, in the order given.
func (c *ConsentCheck) Missing(requested []string) []string {
	var missing []string
	for _, capability := range requested {
		if !c.Granted[capability] {
			missing = append(missing, capability)
		}
	}
	return missing
}

// GrantConsentInput names the triple and the capabilities a user approves.
type GrantConsentInput struct {
	UserID             string
	RequestingAppName  string
	DestinationAppName string
	Capabilities       []string
}

// CheckConsentInput names the triple and the capabilities to check.
type CheckConsentInput struct {
	UserID             string
	RequestingAppName  string
	DestinationAppName string
	Capabilities       []string
}

// RevokeConsentInput identifies a single consent grant.
type RevokeConsentInput struct {
	UserID             string
	RequestingAppName  string
	DestinationAppName string
	Capability         string
}
