package dto

import (
	"time"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
)

// ApplicationResponse represents an application in API responses.
type ApplicationResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	Capabilities []string  `json:"capabilities,omitempty"`
}

// MapApplicationToResponse converts a domain application to an API response.
func MapApplicationToResponse(app *consentDomain.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:        app.ID,
		Name:      app.Name,
		CreatedAt: app.CreatedAt,
	}
}

// MapApplicationDetailToResponse converts an application and its capabilities to an API response.
func MapApplicationDetailToResponse(detail *consentDomain.ApplicationDetail) ApplicationResponse {
	response := MapApplicationToResponse(&detail.Application)
	response.Capabilities = detail.Capabilities
	if response.Capabilities == nil {
		response.Capabilities = []string{}
	}
	return response
}

// ListApplicationsResponse wraps the application list.
type ListApplicationsResponse struct {
	Data []ApplicationResponse `json:"data"`
}

// MapApplicationsToListResponse converts domain applications to a list response.
func MapApplicationsToListResponse(apps []*consentDomain.Application) ListApplicationsResponse {
	data := make([]ApplicationResponse, 0, len(apps))
	for _, app := range apps {
		data = append(data, MapApplicationToResponse(app))
	}
	return ListApplicationsResponse{Data: data}
}

// CapabilitiesResponse lists the capabilities an application declares.
type CapabilitiesResponse struct {
	Capabilities []string `json:"capabilities"`
}

// ConsentCheckResponse reports per-capability grants and their conjunction.
type ConsentCheckResponse struct {
	Granted    map[string]bool `json:"granted"`
	AllGranted bool            `json:"all_granted"`
}

// MapConsentCheckToResponse converts a domain consent check to an API response.
func MapConsentCheckToResponse(check *consentDomain.ConsentCheck) ConsentCheckResponse {
	return ConsentCheckResponse{Granted: check.Granted, AllGranted: check.AllGranted}
}

// ConsentResponse represents one consent grant in API responses.
type ConsentResponse struct {
	ID                 int64     `json:"id"`
	UserID             string    `json:"user_id"`
	RequestingAppID    int64     `json:"requesting_app_id"`
	RequestingAppName  string    `json:"requesting_app_name"`
	DestinationAppID   int64     `json:"destination_app_id"`
	DestinationAppName string    `json:"destination_app_name"`
	Capability         string    `json:"capability"`
	GrantedAt          time.Time `json:"granted_at"`
}

// ListConsentsResponse wraps a user's consent grants.
type ListConsentsResponse struct {
	Data []ConsentResponse `json:"data"`
}

// MapConsentsToListResponse converts domain consent grants to a list response.
func MapConsentsToListResponse(consents []*consentDomain.Consent) ListConsentsResponse {
	data := make([]ConsentResponse, 0, len(consents))
	for _, consent := range consents {
		data = append(data, ConsentResponse{
			ID:                 consent.ID,
			UserID:             consent.UserID,
			RequestingAppID:    consent.RequestingAppID,
			RequestingAppName:  consent.RequestingAppName,
			DestinationAppID:   consent.DestinationAppID,
			DestinationAppName: consent.DestinationAppName,
			Capability:         consent.Capability,
			GrantedAt:          consent.GrantedAt,
		})
	}
	return ListConsentsResponse{Data: data}
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// CountResponse reports how many grants a bulk operation removed.
type CountResponse struct {
	Count int64 `json:"count"`
}
