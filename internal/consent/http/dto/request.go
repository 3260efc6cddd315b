// Package dto provides data transfer objects for registry and consent HTTP handlers.
package dto

import (
	validation "github.com/jellydator/validation"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	customValidation "github.com/allisson/consentbroker/internal/validation"
)

// identifierRules are shared by application and capability names.
var identifierRules = []validation.Rule{
	validation.Required,
	validation.Length(1, 255),
	customValidation.Identifier,
}

// CreateApplicationRequest registers a new application.
type CreateApplicationRequest struct {
	Name string `json:"name"`
}

// Validate checks if the create application request is valid.
func (r *CreateApplicationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, identifierRules...),
	)
}

// CapabilityRequest names a single capability to declare.
type CapabilityRequest struct {
	Capability string `json:"capability"`
}

// Validate checks if the capability request is valid.
func (r *CapabilityRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Capability, identifierRules...),
	)
}

// ConsentRequest identifies a (user, requester, destination) triple and a set of capabilities.
// It is the body of grant and check requests; GET checks bind it from the query string.
type ConsentRequest struct {
	UserID             string   `json:"user_id"              form:"user_id"`
	RequestingAppName  string   `json:"requesting_app_name"  form:"requesting_app_name"`
	DestinationAppName string   `json:"destination_app_name" form:"destination_app_name"`
	Capabilities       []string `json:"capabilities"         form:"capabilities"`
}

// Validate checks if the consent request is valid. At least one capability is required.
func (r *ConsentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required, customValidation.NotBlank, customValidation.NoWhitespace),
		validation.Field(&r.RequestingAppName, identifierRules...),
		validation.Field(&r.DestinationAppName, identifierRules...),
		validation.Field(&r.Capabilities,
			validation.Required,
			validation.Each(identifierRules...),
		),
	)
}

// ToGrantInput converts the request to a grant input.
func (r *ConsentRequest) ToGrantInput() consentDomain.GrantConsentInput {
	return consentDomain.GrantConsentInput{
		UserID:             r.UserID,
		RequestingAppName:  r.RequestingAppName,
		DestinationAppName: r.DestinationAppName,
		Capabilities:       r.Capabilities,
	}
}

// ToCheckInput converts the request to a check input.
func (r *ConsentRequest) ToCheckInput() consentDomain.CheckConsentInput {
	return consentDomain.CheckConsentInput{
		UserID:             r.UserID,
		RequestingAppName:  r.RequestingAppName,
		DestinationAppName: r.DestinationAppName,
		Capabilities:       r.Capabilities,
	}
}

// RevokeConsentRequest identifies a single grant. The user comes from the URL.
type RevokeConsentRequest struct {
	RequestingAppName  string `json:"requesting_app_name"`
	DestinationAppName string `json:"destination_app_name"`
	Capability         string `json:"capability"`
}

// Validate checks if the revoke request is valid.
func (r *RevokeConsentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RequestingAppName, identifierRules...),
		validation.Field(&r.DestinationAppName, identifierRules...),
		validation.Field(&r.Capability, identifierRules...),
	)
}

// ToInput converts the request to a revoke input for the given user.
func (r *RevokeConsentRequest) ToInput(userID string) consentDomain.RevokeConsentInput {
	return consentDomain.RevokeConsentInput{
		UserID:             userID,
		RequestingAppName:  r.RequestingAppName,
		DestinationAppName: r.DestinationAppName,
		Capability:         r.Capability,
	}
}
