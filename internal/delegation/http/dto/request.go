// Package dto provides data transfer objects for the delegation HTTP handlers.
package dto

import (
	validation "github.com/jellydator/validation"

	delegationDomain "github.com/allisson/consentbroker/internal/delegation/domain"
	customValidation "github.com/allisson/consentbroker/internal/validation"
)

// DecisionRequest is the consent UI's report of the user's decision.
type DecisionRequest struct {
	State      string   `json:"state"`
	Decision   string   `json:"decision"`
	Operations []string `json:"operations"`
}

// Validate checks if the decision request is valid.
func (r *DecisionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.State, validation.Required, customValidation.NotBlank),
		validation.Field(&r.Decision,
			validation.Required,
			validation.In(delegationDomain.DecisionGrant, delegationDomain.DecisionDeny),
		),
		validation.Field(&r.Operations, validation.Each(validation.Required, customValidation.Identifier)),
	)
}

// ToInput converts the request for the authenticated user.
func (r *DecisionRequest) ToInput(userID string) delegationDomain.DecisionInput {
	return delegationDomain.DecisionInput{
		UserID:     userID,
		State:      r.State,
		Decision:   r.Decision,
		Operations: r.Operations,
	}
}
