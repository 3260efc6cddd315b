package dto

import (
	delegationDomain "github.com/allisson/consentbroker/internal/delegation/domain"
)

// ChallengeResponse is returned with 403 when consent is missing.
type ChallengeResponse struct {
	Error             string                     `json:"error"`
	Destination       ChallengeDestination       `json:"destination"`
	MissingOperations []MissingOperationResponse `json:"missing_operations"`
	ConsentURL        string                     `json:"consent_url"`
	Params            ChallengeParamsResponse    `json:"params"`
}

// ChallengeDestination identifies the destination service.
type ChallengeDestination struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// MissingOperationResponse is one capability awaiting consent.
type MissingOperationResponse struct {
	Capability  string `json:"capability"`
	Description string `json:"description"`
	Risk        string `json:"risk,omitempty"`
}

// ChallengeParamsResponse carries what the consent UI needs to resume the flow.
type ChallengeParamsResponse struct {
	RequestingApp  string   `json:"requesting_app"`
	DestinationApp string   `json:"destination_app"`
	Operations     []string `json:"operations"`
	RedirectURI    string   `json:"redirect_uri,omitempty"`
	State          string   `json:"state"`
}

// MapChallengeToResponse converts a domain challenge.
func MapChallengeToResponse(challenge *delegationDomain.Challenge) ChallengeResponse {
	missing := make([]MissingOperationResponse, 0, len(challenge.MissingOperations))
	for _, operation := range challenge.MissingOperations {
		missing = append(missing, MissingOperationResponse{
			Capability:  operation.Capability,
			Description: operation.Description,
			Risk:        operation.Risk,
		})
	}

	return ChallengeResponse{
		Error: challenge.Error,
		Destination: ChallengeDestination{
			ID:          challenge.Destination.ID,
			DisplayName: challenge.Destination.DisplayName,
		},
		MissingOperations: missing,
		ConsentURL:        challenge.ConsentURL,
		Params: ChallengeParamsResponse{
			RequestingApp:  challenge.Params.RequestingApp,
			DestinationApp: challenge.Params.DestinationApp,
			Operations:     challenge.Params.Operations,
			RedirectURI:    challenge.Params.RedirectURI,
			State:          challenge.Params.State,
		},
	}
}

// DecisionResponse reports what a consent decision recorded.
type DecisionResponse struct {
	Decision       string   `json:"decision"`
	RequestingApp  string   `json:"requesting_app"`
	DestinationApp string   `json:"destination_app"`
	Granted        []string `json:"granted"`
	RedirectURI    string   `json:"redirect_uri,omitempty"`
}

// MapDecisionOutcomeToResponse converts a decision outcome.
func MapDecisionOutcomeToResponse(outcome *delegationDomain.DecisionOutcome) DecisionResponse {
	granted := outcome.Granted
	if granted == nil {
		granted = []string{}
	}
	return DecisionResponse{
		Decision:       outcome.Decision,
		RequestingApp:  outcome.RequestingApp,
		DestinationApp: outcome.DestinationApp,
		Granted:        granted,
		RedirectURI:    outcome.RedirectURI,
	}
}
