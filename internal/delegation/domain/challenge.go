package domain

// ConsentRequiredCode classifies a challenge payload.
const ConsentRequiredCode = "consent_required"

// Challenge tells the caller which consent is missing and how to obtain it.
type Challenge struct {
	Error             string
	Destination       ChallengeService
	MissingOperations []MissingOperation
	ConsentURL        string
	Params            ChallengeParams
}

// ChallengeService identifies the destination whose capability is missing.
type ChallengeService struct {
	ID          string
	DisplayName string
}

// MissingOperation is a capability the user has not granted.
type MissingOperation struct {
	Capability  string
	Description string
	Risk        string
}

// ChallengeParams is what the consent UI needs to resume the flow.
type ChallengeParams struct {
	RequestingApp  string
	DestinationApp string
	Operations     []string
	RedirectURI    string
	State          string
}
