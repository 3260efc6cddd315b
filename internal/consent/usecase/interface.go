// Package usecase defines the interfaces and implementations for registry and consent
// use cases. Use cases resolve application names to identities and enforce that a
// consent grant only references capabilities the destination declares.
package usecase

import (
	"context"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
)

// ApplicationRepository defines the interface for Application persistence operations.
type ApplicationRepository interface {
	Create(ctx context.Context, app *consentDomain.Application) error
	Get(ctx context.Context, id int64) (*consentDomain.Application, error)
	GetByName(ctx context.Context, name string) (*consentDomain.Application, error)
	List(ctx context.Context) ([]*consentDomain.Application, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// CapabilityRepository defines the interface for capability declaration persistence.
type CapabilityRepository interface {
	Add(ctx context.Context, applicationID int64, name string) (bool, error)
	Remove(ctx context.Context, applicationID int64, name string) (bool, error)
	List(ctx context.Context, applicationID int64) ([]string, error)
	// ListForShare is List holding a shared lock until the enclosing transaction ends.
	ListForShare(ctx context.Context, applicationID int64) ([]string, error)
}

// ConsentRepository defines the interface for consent grant persistence.
type ConsentRepository interface {
	Grant(ctx context.Context, userID string, requestingAppID, destinationAppID int64, capability string) (bool, error)
	Check(
		ctx context.Context,
		userID string,
		requestingAppID, destinationAppID int64,
		capabilities []string,
	) (map[string]bool, error)
	Revoke(ctx context.Context, userID string, requestingAppID, destinationAppID int64, capability string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	RevokeAll(ctx context.Context) (int64, error)
	ListForUser(ctx context.Context, userID string) ([]*consentDomain.Consent, error)
}

// ApplicationUseCase defines the interface for application registry business logic.
type ApplicationUseCase interface {
	Create(ctx context.Context, name string) (*consentDomain.Application, error)
	Get(ctx context.Context, id int64) (*consentDomain.ApplicationDetail, error)
	GetByName(ctx context.Context, name string) (*consentDomain.ApplicationDetail, error)
	List(ctx context.Context) ([]*consentDomain.Application, error)
	Delete(ctx context.Context, id int64) error
	// AddCapability declares a capability. Returns false when it was already declared.
	AddCapability(ctx context.Context, applicationID int64, name string) (bool, error)
	RemoveCapability(ctx context.Context, applicationID int64, name string) error
	ListCapabilities(ctx context.Context, applicationID int64) ([]string, error)
	// Sync registers an application and its capabilities, creating whatever is missing.
	Sync(ctx context.Context, name string, capabilities []string) (*consentDomain.SyncResult, error)
}

// ConsentUseCase defines the interface for consent grant business logic.
type ConsentUseCase interface {
	Grant(ctx context.Context, input consentDomain.GrantConsentInput) error
	Check(ctx context.Context, input consentDomain.CheckConsentInput) (*consentDomain.ConsentCheck, error)
	Revoke(ctx context.Context, input consentDomain.RevokeConsentInput) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	RevokeAll(ctx context.Context) (int64, error)
	ListForUser(ctx context.Context, userID string) ([]*consentDomain.Consent, error)
}
