package usecase

import (
	"context"
	"errors"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	"github.com/allisson/consentbroker/internal/database"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// applicationUseCase implements ApplicationUseCase.
type applicationUseCase struct {
	txManager       database.TxManager
	applicationRepo ApplicationRepository
	capabilityRepo  CapabilityRepository
}

// Create registers a new application. Returns ErrApplicationAlreadyExists if the name is taken.
func (a *applicationUseCase) Create(ctx context.Context, name string) (*consentDomain.Application, error) {
	app := &consentDomain.Application{Name: name}
	if err := a.applicationRepo.Create(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Get retrieves an application with its declared capabilities.
func (a *applicationUseCase) Get(ctx context.Context, id int64) (*consentDomain.ApplicationDetail, error) {
	app, err := a.applicationRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.detail(ctx, app)
}

// GetByName retrieves an application by name with its declared capabilities.
func (a *applicationUseCase) GetByName(ctx context.Context, name string) (*consentDomain.ApplicationDetail, error) {
	app, err := a.applicationRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return a.detail(ctx, app)
}

func (a *applicationUseCase) detail(
	ctx context.Context,
	app *consentDomain.Application,
) (*consentDomain.ApplicationDetail, error) {
	capabilities, err := a.capabilityRepo.List(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	return &consentDomain.ApplicationDetail{Application: *app, Capabilities: capabilities}, nil
}

// List returns every registered application ordered by name.
func (a *applicationUseCase) List(ctx context.Context) ([]*consentDomain.Application, error) {
	return a.applicationRepo.List(ctx)
}

// Delete removes an application together with its capabilities and every consent
// grant naming it as requester or destination.
func (a *applicationUseCase) Delete(ctx context.Context, id int64) error {
	deleted, err := a.applicationRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return consentDomain.ErrApplicationNotFound
	}
	return nil
}

// AddCapability declares a capability on an existing application.
func (a *applicationUseCase) AddCapability(ctx context.Context, applicationID int64, name string) (bool, error) {
	if _, err := a.applicationRepo.Get(ctx, applicationID); err != nil {
		return false, err
	}
	return a.capabilityRepo.Add(ctx, applicationID, name)
}

// RemoveCapability removes a declared capability. Consent grants already recorded for
// it are left untouched.
func (a *applicationUseCase) RemoveCapability(ctx context.Context, applicationID int64, name string) error {
	removed, err := a.capabilityRepo.Remove(ctx, applicationID, name)
	if err != nil {
		return err
	}
	if !removed {
		return consentDomain.ErrCapabilityNotFound
	}
	return nil
}

// ListCapabilities returns the capabilities an application declares.
func (a *applicationUseCase) ListCapabilities(ctx context.Context, applicationID int64) ([]string, error) {
	if _, err := a.applicationRepo.Get(ctx, applicationID); err != nil {
		return nil, err
	}
	return a.capabilityRepo.List(ctx, applicationID)
}

// Sync creates the application if it is missing and declares every capability it
// does not declare yet, all in one transaction. Running it twice is a no-op.
func (a *applicationUseCase) Sync(
	ctx context.Context,
	name string,
	capabilities []string,
) (*consentDomain.SyncResult, error) {
	result := &consentDomain.SyncResult{
		AddedCapabilities:    make([]string, 0),
		ExistingCapabilities: make([]string, 0),
	}

	err := a.txManager.WithTx(ctx, func(txCtx context.Context) error {
		app, err := a.applicationRepo.GetByName(txCtx, name)
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			app = &consentDomain.Application{Name: name}
			if err := a.applicationRepo.Create(txCtx, app); err != nil {
				return err
			}
			result.Created = true
		case err != nil:
			return err
		}
		result.Application = app

		for _, capability := range capabilities {
			added, err := a.capabilityRepo.Add(txCtx, app.ID, capability)
			if err != nil {
				return err
			}
			if added {
				result.AddedCapabilities = append(result.AddedCapabilities, capability)
			} else {
				result.ExistingCapabilities = append(result.ExistingCapabilities, capability)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// NewApplicationUseCase creates a new ApplicationUseCase.
func NewApplicationUseCase(
	txManager database.TxManager,
	applicationRepo ApplicationRepository,
	capabilityRepo CapabilityRepository,
) ApplicationUseCase {
	return &applicationUseCase{
		txManager:       txManager,
		applicationRepo: applicationRepo,
		capabilityRepo:  capabilityRepo,
	}
}
