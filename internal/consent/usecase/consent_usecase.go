package usecase

import (
	"context"
	"slices"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	"github.com/allisson/consentbroker/internal/database"
)

// consentUseCase implements ConsentUseCase.
type consentUseCase struct {
	txManager       database.TxManager
	applicationRepo ApplicationRepository
	capabilityRepo  CapabilityRepository
	consentRepo     ConsentRepository
}

// resolvePair looks up the requesting and destination applications by name.
func (c *consentUseCase) resolvePair(
	ctx context.Context,
	requestingAppName, destinationAppName string,
) (*consentDomain.Application, *consentDomain.Application, error) {
	requester, err := c.applicationRepo.GetByName(ctx, requestingAppName)
	if err != nil {
		return nil, nil, err
	}
	destination, err := c.applicationRepo.GetByName(ctx, destinationAppName)
	if err != nil {
		return nil, nil, err
	}
	return requester, destination, nil
}

// Grant records consent for every capability in the batch. The whole batch is
// validated against the destination's declared capabilities, read under a shared
// lock in the same transaction, before anything is written, so an undeclared name
// leaves no partial grants behind and a concurrent removal cannot slip in between.
func (c *consentUseCase) Grant(ctx context.Context, input consentDomain.GrantConsentInput) error {
	requester, destination, err := c.resolvePair(ctx, input.RequestingAppName, input.DestinationAppName)
	if err != nil {
		return err
	}

	return c.txManager.WithTx(ctx, func(txCtx context.Context) error {
		declared, err := c.capabilityRepo.ListForShare(txCtx, destination.ID)
		if err != nil {
			return err
		}
		for _, capability := range input.Capabilities {
			if !slices.Contains(declared, capability) {
				return consentDomain.CapabilityNotDeclared(capability, destination.Name)
			}
		}

		for _, capability := range input.Capabilities {
			if _, err := c.consentRepo.Grant(txCtx, input.UserID, requester.ID, destination.ID, capability); err != nil {
				return err
			}
		}
		return nil
	})
}

// Check reports which of the requested capabilities the user has granted.
func (c *consentUseCase) Check(
	ctx context.Context,
	input consentDomain.CheckConsentInput,
) (*consentDomain.ConsentCheck, error) {
	requester, destination, err := c.resolvePair(ctx, input.RequestingAppName, input.DestinationAppName)
	if err != nil {
		return nil, err
	}

	granted, err := c.consentRepo.Check(ctx, input.UserID, requester.ID, destination.ID, input.Capabilities)
	if err != nil {
		return nil, err
	}
	return consentDomain.NewConsentCheck(granted), nil
}

// Revoke deletes a single consent grant. Returns ErrConsentNotFound when it did not exist.
func (c *consentUseCase) Revoke(ctx context.Context, input consentDomain.RevokeConsentInput) error {
	requester, destination, err := c.resolvePair(ctx, input.RequestingAppName, input.DestinationAppName)
	if err != nil {
		return err
	}

	revoked, err := c.consentRepo.Revoke(ctx, input.UserID, requester.ID, destination.ID, input.Capability)
	if err != nil {
		return err
	}
	if !revoked {
		return consentDomain.ErrConsentNotFound
	}
	return nil
}

// RevokeAllForUser deletes every consent grant of a user.
func (c *consentUseCase) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return c.consentRepo.RevokeAllForUser(ctx, userID)
}

// RevokeAll deletes every consent grant.
func (c *consentUseCase) RevokeAll(ctx context.Context) (int64, error) {
	return c.consentRepo.RevokeAll(ctx)
}

// ListForUser returns a user's consent grants, most recent first.
func (c *consentUseCase) ListForUser(ctx context.Context, userID string) ([]*consentDomain.Consent, error) {
	return c.consentRepo.ListForUser(ctx, userID)
}

// NewConsentUseCase creates a new ConsentUseCase.
func NewConsentUseCase(
	txManager database.TxManager,
	applicationRepo ApplicationRepository,
	capabilityRepo CapabilityRepository,
	consentRepo ConsentRepository,
) ConsentUseCase {
	return &consentUseCase{
		txManager:       txManager,
		applicationRepo: applicationRepo,
		capabilityRepo:  capabilityRepo,
		consentRepo:     consentRepo,
	}
}
