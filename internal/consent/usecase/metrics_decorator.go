package usecase

import (
	"context"
	"time"

	consentDomain "github.com/allisson/consentbroker/internal/consent/domain"
	"github.com/allisson/consentbroker/internal/metrics"
)

const (
	registryDomain     = "registry"
	consentDomainLabel = "consent"
)

// record emits the operation counter and duration histogram for one call.
func record(ctx context.Context, m metrics.BusinessMetrics, domain, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.RecordOperation(ctx, domain, operation, status)
	m.RecordDuration(ctx, domain, operation, time.Since(start), status)
}

// applicationUseCaseWithMetrics decorates ApplicationUseCase with metrics instrumentation.
type applicationUseCaseWithMetrics struct {
	next    ApplicationUseCase
	metrics metrics.BusinessMetrics
}

// NewApplicationUseCaseWithMetrics wraps an ApplicationUseCase with metrics recording.
func NewApplicationUseCaseWithMetrics(useCase ApplicationUseCase, m metrics.BusinessMetrics) ApplicationUseCase {
	return &applicationUseCaseWithMetrics{next: useCase, metrics: m}
}

func (a *applicationUseCaseWithMetrics) Create(ctx context.Context, name string) (*consentDomain.Application, error) {
	start := time.Now()
	app, err := a.next.Create(ctx, name)
	record(ctx, a.metrics, registryDomain, "application_create", start, err)
	return app, err
}

func (a *applicationUseCaseWithMetrics) Get(ctx context.Context, id int64) (*consentDomain.ApplicationDetail, error) {
	start := time.Now()
	app, err := a.next.Get(ctx, id)
	record(ctx, a.metrics, registryDomain, "application_get", start, err)
	return app, err
}

func (a *applicationUseCaseWithMetrics) GetByName(
	ctx context.Context,
	name string,
) (*consentDomain.ApplicationDetail, error) {
	start := time.Now()
	app, err := a.next.GetByName(ctx, name)
	record(ctx, a.metrics, registryDomain, "application_get", start, err)
	return app, err
}

func (a *applicationUseCaseWithMetrics) List(ctx context.Context) ([]*consentDomain.Application, error) {
	start := time.Now()
	apps, err := a.next.List(ctx)
	record(ctx, a.metrics, registryDomain, "application_list", start, err)
	return apps, err
}

func (a *applicationUseCaseWithMetrics) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	err := a.next.Delete(ctx, id)
	record(ctx, a.metrics, registryDomain, "application_delete", start, err)
	return err
}

func (a *applicationUseCaseWithMetrics) AddCapability(
	ctx context.Context,
	applicationID int64,
	name string,
) (bool, error) {
	start := time.Now()
	added, err := a.next.AddCapability(ctx, applicationID, name)
	record(ctx, a.metrics, registryDomain, "capability_add", start, err)
	return added, err
}

func (a *applicationUseCaseWithMetrics) RemoveCapability(ctx context.Context, applicationID int64, name string) error {
	start := time.Now()
	err := a.next.RemoveCapability(ctx, applicationID, name)
	record(ctx, a.metrics, registryDomain, "capability_remove", start, err)
	return err
}

func (a *applicationUseCaseWithMetrics) ListCapabilities(ctx context.Context, applicationID int64) ([]string, error) {
	start := time.Now()
	capabilities, err := a.next.ListCapabilities(ctx, applicationID)
	record(ctx, a.metrics, registryDomain, "capability_list", start, err)
	return capabilities, err
}

func (a *applicationUseCaseWithMetrics) Sync(
	ctx context.Context,
	name string,
	capabilities []string,
) (*consentDomain.SyncResult, error) {
	start := time.Now()
	result, err := a.next.Sync(ctx, name, capabilities)
	record(ctx, a.metrics, registryDomain, "application_sync", start, err)
	return result, err
}

// consentUseCaseWithMetrics decorates ConsentUseCase with metrics instrumentation.
type consentUseCaseWithMetrics struct {
	next    ConsentUseCase
	metrics metrics.BusinessMetrics
}

// NewConsentUseCaseWithMetrics wraps a ConsentUseCase with metrics recording.
func NewConsentUseCaseWithMetrics(useCase ConsentUseCase, m metrics.BusinessMetrics) ConsentUseCase {
	return &consentUseCaseWithMetrics{next: useCase, metrics: m}
}

func (c *consentUseCaseWithMetrics) Grant(ctx context.Context, input consentDomain.GrantConsentInput) error {
	start := time.Now()
	err := c.next.Grant(ctx, input)
	record(ctx, c.metrics, consentDomainLabel, "consent_grant", start, err)
	return err
}

func (c *consentUseCaseWithMetrics) Check(
	ctx context.Context,
	input consentDomain.CheckConsentInput,
) (*consentDomain.ConsentCheck, error) {
	start := time.Now()
	check, err := c.next.Check(ctx, input)
	record(ctx, c.metrics, consentDomainLabel, "consent_check", start, err)
	return check, err
}

func (c *consentUseCaseWithMetrics) Revoke(ctx context.Context, input consentDomain.RevokeConsentInput) error {
	start := time.Now()
	err := c.next.Revoke(ctx, input)
	record(ctx, c.metrics, consentDomainLabel, "consent_revoke", start, err)
	return err
}

func (c *consentUseCaseWithMetrics) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	start := time.Now()
	count, err := c.next.RevokeAllForUser(ctx, userID)
	record(ctx, c.metrics, consentDomainLabel, "consent_revoke_user", start, err)
	return count, err
}

func (c *consentUseCaseWithMetrics) RevokeAll(ctx context.Context) (int64, error) {
	start := time.Now()
	count, err := c.next.RevokeAll(ctx)
	record(ctx, c.metrics, consentDomainLabel, "consent_revoke_all", start, err)
	return count, err
}

func (c *consentUseCaseWithMetrics) ListForUser(ctx context.Context, userID string) ([]*consentDomain.Consent, error) {
	start := time.Now()
	consents, err := c.next.ListForUser(ctx, userID)
	record(ctx, c.metrics, consentDomainLabel, "consent_list", start, err)
	return consents, err
}
