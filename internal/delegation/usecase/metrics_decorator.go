package usecase

import (
	"context"
	"time"

	delegationDomain "github.com/allisson/consentbroker/internal/delegation/domain"
	"github.com/allisson/consentbroker/internal/metrics"
)

const delegationDomainLabel = "delegation"

// delegationUseCaseWithMetrics decorates DelegationUseCase with metrics instrumentation.
type delegationUseCaseWithMetrics struct {
	next    DelegationUseCase
	metrics metrics.BusinessMetrics
}

// NewDelegationUseCaseWithMetrics wraps a DelegationUseCase with metrics recording.
func NewDelegationUseCaseWithMetrics(useCase DelegationUseCase, m metrics.BusinessMetrics) DelegationUseCase {
	return &delegationUseCaseWithMetrics{next: useCase, metrics: m}
}

func (d *delegationUseCaseWithMetrics) Delegate(
	ctx context.Context,
	input *delegationDomain.DelegateInput,
) (*delegationDomain.Result, error) {
	start := time.Now()
	result, err := d.next.Delegate(ctx, input)
	d.record(ctx, "delegate", start, err)
	return result, err
}

func (d *delegationUseCaseWithMetrics) RecordDecision(
	ctx context.Context,
	input delegationDomain.DecisionInput,
) (*delegationDomain.DecisionOutcome, error) {
	start := time.Now()
	outcome, err := d.next.RecordDecision(ctx, input)
	d.record(ctx, "record_decision", start, err)
	return outcome, err
}

func (d *delegationUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	d.metrics.RecordOperation(ctx, delegationDomainLabel, operation, status)
	d.metrics.RecordDuration(ctx, delegationDomainLabel, operation, time.Since(start), status)
}
