package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Delegation outcomes.
const (
	OutcomeCompleted       = "completed"
	OutcomeConsentRequired = "consent_required"
	OutcomeUpstreamDenied  = "upstream_denied"
	OutcomeFailed          = "failed"
)

// DelegationMetrics records how delegated calls end and how often token exchange
// falls back to forwarding the caller's original token.
type DelegationMetrics interface {
	RecordOutcome(ctx context.Context, destination, outcome string)
	RecordExchangeFallback(ctx context.Context, destination string)
}

type delegationMetrics struct {
	outcomeCounter  metric.Int64Counter
	fallbackCounter metric.Int64Counter
}

// NewDelegationMetrics creates DelegationMetrics backed by the meter provider.
func NewDelegationMetrics(meterProvider metric.MeterProvider, namespace string) (DelegationMetrics, error) {
	meter := meterProvider.Meter(namespace)

	outcomeCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_delegations_total", namespace),
		metric.WithDescription("Total number of delegated calls by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delegation counter: %w", err)
	}

	fallbackCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_token_exchange_fallbacks_total", namespace),
		metric.WithDescription("Delegated calls forwarded with the original token after a failed exchange"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token exchange fallback counter: %w", err)
	}

	return &delegationMetrics{
		outcomeCounter:  outcomeCounter,
		fallbackCounter: fallbackCounter,
	}, nil
}

func (d *delegationMetrics) RecordOutcome(ctx context.Context, destination, outcome string) {
	d.outcomeCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("destination", destination),
			attribute.String("outcome", outcome),
		),
	)
}

func (d *delegationMetrics) RecordExchangeFallback(ctx context.Context, destination string) {
	d.fallbackCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("destination", destination)))
}

// NoOpDelegationMetrics discards delegation metrics.
type NoOpDelegationMetrics struct{}

// NewNoOpDelegationMetrics creates a no-op DelegationMetrics implementation.
func NewNoOpDelegationMetrics() DelegationMetrics {
	return &NoOpDelegationMetrics{}
}

func (n *NoOpDelegationMetrics) RecordOutcome(ctx context.Context, destination, outcome string) {}

func (n *NoOpDelegationMetrics) RecordExchangeFallback(ctx context.Context, destination string) {}
