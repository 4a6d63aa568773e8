package sdk

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mnemos-ai/sdk/cache"
	"github.com/mnemos-ai/sdk/notify"
	"github.com/mnemos-ai/sdk/retrieval"
	"github.com/mnemos-ai/sdk/rules"
)

// telemetry holds the OpenTelemetry metric instruments fed from the
// notification bus. Instruments are created once during manager
// construction and reused for all events.
type telemetry struct {
	// cacheEvents counts cache operations by kind (set, hit, miss, ...).
	cacheEvents metric.Int64Counter

	// ruleExecutions counts rule executions by outcome.
	ruleExecutions metric.Int64Counter

	// retrievals counts retrieval operations, split fresh versus cached.
	retrievals metric.Int64Counter

	// retrievalConfidence records retrieval confidence scores (0.0 to 1.0).
	retrievalConfidence metric.Float64Histogram

	// enhancements counts enhancement tasks by outcome.
	enhancements metric.Int64Counter

	// enhancementImprovement records estimated improvement per enhancement.
	enhancementImprovement metric.Float64Histogram
}

// newTelemetry creates and initializes all metric instruments. A nil
// meter disables telemetry.
func newTelemetry(meter metric.Meter) (*telemetry, error) {
	if meter == nil {
		return nil, nil
	}

	t := &telemetry{}
	var err error

	t.cacheEvents, err = meter.Int64Counter(
		"engine.cache.events",
		metric.WithDescription("Cache operations by kind"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache events counter: %w", err)
	}

	t.ruleExecutions, err = meter.Int64Counter(
		"engine.rules.executions",
		metric.WithDescription("Rule executions by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rule executions counter: %w", err)
	}

	t.retrievals, err = meter.Int64Counter(
		"engine.retrieval.queries",
		metric.WithDescription("Retrieval queries, fresh versus cached"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create retrievals counter: %w", err)
	}

	t.retrievalConfidence, err = meter.Float64Histogram(
		"engine.retrieval.confidence",
		metric.WithDescription("Retrieval confidence from 0.0 (no match) to 1.0 (exact)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create retrieval confidence histogram: %w", err)
	}

	t.enhancements, err = meter.Int64Counter(
		"engine.enhancement.tasks",
		metric.WithDescription("Enhancement tasks by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create enhancements counter: %w", err)
	}

	t.enhancementImprovement, err = meter.Float64Histogram(
		"engine.enhancement.improvement",
		metric.WithDescription("Estimated performance improvement per enhancement"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create improvement histogram: %w", err)
	}

	return t, nil
}

// observe subscribes the instruments to the notification bus. Handlers
// run synchronously on the emitting goroutine, so they only record and
// return.
func (t *telemetry) observe(bus *notify.Bus) {
	if t == nil || bus == nil {
		return
	}

	ctx := context.Background()

	for _, kind := range []string{cache.KindSet, cache.KindHit, cache.KindMiss, cache.KindDelete, cache.KindClear, cache.KindCleanup} {
		kind := kind
		bus.Subscribe(kind, func(notify.Event) {
			t.cacheEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
		})
	}

	bus.Subscribe(rules.KindRuleExecuted, func(ev notify.Event) {
		success, _ := ev.Payload["success"].(bool)
		t.ruleExecutions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
	})

	bus.Subscribe(retrieval.KindRetrievalCompleted, func(ev notify.Event) {
		t.retrievals.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cached", false)))
		if confidence, ok := ev.Payload["confidence"].(float64); ok {
			t.retrievalConfidence.Record(ctx, confidence)
		}
	})
	bus.Subscribe(retrieval.KindCacheHit, func(notify.Event) {
		t.retrievals.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cached", true)))
	})

	bus.Subscribe(KindAgentEnhanced, func(ev notify.Event) {
		t.enhancements.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "completed")))
		if improvement, ok := ev.Payload["improvement"].(float64); ok {
			t.enhancementImprovement.Record(ctx, improvement)
		}
	})
	bus.Subscribe(KindEnhancementError, func(notify.Event) {
		t.enhancements.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
	})
	bus.Subscribe(KindEnhancementCancelled, func(notify.Event) {
		t.enhancements.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "cancelled")))
	})
}
