// Package outbox carries request context across the outbox table and Kafka
// as plain string headers.
package outbox

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/tuanvumaihuynh/inventory-count/pkg/correlationid"
)

// correlationPropagator moves the correlation id in and out of a carrier.
type correlationPropagator struct{}

var _ propagation.TextMapPropagator = correlationPropagator{}

func (correlationPropagator) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	if id, ok := correlationid.FromContext(ctx); ok {
		carrier.Set(correlationid.Header, id)
	}
}

func (correlationPropagator) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	if id := carrier.Get(correlationid.Header); id != "" {
		return correlationid.NewContext(ctx, id)
	}
	return ctx
}

func (correlationPropagator) Fields() []string {
	return []string{correlationid.Header}
}

// propagator is resolved per call so a tracer installed after start-up is
// still honoured.
func propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(otel.GetTextMapPropagator(), correlationPropagator{})
}

// BuildHeaders captures the trace context and correlation id of ctx.
func BuildHeaders(ctx context.Context) map[string]string {
	headers := map[string]string{}
	propagator().Inject(ctx, propagation.MapCarrier(headers))
	return headers
}

// ExtractContextFromHeaders returns ctx continued with the trace context and
// correlation id found in headers.
func ExtractContextFromHeaders(ctx context.Context, headers map[string]string) context.Context {
	return propagator().Extract(ctx, propagation.MapCarrier(headers))
}
