package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// TracingPublisher wraps a domain.EffectPublisher with OpenTelemetry tracing.
type TracingPublisher struct {
	next   domain.EffectPublisher
	tracer trace.Tracer
}

// Compile-time check: TracingPublisher implements domain.EffectPublisher.
var _ domain.EffectPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher creates a tracing decorator around the given publisher.
func NewTracingPublisher(next domain.EffectPublisher) *TracingPublisher {
	return &TracingPublisher{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingPublisher) Publish(ctx context.Context, effect domain.Effect) error {
	ctx, span := p.tracer.Start(ctx, "EffectPublisher.Publish",
		trace.WithAttributes(
			attribute.String("effect.id", effect.ID),
			attribute.String("effect.kind", string(effect.Kind)),
			attribute.String("tenant.id", effect.TenantID),
		),
	)
	if effect.Request != nil {
		span.SetAttributes(attribute.String("connect.request_id", effect.Request.ID))
	}

	err := p.next.Publish(ctx, effect)
	finish(span, err)
	return err
}
