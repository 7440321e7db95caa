package otel

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// TracingOAProvider wraps a domain.OAProvider so that every client it hands
// out records a span per APS bus call.
type TracingOAProvider struct {
	next   domain.OAProvider
	tracer trace.Tracer
}

// Compile-time check: TracingOAProvider implements domain.OAProvider.
var _ domain.OAProvider = (*TracingOAProvider)(nil)

// NewTracingOAProvider creates a tracing decorator around the given provider.
func NewTracingOAProvider(next domain.OAProvider) *TracingOAProvider {
	return &TracingOAProvider{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingOAProvider) ForOrigin(origin domain.Origin, inst domain.Installation) domain.OA {
	return &tracingOA{
		next:       p.next.ForOrigin(origin, inst),
		tracer:     p.tracer,
		controller: origin.ControllerURI,
	}
}

type tracingOA struct {
	next       domain.OA
	tracer     trace.Tracer
	controller string
}

func (o *tracingOA) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("oa.controller_uri", o.controller))
	return o.tracer.Start(ctx, "OA."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func resourceAttrs(id string, opts domain.ResourceOptions) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("oa.resource_id", id),
		attribute.String("oa.impersonate_as", opts.ImpersonateAs),
		attribute.Bool("oa.without_transaction", opts.WithoutTransaction),
	}
}

func (o *tracingOA) GetResource(ctx context.Context, id string, opts domain.ResourceOptions) (json.RawMessage, error) {
	ctx, span := o.start(ctx, "GetResource", resourceAttrs(id, opts)...)
	raw, err := o.next.GetResource(ctx, id, opts)
	finish(span, err)
	return raw, err
}

func (o *tracingOA) FindResources(ctx context.Context, query string, opts domain.ResourceOptions) ([]json.RawMessage, error) {
	ctx, span := o.start(ctx, "FindResources", append(resourceAttrs("", opts), attribute.String("oa.query", query))...)
	found, err := o.next.FindResources(ctx, query, opts)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(found)))
	}
	finish(span, err)
	return found, err
}

func (o *tracingOA) PutTenant(ctx context.Context, id string, doc json.RawMessage) error {
	ctx, span := o.start(ctx, "PutTenant", attribute.String("tenant.id", id))
	err := o.next.PutTenant(ctx, id, doc)
	finish(span, err)
	return err
}

func (o *tracingOA) Subscribe(ctx context.Context, resourceID string, sub domain.EventSubscription) error {
	ctx, span := o.start(ctx, "Subscribe",
		attribute.String("oa.resource_id", resourceID),
		attribute.String("oa.event", sub.Event),
	)
	err := o.next.Subscribe(ctx, resourceID, sub)
	finish(span, err)
	return err
}

func (o *tracingOA) Subscriptions(ctx context.Context, resourceID string) ([]domain.EventSubscription, error) {
	ctx, span := o.start(ctx, "Subscriptions", attribute.String("oa.resource_id", resourceID))
	subs, err := o.next.Subscriptions(ctx, resourceID)
	finish(span, err)
	return subs, err
}

func (o *tracingOA) TenantSchema(ctx context.Context) (domain.TenantSchema, error) {
	ctx, span := o.start(ctx, "TenantSchema")
	schema, err := o.next.TenantSchema(ctx)
	if err == nil {
		span.SetAttributes(attribute.String("oa.schema_id", schema.ID))
	}
	finish(span, err)
	return schema, err
}
