package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// TracingConnectProvider wraps a domain.ConnectProvider so that every client
// it hands out records a span per Connect call.
type TracingConnectProvider struct {
	next   domain.ConnectProvider
	tracer trace.Tracer
}

// Compile-time check: TracingConnectProvider implements domain.ConnectProvider.
var _ domain.ConnectProvider = (*TracingConnectProvider)(nil)

// NewTracingConnectProvider creates a tracing decorator around the given provider.
func NewTracingConnectProvider(next domain.ConnectProvider) *TracingConnectProvider {
	return &TracingConnectProvider{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (p *TracingConnectProvider) ForInstallation(ctx context.Context, inst domain.Installation) (domain.Connect, error) {
	ctx, span := p.tracer.Start(ctx, "ConnectProvider.ForInstallation",
		trace.WithAttributes(
			attribute.String("product.id", inst.ProductID),
			attribute.String("installation.id", inst.InstallationID),
		),
	)

	c, err := p.next.ForInstallation(ctx, inst)
	finish(span, err)
	if err != nil {
		return nil, err
	}
	return &tracingConnect{next: c, tracer: p.tracer, installationID: inst.InstallationID}, nil
}

type tracingConnect struct {
	next           domain.Connect
	tracer         trace.Tracer
	installationID string
}

func (c *tracingConnect) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("installation.id", c.installationID))
	return c.tracer.Start(ctx, "Connect."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (c *tracingConnect) CreateRequest(ctx context.Context, body domain.RequestBody) (domain.Request, error) {
	ctx, span := c.start(ctx, "CreateRequest",
		attribute.String("connect.request_type", string(body.Type)),
		attribute.String("tenant.id", body.Asset.ExternalUID),
	)
	req, err := c.next.CreateRequest(ctx, body)
	if err == nil {
		span.SetAttributes(
			attribute.String("connect.request_id", req.ID),
			attribute.String("connect.request_status", string(req.Status)),
		)
	}
	finish(span, err)
	return req, err
}

func (c *tracingConnect) UpdateRequest(ctx context.Context, id string, body domain.RequestBody) (domain.Request, error) {
	ctx, span := c.start(ctx, "UpdateRequest", attribute.String("connect.request_id", id))
	req, err := c.next.UpdateRequest(ctx, id, body)
	finish(span, err)
	return req, err
}

func (c *tracingConnect) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	ctx, span := c.start(ctx, "GetRequest", attribute.String("connect.request_id", id))
	req, err := c.next.GetRequest(ctx, id)
	if err == nil {
		span.SetAttributes(attribute.String("connect.request_status", string(req.Status)))
	}
	finish(span, err)
	return req, err
}

func (c *tracingConnect) FindRequests(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	ctx, span := c.start(ctx, "FindRequests",
		attribute.String("tenant.id", filter.ExternalUID),
		attribute.String("connect.request_type", string(filter.Type)),
		attribute.Int("filter.limit", filter.Limit),
	)
	reqs, err := c.next.FindRequests(ctx, filter)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(reqs)))
	}
	finish(span, err)
	return reqs, err
}

func (c *tracingConnect) RequestAction(ctx context.Context, id string, action domain.RequestAction, payload any) (domain.Request, error) {
	ctx, span := c.start(ctx, "RequestAction",
		attribute.String("connect.request_id", id),
		attribute.String("connect.action", string(action)),
	)
	req, err := c.next.RequestAction(ctx, id, action, payload)
	finish(span, err)
	return req, err
}

func (c *tracingConnect) FindAsset(ctx context.Context, externalUID string) (domain.Asset, error) {
	ctx, span := c.start(ctx, "FindAsset", attribute.String("tenant.id", externalUID))
	asset, err := c.next.FindAsset(ctx, externalUID)
	if err == nil {
		span.SetAttributes(attribute.String("connect.asset_id", asset.ID))
	}
	finish(span, err)
	return asset, err
}

func (c *tracingConnect) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	ctx, span := c.start(ctx, "GetProduct", attribute.String("product.id", id))
	product, err := c.next.GetProduct(ctx, id)
	finish(span, err)
	return product, err
}

func (c *tracingConnect) FindConnection(ctx context.Context, productID, hubID string) (string, error) {
	ctx, span := c.start(ctx, "FindConnection",
		attribute.String("product.id", productID),
		attribute.String("hub.id", hubID),
	)
	id, err := c.next.FindConnection(ctx, productID, hubID)
	finish(span, err)
	return id, err
}

func (c *tracingConnect) ProductParameters(ctx context.Context, productID string) ([]domain.ParameterDefinition, error) {
	ctx, span := c.start(ctx, "ProductParameters", attribute.String("product.id", productID))
	defs, err := c.next.ProductParameters(ctx, productID)
	finish(span, err)
	return defs, err
}

func (c *tracingConnect) ProductItems(ctx context.Context, productID string, localIDs []string) ([]domain.ProductItem, error) {
	ctx, span := c.start(ctx, "ProductItems",
		attribute.String("product.id", productID),
		attribute.Int("items.requested", len(localIDs)),
	)
	items, err := c.next.ProductItems(ctx, productID, localIDs)
	finish(span, err)
	return items, err
}

func (c *tracingConnect) ProductActions(ctx context.Context, productID, scope string) ([]domain.ProductAction, error) {
	ctx, span := c.start(ctx, "ProductActions",
		attribute.String("product.id", productID),
		attribute.String("action.scope", scope),
	)
	actions, err := c.next.ProductActions(ctx, productID, scope)
	finish(span, err)
	return actions, err
}

func (c *tracingConnect) ActionLink(ctx context.Context, productID, actionID, assetID string) (string, error) {
	ctx, span := c.start(ctx, "ActionLink",
		attribute.String("product.id", productID),
		attribute.String("action.id", actionID),
		attribute.String("connect.asset_id", assetID),
	)
	link, err := c.next.ActionLink(ctx, productID, actionID, assetID)
	finish(span, err)
	return link, err
}

func (c *tracingConnect) CreateSubscriptionRequest(ctx context.Context, body domain.BillingRequestBody) error {
	ctx, span := c.start(ctx, "CreateSubscriptionRequest",
		attribute.String("tenant.id", body.Asset.ExternalUID),
		attribute.String("billing.uom", body.Period.UOM),
	)
	err := c.next.CreateSubscriptionRequest(ctx, body)
	finish(span, err)
	return err
}
