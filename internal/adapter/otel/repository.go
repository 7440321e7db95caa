package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

const tracerName = "github.com/neomorfeo/apsconnect/internal/adapter/otel"

// finish records err on span, if any, and ends it.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TracingInstallationRepository wraps a domain.InstallationRepository with
// OpenTelemetry tracing. Each method creates a span with semantic attributes
// and records errors. OAuth secrets are never put on spans.
type TracingInstallationRepository struct {
	next   domain.InstallationRepository
	tracer trace.Tracer
}

// Compile-time check: TracingInstallationRepository implements domain.InstallationRepository.
var _ domain.InstallationRepository = (*TracingInstallationRepository)(nil)

// NewTracingInstallationRepository creates a tracing decorator around the given repository.
func NewTracingInstallationRepository(next domain.InstallationRepository) *TracingInstallationRepository {
	return &TracingInstallationRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingInstallationRepository) GetByOAuthKey(ctx context.Context, oauthKey string) (domain.Installation, error) {
	ctx, span := r.tracer.Start(ctx, "InstallationRepository.GetByOAuthKey",
		trace.WithAttributes(attribute.String("oauth.key", oauthKey)),
	)

	inst, err := r.next.GetByOAuthKey(ctx, oauthKey)
	if err == nil {
		span.SetAttributes(attribute.String("product.id", inst.ProductID))
	}
	finish(span, err)
	return inst, err
}

func (r *TracingInstallationRepository) Save(ctx context.Context, inst domain.Installation) error {
	ctx, span := r.tracer.Start(ctx, "InstallationRepository.Save",
		trace.WithAttributes(
			attribute.String("oauth.key", inst.OAuthKey),
			attribute.String("product.id", inst.ProductID),
		),
	)

	err := r.next.Save(ctx, inst)
	finish(span, err)
	return err
}

func (r *TracingInstallationRepository) BindApp(ctx context.Context, appID, hubID string) error {
	ctx, span := r.tracer.Start(ctx, "InstallationRepository.BindApp",
		trace.WithAttributes(
			attribute.String("app.id", appID),
			attribute.String("hub.id", hubID),
		),
	)

	err := r.next.BindApp(ctx, appID, hubID)
	finish(span, err)
	return err
}

func (r *TracingInstallationRepository) HubForApp(ctx context.Context, appID string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "InstallationRepository.HubForApp",
		trace.WithAttributes(attribute.String("app.id", appID)),
	)

	hubID, err := r.next.HubForApp(ctx, appID)
	if err == nil {
		span.SetAttributes(attribute.String("hub.id", hubID))
	}
	finish(span, err)
	return hubID, err
}

func (r *TracingInstallationRepository) UnbindApp(ctx context.Context, appID string) error {
	ctx, span := r.tracer.Start(ctx, "InstallationRepository.UnbindApp",
		trace.WithAttributes(attribute.String("app.id", appID)),
	)

	err := r.next.UnbindApp(ctx, appID)
	finish(span, err)
	return err
}

func (r *TracingInstallationRepository) TouchHub(ctx context.Context, hub domain.HubInstance) error {
	ctx, span := r.tracer.Start(ctx, "InstallationRepository.TouchHub",
		trace.WithAttributes(
			attribute.String("hub.id", hub.HubID),
			attribute.String("app.id", hub.AppInstanceID),
			attribute.String("hub.controller_uri", hub.ControllerURI),
		),
	)

	err := r.next.TouchHub(ctx, hub)
	finish(span, err)
	return err
}
