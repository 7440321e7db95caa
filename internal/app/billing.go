package app

import (
	"context"
	"log/slog"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// Bill reports a renewal of the tenant as a provider subscription request.
// Connect failures are never surfaced, OA terminates subscriptions whose
// renewal is not acknowledged.
func (s *Service) Bill(ctx context.Context, sc Scope, tenantID string, raw []byte) (Response, error) {
	tenant, err := s.fetchTenant(ctx, sc, tenantID)
	if err != nil {
		return Response{}, err
	}
	event, err := domain.NewBillingEvent(raw)
	if err != nil {
		return Response{}, err
	}
	period, err := event.CoveredPeriod()
	if err != nil {
		return Response{}, err
	}

	if err := sc.Connect.CreateSubscriptionRequest(ctx, domain.NewBillingBody(tenant, period)); err != nil {
		slog.WarnContext(ctx, "placing billing request",
			"tenant_id", tenantID,
			"error", err,
		)
		return accepted(), nil
	}

	slog.InfoContext(ctx, "billing request placed",
		"tenant_id", tenantID,
		"from", period.From,
		"to", period.To,
	)
	return accepted(), nil
}
