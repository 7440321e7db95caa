package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

type scheduledKey struct {
	status domain.RequestStatus
	op     domain.ScheduledOperation
}

type scheduledHandler func(ctx context.Context, s *Service, sc Scope, req domain.Request) Response

// scheduledHandlers maps the status of the scheduled request and the event OA
// delivered to the answer. Pairs without an entry are retried.
var scheduledHandlers = map[scheduledKey]scheduledHandler{
	{domain.StatusFailed, domain.ScheduledCancel}:     scheduledAccept,
	{domain.StatusFailed, domain.ScheduledActivate}:   scheduledFail,
	{domain.StatusScheduled, domain.ScheduledCancel}:  scheduledRevoke,
	{domain.StatusRevoked, domain.ScheduledCancel}:    scheduledAccept,
	{domain.StatusApproved, domain.ScheduledActivate}: scheduledAccept,
	{domain.StatusApproved, domain.ScheduledCancel}:   scheduledMismatch,
}

// TrackScheduled answers the OA event that a scheduled change of a tenant
// is being activated or cancelled.
func (s *Service) TrackScheduled(ctx context.Context, sc Scope, tenantID string, op domain.ScheduledOperation) (Response, error) {
	tenant, err := s.fetchTenant(ctx, sc, tenantID)
	if err != nil {
		slog.WarnContext(ctx, "reading tenant for scheduled change",
			"tenant_id", tenantID,
			"error", err,
		)
		return s.retry(msgTenantUnreadable), nil
	}
	if tenant.LastPlannedRequest == "" {
		return accepted(), nil
	}

	req, err := sc.Connect.GetRequest(ctx, tenant.LastPlannedRequest)
	if err != nil {
		var ce *domain.ConnectError
		if errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound {
			return accepted(), nil
		}
		slog.WarnContext(ctx, "reading scheduled request",
			"tenant_id", tenantID,
			"request_id", tenant.LastPlannedRequest,
			"error", err,
		)
		return s.retry(""), nil
	}

	slog.InfoContext(ctx, "scheduled change event",
		"tenant_id", tenantID,
		"request_id", req.ID,
		"status", req.Status,
		"schedule", op,
	)

	handler, ok := scheduledHandlers[scheduledKey{req.Status, op}]
	if !ok {
		return s.retry(""), nil
	}
	if req.Status == domain.StatusApproved {
		s.publish(ctx, domain.Effect{
			Kind:     domain.EffectTenantWriteBack,
			TenantID: tenantID,
			Origin:   sc.Origin,
			Request:  &req,
			Schedule: op,
		})
	}
	return handler(ctx, s, sc, req), nil
}

func scheduledAccept(context.Context, *Service, Scope, domain.Request) Response {
	return accepted()
}

func scheduledFail(_ context.Context, _ *Service, _ Scope, req domain.Request) Response {
	return failed(req)
}

// scheduledRevoke asks the vendor to drop the scheduled request and keeps OA
// waiting whatever the outcome.
func scheduledRevoke(ctx context.Context, s *Service, sc Scope, req domain.Request) Response {
	if _, err := s.validator.Apply(ctx, req.Status, domain.ActionRevoke); err != nil {
		return s.retry("")
	}
	reason := fmt.Sprintf("Distributor %s has requested to revoke this request", req.Asset.Connection.Provider.Name)
	if _, err := sc.Connect.RequestAction(ctx, req.ID, domain.ActionRevoke, map[string]string{"reason": reason}); err != nil {
		slog.WarnContext(ctx, "revoking scheduled request",
			"request_id", req.ID,
			"error", err,
		)
	}
	return s.retry("")
}

func scheduledMismatch(_ context.Context, _ *Service, _ Scope, req domain.Request) Response {
	return Response{
		Status: http.StatusConflict,
		Body: Answer{
			StatusCode: http.StatusConflict,
			Error:      errConflict,
			Message: fmt.Sprintf("Cancellation of request is not possible becouse vendor %s has already processed "+
				"request %s, contact support in case of need further explanation",
				req.Asset.Connection.Vendor.Name, req.ID),
		},
		Headers: noRetryHeaders(),
	}
}
