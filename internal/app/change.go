package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// Change places a change request for the limits and parameters of a tenant.
// A non-empty plannedDate schedules the change.
func (s *Service) Change(ctx context.Context, sc Scope, raw []byte, plannedDate string) (Response, error) {
	tenant, err := s.loadTenant(ctx, sc, raw)
	if err != nil {
		return Response{}, err
	}
	return s.change(ctx, sc, tenant, plannedDate)
}

func (s *Service) change(ctx context.Context, sc Scope, tenant domain.Tenant, plannedDate string) (Response, error) {
	if plannedDate != "" && tenant.Compat.LegacyPlannedDateNotSupported {
		return Response{
			Status: http.StatusBadRequest,
			Body:   Answer{Error: errNotSupported, Message: msgPlannedNotSupported},
		}, nil
	}

	p := &placement{op: domain.OpChange, tenantID: tenant.ID, tenant: tenant, plannedDate: plannedDate}
	body, err := s.build(ctx, sc, p)
	if err != nil {
		return Response{}, errPlacing(p.op, err)
	}

	outcome, err := s.place(ctx, sc, p.op, body, tenant.DraftRequestID)
	if err != nil {
		return Response{}, errPlacing(p.op, err)
	}

	slog.InfoContext(ctx, "change placed",
		"tenant_id", tenant.ID,
		"planned_date", plannedDate,
		"outcome", outcome.Kind.Status(),
	)
	return s.changeResponse(tenant, outcome), nil
}

func (s *Service) changeResponse(tenant domain.Tenant, outcome Outcome) Response {
	var answer Answer
	resp := Response{Status: outcome.Kind.Status()}

	// A leftover scheduled pointer is stale once a new change is placed.
	if tenant.LastPlannedRequest != "" {
		answer.LastPlannedRequest = str("")
	}

	switch outcome.Kind {
	case Approved:
		resp.Status = http.StatusOK
	case Accepted:
		resp.Headers = s.retryHeaders(msgWaitingChange)
	case Conflict:
		answer.Error = outcome.Error
		answer.Message = outcome.Message
	}

	resp.Body = answer
	return resp
}
