package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

const (
	// recreateAfter is how long a failed resume or cancel is reported
	// before a new request is placed for it.
	recreateAfter = 300 * time.Second
	// cancelGiveUp is the number of consecutive failed cancels after which
	// the cancel is reported as done and left to reconciliation.
	cancelGiveUp = 5

	reasonSuspendUnsupported = "The product doesn't support suspend/resume operations."
)

// TrackSimple answers an asynchronous OA poll for a suspend, resume or cancel.
func (s *Service) TrackSimple(ctx context.Context, sc Scope, op domain.Operation, tenantID string) (Response, error) {
	req, found, err := lastRequest(ctx, sc, tenantID, op)
	if err != nil {
		slog.WarnContext(ctx, "reading last request",
			"tenant_id", tenantID,
			"operation", op,
			"error", err,
		)
		return s.retry(""), nil
	}
	if !found {
		// OA is polling for a request Connect never got, usually after a
		// cancelled task. Place it now.
		return s.Simple(ctx, sc, op, tenantID)
	}

	slog.InfoContext(ctx, "tracking request",
		"tenant_id", tenantID,
		"request_id", req.ID,
		"operation", op,
		"status", req.Status,
	)

	switch req.Status {
	case domain.StatusFailed, domain.StatusRevoked:
		return s.simpleFailure(ctx, sc, op, tenantID, req)
	case domain.StatusApproved:
		if op != domain.OpCancel {
			s.publish(ctx, domain.Effect{
				Kind:     domain.EffectTenantWriteBack,
				TenantID: tenantID,
				Origin:   sc.Origin,
				Request:  &req,
			})
		}
		return approved(req, Answer{}, ""), nil
	default:
		return s.pending(req, op, Answer{}), nil
	}
}

// simpleFailure decides what a failed suspend, resume or cancel means for OA.
// Suspends always succeed on the OA side so a failure is reported as done.
// Resumes and cancels are placed again once the failure is old enough, and
// cancels give up after repeated failures.
func (s *Service) simpleFailure(ctx context.Context, sc Scope, op domain.Operation, tenantID string, req domain.Request) (Response, error) {
	if op == domain.OpSuspend {
		return approved(req, Answer{}, ""), nil
	}
	if op == domain.OpResume && req.Reason == reasonSuspendUnsupported {
		return approved(req, Answer{}, ""), nil
	}

	if !s.stale(ctx, req) {
		return failed(req), nil
	}

	if op == domain.OpCancel {
		gaveUp, err := s.gaveUp(ctx, sc, tenantID, op)
		if err != nil {
			slog.WarnContext(ctx, "counting failed requests",
				"tenant_id", tenantID,
				"error", err,
			)
		}
		if gaveUp {
			slog.WarnContext(ctx, "cancel failed repeatedly, reporting as done",
				"tenant_id", tenantID,
				"request_id", req.ID,
			)
			return approved(req, Answer{}, ""), nil
		}
	}
	return s.Simple(ctx, sc, op, tenantID)
}

func (s *Service) stale(ctx context.Context, req domain.Request) bool {
	updated, err := req.UpdatedAt()
	if err != nil {
		slog.WarnContext(ctx, "unreadable request update time",
			"request_id", req.ID,
			"updated", req.Updated,
		)
		return false
	}
	return s.now().Sub(updated) > recreateAfter
}

// gaveUp reports whether the latest requests of the tenant are all failed
// requests of op.
func (s *Service) gaveUp(ctx context.Context, sc Scope, tenantID string, op domain.Operation) (bool, error) {
	reqs, err := sc.Connect.FindRequests(ctx, domain.RequestFilter{
		ExternalUID: tenantID,
		Statuses:    domain.TrackableStatuses,
		Limit:       cancelGiveUp,
	})
	if err != nil {
		return false, err
	}
	if len(reqs) != cancelGiveUp {
		return false, nil
	}
	for _, r := range reqs {
		if r.Type != op.RequestType() || r.Status != domain.StatusFailed {
			return false, nil
		}
	}
	return true, nil
}
