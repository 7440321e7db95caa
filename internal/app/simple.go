package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// Simple places a suspend, resume or cancel request for a tenant. A tenant
// without an asset on Connect has nothing to act on and is answered with 204.
func (s *Service) Simple(ctx context.Context, sc Scope, op domain.Operation, tenantID string) (Response, error) {
	if !op.Simple() {
		return Response{}, fmt.Errorf("operation %q is not a simple operation", op)
	}

	p := &placement{op: op, tenantID: tenantID}
	body, err := s.build(ctx, sc, p)
	if isMissingAsset(err) {
		slog.InfoContext(ctx, "no asset for tenant, nothing to do",
			"tenant_id", tenantID,
			"operation", op,
		)
		return noContent(), nil
	}
	if err != nil {
		return Response{}, errPlacing(op, err)
	}

	outcome, err := s.place(ctx, sc, op, body, "")
	if err != nil {
		return Response{}, errPlacing(op, err)
	}

	switch outcome.Kind {
	case Conflict:
		return conflict(Answer{Message: outcome.Message}), nil
	case Approved:
		if op == domain.OpCancel {
			return noContent(), nil
		}
		return Response{Status: http.StatusOK, Body: Answer{}}, nil
	default:
		return Response{
			Status:  http.StatusAccepted,
			Body:    Answer{},
			Headers: s.retryHeaders("Waiting for subscription " + string(op)),
		}, nil
	}
}
