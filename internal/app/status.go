package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// RequestSummary describes the most recent request of a tenant for the OA
// control panel.
type RequestSummary struct {
	Status        domain.RequestStatus `json:"status"`
	Type          domain.RequestType   `json:"type"`
	Link          string               `json:"link,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	ActivationKey *string              `json:"activation_key,omitempty"`
}

// LastRequestStatus summarises the most recent request of a tenant. An
// approved adjustment is also copied onto the tenant.
func (s *Service) LastRequestStatus(ctx context.Context, sc Scope, tenantID string) (Response, error) {
	req, found, err := lastRequest(ctx, sc, tenantID, "")
	if err != nil {
		return Response{}, fmt.Errorf("reading last request of %s: %w", tenantID, err)
	}
	if !found {
		return accepted(), nil
	}

	summary := RequestSummary{Status: req.Status, Type: req.Type}
	switch req.Status {
	case domain.StatusInquiring:
		summary.Link = req.ParamsFormURL
	case domain.StatusFailed:
		summary.Reason = req.Reason
	}

	if req.Type == domain.TypeAdjustment && req.Status == domain.StatusApproved {
		key := ""
		if req.ActivationKey != nil {
			key = *req.ActivationKey
		}
		summary.ActivationKey = &key
		s.publish(ctx, domain.Effect{
			Kind:     domain.EffectTenantWriteBack,
			TenantID: tenantID,
			Origin:   sc.Origin,
			Request:  &req,
		})
	}
	return Response{Status: http.StatusOK, Body: summary}, nil
}

// Poll reports the state of the most recent request of a tenant the way an
// asynchronous poll would, without placing requests or touching OA.
func (s *Service) Poll(ctx context.Context, sc Scope, tenantID string) (Response, error) {
	tenant, err := s.fetchTenant(ctx, sc, tenantID)
	if err != nil {
		return Response{}, err
	}

	req, found, err := lastRequest(ctx, sc, tenantID, "")
	if err != nil {
		return s.retry(""), nil
	}
	if !found {
		return noRequest(tenantID), nil
	}

	op := domain.Operation(req.Type)
	switch req.Status {
	case domain.StatusFailed, domain.StatusRevoked:
		return failed(req), nil
	}

	answer := trackedAnswer(ctx, sc, tenant, req)
	switch req.Status {
	case domain.StatusApproved:
		if !tenant.Compat.LegacySyncActivationDate {
			answer.ActivationDate = str(req.ActivationDate())
		}
		return approved(req, answer, tenant.DraftRequestID), nil
	case domain.StatusInquiring:
		return s.inquiring(req, op, answer), nil
	default:
		return s.pending(req, op, answer), nil
	}
}
