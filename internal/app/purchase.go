package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// Purchase places the purchase request for a tenant OA is provisioning.
func (s *Service) Purchase(ctx context.Context, sc Scope, raw []byte) (Response, error) {
	tenant, err := s.loadTenant(ctx, sc, raw)
	if err != nil {
		return Response{}, err
	}

	p := &placement{op: domain.OpPurchase, tenantID: tenant.ID, tenant: tenant}
	body, err := s.build(ctx, sc, p)
	if err != nil {
		var phone *domain.InvalidPhoneError
		if errors.As(err, &phone) {
			return conflict(Answer{Message: phone.Error()}), nil
		}
		return Response{}, errPlacing(p.op, err)
	}

	outcome, err := s.place(ctx, sc, p.op, body, tenant.DraftRequestID)
	if err != nil {
		return Response{}, errPlacing(p.op, err)
	}

	slog.InfoContext(ctx, "purchase placed",
		"tenant_id", tenant.ID,
		"outcome", outcome.Kind.Status(),
	)
	return s.purchaseResponse(tenant, p.account, outcome), nil
}

func (s *Service) purchaseResponse(tenant domain.Tenant, account domain.Account, outcome Outcome) Response {
	var answer Answer
	resp := Response{Status: outcome.Kind.Status()}

	switch outcome.Kind {
	case Conflict:
		answer.Error = outcome.Error
		answer.Message = outcome.Message
	case Accepted:
		resp.Headers = s.retryHeaders(msgWaitingActivation)
	}
	if outcome.Kind != Conflict {
		info := account.Info()
		answer.AccountInfo = &info
	}

	compat := tenant.Compat
	if !compat.LegacyParamsFormURL {
		answer.ParamsFormURL = str(domain.Truncate(outcome.ParamsFormURL))
		if outcome.ParamsFormURL != "" && outcome.Template != nil {
			answer.ActivationKey = str(domain.Truncate(outcome.Template.Message))
		}
	}
	if !compat.LegacyAssetID && outcome.AssetID != "" {
		answer.AssetID = str(domain.Truncate(outcome.AssetID))
	}
	if !compat.LegacyMarketplaceID && outcome.MarketplaceID != "" {
		answer.MarketplaceID = str(domain.Truncate(outcome.MarketplaceID))
	}

	resp.Body = answer
	return resp
}
