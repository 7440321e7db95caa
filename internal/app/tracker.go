package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// lastRequest returns the most recent trackable request of a tenant. An empty
// op matches every request type.
func lastRequest(ctx context.Context, sc Scope, tenantID string, op domain.Operation) (domain.Request, bool, error) {
	filter := domain.RequestFilter{
		ExternalUID: tenantID,
		Statuses:    domain.TrackableStatuses,
		Limit:       1,
	}
	if op != "" {
		filter.Type = op.RequestType()
	}
	reqs, err := sc.Connect.FindRequests(ctx, filter)
	if err != nil {
		return domain.Request{}, false, err
	}
	if len(reqs) == 0 {
		return domain.Request{}, false, nil
	}
	return reqs[0], true, nil
}

// parameterSet reads the parameter definitions of a product. Definitions
// that cannot be read leave the request parameters unmapped.
func parameterSet(ctx context.Context, sc Scope, productID string) domain.ParameterSet {
	defs, err := sc.Connect.ProductParameters(ctx, productID)
	if err != nil {
		slog.WarnContext(ctx, "reading product parameters",
			"product_id", productID,
			"error", err,
		)
		return domain.ParameterSet{}
	}
	return domain.SplitParameters(defs)
}

// trackedAnswer holds the tenant properties every non-failed poll reports.
func trackedAnswer(ctx context.Context, sc Scope, tenant domain.Tenant, req domain.Request) Answer {
	var answer Answer
	compat := tenant.Compat

	extracted := domain.ExtractParameters(req, parameterSet(ctx, sc, req.Asset.Product.ID))
	if !compat.LegacyVendorSubscriptionID {
		answer.VendorSubscriptionID = str(domain.Truncate(extracted.VendorSubscriptionID))
	}
	if !compat.LegacyExternalIdentifiers {
		answer.FulfillmentParameters = extracted.Fulfillment
		answer.ActivationParameters = extracted.Activation
	}

	if !compat.LegacyAssetID {
		answer.AssetID = str(req.Asset.ID)
	}
	if id := req.Asset.MarketplaceID(); !compat.LegacyMarketplaceID && id != "" {
		answer.MarketplaceID = str(id)
	}
	return answer
}

// Track answers an asynchronous OA poll for a purchase or change by looking at
// the most recent request of the tenant. A non-empty plannedDate marks the
// poll of a scheduled change.
func (s *Service) Track(ctx context.Context, sc Scope, op domain.Operation, raw []byte, plannedDate string) (Response, error) {
	tenant, err := s.loadTenant(ctx, sc, raw)
	if err != nil {
		return Response{}, err
	}

	req, found, err := lastRequest(ctx, sc, tenant.ID, op)
	if err != nil {
		slog.WarnContext(ctx, "reading last request",
			"tenant_id", tenant.ID,
			"operation", op,
			"error", err,
		)
		return s.retry(""), nil
	}
	if !found {
		return noRequest(tenant.ID), nil
	}

	slog.InfoContext(ctx, "tracking request",
		"tenant_id", tenant.ID,
		"request_id", req.ID,
		"operation", op,
		"status", req.Status,
	)

	switch req.Status {
	case domain.StatusFailed, domain.StatusRevoked:
		return failed(req), nil
	}

	answer := trackedAnswer(ctx, sc, tenant, req)

	switch {
	case req.Status == domain.StatusApproved:
		return s.trackApproved(ctx, sc, op, tenant, req, answer), nil
	case req.Status == domain.StatusInquiring:
		return s.inquiring(req, op, answer), nil
	case req.Status == domain.StatusScheduled && plannedDate != "":
		return s.trackScheduled(ctx, sc, op, tenant, req, answer), nil
	default:
		return s.pending(req, op, answer), nil
	}
}

func (s *Service) trackApproved(ctx context.Context, sc Scope, op domain.Operation, tenant domain.Tenant, req domain.Request, answer Answer) Response {
	if op == domain.OpPurchase {
		s.publish(ctx, domain.Effect{
			Kind:     domain.EffectRenewalSubscription,
			TenantID: tenant.ID,
			Origin:   sc.Origin,
		})
	}
	if !tenant.Compat.LegacySyncActivationDate {
		answer.ActivationDate = str(req.ActivationDate())
	}
	if op == domain.OpChange {
		if resp, drifted := s.verifyChange(ctx, sc, tenant, req); drifted {
			return resp
		}
	}
	return approved(req, answer, tenant.DraftRequestID)
}

// verifyChange places a fresh change request when the limits OA holds no
// longer match what the approved request granted. Zero quantities are left
// out on both sides.
func (s *Service) verifyChange(ctx context.Context, sc Scope, tenant domain.Tenant, req domain.Request) (Response, bool) {
	if len(itemDrift(tenant.PurchasedItems(), req.Asset.Items)) == 0 {
		return Response{}, false
	}

	slog.InfoContext(ctx, "limits drifted from approved request, placing change",
		"tenant_id", tenant.ID,
		"request_id", req.ID,
	)
	resp, err := s.change(ctx, sc, tenant, "")
	if err != nil {
		slog.ErrorContext(ctx, "placing change after drift",
			"tenant_id", tenant.ID,
			"error", err,
		)
		return Response{}, false
	}
	return resp, true
}

type itemKey struct {
	id       string
	quantity domain.Quantity
}

// itemDrift returns the non-zero items present on one side only.
func itemDrift(tenantItems, requestItems []domain.Item) []itemKey {
	keys := func(items []domain.Item) map[itemKey]bool {
		out := make(map[itemKey]bool, len(items))
		for _, it := range items {
			if it.Quantity == 0 {
				continue
			}
			out[itemKey{id: it.ID, quantity: it.Quantity}] = true
		}
		return out
	}
	ours, theirs := keys(tenantItems), keys(requestItems)

	var drift []itemKey
	for k := range ours {
		if !theirs[k] {
			drift = append(drift, k)
		}
	}
	for k := range theirs {
		if !ours[k] {
			drift = append(drift, k)
		}
	}
	return drift
}

// trackScheduled subscribes the tenant to the delayed change events and
// records the scheduled request. OA failures fall back to a pending answer.
func (s *Service) trackScheduled(ctx context.Context, sc Scope, op domain.Operation, tenant domain.Tenant, req domain.Request, answer Answer) Response {
	if err := subscribeDelayed(ctx, sc, tenant.ID); err != nil {
		slog.WarnContext(ctx, "subscribing to delayed change events",
			"tenant_id", tenant.ID,
			"error", err,
		)
		return s.pending(req, op, answer)
	}
	answer.LastPlannedRequest = str(req.ID)
	return Response{Status: http.StatusOK, Body: answer}
}

func subscribeDelayed(ctx context.Context, sc Scope, tenantID string) error {
	subs, err := sc.OA.Subscriptions(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.Event == domain.DelayedActivationType {
			return nil
		}
	}
	if err := sc.OA.Subscribe(ctx, tenantID, domain.NewEventSubscription(domain.DelayedActivationType, domain.DelayedActivationHandler)); err != nil {
		return err
	}
	return sc.OA.Subscribe(ctx, tenantID, domain.NewEventSubscription(domain.DelayedCancelType, domain.DelayedCancelHandler))
}
