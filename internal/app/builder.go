package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// placement is the input of a request body builder.
type placement struct {
	op          domain.Operation
	tenantID    string
	tenant      domain.Tenant
	plannedDate string

	// account is filled by the purchase builder so the response can echo it.
	account domain.Account
}

type bodyBuilder func(ctx context.Context, s *Service, sc Scope, p *placement) (domain.RequestBody, error)

var builders = map[domain.Operation]bodyBuilder{
	domain.OpPurchase: buildPurchase,
	domain.OpChange:   buildChange,
	domain.OpSuspend:  buildSimple,
	domain.OpResume:   buildSimple,
	domain.OpCancel:   buildSimple,
}

func (s *Service) build(ctx context.Context, sc Scope, p *placement) (domain.RequestBody, error) {
	build, ok := builders[p.op]
	if !ok {
		return domain.RequestBody{}, fmt.Errorf("no request builder for operation %q", p.op)
	}
	return build(ctx, s, sc, p)
}

func buildPurchase(ctx context.Context, s *Service, sc Scope, p *placement) (domain.RequestBody, error) {
	raw, err := sc.OA.GetResource(ctx, p.tenant.AccountID, domain.ResourceOptions{})
	if err != nil {
		return domain.RequestBody{}, fmt.Errorf("reading customer account: %w", err)
	}
	customer, err := domain.NewAccount(raw)
	if err != nil {
		return domain.RequestBody{}, err
	}
	p.account = customer

	resellers, err := resellerChain(ctx, sc, customer.ParentID, p.tenant.AppID)
	if err != nil {
		return domain.RequestBody{}, err
	}

	connectionID, err := s.connectionForApp(ctx, sc, p.tenant.AppID)
	if err != nil {
		return domain.RequestBody{}, err
	}

	raw, err = sc.OA.GetResource(ctx, p.tenant.SubscriptionID, domain.ResourceOptions{})
	if err != nil {
		return domain.RequestBody{}, fmt.Errorf("reading subscription: %w", err)
	}
	subscription, err := domain.NewSubscription(raw)
	if err != nil {
		return domain.RequestBody{}, err
	}

	return domain.NewPurchaseBody(domain.PurchaseInput{
		Tenant:       p.tenant,
		Subscription: subscription,
		Customer:     customer,
		Resellers:    resellers,
		ConnectionID: connectionID,
	}), nil
}

func buildChange(ctx context.Context, s *Service, sc Scope, p *placement) (domain.RequestBody, error) {
	assetID := p.tenant.AssetID
	if assetID == "" {
		asset, err := sc.Connect.FindAsset(ctx, p.tenant.ID)
		if err != nil {
			return domain.RequestBody{}, err
		}
		assetID = asset.ID
	}

	connectionID, err := s.connectionForApp(ctx, sc, p.tenant.AppID)
	if err != nil {
		return domain.RequestBody{}, err
	}

	product, err := sc.Connect.GetProduct(ctx, sc.ProductID)
	if err != nil {
		return domain.RequestBody{}, fmt.Errorf("reading product %s: %w", sc.ProductID, err)
	}

	return domain.NewChangeBody(domain.ChangeInput{
		Tenant:         p.tenant,
		AssetID:        assetID,
		ConnectionID:   connectionID,
		EditableParams: product.Capabilities.Subscription.Change.EditableOrderingParameters,
		PlannedDate:    p.plannedDate,
	}), nil
}

func buildSimple(ctx context.Context, _ *Service, sc Scope, p *placement) (domain.RequestBody, error) {
	asset, err := sc.Connect.FindAsset(ctx, p.tenantID)
	if err != nil {
		return domain.RequestBody{}, err
	}
	return domain.NewSimpleBody(p.op.RequestType(), asset.ID), nil
}

// resellerChain walks the parents of a customer, reading each reseller as the
// application so that accounts outside the customer scope are visible.
func resellerChain(ctx context.Context, sc Scope, parentID, appID string) ([]domain.Account, error) {
	var chain []domain.Account
	for range domain.MaxResellerLevel {
		if parentID == "" {
			break
		}
		raw, err := sc.OA.GetResource(ctx, parentID, domain.ResourceOptions{ImpersonateAs: appID})
		if err != nil {
			return nil, fmt.Errorf("reading reseller %s: %w", parentID, err)
		}
		reseller, err := domain.NewAccount(raw)
		if err != nil {
			return nil, err
		}
		chain = append(chain, reseller)
		parentID = reseller.ParentID
	}
	return chain, nil
}

// connectionForApp resolves the Connect connection of the hub the
// application instance lives on.
func (s *Service) connectionForApp(ctx context.Context, sc Scope, appID string) (string, error) {
	hubID, err := s.hubForApp(ctx, sc, appID)
	if err != nil {
		return "", err
	}
	connectionID, err := sc.Connect.FindConnection(ctx, sc.ProductID, hubID)
	if err != nil {
		return "", fmt.Errorf("resolving connection for hub %s: %w", hubID, err)
	}
	return connectionID, nil
}

// isMissingAsset reports errors that mean Connect has no asset for a tenant.
func isMissingAsset(err error) bool {
	return errors.Is(err, domain.ErrMissingAsset)
}
