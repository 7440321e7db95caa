package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// OutcomeKind classifies the result of placing a request.
type OutcomeKind int

const (
	// Accepted means Connect holds a request OA must keep polling for.
	Accepted OutcomeKind = iota
	// Approved means the operation is already done.
	Approved
	// NoChange means there was nothing to request.
	NoChange
	// Conflict means the operation cannot succeed as asked.
	Conflict
)

// Status is the HTTP status the kind maps to before operation specific
// rewriting.
func (k OutcomeKind) Status() int {
	switch k {
	case Approved:
		return http.StatusCreated
	case NoChange:
		return http.StatusOK
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusAccepted
	}
}

// Outcome is the result of placing a request on Connect.
type Outcome struct {
	Kind          OutcomeKind
	Error         string
	Message       string
	Template      *domain.Template
	ParamsFormURL string
	AssetID       string
	MarketplaceID string
}

// Messages Connect answers with that the classifier recognises.
const (
	backendEmptyItems       = "asset.items: This list may not be empty."
	backendItemsNotChanged  = "Item limits is not changed in new request."
	backendItemsNotChanged2 = "asset.items: Item quantities are not changed."
	backendNoMarketplace    = "Field 'marketplace.id' is required."
	backendNoListing        = "There is no Listing for specified Product and Marketplace."
	backendTiers            = "asset.tiers"
	backendAssetSuspended   = "Request type change is not allowed when asset state is suspended"
)

// defaultMarketplace is reported for requests placed without a marketplace.
const defaultMarketplace = "MP-00000"

// assetStatusIgnores lists, per asset status, the request types that are
// already satisfied by that status.
var assetStatusIgnores = map[string][]domain.RequestType{
	"active":      {domain.TypeResume},
	"terminating": {domain.TypeCancel, domain.TypeSuspend},
	"terminated":  {domain.TypeCancel, domain.TypeSuspend},
	"suspended":   {domain.TypeSuspend},
}

type duplicateResolver func(ctx context.Context, sc Scope, op domain.Operation, ce *domain.ConnectError) Outcome

var duplicateResolvers = map[domain.Operation]duplicateResolver{
	domain.OpPurchase: resolvePurchaseDuplicate,
	domain.OpChange:   resolveChangeDuplicate,
	domain.OpSuspend:  resolveSimpleDuplicate,
	domain.OpResume:   resolveSimpleDuplicate,
	domain.OpCancel:   resolveSimpleDuplicate,
}

// draftActions is the action that turns a draft into a real request.
var draftActions = map[domain.Operation]domain.RequestAction{
	domain.OpPurchase: domain.ActionPurchase,
	domain.OpChange:   domain.ActionSubmit,
}

// place creates the request for op. When draftID points at a request that is
// still a draft, the draft is updated and converted instead.
func (s *Service) place(ctx context.Context, sc Scope, op domain.Operation, body domain.RequestBody, draftID string) (Outcome, error) {
	if action, ok := draftActions[op]; ok && draftID != "" {
		outcome, converted, err := s.convertDraft(ctx, sc, op, action, body, draftID)
		if converted || err != nil {
			return outcome, err
		}
	}

	req, err := sc.Connect.CreateRequest(ctx, body)
	if err != nil {
		return s.handleCreateError(ctx, sc, op, err)
	}

	if (op == domain.OpSuspend || op == domain.OpResume) && req.Status == domain.StatusFailed {
		return Outcome{Kind: Approved, Template: req.Template, ParamsFormURL: req.ParamsFormURL}, nil
	}
	return Outcome{Kind: Accepted, Template: req.Template, ParamsFormURL: req.ParamsFormURL}, nil
}

// convertDraft reports converted=false when the draft cannot be used and a
// regular request must be created instead.
func (s *Service) convertDraft(ctx context.Context, sc Scope, op domain.Operation, action domain.RequestAction, body domain.RequestBody, draftID string) (Outcome, bool, error) {
	draft, err := sc.Connect.GetRequest(ctx, draftID)
	if err != nil {
		slog.WarnContext(ctx, "draft request not readable",
			"request_id", draftID,
			"operation", op,
			"error", err,
		)
		return Outcome{}, false, nil
	}
	if _, err := s.validator.Apply(ctx, draft.Status, action); err != nil {
		return Outcome{}, false, nil
	}

	req, err := s.submitDraft(ctx, sc, action, body, draftID)
	if err != nil {
		if op == domain.OpChange {
			slog.WarnContext(ctx, "draft conversion failed, placing regular request",
				"request_id", draftID,
				"error", err,
			)
			return Outcome{}, false, nil
		}
		outcome, err := s.handleCreateError(ctx, sc, op, err)
		return outcome, true, err
	}
	return Outcome{
		Kind:          Accepted,
		Template:      req.Template,
		ParamsFormURL: req.ParamsFormURL,
	}, true, nil
}

func (s *Service) submitDraft(ctx context.Context, sc Scope, action domain.RequestAction, body domain.RequestBody, draftID string) (domain.Request, error) {
	if _, err := sc.Connect.UpdateRequest(ctx, draftID, body); err != nil {
		return domain.Request{}, err
	}
	return sc.Connect.RequestAction(ctx, draftID, action, struct{}{})
}

// handleCreateError classifies a rejected request. Transport failures are
// returned as is; the caller answers timeouts with a retry.
func (s *Service) handleCreateError(ctx context.Context, sc Scope, op domain.Operation, err error) (Outcome, error) {
	var ce *domain.ConnectError
	if !errors.As(err, &ce) {
		return Outcome{}, err
	}
	return classify(ctx, sc, op, ce)
}

// classify maps a Connect rejection onto an outcome. Rejections without a
// rule are fatal.
func classify(ctx context.Context, sc Scope, op domain.Operation, ce *domain.ConnectError) (Outcome, error) {
	if ce.StatusCode != http.StatusConflict {
		return classifyRejection(ce)
	}
	if !ce.Duplicate() {
		return Outcome{Kind: Conflict, Message: ce.Joined()}, nil
	}
	return duplicateResolvers[op](ctx, sc, op, ce), nil
}

func classifyRejection(ce *domain.ConnectError) (Outcome, error) {
	switch {
	case ce.Contains(backendEmptyItems):
		return Outcome{Kind: Conflict, Message: msgEmptyItems}, nil
	case ce.Contains(backendItemsNotChanged), ce.Contains(backendItemsNotChanged2):
		return Outcome{Kind: NoChange}, nil
	case ce.Contains(backendNoMarketplace):
		return Outcome{Kind: Conflict, Message: msgMarketplaceMisconf}, nil
	case strings.Contains(ce.FirstError(), backendNoListing), strings.Contains(ce.FirstError(), backendTiers):
		return Outcome{Kind: Conflict, Message: ce.Joined()}, nil
	}
	return Outcome{}, &domain.UnexpectedBackendError{Cause: ce}
}

func resolveSimpleDuplicate(_ context.Context, _ Scope, op domain.Operation, ce *domain.ConnectError) Outcome {
	if ce.Params.RequestStatus == domain.StatusApproved {
		return Outcome{Kind: Approved}
	}
	for _, t := range assetStatusIgnores[ce.Params.AssetStatus] {
		if t == op.RequestType() {
			return Outcome{Kind: Approved}
		}
	}
	if ce.Params.RequestStatus == domain.StatusFailed {
		message := ""
		if ce.Params.FailMessage != nil {
			message = *ce.Params.FailMessage
		}
		return Outcome{Kind: Conflict, Message: message}
	}
	return Outcome{Kind: Accepted}
}

func resolvePurchaseDuplicate(ctx context.Context, sc Scope, _ domain.Operation, ce *domain.ConnectError) Outcome {
	if ce.Params.RequestStatus == domain.StatusFailed {
		return Outcome{Kind: Conflict, Error: errProvisioningFailed, Message: ce.FailMessage()}
	}
	return Outcome{
		Kind:          Accepted,
		Template:      ce.Params.Template,
		ParamsFormURL: ce.Params.ParamsFormURL,
		AssetID:       ce.Params.AssetID,
		MarketplaceID: requestMarketplace(ctx, sc, ce.Params.RequestID),
	}
}

func resolveChangeDuplicate(ctx context.Context, sc Scope, _ domain.Operation, ce *domain.ConnectError) Outcome {
	if ce.FirstError() == backendAssetSuspended {
		return Outcome{Kind: Conflict, Error: errProvisioningFailed, Message: msgChangeWhileSuspended}
	}
	if ce.Params.RequestStatus == domain.StatusFailed || ce.StatusCode == http.StatusConflict {
		if ce.StatusCode == http.StatusBadRequest && ce.FirstError() == backendItemsNotChanged2 {
			return Outcome{Kind: NoChange}
		}
		return Outcome{Kind: Conflict, Error: errProvisioningFailed, Message: ce.FailMessage()}
	}
	return Outcome{
		Kind:          Accepted,
		Template:      ce.Params.Template,
		ParamsFormURL: ce.Params.ParamsFormURL,
		AssetID:       ce.Params.AssetID,
		MarketplaceID: requestMarketplace(ctx, sc, ce.Params.ID),
	}
}

// requestMarketplace returns the marketplace of an existing request, or ""
// when it cannot be read.
func requestMarketplace(ctx context.Context, sc Scope, requestID string) string {
	if requestID == "" {
		return ""
	}
	req, err := sc.Connect.GetRequest(ctx, requestID)
	if err != nil {
		slog.WarnContext(ctx, "reading duplicate request",
			"request_id", requestID,
			"error", err,
		)
		return ""
	}
	if req.Marketplace == nil {
		return defaultMarketplace
	}
	return req.Marketplace.ID
}

func errPlacing(op domain.Operation, err error) error {
	return fmt.Errorf("placing %s request: %w", op, err)
}
