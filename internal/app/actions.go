package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// ActionLink resolves the link of a product action, known to OA by its local
// id, for the asset of a tenant.
func (s *Service) ActionLink(ctx context.Context, sc Scope, tenantID, localID string) (Response, error) {
	asset, err := sc.Connect.FindAsset(ctx, tenantID)
	if isMissingAsset(err) {
		return Response{Status: http.StatusBadRequest, Body: map[string]string{"error": "Invalid asset"}}, nil
	}
	if err != nil {
		return Response{}, err
	}

	invalid := Response{Status: http.StatusBadRequest, Body: map[string]string{"error": "Invalid action"}}

	actions, err := sc.Connect.ProductActions(ctx, asset.Product.ID, domain.ScopeAsset)
	if err != nil {
		return Response{}, err
	}
	actionID := ""
	for _, a := range actions {
		if a.Action == localID {
			actionID = a.ID
			break
		}
	}
	if actionID == "" {
		return invalid, nil
	}

	link, err := sc.Connect.ActionLink(ctx, asset.Product.ID, actionID, asset.ID)
	if err != nil {
		slog.WarnContext(ctx, "reading action link",
			"asset_id", asset.ID,
			"action_id", actionID,
			"error", err,
		)
		return invalid, nil
	}
	return Response{Status: http.StatusOK, Body: map[string]string{"url": link}}, nil
}
