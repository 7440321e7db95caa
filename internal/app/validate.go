package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

const (
	appTypePrefix  = "http://aps.odin.com/app/"
	itemsBatchSize = 100
)

// ValidationInput is a draft OA asks to validate before placing an order.
// AppID is set when validating a purchase, TenantID when validating a change.
type ValidationInput struct {
	AppID    string
	TenantID string
	Customer string
	Raw      []byte
}

// ValidatedParam is a parameter as Connect validated it.
type ValidatedParam struct {
	Key             string          `json:"key"`
	Value           string          `json:"value"`
	Type            string          `json:"type"`
	Constraints     json.RawMessage `json:"constraints"`
	ValueError      string          `json:"valueError,omitempty"`
	StructuredValue json.RawMessage `json:"structured_value,omitempty"`
}

// Validation is the answer to a successful draft validation.
type Validation struct {
	DraftRequestID   string           `json:"draftRequestId"`
	ActivationParams []ValidatedParam `json:"activationParams"`
}

type draftItem struct {
	Property string          `json:"property"`
	Value    domain.Quantity `json:"value"`
}

type draftDoc struct {
	DraftRequestID   string               `json:"draftRequestId"`
	AssetID          string               `json:"assetId"`
	ActivationParams []domain.OAParameter `json:"activationParams"`
	APS              struct {
		Type string `json:"type"`
	} `json:"aps"`
	Items map[string]draftItem `json:"items"`
}

// ValidateDraft has Connect validate the ordering parameters of a purchase or
// change before OA places it. Validation never blocks an order: whenever it
// cannot be carried out OA is told so with a 409.
func (s *Service) ValidateDraft(ctx context.Context, sc Scope, in ValidationInput) (Response, error) {
	var doc draftDoc
	if err := json.Unmarshal(in.Raw, &doc); err != nil {
		return Response{}, fmt.Errorf("decoding draft: %w", err)
	}

	body, err := s.draftBody(ctx, sc, in, doc)
	if err != nil {
		slog.WarnContext(ctx, "draft validation not possible",
			"app_id", in.AppID,
			"tenant_id", in.TenantID,
			"error", err,
		)
		return validationNotPossible(), nil
	}

	draftID := doc.DraftRequestID
	if draftID == "" {
		created, err := sc.Connect.CreateRequest(ctx, body)
		if err != nil {
			slog.WarnContext(ctx, "creating draft request", "error", err)
			return validationNotPossible(), nil
		}
		if _, err := s.validator.Apply(ctx, created.Status, domain.ActionValidate); err != nil {
			slog.WarnContext(ctx, "created request is not a draft",
				"request_id", created.ID,
				"status", created.Status,
			)
			return validationNotPossible(), nil
		}
		draftID = created.ID
	}

	result, err := sc.Connect.RequestAction(ctx, draftID, domain.ActionValidate, body)
	if err != nil {
		slog.WarnContext(ctx, "validating draft request",
			"request_id", draftID,
			"error", err,
		)
		return validationNotPossible(), nil
	}

	validation := Validation{DraftRequestID: draftID, ActivationParams: []ValidatedParam{}}
	for _, p := range result.Asset.Params {
		validation.ActivationParams = append(validation.ActivationParams, ValidatedParam{
			Key:             p.ID,
			Value:           p.Value,
			Type:            p.Type,
			Constraints:     p.Constraints,
			ValueError:      p.ValueError,
			StructuredValue: p.StructuredValue,
		})
	}
	return Response{Status: http.StatusOK, Body: validation}, nil
}

var errNoDraftAsset = errors.New("change validation without asset id")

func (s *Service) draftBody(ctx context.Context, sc Scope, in ValidationInput, doc draftDoc) (domain.RequestBody, error) {
	_, params := domain.ExtractActivationParams(doc.ActivationParams)
	items, err := draftItems(ctx, sc, doc)
	if err != nil {
		return domain.RequestBody{}, err
	}

	if in.TenantID != "" {
		if doc.AssetID == "" {
			return domain.RequestBody{}, errNoDraftAsset
		}
		return domain.NewDraftBody(domain.DraftInput{
			Type:    domain.TypeChange,
			AssetID: doc.AssetID,
			Params:  params,
			Items:   items,
		}), nil
	}

	draft := domain.DraftInput{
		Type:      domain.TypePurchase,
		ProductID: sc.ProductID,
		Params:    params,
		Items:     items,
	}
	if in.Customer != "" {
		raw, err := sc.OA.GetResource(ctx, in.Customer, domain.ResourceOptions{ImpersonateAs: in.AppID})
		if err != nil {
			return domain.RequestBody{}, fmt.Errorf("reading customer %s: %w", in.Customer, err)
		}
		customer, err := domain.NewAccount(raw)
		if err != nil {
			return domain.RequestBody{}, err
		}
		resellers, err := resellerChain(ctx, sc, customer.ParentID, in.AppID)
		if err != nil {
			return domain.RequestBody{}, err
		}
		draft.Customer = &customer
		draft.Resellers = resellers
	}

	connectionID, err := s.connectionForApp(ctx, sc, in.AppID)
	if err != nil {
		return domain.RequestBody{}, err
	}
	if connectionID == "" {
		return domain.RequestBody{}, fmt.Errorf("no connection for product %s", sc.ProductID)
	}
	draft.ConnectionID = connectionID
	return domain.NewDraftBody(draft), nil
}

// draftItems translates the OA counters of a draft into Connect items. The
// Connect product is taken from the application type of the draft.
func draftItems(ctx context.Context, sc Scope, doc draftDoc) ([]domain.Item, error) {
	if doc.Items == nil || doc.APS.Type == "" {
		return nil, nil
	}
	product := strings.SplitN(strings.TrimPrefix(doc.APS.Type, appTypePrefix), "/", 2)[0]

	limits := make(map[string]domain.Quantity, len(doc.Items))
	for _, it := range doc.Items {
		if it.Property == "" {
			continue
		}
		limits[it.Property] = it.Value
	}
	if len(limits) == 0 {
		return nil, nil
	}
	localIDs := make([]string, 0, len(limits))
	for id := range limits {
		localIDs = append(localIDs, id)
	}
	sort.Strings(localIDs)

	var items []domain.Item
	for start := 0; start < len(localIDs); start += itemsBatchSize {
		end := min(start+itemsBatchSize, len(localIDs))
		found, err := sc.Connect.ProductItems(ctx, product, localIDs[start:end])
		if err != nil {
			return nil, fmt.Errorf("reading items of product %s: %w", product, err)
		}
		for _, pi := range found {
			items = append(items, domain.Item{GlobalID: pi.ID, Quantity: limits[pi.LocalID]})
		}
	}
	return items, nil
}
