package domain

import "strings"

// RequestBody is the payload posted to Connect to create or update a request.
type RequestBody struct {
	Type        RequestType   `json:"type"`
	Status      RequestStatus `json:"status,omitempty"`
	PlannedDate string        `json:"planned_date,omitempty"`
	Asset       AssetBody     `json:"asset"`
}

// AssetBody is the asset part of a RequestBody. Items and Params keep empty
// lists on the wire so Connect can reject them explicitly.
type AssetBody struct {
	ID          string         `json:"id,omitempty"`
	ExternalUID string         `json:"external_uid,omitempty"`
	ExternalID  *string        `json:"external_id,omitempty"`
	Params      []RequestParam `json:"params,omitzero"`
	Items       []Item         `json:"items,omitzero"`
	Tiers       *Tiers         `json:"tiers,omitempty"`
	Product     *Ref           `json:"product,omitempty"`
	Connection  *Ref           `json:"connection,omitempty"`
}

// PurchaseInput gathers everything a purchase request is built from.
type PurchaseInput struct {
	Tenant       Tenant
	Subscription Subscription
	Customer     Account
	Resellers    []Account
	ConnectionID string
}

// NewPurchaseBody builds a purchase request. Tier slots without a reseller
// are padded with the dummy account.
func NewPurchaseBody(in PurchaseInput) RequestBody {
	tier := func(i int) *TierAccount {
		if i < len(in.Resellers) {
			return in.Resellers[i].Tier()
		}
		return DummyAccount().Tier()
	}
	externalID := in.Subscription.OSSID
	return RequestBody{
		Type: TypePurchase,
		Asset: AssetBody{
			ExternalUID: in.Tenant.ID,
			ExternalID:  &externalID,
			Params:      nonNilParams(in.Tenant.Params),
			Items:       in.Tenant.Items(),
			Tiers: &Tiers{
				Customer: in.Customer.Tier(),
				Tier1:    tier(0),
				Tier2:    tier(1),
			},
			Connection: &Ref{ID: in.ConnectionID},
		},
	}
}

// ChangeInput gathers everything a change request is built from.
type ChangeInput struct {
	Tenant         Tenant
	AssetID        string
	ConnectionID   string
	EditableParams bool
	PlannedDate    string
}

// NewChangeBody builds a change request.
func NewChangeBody(in ChangeInput) RequestBody {
	externalID := ""
	body := RequestBody{
		Type:        TypeChange,
		PlannedDate: SanitizePlannedDate(in.PlannedDate),
		Asset: AssetBody{
			ID:          in.AssetID,
			ExternalUID: in.Tenant.ID,
			ExternalID:  &externalID,
			Items:       in.Tenant.Items(),
			Connection:  &Ref{ID: in.ConnectionID},
		},
	}
	if in.EditableParams {
		body.Asset.Params = nonNilParams(in.Tenant.EditableParams())
	}
	return body
}

// NewSimpleBody builds a suspend, resume or cancel request.
func NewSimpleBody(kind RequestType, assetID string) RequestBody {
	return RequestBody{Type: kind, Asset: AssetBody{ID: assetID}}
}

// DraftInput gathers everything a draft validation request is built from.
type DraftInput struct {
	Type         RequestType
	AssetID      string
	ProductID    string
	ConnectionID string
	Params       []RequestParam
	Items        []Item
	Customer     *Account
	Resellers    []Account
}

// NewDraftBody builds a draft request used for parameter validation. A change
// draft references its asset, a purchase draft describes a new one.
func NewDraftBody(in DraftInput) RequestBody {
	body := RequestBody{
		Type:   in.Type,
		Status: StatusDraft,
		Asset: AssetBody{
			Params: nonNilParams(in.Params),
		},
	}
	if len(in.Items) > 0 {
		body.Asset.Items = in.Items
	}
	if in.Type == TypeChange {
		body.Asset.ID = in.AssetID
		return body
	}
	body.Asset.Product = &Ref{ID: in.ProductID}
	body.Asset.Connection = &Ref{ID: in.ConnectionID}
	if in.Customer == nil {
		return body
	}
	tiers := &Tiers{Customer: in.Customer.Tier()}
	if len(in.Resellers) > 0 {
		tiers.Tier1 = in.Resellers[0].Tier()
	}
	if len(in.Resellers) > 1 {
		tiers.Tier2 = in.Resellers[1].Tier()
	}
	body.Asset.Tiers = tiers
	return body
}

// SanitizePlannedDate strips stray quotes and rewrites a Z suffix as an
// explicit UTC offset.
func SanitizePlannedDate(date string) string {
	date = strings.ReplaceAll(date, `"`, "")
	return strings.ReplaceAll(date, "Z", "+00:00")
}

func nonNilParams(params []RequestParam) []RequestParam {
	if params == nil {
		return []RequestParam{}
	}
	return params
}
