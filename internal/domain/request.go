package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RequestStatus is the Connect-owned status of a fulfillment request.
type RequestStatus string

const (
	StatusDraft      RequestStatus = "draft"
	StatusPending    RequestStatus = "pending"
	StatusTiersSetup RequestStatus = "tiers_setup"
	StatusScheduled  RequestStatus = "scheduled"
	StatusRevoking   RequestStatus = "revoking"
	StatusInquiring  RequestStatus = "inquiring"
	StatusApproved   RequestStatus = "approved"
	StatusFailed     RequestStatus = "failed"
	StatusRevoked    RequestStatus = "revoked"
)

// TrackableStatuses are the statuses the trackers consider when looking up
// the most recent request of a tenant.
var TrackableStatuses = []RequestStatus{
	StatusFailed,
	StatusPending,
	StatusApproved,
	StatusInquiring,
	StatusTiersSetup,
	StatusScheduled,
	StatusRevoking,
	StatusRevoked,
}

// Terminal reports whether no further status change is expected.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusFailed || s == StatusRevoked
}

// RequestType is the kind of a Connect request.
type RequestType string

const (
	TypePurchase   RequestType = "purchase"
	TypeChange     RequestType = "change"
	TypeSuspend    RequestType = "suspend"
	TypeResume     RequestType = "resume"
	TypeCancel     RequestType = "cancel"
	TypeAdjustment RequestType = "adjustment"
	TypeProvider   RequestType = "provider"
)

// RequestAction is a named action invoked on a Connect request.
type RequestAction string

const (
	ActionSubmit   RequestAction = "submit"
	ActionPurchase RequestAction = "purchase"
	ActionValidate RequestAction = "validate"
	ActionRevoke   RequestAction = "revoke"
)

// ActionTransition describes the status change an action causes on Connect.
type ActionTransition struct {
	Action RequestAction
	Src    RequestStatus
	Dst    RequestStatus
}

// ActionTransitions lists every action the adapter may invoke and the
// statuses it is valid from. Connect owns every other transition.
var ActionTransitions = []ActionTransition{
	{Action: ActionSubmit, Src: StatusDraft, Dst: StatusPending},
	{Action: ActionPurchase, Src: StatusDraft, Dst: StatusPending},
	{Action: ActionValidate, Src: StatusDraft, Dst: StatusDraft},
	{Action: ActionRevoke, Src: StatusScheduled, Dst: StatusRevoking},
}

// Quantity is an item quantity. Connect reports unlimited items with the
// literal "unlimited", which maps to -1.
type Quantity int64

// Unlimited is the sentinel for items without a limit.
const Unlimited Quantity = -1

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.EqualFold(s, "unlimited") {
			*q = Unlimited
			return nil
		}
		data = []byte(s)
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid quantity %s: %w", data, err)
	}
	*q = Quantity(f)
	return nil
}

// Item is an item quantity on an asset or request.
type Item struct {
	ID       string   `json:"id,omitempty"`
	GlobalID string   `json:"global_id,omitempty"`
	Quantity Quantity `json:"quantity"`
}

// Ref is a reference to a Connect object by id.
type Ref struct {
	ID string `json:"id"`
}

// Party is a vendor or provider account on a connection.
type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Connection binds a product to a hub between a vendor and a provider.
type Connection struct {
	ID       string `json:"id"`
	Vendor   Party  `json:"vendor"`
	Provider Party  `json:"provider"`
}

// Template is a rendered activation template.
type Template struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Tiers holds the customer and reseller accounts of an asset.
type Tiers struct {
	Customer *TierAccount `json:"customer,omitempty"`
	Tier1    *TierAccount `json:"tier1,omitempty"`
	Tier2    *TierAccount `json:"tier2,omitempty"`
}

// Asset is the Connect view of a provisioned subscription.
type Asset struct {
	ID          string         `json:"id"`
	ExternalUID string         `json:"external_uid,omitempty"`
	Status      string         `json:"status,omitempty"`
	Product     Ref            `json:"product"`
	Marketplace *Ref           `json:"marketplace,omitempty"`
	Connection  Connection     `json:"connection"`
	Params      []RequestParam `json:"params,omitempty"`
	Items       []Item         `json:"items,omitempty"`
	Tiers       Tiers          `json:"tiers"`
}

// MarketplaceID returns the asset marketplace id or "".
func (a Asset) MarketplaceID() string {
	if a.Marketplace == nil {
		return ""
	}
	return a.Marketplace.ID
}

// Request is a Connect fulfillment request.
type Request struct {
	ID            string        `json:"id"`
	Type          RequestType   `json:"type"`
	Status        RequestStatus `json:"status"`
	Reason        string        `json:"reason,omitempty"`
	ActivationKey *string       `json:"activation_key,omitempty"`
	Template      *Template     `json:"template,omitempty"`
	ParamsFormURL string        `json:"params_form_url,omitempty"`
	PlannedDate   string        `json:"planned_date,omitempty"`
	EffectiveDate string        `json:"effective_date,omitempty"`
	Created       string        `json:"created,omitempty"`
	Updated       string        `json:"updated,omitempty"`
	Marketplace   *Ref          `json:"marketplace,omitempty"`
	Asset         Asset         `json:"asset"`
}

// UpdatedAt parses the updated timestamp.
func (r Request) UpdatedAt() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Updated)
}

// ActivationDate is the effective date, or the last update, in Z notation.
func (r Request) ActivationDate() string {
	date := r.Updated
	if r.EffectiveDate != "" {
		date = r.EffectiveDate
	}
	return strings.ReplaceAll(date, "+00:00", "Z")
}

// ApprovalKey is the activation key to show once the request is approved.
func (r Request) ApprovalKey() (string, bool) {
	if r.ActivationKey != nil {
		return *r.ActivationKey, true
	}
	if r.Template != nil {
		return r.Template.Message, true
	}
	return "", false
}

// RequestFilter selects the requests of a tenant. Results are always ordered
// by creation time, newest first.
type RequestFilter struct {
	ExternalUID string
	Type        RequestType
	Statuses    []RequestStatus
	Limit       int
}

// Product is the subset of a Connect product the adapter reads.
type Product struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Capabilities struct {
		Subscription struct {
			Change struct {
				EditableOrderingParameters bool `json:"editable_ordering_parameters"`
			} `json:"change"`
		} `json:"subscription"`
	} `json:"capabilities"`
}

// ProductItem is a product item definition.
type ProductItem struct {
	ID      string `json:"id"`
	LocalID string `json:"local_id"`
}

// ProductAction is an action declared on a product.
type ProductAction struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Scope  string `json:"scope"`
}

// ConflictParams is the state Connect embeds in a duplicate-request error.
type ConflictParams struct {
	RequestStatus RequestStatus `json:"request_status,omitempty"`
	AssetStatus   string        `json:"asset_status,omitempty"`
	Template      *Template     `json:"template,omitempty"`
	ParamsFormURL string        `json:"params_form_url,omitempty"`
	AssetID       string        `json:"asset_id,omitempty"`
	RequestID     string        `json:"request_id,omitempty"`
	ID            string        `json:"id,omitempty"`
	FailMessage   *string       `json:"fail_message,omitempty"`
}
