package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Schema type identifiers used to derive compatibility flags.
const (
	VendorSubscriptionType  = "http://aps-standard.org/types/core/external/identifiers/1"
	ExternalIdentifiersType = "http://aps-standard.org/types/core/external/identifiers/1.1"
	SyncActivationDateType  = "http://aps-standard.org/types/core/external/identifiers/1.2"
)

// systemItems are OA counters that never travel to Connect as items.
var systemItems = map[string]bool{"COUNTRY": true, "ENVIRONMENT": true}

// IsSystemItem reports whether the item id is an OA system counter.
func IsSystemItem(id string) bool { return systemItems[id] }

// TenantSchema is the subset of the OA tenant type schema the adapter reads.
type TenantSchema struct {
	ID         string                    `json:"id"`
	Properties map[string]SchemaProperty `json:"properties"`
	Implements []string                  `json:"implements"`
}

// SchemaProperty describes one declared property of the tenant type.
type SchemaProperty struct {
	Type string `json:"type"`
}

func (s TenantSchema) has(property string) bool {
	_, ok := s.Properties[property]
	return ok
}

func (s TenantSchema) implements(apsType string) bool {
	for _, t := range s.Implements {
		if t == apsType {
			return true
		}
	}
	return false
}

// Counters returns the names of counter properties, sorted.
func (s TenantSchema) Counters() []string {
	var out []string
	for name, p := range s.Properties {
		if strings.Contains(p.Type, "Counter") {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Compat holds the flags derived from the tenant schema. A flag is true when
// the installed application does not declare the matching capability, and the
// adapter must not write the related field back to OA.
type Compat struct {
	LegacyParamsFormURL           bool
	LegacyAssetID                 bool
	LegacyVendorSubscriptionID    bool
	LegacyExternalIdentifiers     bool
	LegacySyncActivationDate      bool
	LegacyMarketplaceID           bool
	LegacyPlannedDateNotSupported bool
}

// CompatFromSchema derives compatibility flags from a tenant schema.
func CompatFromSchema(s TenantSchema) Compat {
	vendorSub := false
	for _, t := range s.Implements {
		if strings.Contains(t, VendorSubscriptionType) {
			vendorSub = true
			break
		}
	}
	return Compat{
		LegacyParamsFormURL:           !s.has("paramsFormUrl"),
		LegacyAssetID:                 !s.has("assetId"),
		LegacyVendorSubscriptionID:    !vendorSub,
		LegacyExternalIdentifiers:     !s.implements(ExternalIdentifiersType) && !s.implements(SyncActivationDateType),
		LegacySyncActivationDate:      !s.implements(SyncActivationDateType),
		LegacyMarketplaceID:           !s.has("marketPlaceId"),
		LegacyPlannedDateNotSupported: !s.has("last_planned_request"),
	}
}

// Tenant is the canonical view of an OA tenant resource.
type Tenant struct {
	ID                   string
	SubscriptionID       string
	Type                 string
	Status               string
	AccountID            string
	AppID                string
	AccountInfo          map[string]any
	ActivationKey        string
	ParamsFormURL        string
	AssetID              string
	MarketplaceID        string
	VendorSubscriptionID string
	DraftRequestID       string
	LastPlannedRequest   string

	// ActivationParameters is the raw activationParameters list as stored in OA.
	ActivationParameters []OAParameter
	// Parameters and Params hold the same ordering parameters keyed by id and
	// as a Connect list.
	Parameters map[string]ParameterValue
	Params     []RequestParam

	Resources map[string]Quantity
	Compat    Compat
}

type rawTenant struct {
	APS *struct {
		ID           string `json:"id" validate:"required"`
		Subscription string `json:"subscription" validate:"required"`
		Type         string `json:"type" validate:"required"`
		Status       string `json:"status" validate:"required"`
	} `json:"aps" validate:"required"`
	Account struct {
		APS struct {
			ID string `json:"id"`
		} `json:"aps"`
	} `json:"account"`
	App struct {
		APS struct {
			ID string `json:"id"`
		} `json:"aps"`
	} `json:"app"`
	AccountInfo          map[string]any `json:"accountInfo" validate:"required"`
	ActivationKey        string         `json:"activationKey"`
	ParamsFormURL        string         `json:"paramsFormUrl"`
	AssetID              string         `json:"assetId"`
	MarketplaceID        string         `json:"marketPlaceId"`
	VendorSubscriptionID string         `json:"vendorSubscriptionId"`
	DraftRequestID       string         `json:"draftRequestId"`
	LastPlannedRequest   string         `json:"last_planned_request"`
	ActivationParameters []OAParameter  `json:"activationParameters"`
	ActivationParams     []OAParameter  `json:"activationParams"`
}

// NewTenant parses a raw OA tenant document. It fails with a
// *MissingRequiredFieldError when identity fields or accountInfo are absent.
func NewTenant(raw []byte, schema TenantSchema) (Tenant, error) {
	var rt rawTenant
	if err := json.Unmarshal(raw, &rt); err != nil {
		return Tenant{}, fmt.Errorf("decoding tenant: %w", err)
	}
	if err := validateStruct("tenant", rt); err != nil {
		return Tenant{}, err
	}

	source := rt.ActivationParameters
	if len(source) == 0 {
		source = rt.ActivationParams
	}
	parameters, params := ExtractActivationParams(source)

	resources, err := counterLimits(raw, schema.Counters())
	if err != nil {
		return Tenant{}, err
	}

	return Tenant{
		ID:                   rt.APS.ID,
		SubscriptionID:       rt.APS.Subscription,
		Type:                 rt.APS.Type,
		Status:               rt.APS.Status,
		AccountID:            rt.Account.APS.ID,
		AppID:                rt.App.APS.ID,
		AccountInfo:          rt.AccountInfo,
		ActivationKey:        rt.ActivationKey,
		ParamsFormURL:        rt.ParamsFormURL,
		AssetID:              rt.AssetID,
		MarketplaceID:        rt.MarketplaceID,
		VendorSubscriptionID: rt.VendorSubscriptionID,
		DraftRequestID:       rt.DraftRequestID,
		LastPlannedRequest:   rt.LastPlannedRequest,
		ActivationParameters: rt.ActivationParameters,
		Parameters:           parameters,
		Params:               params,
		Resources:            resources,
		Compat:               CompatFromSchema(schema),
	}, nil
}

// PeekTenantType returns aps.type from a raw tenant document so the schema
// can be fetched before the full parse.
func PeekTenantType(raw []byte) (string, error) {
	var head struct {
		APS struct {
			Type string `json:"type"`
		} `json:"aps"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("decoding tenant: %w", err)
	}
	if head.APS.Type == "" {
		return "", &MissingRequiredFieldError{Object: "tenant", Field: "aps.type"}
	}
	return head.APS.Type, nil
}

func counterLimits(raw []byte, counters []string) (map[string]Quantity, error) {
	if len(counters) == 0 {
		return map[string]Quantity{}, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding tenant counters: %w", err)
	}
	out := make(map[string]Quantity, len(counters))
	for _, name := range counters {
		field, ok := doc[name]
		if !ok {
			continue
		}
		var c struct {
			Limit Quantity `json:"limit"`
		}
		if err := json.Unmarshal(field, &c); err != nil {
			return nil, fmt.Errorf("decoding counter %q: %w", name, err)
		}
		out[name] = c.Limit
	}
	return out, nil
}

// Items returns all tenant resources except system counters, ordered by id.
func (t Tenant) Items() []Item {
	ids := make([]string, 0, len(t.Resources))
	for id := range t.Resources {
		if IsSystemItem(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, Item{ID: id, Quantity: t.Resources[id]})
	}
	return items
}

// PurchasedItems is Items without zero quantities.
func (t Tenant) PurchasedItems() []Item {
	var out []Item
	for _, it := range t.Items() {
		if it.Quantity != 0 {
			out = append(out, it)
		}
	}
	return out
}

// EditableParams converts the stored activationParameters into Connect params.
func (t Tenant) EditableParams() []RequestParam {
	var out []RequestParam
	for _, p := range t.ActivationParameters {
		if p.Key == "" {
			continue
		}
		out = append(out, RequestParam{
			ID:              p.Key,
			Value:           p.StringValue(),
			StructuredValue: p.StructuredValue,
		})
	}
	return out
}
