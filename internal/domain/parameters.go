package domain

import (
	"bytes"
	"encoding/json"
)

// MaxOAFieldLength bounds string values written to OA properties.
const MaxOAFieldLength = 4000

// Truncate cuts s to the OA property length limit.
func Truncate(s string) string {
	if len(s) <= MaxOAFieldLength {
		return s
	}
	return s[:MaxOAFieldLength]
}

// OAParameter is one entry of the activationParameters list OA sends.
type OAParameter struct {
	Key             string          `json:"key"`
	Value           json.RawMessage `json:"value,omitempty"`
	StructuredValue json.RawMessage `json:"structured_value,omitempty"`
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// StringValue renders the parameter value as a string. Strings are returned
// unquoted, other JSON values keep their literal form.
func (p OAParameter) StringValue() string {
	if isNull(p.Value) {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Value, &s); err == nil {
		return s
	}
	return string(p.Value)
}

// ParameterValue is a parameter as written back to OA.
type ParameterValue struct {
	Key             string          `json:"key,omitempty"`
	Value           string          `json:"value"`
	StructuredValue json.RawMessage `json:"structured_value,omitempty"`
}

// RequestParam is a parameter as Connect represents it on assets and requests.
type RequestParam struct {
	ID              string          `json:"id"`
	Value           string          `json:"value"`
	StructuredValue json.RawMessage `json:"structured_value,omitempty"`
	Type            string          `json:"type,omitempty"`
	Constraints     json.RawMessage `json:"constraints,omitempty"`
	ValueError      string          `json:"value_error,omitempty"`
	Reconciliation  bool            `json:"reconciliation,omitempty"`
}

// ExtractActivationParams builds the keyed and list forms of the ordering
// parameters in a single pass. Entries without a key, or with neither a value
// nor a structured value, are skipped.
func ExtractActivationParams(source []OAParameter) (map[string]ParameterValue, []RequestParam) {
	keyed := make(map[string]ParameterValue, len(source))
	list := make([]RequestParam, 0, len(source))
	index := make(map[string]int, len(source))

	for _, p := range source {
		if p.Key == "" {
			continue
		}
		if isNull(p.Value) && isNull(p.StructuredValue) {
			continue
		}
		v := ParameterValue{Value: p.StringValue()}
		if !isNull(p.StructuredValue) {
			v.StructuredValue = p.StructuredValue
		}
		keyed[p.Key] = v

		param := RequestParam{ID: p.Key, Value: v.Value, StructuredValue: v.StructuredValue}
		if i, ok := index[p.Key]; ok {
			list[i] = param
			continue
		}
		index[p.Key] = len(list)
		list = append(list, param)
	}
	return keyed, list
}

// Parameter phases and scopes as defined on Connect products.
const (
	PhaseOrdering    = "ordering"
	PhaseFulfillment = "fulfillment"
	ScopeAsset       = "asset"
	ScopeTier1       = "tier1"
)

// ParameterDefinition is a product parameter definition.
type ParameterDefinition struct {
	ID          string `json:"id"`
	Phase       string `json:"phase"`
	Scope       string `json:"scope"`
	Type        string `json:"type"`
	Position    int    `json:"position"`
	Constraints struct {
		Shared string `json:"shared,omitempty"`
	} `json:"constraints"`
}

// ParameterSet splits product definitions by scope and phase.
type ParameterSet struct {
	Activation     []ParameterDefinition
	Fulfillment    []ParameterDefinition
	TierActivation []ParameterDefinition
}

// SplitParameters groups definitions the way OA external identifiers expect.
func SplitParameters(defs []ParameterDefinition) ParameterSet {
	var set ParameterSet
	for _, d := range defs {
		switch {
		case d.Scope == ScopeAsset && d.Phase == PhaseOrdering:
			set.Activation = append(set.Activation, d)
		case d.Scope == ScopeAsset && d.Phase == PhaseFulfillment:
			set.Fulfillment = append(set.Fulfillment, d)
		case d.Scope == ScopeTier1 && d.Phase == PhaseOrdering:
			set.TierActivation = append(set.TierActivation, d)
		}
	}
	return set
}

// ExtractedParameters is what an approved request contributes to the tenant.
type ExtractedParameters struct {
	VendorSubscriptionID string
	Activation           []ParameterValue
	Fulfillment          []ParameterValue
}

var skippedParameterTypes = map[string]bool{"object": true, "password": true}

func findDefinition(id string, defs []ParameterDefinition) (ParameterDefinition, bool) {
	for _, d := range defs {
		if d.ID == id {
			return d, true
		}
	}
	return ParameterDefinition{}, false
}

// ExtractParameters maps the asset parameters of a request onto the OA
// activation and fulfillment parameter lists using the product definitions.
// Fulfillment parameters the vendor does not share are dropped.
func ExtractParameters(req Request, set ParameterSet) ExtractedParameters {
	var out ExtractedParameters
	for _, p := range req.Asset.Params {
		if p.Reconciliation {
			out.VendorSubscriptionID = p.Value
		}
		value := ParameterValue{Key: p.ID, Value: p.Value}
		if !isNull(p.StructuredValue) {
			value.StructuredValue = p.StructuredValue
		}
		if d, ok := findDefinition(p.ID, set.Fulfillment); ok && d.Phase == PhaseFulfillment && !skippedParameterTypes[d.Type] {
			if d.Constraints.Shared == "none" {
				continue
			}
			out.Fulfillment = append(out.Fulfillment, value)
		}
		if d, ok := findDefinition(p.ID, set.Activation); ok && d.Phase == PhaseOrdering && !skippedParameterTypes[d.Type] {
			out.Activation = append(out.Activation, value)
		}
	}
	if out.Activation == nil {
		out.Activation = []ParameterValue{}
	}
	if out.Fulfillment == nil {
		out.Fulfillment = []ParameterValue{}
	}
	return out
}
