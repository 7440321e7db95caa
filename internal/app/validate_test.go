package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/neomorfeo/apsconnect/internal/app"
	"github.com/neomorfeo/apsconnect/internal/domain"
)

func draftJSON(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	doc := map[string]any{
		"aps":              map[string]any{"type": "http://aps.odin.com/app/PRD-1/tenant/1.0"},
		"activationParams": []map[string]any{{"key": "email", "value": "a@b.c"}},
		"items": map[string]any{
			"i1": map[string]any{"property": "USERS", "value": 10},
			"i2": map[string]any{"property": "STORAGE", "value": 5},
		},
	}
	for k, v := range fields {
		doc[k] = v
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("encoding draft: %v", err)
	}
	return raw
}

func validatedDraft() domain.Request {
	return domain.Request{
		ID:     "PR-D",
		Status: domain.StatusDraft,
		Asset: domain.Asset{Params: []domain.RequestParam{
			{ID: "email", Value: "a@b.c", Type: "email", ValueError: "Invalid domain"},
		}},
	}
}

func TestValidateDraft_Purchase(t *testing.T) {
	f := newFixture(t)
	f.connect.createResp = domain.Request{ID: "PR-D", Status: domain.StatusDraft}
	f.connect.actionResp = validatedDraft()
	f.connect.items = []domain.ProductItem{{ID: "PRD-1-0001", LocalID: "USERS"}, {ID: "PRD-1-0002", LocalID: "STORAGE"}}

	resp, err := f.svc.ValidateDraft(context.Background(), f.sc, app.ValidationInput{
		AppID:    "app-1",
		Customer: "acc-1",
		Raw:      draftJSON(t, nil),
	})
	if err != nil {
		t.Fatalf("ValidateDraft: %v", err)
	}

	if resp.Status != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}
	v, ok := resp.Body.(app.Validation)
	if !ok {
		t.Fatalf("Body = %T, want app.Validation", resp.Body)
	}
	if v.DraftRequestID != "PR-D" {
		t.Errorf("DraftRequestID = %q", v.DraftRequestID)
	}
	if len(v.ActivationParams) != 1 || v.ActivationParams[0].ValueError != "Invalid domain" {
		t.Errorf("ActivationParams = %+v", v.ActivationParams)
	}

	body := f.connect.created[0]
	if body.Status != domain.StatusDraft || body.Type != domain.TypePurchase {
		t.Errorf("body = %+v", body)
	}
	if body.Asset.Connection == nil || body.Asset.Connection.ID != "CT-1" {
		t.Errorf("Connection = %+v", body.Asset.Connection)
	}
	if body.Asset.Tiers == nil || body.Asset.Tiers.Customer.ExternalUID != "acc-1" {
		t.Errorf("Tiers = %+v", body.Asset.Tiers)
	}
	if len(body.Asset.Items) != 2 {
		t.Errorf("Items = %+v", body.Asset.Items)
	}
	if got := f.connect.itemCalls[0]; len(got) != 2 || got[0] != "STORAGE" || got[1] != "USERS" {
		t.Errorf("item lookup = %v, want sorted local ids", got)
	}
	if len(f.connect.actions) != 1 || f.connect.actions[0].action != domain.ActionValidate {
		t.Errorf("actions = %+v", f.connect.actions)
	}
}

func TestValidateDraft_ExistingDraft(t *testing.T) {
	f := newFixture(t)
	f.connect.actionResp = validatedDraft()

	resp, err := f.svc.ValidateDraft(context.Background(), f.sc, app.ValidationInput{
		TenantID: "t-1",
		Raw:      draftJSON(t, map[string]any{"draftRequestId": "PR-OLD", "assetId": "AS-1"}),
	})
	if err != nil {
		t.Fatalf("ValidateDraft: %v", err)
	}

	if resp.Status != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}
	if len(f.connect.created) != 0 {
		t.Error("an existing draft must be reused")
	}
	if f.connect.actions[0].id != "PR-OLD" {
		t.Errorf("validated %q, want PR-OLD", f.connect.actions[0].id)
	}
	body, ok := f.connect.actions[0].payload.(domain.RequestBody)
	if !ok || body.Type != domain.TypeChange || body.Asset.ID != "AS-1" {
		t.Errorf("payload = %#v", f.connect.actions[0].payload)
	}
}

func TestValidateDraft_ItemBatches(t *testing.T) {
	f := newFixture(t)
	f.connect.createResp = domain.Request{ID: "PR-D", Status: domain.StatusDraft}
	items := map[string]any{}
	for i := range 150 {
		items[fmt.Sprintf("i%d", i)] = map[string]any{"property": fmt.Sprintf("R%03d", i), "value": 1}
	}

	if _, err := f.svc.ValidateDraft(context.Background(), f.sc, app.ValidationInput{
		TenantID: "t-1",
		Raw:      draftJSON(t, map[string]any{"assetId": "AS-1", "items": items}),
	}); err != nil {
		t.Fatalf("ValidateDraft: %v", err)
	}

	if len(f.connect.itemCalls) != 2 || len(f.connect.itemCalls[0]) != 100 || len(f.connect.itemCalls[1]) != 50 {
		t.Errorf("item lookups = %d batches", len(f.connect.itemCalls))
	}
}

func TestValidateDraft_NotPossible(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *fixture)
		in    func(t *testing.T) app.ValidationInput
	}{
		{
			name:  "change without asset",
			setup: func(*fixture) {},
			in: func(t *testing.T) app.ValidationInput {
				return app.ValidationInput{TenantID: "t-1", Raw: draftJSON(t, nil)}
			},
		},
		{
			name:  "no connection",
			setup: func(f *fixture) { f.connect.connection = "" },
			in: func(t *testing.T) app.ValidationInput {
				return app.ValidationInput{AppID: "app-1", Raw: draftJSON(t, nil)}
			},
		},
		{
			name:  "create rejected",
			setup: func(f *fixture) { f.connect.createErr = &domain.ConnectError{StatusCode: http.StatusBadRequest} },
			in: func(t *testing.T) app.ValidationInput {
				return app.ValidationInput{AppID: "app-1", Raw: draftJSON(t, nil)}
			},
		},
		{
			name:  "created request is not a draft",
			setup: func(f *fixture) { f.connect.createResp = domain.Request{ID: "PR-9", Status: domain.StatusPending} },
			in: func(t *testing.T) app.ValidationInput {
				return app.ValidationInput{AppID: "app-1", Raw: draftJSON(t, nil)}
			},
		},
		{
			name: "validate rejected",
			setup: func(f *fixture) {
				f.connect.createResp = domain.Request{ID: "PR-D", Status: domain.StatusDraft}
				f.connect.actionErr = &domain.ConnectError{StatusCode: http.StatusBadRequest}
			},
			in: func(t *testing.T) app.ValidationInput {
				return app.ValidationInput{AppID: "app-1", Raw: draftJSON(t, nil)}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(f)

			resp, err := f.svc.ValidateDraft(context.Background(), f.sc, tc.in(t))
			if err != nil {
				t.Fatalf("ValidateDraft: %v", err)
			}

			if resp.Status != http.StatusConflict {
				t.Fatalf("Status = %d, want 409", resp.Status)
			}
			if got := answerOf(t, resp).Message; got != "Validation can't be performed at this moment on time" {
				t.Errorf("Message = %q", got)
			}
		})
	}
}
