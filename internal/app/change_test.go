package app_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

func TestChange_Accepted(t *testing.T) {
	f := newFixture(t)
	f.connect.asset = &domain.Asset{ID: "AS-9"}
	f.connect.createResp = domain.Request{ID: "PR-2", Status: domain.StatusPending}

	resp, err := f.svc.Change(context.Background(), f.sc, tenantDoc(t, nil), `"2024-07-01T00:00:00Z"`)
	if err != nil {
		t.Fatalf("Change: %v", err)
	}

	if resp.Status != http.StatusAccepted {
		t.Fatalf("Status = %d, want 202", resp.Status)
	}
	if resp.Headers.Info != "Waiting for limits change to be approved" {
		t.Errorf("Info = %q", resp.Headers.Info)
	}

	body := f.connect.created[0]
	if body.Asset.ID != "AS-9" {
		t.Errorf("asset id = %q, want lookup by external uid", body.Asset.ID)
	}
	if body.PlannedDate != "2024-07-01T00:00:00+00:00" {
		t.Errorf("PlannedDate = %q", body.PlannedDate)
	}
	if body.Asset.Params != nil {
		t.Errorf("Params = %+v, want none without the product capability", body.Asset.Params)
	}
}

func TestChange_EditableParameters(t *testing.T) {
	f := newFixture(t)
	f.connect.product.Capabilities.Subscription.Change.EditableOrderingParameters = true
	doc := tenantDoc(t, map[string]any{
		"assetId":              "AS-1",
		"activationParameters": []map[string]any{{"key": "email", "value": "a@b.c"}},
	})

	if _, err := f.svc.Change(context.Background(), f.sc, doc, ""); err != nil {
		t.Fatalf("Change: %v", err)
	}

	params := f.connect.created[0].Asset.Params
	if len(params) != 1 || params[0].ID != "email" || params[0].Value != "a@b.c" {
		t.Errorf("Params = %+v", params)
	}
}

func TestChange_PlannedDateNotSupported(t *testing.T) {
	f := newFixture(t)
	f.oa.schema = legacySchema()

	resp, err := f.svc.Change(context.Background(), f.sc, tenantDoc(t, nil), "2024-07-01T00:00:00Z")
	if err != nil {
		t.Fatalf("Change: %v", err)
	}

	if resp.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.Status)
	}
	if got := answerOf(t, resp).Error; got != "NotSupported" {
		t.Errorf("Error = %q, want NotSupported", got)
	}
	if len(f.connect.created) != 0 {
		t.Error("no request must be placed")
	}
}

func TestChange_ItemsNotChanged(t *testing.T) {
	f := newFixture(t)
	f.connect.createErr = &domain.ConnectError{
		StatusCode: http.StatusBadRequest,
		Errors:     []string{"asset.items: Item quantities are not changed."},
	}

	resp, err := f.svc.Change(context.Background(), f.sc, tenantDoc(t, map[string]any{"last_planned_request": "PR-OLD"}), "")
	if err != nil {
		t.Fatalf("Change: %v", err)
	}

	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
	if got := answerOf(t, resp).LastPlannedRequest; got == nil || *got != "" {
		t.Errorf("LastPlannedRequest = %s, want cleared", deref(got))
	}
}

func TestChange_AssetSuspended(t *testing.T) {
	f := newFixture(t)
	f.connect.createErr = &domain.ConnectError{
		StatusCode: http.StatusConflict,
		Errors:     []string{"Request type change is not allowed when asset state is suspended"},
		Params:     domain.ConflictParams{AssetStatus: "suspended"},
	}

	resp, err := f.svc.Change(context.Background(), f.sc, tenantDoc(t, nil), "")
	if err != nil {
		t.Fatalf("Change: %v", err)
	}

	if resp.Status != http.StatusConflict {
		t.Fatalf("Status = %d, want 409", resp.Status)
	}
	a := answerOf(t, resp)
	if a.Error != "ProvisioningFailed" {
		t.Errorf("Error = %q", a.Error)
	}
	if a.Message != "Change is not allowed when asset is in suspended state at vendor side, resume it first" {
		t.Errorf("Message = %q", a.Message)
	}
}

func TestChange_PendingDuplicate(t *testing.T) {
	f := newFixture(t)
	f.connect.createErr = &domain.ConnectError{
		StatusCode: http.StatusConflict,
		Params:     domain.ConflictParams{RequestStatus: domain.StatusPending},
	}

	resp, err := f.svc.Change(context.Background(), f.sc, tenantDoc(t, nil), "")
	if err != nil {
		t.Fatalf("Change: %v", err)
	}
	if resp.Status != http.StatusConflict {
		t.Errorf("Status = %d, want 409 for a change already in progress", resp.Status)
	}
}

func TestChange_DraftFallsBackToCreate(t *testing.T) {
	f := newFixture(t)
	f.connect.requests["PR-D"] = domain.Request{ID: "PR-D", Status: domain.StatusDraft}
	f.connect.actionErr = &domain.ConnectError{StatusCode: http.StatusBadRequest, Errors: []string{"invalid"}}
	f.connect.createResp = domain.Request{ID: "PR-3", Status: domain.StatusPending}

	resp, err := f.svc.Change(context.Background(), f.sc, tenantDoc(t, map[string]any{"draftRequestId": "PR-D"}), "")
	if err != nil {
		t.Fatalf("Change: %v", err)
	}

	if resp.Status != http.StatusAccepted {
		t.Errorf("Status = %d, want 202", resp.Status)
	}
	if len(f.connect.actions) != 1 || f.connect.actions[0].action != domain.ActionSubmit {
		t.Errorf("actions = %+v, want submit", f.connect.actions)
	}
	if len(f.connect.created) != 1 {
		t.Errorf("created %d requests, want fallback create", len(f.connect.created))
	}
}
