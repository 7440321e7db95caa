package app_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

func TestSimple_MissingAsset(t *testing.T) {
	for _, op := range []domain.Operation{domain.OpSuspend, domain.OpResume, domain.OpCancel} {
		t.Run(string(op), func(t *testing.T) {
			f := newFixture(t)
			f.connect.asset = nil

			resp, err := f.svc.Simple(context.Background(), f.sc, op, "t-1")
			if err != nil {
				t.Fatalf("Simple: %v", err)
			}
			if resp.Status != http.StatusNoContent {
				t.Errorf("Status = %d, want 204", resp.Status)
			}
			if len(f.connect.created) != 0 {
				t.Error("no request must be placed without an asset")
			}
		})
	}
}

func TestSimple_Pending(t *testing.T) {
	f := newFixture(t)
	f.connect.createResp = domain.Request{ID: "PR-1", Status: domain.StatusPending}

	resp, err := f.svc.Simple(context.Background(), f.sc, domain.OpSuspend, "t-1")
	if err != nil {
		t.Fatalf("Simple: %v", err)
	}

	if resp.Status != http.StatusAccepted {
		t.Errorf("Status = %d, want 202", resp.Status)
	}
	if resp.Headers.Info != "Waiting for subscription suspend" {
		t.Errorf("Info = %q", resp.Headers.Info)
	}
	body := f.connect.created[0]
	if body.Type != domain.TypeSuspend || body.Asset.ID != "AS-1" {
		t.Errorf("body = %+v", body)
	}
}

func TestSimple_SyncFailureCountsAsDone(t *testing.T) {
	f := newFixture(t)
	f.connect.createResp = domain.Request{ID: "PR-1", Status: domain.StatusFailed}

	resp, err := f.svc.Simple(context.Background(), f.sc, domain.OpResume, "t-1")
	if err != nil {
		t.Fatalf("Simple: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
}

func TestSimple_Duplicates(t *testing.T) {
	reason := "Vendor says no"
	cases := []struct {
		name   string
		op     domain.Operation
		params domain.ConflictParams
		status int
	}{
		{"approved cancel", domain.OpCancel, domain.ConflictParams{RequestStatus: domain.StatusApproved}, http.StatusNoContent},
		{"approved suspend", domain.OpSuspend, domain.ConflictParams{RequestStatus: domain.StatusApproved}, http.StatusOK},
		{"already suspended", domain.OpSuspend, domain.ConflictParams{AssetStatus: "suspended"}, http.StatusOK},
		{"already active", domain.OpResume, domain.ConflictParams{AssetStatus: "active"}, http.StatusOK},
		{"already terminated", domain.OpCancel, domain.ConflictParams{AssetStatus: "terminated"}, http.StatusNoContent},
		{"failed", domain.OpResume, domain.ConflictParams{RequestStatus: domain.StatusFailed, FailMessage: &reason}, http.StatusConflict},
		{"in progress", domain.OpCancel, domain.ConflictParams{RequestStatus: domain.StatusPending}, http.StatusAccepted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.connect.createErr = &domain.ConnectError{StatusCode: http.StatusConflict, Params: tc.params}

			resp, err := f.svc.Simple(context.Background(), f.sc, tc.op, "t-1")
			if err != nil {
				t.Fatalf("Simple: %v", err)
			}
			if resp.Status != tc.status {
				t.Errorf("Status = %d, want %d", resp.Status, tc.status)
			}
			if tc.status == http.StatusConflict {
				if got := answerOf(t, resp).Message; got != reason {
					t.Errorf("Message = %q, want %q", got, reason)
				}
			}
		})
	}
}

func TestSimple_RejectsOtherOperations(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Simple(context.Background(), f.sc, domain.OpPurchase, "t-1"); err == nil {
		t.Fatal("expected error for purchase")
	}
}
