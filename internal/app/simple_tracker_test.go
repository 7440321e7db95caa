package app_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

func simpleRequest(op domain.Operation, status domain.RequestStatus, updated time.Time) domain.Request {
	return domain.Request{
		ID:      "PR-S",
		Type:    op.RequestType(),
		Status:  status,
		Reason:  "Vendor down",
		Updated: updated.Format(time.RFC3339),
		Asset:   domain.Asset{ID: "AS-1", Connection: domain.Connection{Vendor: domain.Party{ID: "VA-1", Name: "Vendor"}}},
	}
}

func TestTrackSimple_NoRequestPlacesIt(t *testing.T) {
	f := newFixture(t)
	f.connect.createResp = domain.Request{ID: "PR-1", Status: domain.StatusPending}

	resp, err := f.svc.TrackSimple(context.Background(), f.sc, domain.OpCancel, "t-1")
	if err != nil {
		t.Fatalf("TrackSimple: %v", err)
	}

	if resp.Status != http.StatusAccepted {
		t.Errorf("Status = %d, want 202", resp.Status)
	}
	if len(f.connect.created) != 1 || f.connect.created[0].Type != domain.TypeCancel {
		t.Fatalf("created = %+v, want one cancel", f.connect.created)
	}
}

func TestTrackSimple_Pending(t *testing.T) {
	f := newFixture(t)
	f.connect.found = []domain.Request{simpleRequest(domain.OpSuspend, domain.StatusPending, testNow)}

	resp, err := f.svc.TrackSimple(context.Background(), f.sc, domain.OpSuspend, "t-1")
	if err != nil {
		t.Fatalf("TrackSimple: %v", err)
	}

	if resp.Status != http.StatusAccepted {
		t.Errorf("Status = %d, want 202", resp.Status)
	}
	if resp.Headers.Info != "Waiting vendor Vendor (VA-1) to complete request PR-S on asset AS-1" {
		t.Errorf("Info = %q", resp.Headers.Info)
	}
	if f.connect.filters[0].Type != domain.TypeSuspend {
		t.Errorf("filter type = %q, want suspend", f.connect.filters[0].Type)
	}
}

func TestTrackSimple_Approved(t *testing.T) {
	cases := []struct {
		op        domain.Operation
		writeBack bool
	}{
		{domain.OpSuspend, true},
		{domain.OpResume, true},
		{domain.OpCancel, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			f := newFixture(t)
			f.connect.found = []domain.Request{simpleRequest(tc.op, domain.StatusApproved, testNow)}

			resp, err := f.svc.TrackSimple(context.Background(), f.sc, tc.op, "t-1")
			if err != nil {
				t.Fatalf("TrackSimple: %v", err)
			}

			if resp.Status != http.StatusOK {
				t.Errorf("Status = %d, want 200", resp.Status)
			}
			if got := len(f.pub.effects) == 1; got != tc.writeBack {
				t.Fatalf("published = %d effects, want write-back %v", len(f.pub.effects), tc.writeBack)
			}
			if tc.writeBack {
				e := f.pub.effects[0]
				if e.Kind != domain.EffectTenantWriteBack || e.Request == nil || e.Request.ID != "PR-S" {
					t.Errorf("effect = %+v", e)
				}
			}
		})
	}
}

func TestTrackSimple_SuspendFailureIsDone(t *testing.T) {
	f := newFixture(t)
	f.connect.found = []domain.Request{simpleRequest(domain.OpSuspend, domain.StatusFailed, testNow)}

	resp, err := f.svc.TrackSimple(context.Background(), f.sc, domain.OpSuspend, "t-1")
	if err != nil {
		t.Fatalf("TrackSimple: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
}

func TestTrackSimple_ResumeUnsupported(t *testing.T) {
	f := newFixture(t)
	req := simpleRequest(domain.OpResume, domain.StatusFailed, testNow)
	req.Reason = "The product doesn't support suspend/resume operations."
	f.connect.found = []domain.Request{req}

	resp, err := f.svc.TrackSimple(context.Background(), f.sc, domain.OpResume, "t-1")
	if err != nil {
		t.Fatalf("TrackSimple: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
}

func TestTrackSimple_FreshFailure(t *testing.T) {
	for _, op := range []domain.Operation{domain.OpResume, domain.OpCancel} {
		t.Run(string(op), func(t *testing.T) {
			f := newFixture(t)
			f.connect.found = []domain.Request{simpleRequest(op, domain.StatusFailed, testNow.Add(-time.Minute))}

			resp, err := f.svc.TrackSimple(context.Background(), f.sc, op, "t-1")
			if err != nil {
				t.Fatalf("TrackSimple: %v", err)
			}

			if resp.Status != http.StatusConflict {
				t.Errorf("Status = %d, want 409", resp.Status)
			}
			if resp.Headers.TransientError != "False" {
				t.Errorf("TransientError = %q, want False", resp.Headers.TransientError)
			}
			if len(f.connect.created) != 0 {
				t.Error("fresh failure must not be placed again")
			}
		})
	}
}

func TestTrackSimple_StaleFailurePlacesAgain(t *testing.T) {
	for _, op := range []domain.Operation{domain.OpResume, domain.OpCancel} {
		t.Run(string(op), func(t *testing.T) {
			f := newFixture(t)
			f.connect.found = []domain.Request{simpleRequest(op, domain.StatusFailed, testNow.Add(-10*time.Minute))}
			f.connect.createResp = domain.Request{ID: "PR-2", Status: domain.StatusPending}

			resp, err := f.svc.TrackSimple(context.Background(), f.sc, op, "t-1")
			if err != nil {
				t.Fatalf("TrackSimple: %v", err)
			}

			if resp.Status != http.StatusAccepted {
				t.Errorf("Status = %d, want 202", resp.Status)
			}
			if len(f.connect.created) != 1 || f.connect.created[0].Type != op.RequestType() {
				t.Errorf("created = %+v, want one %s", f.connect.created, op)
			}
		})
	}
}

func TestTrackSimple_CancelGivesUp(t *testing.T) {
	stale := testNow.Add(-time.Hour)
	cases := []struct {
		name   string
		found  []domain.Request
		status int
	}{
		{"five failures", []domain.Request{
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
		}, http.StatusOK},
		{"four failures", []domain.Request{
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
		}, http.StatusAccepted},
		{"interleaved suspend", []domain.Request{
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
			simpleRequest(domain.OpSuspend, domain.StatusApproved, stale),
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
			simpleRequest(domain.OpCancel, domain.StatusFailed, stale),
		}, http.StatusAccepted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.connect.found = tc.found
			f.connect.createResp = domain.Request{ID: "PR-2", Status: domain.StatusPending}

			resp, err := f.svc.TrackSimple(context.Background(), f.sc, domain.OpCancel, "t-1")
			if err != nil {
				t.Fatalf("TrackSimple: %v", err)
			}
			if resp.Status != tc.status {
				t.Errorf("Status = %d, want %d", resp.Status, tc.status)
			}
		})
	}
}
