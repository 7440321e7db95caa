package app_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/neomorfeo/apsconnect/internal/app"
	"github.com/neomorfeo/apsconnect/internal/domain"
)

func TestLastRequestStatus(t *testing.T) {
	key := "ADJ-KEY"
	cases := []struct {
		name    string
		req     domain.Request
		want    app.RequestSummary
		effects int
	}{
		{
			name: "inquiring",
			req:  domain.Request{Type: domain.TypePurchase, Status: domain.StatusInquiring, ParamsFormURL: "https://form"},
			want: app.RequestSummary{Type: domain.TypePurchase, Status: domain.StatusInquiring, Link: "https://form"},
		},
		{
			name: "failed",
			req:  domain.Request{Type: domain.TypeChange, Status: domain.StatusFailed, Reason: "nope"},
			want: app.RequestSummary{Type: domain.TypeChange, Status: domain.StatusFailed, Reason: "nope"},
		},
		{
			name:    "approved adjustment",
			req:     domain.Request{ID: "PR-A", Type: domain.TypeAdjustment, Status: domain.StatusApproved, ActivationKey: &key},
			want:    app.RequestSummary{Type: domain.TypeAdjustment, Status: domain.StatusApproved, ActivationKey: &key},
			effects: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.connect.found = []domain.Request{tc.req}

			resp, err := f.svc.LastRequestStatus(context.Background(), f.sc, "t-1")
			if err != nil {
				t.Fatalf("LastRequestStatus: %v", err)
			}

			got, ok := resp.Body.(app.RequestSummary)
			if !ok {
				t.Fatalf("Body = %T, want app.RequestSummary", resp.Body)
			}
			if got.Status != tc.want.Status || got.Type != tc.want.Type || got.Link != tc.want.Link || got.Reason != tc.want.Reason {
				t.Errorf("summary = %+v, want %+v", got, tc.want)
			}
			if deref(got.ActivationKey) != deref(tc.want.ActivationKey) {
				t.Errorf("ActivationKey = %s, want %s", deref(got.ActivationKey), deref(tc.want.ActivationKey))
			}
			if len(f.pub.effects) != tc.effects {
				t.Errorf("published %d effects, want %d", len(f.pub.effects), tc.effects)
			}
			if f.connect.filters[0].Type != "" {
				t.Errorf("filter type = %q, want any", f.connect.filters[0].Type)
			}
		})
	}
}

func TestLastRequestStatus_NoRequest(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.LastRequestStatus(context.Background(), f.sc, "t-1")
	if err != nil {
		t.Fatalf("LastRequestStatus: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
}

func TestPoll_IsReadOnly(t *testing.T) {
	f := newFixture(t)
	req := trackedRequest(domain.StatusApproved)
	req.Asset.Items = []domain.Item{{ID: "USERS", Quantity: 1}}
	f.connect.found = []domain.Request{req}

	resp, err := f.svc.Poll(context.Background(), f.sc, "t-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}

	if resp.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Status)
	}
	if len(f.connect.created) != 0 || len(f.pub.effects) != 0 || len(f.oa.subscribed) != 0 {
		t.Error("poll must not place requests or publish effects")
	}
}

func TestPoll_Pending(t *testing.T) {
	f := newFixture(t)
	f.connect.found = []domain.Request{trackedRequest(domain.StatusPending)}

	resp, err := f.svc.Poll(context.Background(), f.sc, "t-1")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if resp.Status != http.StatusAccepted {
		t.Errorf("Status = %d, want 202", resp.Status)
	}
}

func TestActionLink(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(f *fixture)
		status  int
		wantKey string
		want    string
	}{
		{
			name:    "resolved",
			setup:   func(f *fixture) { f.connect.link = "https://vendor/sso" },
			status:  http.StatusOK,
			wantKey: "url",
			want:    "https://vendor/sso",
		},
		{
			name:    "missing asset",
			setup:   func(f *fixture) { f.connect.asset = nil },
			status:  http.StatusBadRequest,
			wantKey: "error",
			want:    "Invalid asset",
		},
		{
			name:    "unknown action",
			setup:   func(f *fixture) { f.connect.productActions = nil },
			status:  http.StatusBadRequest,
			wantKey: "error",
			want:    "Invalid action",
		},
		{
			name:    "link failure",
			setup:   func(f *fixture) { f.connect.linkErr = errors.New("boom") },
			status:  http.StatusBadRequest,
			wantKey: "error",
			want:    "Invalid action",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.connect.productActions = []domain.ProductAction{{ID: "ACT-1", Action: "sso", Scope: domain.ScopeAsset}}
			tc.setup(f)

			resp, err := f.svc.ActionLink(context.Background(), f.sc, "t-1", "sso")
			if err != nil {
				t.Fatalf("ActionLink: %v", err)
			}

			if resp.Status != tc.status {
				t.Errorf("Status = %d, want %d", resp.Status, tc.status)
			}
			body, ok := resp.Body.(map[string]string)
			if !ok || body[tc.wantKey] != tc.want {
				t.Errorf("Body = %#v", resp.Body)
			}
		})
	}
}
