package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/neomorfeo/apsconnect/internal/app"
	"github.com/neomorfeo/apsconnect/internal/domain"
)

func (f *fixture) runner() *app.EffectRunner {
	return app.NewEffectRunner(app.Backends{
		Installations: f.repo,
		Connects:      &mockConnects{connect: f.connect},
		OAs:           &mockOAs{oa: f.oa},
	})
}

func approvedRequest(typ domain.RequestType) *domain.Request {
	key := "KEY-1"
	return &domain.Request{
		ID:            "PR-1",
		Type:          typ,
		Status:        domain.StatusApproved,
		ActivationKey: &key,
		EffectiveDate: "2024-06-01T09:00:00+00:00",
		Asset: domain.Asset{
			ID:      "AS-1",
			Product: domain.Ref{ID: "PRD-1"},
			Params: []domain.RequestParam{
				{ID: "subscription_id", Value: "VS-1", Reconciliation: true},
				{ID: "portal", Value: "https://portal"},
			},
		},
	}
}

func writtenTenant(t *testing.T, f *fixture) map[string]any {
	t.Helper()
	raw, ok := f.oa.puts["t-1"]
	if !ok {
		t.Fatal("tenant not written")
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decoding written tenant: %v", err)
	}
	return doc
}

func TestRunEffect_RenewalSubscription(t *testing.T) {
	f := newFixture(t)

	err := f.runner().RunEffect(context.Background(), domain.Effect{
		ID:       "e-1",
		Kind:     domain.EffectRenewalSubscription,
		TenantID: "t-1",
		Origin:   domain.Origin{OAuthKey: "key"},
	})
	if err != nil {
		t.Fatalf("RunEffect: %v", err)
	}

	if len(f.oa.subscribed) != 1 {
		t.Fatalf("subscribed %d events, want 1", len(f.oa.subscribed))
	}
	sub := f.oa.subscribed[0]
	if sub.Event != domain.RenewEventType || sub.Handler != domain.RenewHandler {
		t.Errorf("subscription = %+v", sub)
	}
}

func TestRunEffect_WriteBack(t *testing.T) {
	f := newFixture(t)
	f.oa.resources["t-1"] = tenantDoc(t, map[string]any{"activationDate": "", "custom": "kept"})
	f.connect.params = []domain.ParameterDefinition{
		{ID: "portal", Phase: domain.PhaseFulfillment, Scope: domain.ScopeAsset, Type: "text"},
	}

	err := f.runner().RunEffect(context.Background(), domain.Effect{
		Kind:     domain.EffectTenantWriteBack,
		TenantID: "t-1",
		Origin:   domain.Origin{OAuthKey: "key"},
		Request:  approvedRequest(domain.TypeChange),
	})
	if err != nil {
		t.Fatalf("RunEffect: %v", err)
	}

	doc := writtenTenant(t, f)
	if doc["activationKey"] != "KEY-1" || doc["vendorSubscriptionId"] != "VS-1" {
		t.Errorf("written = %v", doc)
	}
	if doc["activationDate"] != "2024-06-01T09:00:00Z" {
		t.Errorf("activationDate = %v", doc["activationDate"])
	}
	if doc["custom"] != "kept" {
		t.Error("unknown properties must survive the write-back")
	}
	fulfillment, _ := doc["fulfillmentParameters"].([]any)
	if len(fulfillment) != 1 {
		t.Errorf("fulfillmentParameters = %v", doc["fulfillmentParameters"])
	}
	if !f.oa.gets[len(f.oa.gets)-1].opts.WithoutTransaction {
		t.Error("write-back must read outside the OA transaction")
	}
}

func TestRunEffect_WriteBackSkipsAbsentActivationDate(t *testing.T) {
	for _, typ := range []domain.RequestType{domain.TypeSuspend, domain.TypeAdjustment} {
		t.Run(string(typ), func(t *testing.T) {
			f := newFixture(t)
			doc := map[string]any{}
			if typ == domain.TypeAdjustment {
				doc["activationDate"] = "2020-01-01T00:00:00Z"
			}
			f.oa.resources["t-1"] = tenantDoc(t, doc)

			err := f.runner().RunEffect(context.Background(), domain.Effect{
				Kind:     domain.EffectTenantWriteBack,
				TenantID: "t-1",
				Origin:   domain.Origin{OAuthKey: "key"},
				Request:  approvedRequest(typ),
			})
			if err != nil {
				t.Fatalf("RunEffect: %v", err)
			}

			written := writtenTenant(t, f)
			if typ == domain.TypeSuspend {
				if _, ok := written["activationDate"]; ok {
					t.Error("activationDate must not be added when the tenant lacks it")
				}
				return
			}
			if written["activationDate"] != "2020-01-01T00:00:00Z" {
				t.Errorf("adjustment overwrote activationDate: %v", written["activationDate"])
			}
		})
	}
}

func TestRunEffect_WriteBackSchedule(t *testing.T) {
	cases := []struct {
		op      domain.ScheduledOperation
		planned any
		date    any
	}{
		{domain.ScheduledActivate, "", "2024-06-01T09:00:00Z"},
		{domain.ScheduledCancel, "PR-1", nil},
	}

	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			f := newFixture(t)
			f.oa.resources["t-1"] = tenantDoc(t, map[string]any{"last_planned_request": "PR-1"})

			err := f.runner().RunEffect(context.Background(), domain.Effect{
				Kind:     domain.EffectTenantWriteBack,
				TenantID: "t-1",
				Origin:   domain.Origin{OAuthKey: "key"},
				Request:  approvedRequest(domain.TypeChange),
				Schedule: tc.op,
			})
			if err != nil {
				t.Fatalf("RunEffect: %v", err)
			}

			doc := writtenTenant(t, f)
			if doc["last_planned_request"] != tc.planned {
				t.Errorf("last_planned_request = %v, want %v", doc["last_planned_request"], tc.planned)
			}
			if doc["activationDate"] != tc.date {
				t.Errorf("activationDate = %v, want %v", doc["activationDate"], tc.date)
			}
		})
	}
}

func TestRunEffect_WriteBackLegacySchema(t *testing.T) {
	for _, op := range []domain.ScheduledOperation{"", domain.ScheduledActivate} {
		t.Run("schedule="+string(op), func(t *testing.T) {
			f := newFixture(t)
			f.oa.schema = legacySchema()
			f.oa.resources["t-1"] = tenantDoc(t, map[string]any{"activationDate": "2020-01-01T00:00:00Z"})

			err := f.runner().RunEffect(context.Background(), domain.Effect{
				Kind:     domain.EffectTenantWriteBack,
				TenantID: "t-1",
				Origin:   domain.Origin{OAuthKey: "key"},
				Request:  approvedRequest(domain.TypeResume),
				Schedule: op,
			})
			if err != nil {
				t.Fatalf("RunEffect: %v", err)
			}

			doc := writtenTenant(t, f)
			for _, field := range []string{"vendorSubscriptionId", "fulfillmentParameters", "activationParameters", "last_planned_request"} {
				if v, ok := doc[field]; ok {
					t.Errorf("legacy tenant written with %s = %v", field, v)
				}
			}
			if doc["activationDate"] != "2020-01-01T00:00:00Z" {
				t.Errorf("activationDate = %v, want untouched", doc["activationDate"])
			}
			if doc["activationKey"] != "KEY-1" {
				t.Errorf("activationKey = %v, want KEY-1", doc["activationKey"])
			}
		})
	}
}

func TestRunEffect_WriteBackFailure(t *testing.T) {
	f := newFixture(t)
	f.oa.putErr = errors.New("boom")

	err := f.runner().RunEffect(context.Background(), domain.Effect{
		Kind:     domain.EffectTenantWriteBack,
		TenantID: "t-1",
		Origin:   domain.Origin{OAuthKey: "key"},
		Request:  approvedRequest(domain.TypeResume),
	})
	if err == nil {
		t.Fatal("expected error so the job is retried")
	}
}

func TestRunEffect_Invalid(t *testing.T) {
	f := newFixture(t)

	cases := []domain.Effect{
		{Kind: domain.EffectTenantWriteBack, TenantID: "t-1", Origin: domain.Origin{OAuthKey: "key"}},
		{Kind: "unknown", TenantID: "t-1", Origin: domain.Origin{OAuthKey: "key"}},
		{Kind: domain.EffectRenewalSubscription, TenantID: "t-1", Origin: domain.Origin{OAuthKey: "gone"}},
	}
	for _, e := range cases {
		if err := f.runner().RunEffect(context.Background(), e); err == nil {
			t.Errorf("RunEffect(%+v) succeeded, want error", e)
		}
	}
}

func TestPublish_ClearsTransaction(t *testing.T) {
	f := newFixture(t)
	f.sc.Origin.TransactionID = "tx-1"
	f.connect.found = []domain.Request{*approvedRequest(domain.TypePurchase)}

	if _, err := f.svc.Track(context.Background(), f.sc, domain.OpPurchase, tenantDoc(t, nil), ""); err != nil {
		t.Fatalf("Track: %v", err)
	}

	if len(f.pub.effects) != 1 {
		t.Fatalf("published %d effects, want 1", len(f.pub.effects))
	}
	if tx := f.pub.effects[0].Origin.TransactionID; tx != "" {
		t.Errorf("TransactionID = %q, want cleared", tx)
	}
}
