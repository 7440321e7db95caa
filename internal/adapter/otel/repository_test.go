package otel_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/neomorfeo/apsconnect/internal/adapter/otel"
	"github.com/neomorfeo/apsconnect/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mock repository ---

type mockRepo struct {
	installations map[string]domain.Installation
	hubs          map[string]string
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		installations: make(map[string]domain.Installation),
		hubs:          make(map[string]string),
	}
}

func (m *mockRepo) GetByOAuthKey(_ context.Context, key string) (domain.Installation, error) {
	inst, ok := m.installations[key]
	if !ok {
		return domain.Installation{}, domain.ErrConfigurationNotFound
	}
	return inst, nil
}

func (m *mockRepo) Save(_ context.Context, inst domain.Installation) error {
	m.installations[inst.OAuthKey] = inst
	return nil
}

func (m *mockRepo) BindApp(_ context.Context, appID, hubID string) error {
	m.hubs[appID] = hubID
	return nil
}

func (m *mockRepo) HubForApp(_ context.Context, appID string) (string, error) {
	hub, ok := m.hubs[appID]
	if !ok {
		return "", domain.ErrHubNotFound
	}
	return hub, nil
}

func (m *mockRepo) UnbindApp(_ context.Context, appID string) error {
	if _, ok := m.hubs[appID]; !ok {
		return domain.ErrAppInstanceNotFound
	}
	delete(m.hubs, appID)
	return nil
}

func (m *mockRepo) TouchHub(_ context.Context, _ domain.HubInstance) error {
	return nil
}

// --- Tests ---

func TestTracingInstallationRepository_GetByOAuthKey_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingInstallationRepository(inner)

	inner.installations["key-1"] = domain.Installation{OAuthKey: "key-1", OAuthSecret: "s3cr3t", ProductID: "PRD-1"}

	got, err := repo.GetByOAuthKey(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ProductID != "PRD-1" {
		t.Errorf("ProductID = %q, want %q", got.ProductID, "PRD-1")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "InstallationRepository.GetByOAuthKey" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "InstallationRepository.GetByOAuthKey")
	}

	assertAttribute(t, spans[0], "oauth.key", "key-1")
	assertAttribute(t, spans[0], "product.id", "PRD-1")
	for _, attr := range spans[0].Attributes {
		if attr.Value.Emit() == "s3cr3t" {
			t.Errorf("secret leaked in attribute %q", attr.Key)
		}
	}
}

func TestTracingInstallationRepository_GetByOAuthKey_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingInstallationRepository(newMockRepo())

	_, err := repo.GetByOAuthKey(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrConfigurationNotFound) {
		t.Fatalf("expected ErrConfigurationNotFound, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}

	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingInstallationRepository_Bindings_RecordSpans(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingInstallationRepository(inner)
	ctx := context.Background()

	if err := repo.BindApp(ctx, "app-1", "hub-1"); err != nil {
		t.Fatalf("BindApp: %v", err)
	}
	if hub, err := repo.HubForApp(ctx, "app-1"); err != nil || hub != "hub-1" {
		t.Fatalf("HubForApp = %q, %v", hub, err)
	}
	if err := repo.TouchHub(ctx, domain.HubInstance{HubID: "hub-1", AppInstanceID: "app-1", ControllerURI: "https://oa/"}); err != nil {
		t.Fatalf("TouchHub: %v", err)
	}
	if err := repo.UnbindApp(ctx, "app-1"); err != nil {
		t.Fatalf("UnbindApp: %v", err)
	}
	if err := repo.Save(ctx, domain.Installation{OAuthKey: "key-2", ProductID: "PRD-2"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	spans := exporter.GetSpans()
	want := []string{
		"InstallationRepository.BindApp",
		"InstallationRepository.HubForApp",
		"InstallationRepository.TouchHub",
		"InstallationRepository.UnbindApp",
		"InstallationRepository.Save",
	}
	if len(spans) != len(want) {
		t.Fatalf("got %d spans, want %d", len(spans), len(want))
	}
	for i, name := range want {
		if spans[i].Name != name {
			t.Errorf("span %d = %q, want %q", i, spans[i].Name, name)
		}
	}
	assertAttribute(t, spans[1], "hub.id", "hub-1")
	assertAttribute(t, spans[2], "hub.controller_uri", "https://oa/")
	assertAttribute(t, spans[4], "product.id", "PRD-2")
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
