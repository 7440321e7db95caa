package fsm_test

import (
	"context"
	"errors"
	"testing"

	adapter "github.com/neomorfeo/apsconnect/internal/adapter/fsm"
	"github.com/neomorfeo/apsconnect/internal/domain"
)

func TestValidator_AllTransitions(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	for _, tr := range domain.ActionTransitions {
		dst, err := v.Apply(ctx, tr.Src, tr.Action)
		if err != nil {
			t.Errorf("Apply(%q, %q) unexpected error: %v", tr.Src, tr.Action, err)
			continue
		}
		if dst != tr.Dst {
			t.Errorf("Apply(%q, %q) = %q, want %q", tr.Src, tr.Action, dst, tr.Dst)
		}
	}
}

func TestValidator_InvalidTransition(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	cases := []struct {
		current domain.RequestStatus
		action  domain.RequestAction
	}{
		{domain.StatusPending, domain.ActionSubmit},
		{domain.StatusApproved, domain.ActionRevoke},
		{domain.StatusRevoking, domain.ActionRevoke},
		{domain.StatusPending, domain.ActionValidate},
	}

	for _, tc := range cases {
		_, err := v.Apply(ctx, tc.current, tc.action)
		var trErr *domain.TransitionError
		if !errors.As(err, &trErr) {
			t.Fatalf("Apply(%q, %q): expected TransitionError, got %v", tc.current, tc.action, err)
		}
		if trErr.Action != tc.action || trErr.Current != tc.current {
			t.Errorf("error = %+v", trErr)
		}
	}
}

func TestValidator_UnknownAction(t *testing.T) {
	v := adapter.New()

	_, err := v.Apply(context.Background(), domain.StatusDraft, "approve")
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

func TestValidator_ValidateKeepsDraft(t *testing.T) {
	v := adapter.New()

	got, err := v.Apply(context.Background(), domain.StatusDraft, domain.ActionValidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.StatusDraft {
		t.Errorf("got %q, want %q", got, domain.StatusDraft)
	}
}
