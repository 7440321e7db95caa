package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// publish hands an effect to the queue. Failures are logged only, an effect
// never changes the response it follows.
func (s *Service) publish(ctx context.Context, effect domain.Effect) {
	id, err := generateID()
	if err != nil {
		slog.WarnContext(ctx, "generating effect id", "error", err)
		return
	}
	effect.ID = id
	// Effects run after the OA transaction of the call has ended.
	effect.Origin.TransactionID = ""

	if err := s.effects.Publish(ctx, effect); err != nil {
		slog.WarnContext(ctx, "publishing effect",
			"effect_id", effect.ID,
			"kind", effect.Kind,
			"tenant_id", effect.TenantID,
			"error", err,
		)
	}
}

// EffectRunner carries out effects outside of the OA call that caused them.
type EffectRunner struct {
	backends Backends
}

// NewEffectRunner creates a runner resolving its clients from backends.
func NewEffectRunner(backends Backends) *EffectRunner {
	return &EffectRunner{backends: backends}
}

// RunEffect performs a single effect.
func (r *EffectRunner) RunEffect(ctx context.Context, effect domain.Effect) error {
	sc, err := r.backends.Scope(ctx, effect.Origin)
	if err != nil {
		return fmt.Errorf("resolving scope: %w", err)
	}

	switch effect.Kind {
	case domain.EffectRenewalSubscription:
		return sc.OA.Subscribe(ctx, effect.TenantID, domain.NewEventSubscription(domain.RenewEventType, domain.RenewHandler))
	case domain.EffectTenantWriteBack:
		if effect.Request == nil {
			return fmt.Errorf("write-back effect %s without request", effect.ID)
		}
		return writeBack(ctx, sc, r.backends.Schemas, effect.TenantID, *effect.Request, effect.Schedule)
	default:
		return fmt.Errorf("unknown effect kind %q", effect.Kind)
	}
}

// writeBack copies the outcome of an approved request onto the OA tenant. The
// tenant document is updated in place so unknown properties survive. Fields
// the tenant schema does not declare are left out.
func writeBack(ctx context.Context, sc Scope, schemas domain.SchemaCache, tenantID string, req domain.Request, schedule domain.ScheduledOperation) error {
	raw, err := sc.OA.GetResource(ctx, tenantID, domain.ResourceOptions{WithoutTransaction: true})
	if err != nil {
		return fmt.Errorf("reading tenant %s: %w", tenantID, err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decoding tenant %s: %w", tenantID, err)
	}
	apsType, err := domain.PeekTenantType(raw)
	if err != nil {
		return fmt.Errorf("tenant %s: %w", tenantID, err)
	}
	schema, err := lookupSchema(ctx, schemas, sc, apsType)
	if err != nil {
		return err
	}
	compat := domain.CompatFromSchema(schema)

	activationKey := ""
	if req.ActivationKey != nil {
		activationKey = *req.ActivationKey
	}
	extracted := domain.ExtractParameters(req, parameterSet(ctx, sc, req.Asset.Product.ID))

	fields := map[string]any{"activationKey": activationKey}
	if !compat.LegacyVendorSubscriptionID {
		fields["vendorSubscriptionId"] = domain.Truncate(extracted.VendorSubscriptionID)
	}
	if !compat.LegacyExternalIdentifiers {
		fields["fulfillmentParameters"] = extracted.Fulfillment
		fields["activationParameters"] = extracted.Activation
	}
	switch schedule {
	case domain.ScheduledActivate:
		if !compat.LegacyPlannedDateNotSupported {
			fields["last_planned_request"] = ""
		}
		if !compat.LegacySyncActivationDate {
			fields["activationDate"] = req.ActivationDate()
		}
	case domain.ScheduledCancel:
		// The pointer stays so a repeated cancel event still finds the request.
	default:
		_, present := doc["activationDate"]
		if present && !compat.LegacySyncActivationDate && req.Type != domain.TypeAdjustment {
			fields["activationDate"] = req.ActivationDate()
		}
	}

	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", k, err)
		}
		doc[k] = b
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding tenant %s: %w", tenantID, err)
	}

	if err := sc.OA.PutTenant(ctx, tenantID, out); err != nil {
		return fmt.Errorf("writing tenant %s: %w", tenantID, err)
	}
	slog.InfoContext(ctx, "tenant updated from request",
		"tenant_id", tenantID,
		"request_id", req.ID,
	)
	return nil
}
