package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// loadTenant parses a raw tenant document against the schema of its type.
func (s *Service) loadTenant(ctx context.Context, sc Scope, raw []byte) (domain.Tenant, error) {
	apsType, err := domain.PeekTenantType(raw)
	if err != nil {
		return domain.Tenant{}, err
	}
	schema, err := s.tenantSchema(ctx, sc, apsType)
	if err != nil {
		return domain.Tenant{}, err
	}
	return domain.NewTenant(raw, schema)
}

func (s *Service) tenantSchema(ctx context.Context, sc Scope, apsType string) (domain.TenantSchema, error) {
	return lookupSchema(ctx, s.backends.Schemas, sc, apsType)
}

// lookupSchema reads the schema from the cache, falling back to OA. Cache
// failures never fail the call. A nil cache always reads OA.
func lookupSchema(ctx context.Context, cache domain.SchemaCache, sc Scope, apsType string) (domain.TenantSchema, error) {
	if cache != nil {
		schema, err := cache.Get(ctx, apsType)
		if err == nil {
			return schema, nil
		}
		if !errors.Is(err, domain.ErrSchemaNotCached) {
			slog.WarnContext(ctx, "schema cache read failed",
				"aps_type", apsType,
				"error", err,
			)
		}
	}

	schema, err := sc.OA.TenantSchema(ctx)
	if err != nil {
		return domain.TenantSchema{}, fmt.Errorf("reading tenant schema: %w", err)
	}
	if cache != nil {
		if err := cache.Set(ctx, schema); err != nil {
			slog.WarnContext(ctx, "schema cache write failed",
				"aps_type", schema.ID,
				"error", err,
			)
		}
	}
	return schema, nil
}

// fetchTenantDoc reads the raw tenant resource from OA. When OA has already
// dropped the transaction of the call, the read is repeated outside it.
func fetchTenantDoc(ctx context.Context, sc Scope, tenantID string) (json.RawMessage, error) {
	raw, err := sc.OA.GetResource(ctx, tenantID, domain.ResourceOptions{})
	var oaErr *domain.OAError
	if errors.As(err, &oaErr) && oaErr.TransactionLost() {
		raw, err = sc.OA.GetResource(ctx, tenantID, domain.ResourceOptions{WithoutTransaction: true})
	}
	if err != nil {
		return nil, fmt.Errorf("reading tenant %s: %w", tenantID, err)
	}
	return raw, nil
}

// fetchTenant reads and parses a tenant from OA.
func (s *Service) fetchTenant(ctx context.Context, sc Scope, tenantID string) (domain.Tenant, error) {
	raw, err := fetchTenantDoc(ctx, sc, tenantID)
	if err != nil {
		return domain.Tenant{}, err
	}
	return s.loadTenant(ctx, sc, raw)
}
