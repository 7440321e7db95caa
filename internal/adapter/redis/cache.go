// Package redis caches OA tenant schemas in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

const keyPrefix = "apsconnect:schema:"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
)

// Connect parses the connection URL and waits until Redis answers a ping,
// retrying up to attempts times.
func Connect(ctx context.Context, connectionURL string, attempts int, interval time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(connectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	for range max(attempts, 1) {
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(interval):
		}
	}
	return nil, ErrRedisNotReady
}

// SchemaCache stores tenant schemas keyed by APS type.
type SchemaCache struct {
	db  redis.UniversalClient
	ttl time.Duration
}

// Compile-time check: SchemaCache implements domain.SchemaCache.
var _ domain.SchemaCache = (*SchemaCache)(nil)

// NewSchemaCache wraps a Redis client. A zero ttl keeps entries forever.
func NewSchemaCache(client redis.UniversalClient, ttl time.Duration) *SchemaCache {
	return &SchemaCache{db: client, ttl: ttl}
}

// Get returns domain.ErrSchemaNotCached for unknown types.
func (c *SchemaCache) Get(ctx context.Context, apsType string) (domain.TenantSchema, error) {
	if apsType == "" {
		return domain.TenantSchema{}, domain.ErrSchemaNotCached
	}
	val, err := c.db.Get(ctx, keyPrefix+apsType).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TenantSchema{}, domain.ErrSchemaNotCached
	}
	if err != nil {
		return domain.TenantSchema{}, fmt.Errorf("reading schema %s: %w", apsType, err)
	}

	var schema domain.TenantSchema
	if err := json.Unmarshal(val, &schema); err != nil {
		return domain.TenantSchema{}, fmt.Errorf("decoding schema %s: %w", apsType, err)
	}
	return schema, nil
}

// Set stores the schema under its id. Schemas without an id are skipped.
func (c *SchemaCache) Set(ctx context.Context, schema domain.TenantSchema) error {
	if schema.ID == "" {
		return nil
	}
	val, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encoding schema %s: %w", schema.ID, err)
	}
	if err := c.db.Set(ctx, keyPrefix+schema.ID, val, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing schema %s: %w", schema.ID, err)
	}
	return nil
}

// Healthcheck pings Redis.
func (c *SchemaCache) Healthcheck(ctx context.Context) error {
	return c.db.Ping(ctx).Err()
}
