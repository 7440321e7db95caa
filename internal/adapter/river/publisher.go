package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// Compile-time check: Publisher implements domain.EffectPublisher.
var _ domain.EffectPublisher = (*Publisher)(nil)

// effectMaxAttempts bounds how often a failing effect is retried before River
// discards it.
const effectMaxAttempts = 5

// EffectJobArgs carries an effect through the job queue. River serializes it
// as JSON into its job table, so the worker gets the full effect, including
// the origin its clients are resolved from.
type EffectJobArgs struct {
	Effect domain.Effect `json:"effect"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EffectJobArgs) Kind() string { return "effect.run" }

// InsertOpts caps the retries of an effect.
func (EffectJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: effectMaxAttempts}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EffectPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues an effect as an async job in River.
func (p *Publisher) Publish(ctx context.Context, effect domain.Effect) error {
	if _, err := p.client.Insert(ctx, EffectJobArgs{Effect: effect}, nil); err != nil {
		return fmt.Errorf("enqueuing effect job: %w", err)
	}
	return nil
}
