package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
)

// Setup creates a River client running at most workers effects at once, with
// the effect worker registered, and runs River's internal migrations. The
// caller must call client.Start() to begin processing jobs and client.Stop()
// for graceful shutdown.
func Setup(ctx context.Context, db *sql.DB, runner EffectRunner, workers int) (*Client, error) {
	driver := riversqlite.New(db)

	// River's own tables (river_job, river_leader, ...) are migrated apart
	// from the goose migrations of the adapter.
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("running river migrations: %w", err)
	}

	registry := river.NewWorkers()
	river.AddWorker(registry, NewEffectWorker(runner))

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: max(workers, 1)},
		},
		Workers: registry,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}
