package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// EffectRunner carries out a single effect.
type EffectRunner interface {
	RunEffect(ctx context.Context, effect domain.Effect) error
}

// EffectWorker processes effect jobs from the River queue. A returned error
// makes River retry the job with backoff.
type EffectWorker struct {
	river.WorkerDefaults[EffectJobArgs]
	runner EffectRunner
}

// NewEffectWorker creates a worker handing every job to runner.
func NewEffectWorker(runner EffectRunner) *EffectWorker {
	return &EffectWorker{runner: runner}
}

// Work processes a single effect job.
func (w *EffectWorker) Work(ctx context.Context, job *river.Job[EffectJobArgs]) error {
	effect := job.Args.Effect
	logger := slog.With(
		"effect_id", effect.ID,
		"kind", effect.Kind,
		"tenant_id", effect.TenantID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)

	if err := w.runner.RunEffect(ctx, effect); err != nil {
		logger.WarnContext(ctx, "effect failed", "error", err)
		return err
	}
	logger.InfoContext(ctx, "effect done")
	return nil
}
