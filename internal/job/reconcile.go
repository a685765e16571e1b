package job

import (
	"context"
	"time"

	"advisorledger/internal/service"

	"github.com/rs/zerolog"
)

// Reconciler is implemented by *service.StatsService.
type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]service.Reconciliation, error)
}

// ReconcileJob periodically checks that every current plan's capital matches its
// report and transaction history. It only reports drift and never corrects it.
type ReconcileJob struct {
	reconciler Reconciler
	log        zerolog.Logger
	stopCh     chan struct{}
	interval   time.Duration
}

func NewReconcileJob(reconciler Reconciler, interval time.Duration, log zerolog.Logger) *ReconcileJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReconcileJob{
		reconciler: reconciler,
		log:        log.With().Str("component", "ReconcileJob").Logger(),
		stopCh:     make(chan struct{}),
		interval:   interval,
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	j.log.Info().Dur("interval", j.interval).Msg("reconcile job started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("context done, reconcile job exiting")
			return
		case <-j.stopCh:
			j.log.Info().Msg("reconcile job stopped")
			return
		case <-ticker.C:
			j.run(ctx)
		}
	}
}

func (j *ReconcileJob) Stop() {
	close(j.stopCh)
}

// run returns the number of unbalanced plans found.
func (j *ReconcileJob) run(ctx context.Context) int {
	results, err := j.reconciler.ReconcileAll(ctx)
	if err != nil {
		j.log.Error().Err(err).Int("checked", len(results)).Msg("reconciliation aborted")
	}

	drift := 0
	for _, r := range results {
		if r.Balanced {
			continue
		}
		drift++
		j.log.Error().
			Int64("plan_id", r.PlanID).
			Str("expected", r.Expected.StringFixed(2)).
			Str("actual", r.Actual.StringFixed(2)).
			Str("difference", r.Difference.StringFixed(2)).
			Msg("plan capital does not reconcile")
	}
	j.log.Info().Int("plans", len(results)).Int("unbalanced", drift).Msg("reconciliation finished")
	return drift
}
