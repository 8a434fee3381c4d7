package orchestrator

import (
	"context"
	"time"

	apperrors "specgen/internal/common/errors"
	"specgen/internal/common/logger"
	"specgen/internal/common/metrics"
	"specgen/internal/models"
)

const staleJobMessage = "stale job: orphaned by a previous run"

// StaleJobStore fails jobs that stopped making progress.
type StaleJobStore interface {
	TouchJobs(ctx context.Context, ids []string) (int64, error)
	FailStaleJobs(ctx context.Context, olderThan time.Time, message string, live []string) ([]models.SpecificationJob, error)
}

// LiveJobSource reports the jobs this process still holds, queued or running.
type LiveJobSource interface {
	LiveJobs() []string
}

type ReconcilerOption func(*Reconciler)

// WithLiveJobs keeps the jobs held by src out of the sweep and refreshes
// their updated_at on every pass.
func WithLiveJobs(src LiveJobSource) ReconcilerOption {
	return func(r *Reconciler) { r.live = src }
}

// Reconciler moves pending and processing jobs left behind by a crashed
// process to Failed, so no job stays non-terminal forever.
type Reconciler struct {
	store      StaleJobStore
	guard      Guard
	notifier   Notifier
	staleAfter time.Duration
	interval   time.Duration
	live       LiveJobSource
	logger     logger.Logger
	now        func() time.Time
}

// NewReconciler builds a Reconciler. guard and notifier may be nil.
func NewReconciler(st StaleJobStore, guard Guard, notifier Notifier, staleAfter, interval time.Duration, log logger.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:      st,
		guard:      guard,
		notifier:   notifier,
		staleAfter: staleAfter,
		interval:   interval,
		logger:     log.With(map[string]interface{}{"component": "reconciler"}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce fails every job not updated within staleAfter and not held by this
// process, and returns how many.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	var live []string
	if r.live != nil {
		live = r.live.LiveJobs()
		if _, err := r.store.TouchJobs(ctx, live); err != nil {
			r.logger.Warn("failed to refresh live jobs", map[string]interface{}{"count": len(live), "error": err})
		}
	}
	cutoff := r.now().Add(-r.staleAfter)

	jobs, err := r.store.FailStaleJobs(ctx, cutoff, staleJobMessage, live)
	if err != nil {
		return 0, apperrors.NewDataAccessError("fail stale jobs", err)
	}

	for _, job := range jobs {
		metrics.StaleJobsReconciled.Inc()
		metrics.JobsFinished.WithLabelValues(string(models.JobFailed), string(apperrors.ErrCodeJobStale)).Inc()

		if r.guard != nil {
			if err := r.guard.Release(ctx, job.ProjectID, job.ID); err != nil {
				r.logger.Warn("failed to release project guard", map[string]interface{}{
					"projectId": job.ProjectID,
					"jobId":     job.ID,
					"error":     err,
				})
			}
		}

		if r.notifier != nil {
			event := models.JobEvent{
				JobID:        job.ID,
				ProjectID:    job.ProjectID,
				Model:        job.Model,
				Status:       models.JobFailed,
				ErrorCode:    string(apperrors.ErrCodeJobStale),
				ErrorMessage: staleJobMessage,
				OccurredAt:   r.now().UTC(),
			}
			if err := r.notifier.Notify(ctx, event); err != nil {
				r.logger.Warn("failed to publish job event", map[string]interface{}{"jobId": job.ID, "error": err})
			}
		}
	}

	if len(jobs) > 0 {
		r.logger.Info("reconciled stale jobs", map[string]interface{}{
			"count":  len(jobs),
			"cutoff": cutoff,
		})
	}
	return len(jobs), nil
}

// Run reconciles once immediately and then every interval until ctx ends.
func (r *Reconciler) Run(ctx context.Context) {
	r.tick(ctx)

	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Error("stale job reconciliation failed", map[string]interface{}{"error": err})
	}
}
