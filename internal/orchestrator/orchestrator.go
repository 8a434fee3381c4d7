// Package orchestrator owns the specification job lifecycle. A trigger creates a
// pending job and returns; a dispatcher worker then runs aggregation, prompt
// assembly, generation and persistence, and records a terminal state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	apperrors "specgen/internal/common/errors"
	"specgen/internal/common/logger"
	"specgen/internal/common/metrics"
	"specgen/internal/common/observability"
	"specgen/internal/generation"
	"specgen/internal/models"
	"specgen/internal/prompt"
	"specgen/internal/store"
)

// terminalWriteTimeout bounds the final status write when the run's own
// context has already been cancelled.
const terminalWriteTimeout = 10 * time.Second

// JobStore is the persistence the orchestrator drives.
type JobStore interface {
	InsertJob(ctx context.Context, jobID, projectID, model string) (*models.SpecificationJob, error)
	MarkProcessing(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, jobID string) error
	FailJob(ctx context.Context, jobID, message string) error
	FindJobByID(ctx context.Context, jobID string) (*models.SpecificationJob, error)
	CreateSpecification(ctx context.Context, projectID, model, text string, metadata map[string]interface{}) (*models.Specification, error)
	FindSpecificationsByProject(ctx context.Context, projectID string) ([]models.Specification, error)
	FindSpecificationByID(ctx context.Context, id string) (*models.Specification, error)
	LatestSpecification(ctx context.Context, projectID string) (*models.Specification, error)
	LatestChanges(ctx context.Context, projectID string) (*models.ChangeSet, error)
}

// Aggregator builds the project snapshot.
type Aggregator interface {
	Aggregate(ctx context.Context, projectID string) (*models.ProjectSnapshot, error)
}

// Notifier publishes terminal job events.
type Notifier interface {
	Notify(ctx context.Context, event models.JobEvent) error
}

// Indexer makes completed specifications searchable.
type Indexer interface {
	Index(ctx context.Context, spec *models.Specification) error
	Search(ctx context.Context, projectID, query string, limit int) ([]models.SpecificationHit, error)
}

type Config struct {
	Workers   int
	QueueSize int
}

// StartResult is returned by StartGeneration before the run begins.
type StartResult struct {
	JobID  string           `json:"jobId"`
	Status models.JobStatus `json:"status"`
}

type Orchestrator struct {
	store      JobStore
	aggregator Aggregator
	generator  generation.Generator
	dispatcher *Dispatcher
	guard      Guard
	cache      *StatusCache
	notifier   Notifier
	indexer    Indexer
	obs        *observability.Observability
	logger     logger.Logger
	newID      func() string

	liveMu sync.Mutex
	live   map[string]struct{}
}

type Option func(*Orchestrator)

// WithGuard enables the per-project single-flight guard.
func WithGuard(g Guard) Option {
	return func(o *Orchestrator) { o.guard = g }
}

// WithStatusCache serves terminal job reads from cache.
func WithStatusCache(c *StatusCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithIndexer(i Indexer) Option {
	return func(o *Orchestrator) { o.indexer = i }
}

func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

// New starts the dispatcher. Call Shutdown to stop it.
func New(cfg Config, st JobStore, agg Aggregator, gen generation.Generator, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      st,
		aggregator: agg,
		generator:  gen,
		logger:     log.With(map[string]interface{}{"component": "orchestrator"}),
		newID:      func() string { return uuid.New().String() },
		live:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.obs == nil {
		o.obs = observability.NewNoop()
	}
	o.dispatcher = NewDispatcher(cfg.Workers, cfg.QueueSize, log)
	return o
}

// Shutdown stops accepting triggers and waits for runs to finish.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.dispatcher.Shutdown(ctx)
}

// StartGeneration validates the trigger, records a pending job and schedules
// its run. It returns without waiting for the run.
func (o *Orchestrator) StartGeneration(ctx context.Context, projectID, model string) (*StartResult, error) {
	projectID = strings.TrimSpace(projectID)
	model = strings.TrimSpace(model)
	if projectID == "" {
		return nil, apperrors.NewValidationError("projectId must not be empty")
	}
	if model == "" {
		return nil, apperrors.NewValidationError("model must not be empty")
	}

	jobID := o.newID()

	if o.guard != nil {
		holder, acquired, err := o.guard.Acquire(ctx, projectID, jobID)
		if err != nil {
			return nil, apperrors.NewDataAccessError("acquire project guard", err)
		}
		if !acquired {
			return nil, apperrors.NewGenerationInProgressError(projectID, holder)
		}
	}

	job, err := o.store.InsertJob(ctx, jobID, projectID, model)
	if err != nil {
		o.releaseGuard(ctx, projectID, jobID)
		return nil, apperrors.NewDataAccessError("create job", err)
	}
	metrics.JobsStarted.Inc()

	started := time.Now()
	queued := *job
	o.track(job.ID)
	if err := o.dispatcher.Submit(func(runCtx context.Context) {
		o.run(runCtx, queued, started)
	}); err != nil {
		o.untrack(job.ID)
		qerr := apperrors.NewQueueFullError(job.ID)
		o.recordFailure(ctx, *job, started, qerr, "generation queue is full")
		o.releaseGuard(ctx, projectID, jobID)
		if errors.Is(err, ErrDispatcherClosed) {
			return nil, apperrors.NewInternalError(err)
		}
		return nil, qerr
	}

	o.logger.Info("generation scheduled", map[string]interface{}{
		"jobId":     job.ID,
		"projectId": projectID,
		"model":     model,
	})

	return &StartResult{JobID: job.ID, Status: job.Status}, nil
}

// run is the background pipeline for one job. It never returns an error; every
// failure becomes the job's error message.
func (o *Orchestrator) run(ctx context.Context, job models.SpecificationJob, started time.Time) {
	defer o.untrack(job.ID)
	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()

	ctx, span := o.obs.StartSpan(ctx, "specgen.run",
		attribute.String("job.id", job.ID),
		attribute.String("project.id", job.ProjectID),
		attribute.String("model", job.Model),
	)
	var runErr error
	defer func() { observability.EndSpan(span, runErr) }()
	defer o.releaseGuard(context.WithoutCancel(ctx), job.ProjectID, job.ID)
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic: %v", r)
			o.recordFailure(ctx, job, started, apperrors.NewInternalError(runErr), "internal error: "+runErr.Error())
		}
	}()

	log := logger.ForJob(o.logger, job.ID, job.ProjectID)

	if err := o.store.MarkProcessing(ctx, job.ID); err != nil {
		runErr = err
		if errors.Is(err, store.ErrInvalidTransition) {
			log.Warn("job left pending before the run started", map[string]interface{}{"error": err})
			return
		}
		o.recordFailure(ctx, job, started, apperrors.NewDataAccessError("mark job processing", err), "")
		return
	}

	snap, err := o.aggregate(ctx, job)
	if err != nil {
		runErr = err
		o.recordFailure(ctx, job, started, err, "")
		return
	}

	document := prompt.Assemble(snap)
	stats := prompt.StatsOf(snap)

	result, err := o.generate(ctx, job, document)
	if err != nil {
		runErr = err
		o.recordFailure(ctx, job, started, err, "")
		return
	}
	metrics.GenerationTokens.WithLabelValues("input").Add(float64(result.InputTokens))
	metrics.GenerationTokens.WithLabelValues("output").Add(float64(result.OutputTokens))
	o.obs.RecordTokens(ctx, result.InputTokens, result.OutputTokens)

	metadata := map[string]interface{}{
		models.MetaJobID:             job.ID,
		models.MetaModel:             job.Model,
		models.MetaDomainsCount:      stats.Domains,
		models.MetaRequirementsCount: stats.Requirements,
		models.MetaTokensUsed:        result.TokensUsed(),
	}

	spec, err := o.store.CreateSpecification(ctx, job.ProjectID, job.Model, result.Text, metadata)
	if err != nil {
		runErr = err
		o.recordFailure(ctx, job, started, apperrors.NewSpecificationSaveError(err),
			fmt.Sprintf("generation succeeded but saving failed: %v", err))
		return
	}

	if err := o.store.CompleteJob(context.WithoutCancel(ctx), job.ID); err != nil {
		runErr = err
		log.Error("failed to mark job completed", map[string]interface{}{
			"error":           err,
			"specificationId": spec.ID,
		})
		return
	}

	o.finish(ctx, started, models.JobCompleted, "")
	log.Info("specification generated", map[string]interface{}{
		"specificationId": spec.ID,
		"version":         spec.Version,
		"tokensUsed":      result.TokensUsed(),
		"durationMs":      time.Since(started).Milliseconds(),
	})

	o.index(ctx, spec)
	o.notify(ctx, models.JobEvent{
		JobID:           job.ID,
		ProjectID:       job.ProjectID,
		Model:           job.Model,
		Status:          models.JobCompleted,
		SpecificationID: spec.ID,
		Version:         spec.Version,
		OccurredAt:      time.Now().UTC(),
	})
}

// LiveJobs returns the ids of jobs queued or running in this process.
func (o *Orchestrator) LiveJobs() []string {
	o.liveMu.Lock()
	defer o.liveMu.Unlock()
	ids := make([]string, 0, len(o.live))
	for id := range o.live {
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) track(jobID string) {
	o.liveMu.Lock()
	o.live[jobID] = struct{}{}
	o.liveMu.Unlock()
}

func (o *Orchestrator) untrack(jobID string) {
	o.liveMu.Lock()
	delete(o.live, jobID)
	o.liveMu.Unlock()
}

func (o *Orchestrator) aggregate(ctx context.Context, job models.SpecificationJob) (*models.ProjectSnapshot, error) {
	ctx, span := o.obs.StartSpan(ctx, "specgen.aggregate")
	snap, err := o.aggregator.Aggregate(ctx, job.ProjectID)
	observability.EndSpan(span, err)
	return snap, err
}

func (o *Orchestrator) generate(ctx context.Context, job models.SpecificationJob, document string) (*generation.Result, error) {
	ctx, span := o.obs.StartSpan(ctx, "specgen.generate", attribute.Int("document.bytes", len(document)))
	result, err := o.generator.Generate(ctx, job.Model, document)
	observability.EndSpan(span, err)
	return result, err
}

// recordFailure writes the Failed transition. message defaults to err's text.
func (o *Orchestrator) recordFailure(ctx context.Context, job models.SpecificationJob, started time.Time, err error, message string) {
	if message == "" {
		message = err.Error()
	}
	code := apperrors.CodeOf(err)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	if ferr := o.store.FailJob(writeCtx, job.ID, message); ferr != nil {
		o.logger.Error("failed to record job failure", map[string]interface{}{
			"jobId":     job.ID,
			"errorCode": string(code),
			"cause":     message,
			"error":     ferr,
		})
		return
	}

	o.finish(ctx, started, models.JobFailed, string(code))
	o.logger.Warn("generation failed", map[string]interface{}{
		"jobId":         job.ID,
		"projectId":     job.ProjectID,
		"errorCode":     string(code),
		"errorCategory": apperrors.GetErrorCategory(code),
		"error":         message,
	})

	o.notify(ctx, models.JobEvent{
		JobID:        job.ID,
		ProjectID:    job.ProjectID,
		Model:        job.Model,
		Status:       models.JobFailed,
		ErrorCode:    string(code),
		ErrorMessage: message,
		OccurredAt:   time.Now().UTC(),
	})
}

func (o *Orchestrator) finish(ctx context.Context, started time.Time, status models.JobStatus, code string) {
	elapsed := time.Since(started)
	metrics.JobsFinished.WithLabelValues(string(status), code).Inc()
	metrics.JobDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
	o.obs.RecordJobProcessed(ctx, string(status))
	o.obs.RecordJobDuration(ctx, elapsed, string(status))
}

func (o *Orchestrator) releaseGuard(ctx context.Context, projectID, jobID string) {
	if o.guard == nil {
		return
	}
	if err := o.guard.Release(ctx, projectID, jobID); err != nil {
		o.logger.Warn("failed to release project guard", map[string]interface{}{
			"projectId": projectID,
			"jobId":     jobID,
			"error":     err,
		})
	}
}

func (o *Orchestrator) index(ctx context.Context, spec *models.Specification) {
	if o.indexer == nil {
		return
	}
	if err := o.indexer.Index(context.WithoutCancel(ctx), spec); err != nil {
		o.logger.Warn("failed to index specification", map[string]interface{}{
			"specificationId": spec.ID,
			"error":           err,
		})
	}
}

func (o *Orchestrator) notify(ctx context.Context, event models.JobEvent) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Warn("failed to publish job event", map[string]interface{}{
			"jobId":  event.JobID,
			"status": string(event.Status),
			"error":  err,
		})
	}
}
