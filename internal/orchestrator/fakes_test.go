package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"specgen/internal/generation"
	"specgen/internal/models"
	"specgen/internal/store"
)

// memoryStore enforces the same transitions as the Postgres store.
type memoryStore struct {
	mu      sync.Mutex
	jobs    map[string]*models.SpecificationJob
	specs   []models.Specification
	changes *models.ChangeSet

	insertErr error
	saveErr   error
	findErr   error
	findCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: map[string]*models.SpecificationJob{}, changes: &models.ChangeSet{}}
}

func (s *memoryStore) InsertJob(_ context.Context, jobID, projectID, model string) (*models.SpecificationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	now := time.Now()
	job := &models.SpecificationJob{ID: jobID, ProjectID: projectID, Model: model, Status: models.JobPending, CreatedAt: now, UpdatedAt: now}
	s.jobs[jobID] = job
	cp := *job
	return &cp, nil
}

func (s *memoryStore) transition(jobID string, to models.JobStatus, msg *string, from ...models.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	for _, f := range from {
		if job.Status == f {
			job.Status = to
			job.ErrorMessage = msg
			job.UpdatedAt = time.Now()
			if to.IsTerminal() {
				at := job.UpdatedAt
				job.CompletedAt = &at
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, job.Status, to)
}

func (s *memoryStore) MarkProcessing(_ context.Context, jobID string) error {
	return s.transition(jobID, models.JobProcessing, nil, models.JobPending)
}

func (s *memoryStore) CompleteJob(_ context.Context, jobID string) error {
	return s.transition(jobID, models.JobCompleted, nil, models.JobProcessing)
}

func (s *memoryStore) FailJob(_ context.Context, jobID, message string) error {
	return s.transition(jobID, models.JobFailed, &message, models.JobPending, models.JobProcessing)
}

func (s *memoryStore) FindJobByID(_ context.Context, jobID string) (*models.SpecificationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrJobNotFound, jobID)
	}
	cp := *job
	return &cp, nil
}

func (s *memoryStore) CreateSpecification(_ context.Context, projectID, model, text string, metadata map[string]interface{}) (*models.Specification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	version := 1
	for _, sp := range s.specs {
		if sp.ProjectID == projectID && sp.Version >= version {
			version = sp.Version + 1
		}
	}
	spec := models.Specification{
		ID:        fmt.Sprintf("spec-%d", len(s.specs)+1),
		ProjectID: projectID,
		Model:     model,
		Text:      text,
		Metadata:  metadata,
		Version:   version,
		CreatedAt: time.Now(),
	}
	s.specs = append(s.specs, spec)
	return &spec, nil
}

func (s *memoryStore) FindSpecificationsByProject(_ context.Context, projectID string) ([]models.Specification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Specification
	for i := len(s.specs) - 1; i >= 0; i-- {
		if s.specs[i].ProjectID == projectID {
			out = append(out, s.specs[i])
		}
	}
	return out, nil
}

func (s *memoryStore) FindSpecificationByID(_ context.Context, id string) (*models.Specification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range s.specs {
		if sp.ID == id {
			cp := sp
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrSpecificationNotFound, id)
}

func (s *memoryStore) LatestSpecification(ctx context.Context, projectID string) (*models.Specification, error) {
	specs, _ := s.FindSpecificationsByProject(ctx, projectID)
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: project %s", store.ErrSpecificationNotFound, projectID)
	}
	return &specs[0], nil
}

func (s *memoryStore) LatestChanges(_ context.Context, _ string) (*models.ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changes, nil
}

func (s *memoryStore) TouchJobs(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if job, ok := s.jobs[id]; ok && !job.Status.IsTerminal() {
			job.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) FailStaleJobs(_ context.Context, olderThan time.Time, message string, live []string) ([]models.SpecificationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := make(map[string]bool, len(live))
	for _, id := range live {
		held[id] = true
	}
	var out []models.SpecificationJob
	for _, job := range s.jobs {
		if job.Status.IsTerminal() || !job.UpdatedAt.Before(olderThan) || held[job.ID] {
			continue
		}
		msg := message
		job.Status = models.JobFailed
		job.ErrorMessage = &msg
		out = append(out, *job)
	}
	return out, nil
}

func (s *memoryStore) job(id string) models.SpecificationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *memoryStore) jobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *memoryStore) jobsFor(projectID string) []models.SpecificationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SpecificationJob
	for _, job := range s.jobs {
		if job.ProjectID == projectID {
			out = append(out, *job)
		}
	}
	return out
}

func (s *memoryStore) specCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.specs)
}

type aggregatorFunc func(ctx context.Context, projectID string) (*models.ProjectSnapshot, error)

func (f aggregatorFunc) Aggregate(ctx context.Context, projectID string) (*models.ProjectSnapshot, error) {
	return f(ctx, projectID)
}

func staticSnapshot() aggregatorFunc {
	return func(context.Context, string) (*models.ProjectSnapshot, error) {
		return &models.ProjectSnapshot{
			Domains:      []models.Domain{{ID: "d1", Name: "User"}},
			Requirements: []models.Requirement{{ID: "r1", Title: "Login"}, {ID: "r2", Title: "Logout"}},
		}, nil
	}
}

type generatorFunc func(ctx context.Context, model, document string) (*generation.Result, error)

func (f generatorFunc) Generate(ctx context.Context, model, document string) (*generation.Result, error) {
	return f(ctx, model, document)
}

func staticGenerator(text string) generatorFunc {
	return func(_ context.Context, model, _ string) (*generation.Result, error) {
		return &generation.Result{Text: text, Model: model, InputTokens: 100, OutputTokens: 50}, nil
	}
}

// blockingGenerator parks every call until release is closed.
type blockingGenerator struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *blockingGenerator) Generate(ctx context.Context, model, _ string) (*generation.Result, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &generation.Result{Text: "spec", Model: model, InputTokens: 1, OutputTokens: 1}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.JobEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event models.JobEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) snapshot() []models.JobEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.JobEvent(nil), n.events...)
}

type recordingIndexer struct {
	mu      sync.Mutex
	indexed []string
	hits    []models.SpecificationHit
}

func (i *recordingIndexer) Index(_ context.Context, spec *models.Specification) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.indexed = append(i.indexed, spec.ID)
	return nil
}

func (i *recordingIndexer) Search(context.Context, string, string, int) ([]models.SpecificationHit, error) {
	return i.hits, nil
}

func (i *recordingIndexer) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.indexed)
}
