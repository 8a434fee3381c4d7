package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "specgen/internal/common/errors"
	"specgen/internal/models"
	"specgen/internal/snapshot"
	"specgen/internal/store"
)

const defaultSearchLimit = 10

// GetJobStatus returns the job. Terminal jobs are served from the status
// cache when one is configured.
func (o *Orchestrator) GetJobStatus(ctx context.Context, jobID string) (*models.SpecificationJob, error) {
	if o.cache != nil {
		if job, ok := o.cache.Get(ctx, jobID); ok {
			return job, nil
		}
	}

	job, err := o.store.FindJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, apperrors.NewNotFoundError("Job", jobID)
		}
		return nil, apperrors.NewDataAccessError("find job", err)
	}

	if o.cache != nil {
		o.cache.Put(ctx, job)
	}
	return job, nil
}

// ListSpecifications returns the project's specifications, newest version first.
func (o *Orchestrator) ListSpecifications(ctx context.Context, projectID string) ([]models.Specification, error) {
	specs, err := o.store.FindSpecificationsByProject(ctx, projectID)
	if err != nil {
		return nil, apperrors.NewDataAccessError("list specifications", err)
	}
	if specs == nil {
		specs = []models.Specification{}
	}
	return specs, nil
}

func (o *Orchestrator) GetSpecification(ctx context.Context, id string) (*models.Specification, error) {
	spec, err := o.store.FindSpecificationByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrSpecificationNotFound) {
			return nil, apperrors.NewNotFoundError("Specification", id)
		}
		return nil, apperrors.NewDataAccessError("find specification", err)
	}
	return spec, nil
}

// ProjectChanges reports which collections changed since the latest
// specification was generated.
func (o *Orchestrator) ProjectChanges(ctx context.Context, projectID string) (*models.ProjectChanges, error) {
	var since time.Time
	latest, err := o.store.LatestSpecification(ctx, projectID)
	switch {
	case err == nil:
		since = latest.CreatedAt
	case errors.Is(err, store.ErrSpecificationNotFound):
	default:
		return nil, apperrors.NewDataAccessError("find latest specification", err)
	}
	return snapshot.Changes(ctx, o.store, projectID, since)
}

// SearchSpecifications runs a full-text query over indexed specifications.
func (o *Orchestrator) SearchSpecifications(ctx context.Context, projectID, query string, limit int) ([]models.SpecificationHit, error) {
	if o.indexer == nil {
		return nil, apperrors.NewValidationError("search is not enabled")
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewValidationError("query must not be empty")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	hits, err := o.indexer.Search(ctx, projectID, query, limit)
	if err != nil {
		return nil, apperrors.NewDataAccessError("search specifications", err)
	}
	return hits, nil
}
