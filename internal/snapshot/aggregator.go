// Package snapshot assembles a read-only view of a project's domain and
// requirement graph from the collaborator store.
package snapshot

import (
	"context"
	"time"

	apperrors "specgen/internal/common/errors"
	"specgen/internal/common/logger"
	"specgen/internal/models"
)

// Source is the set of collaborator fetches the aggregator fans out to.
// Implementations must return rows oldest first (steps by step order).
type Source interface {
	FindDomainsByProject(ctx context.Context, projectID string) ([]models.Domain, error)
	FindAttributesByDomain(ctx context.Context, domainID string) ([]models.DomainAttribute, error)
	FindRequirementsByProject(ctx context.Context, projectID string) ([]models.Requirement, error)
	FindStepsByRequirement(ctx context.Context, requirementID string) ([]models.RequirementStep, error)
	FindTestCasesByRequirement(ctx context.Context, requirementID string) ([]models.TestCase, error)
}

// ChangeSource reports the newest update time per collection.
type ChangeSource interface {
	LatestChanges(ctx context.Context, projectID string) (*models.ChangeSet, error)
}

type Aggregator struct {
	source Source
	logger logger.Logger
}

func NewAggregator(source Source, log logger.Logger) *Aggregator {
	return &Aggregator{
		source: source,
		logger: log.With(map[string]interface{}{"component": "snapshot"}),
	}
}

// Aggregate fetches domains, their attributes, requirements, their steps and
// their test cases in sequence. No transaction spans the fetches. Any failure
// aborts with a DATA_ACCESS_FAILED error.
func (a *Aggregator) Aggregate(ctx context.Context, projectID string) (*models.ProjectSnapshot, error) {
	snap := &models.ProjectSnapshot{}

	domains, err := a.source.FindDomainsByProject(ctx, projectID)
	if err != nil {
		return nil, apperrors.NewDataAccessError("fetch domains", err)
	}
	snap.Domains = domains

	for _, d := range domains {
		attrs, err := a.source.FindAttributesByDomain(ctx, d.ID)
		if err != nil {
			return nil, apperrors.NewDataAccessError("fetch attributes of domain "+d.ID, err)
		}
		snap.Attributes = append(snap.Attributes, attrs...)
	}

	reqs, err := a.source.FindRequirementsByProject(ctx, projectID)
	if err != nil {
		return nil, apperrors.NewDataAccessError("fetch requirements", err)
	}
	snap.Requirements = reqs

	for _, r := range reqs {
		steps, err := a.source.FindStepsByRequirement(ctx, r.ID)
		if err != nil {
			return nil, apperrors.NewDataAccessError("fetch steps of requirement "+r.ID, err)
		}
		snap.Steps = append(snap.Steps, steps...)

		cases, err := a.source.FindTestCasesByRequirement(ctx, r.ID)
		if err != nil {
			return nil, apperrors.NewDataAccessError("fetch test cases of requirement "+r.ID, err)
		}
		snap.TestCases = append(snap.TestCases, cases...)
	}

	a.logger.Debug("snapshot aggregated", map[string]interface{}{
		"projectId":    projectID,
		"domains":      len(snap.Domains),
		"attributes":   len(snap.Attributes),
		"requirements": len(snap.Requirements),
		"steps":        len(snap.Steps),
		"testCases":    len(snap.TestCases),
	})

	return snap, nil
}

// Changes compares each collection's newest update against since, usually the
// latest specification's creation time. A zero since means no specification
// exists yet, so any content counts as a change.
func Changes(ctx context.Context, src ChangeSource, projectID string, since time.Time) (*models.ProjectChanges, error) {
	set, err := src.LatestChanges(ctx, projectID)
	if err != nil {
		return nil, apperrors.NewDataAccessError("fetch latest changes", err)
	}

	result := &models.ProjectChanges{ChangedItems: []string{}}
	check := func(label string, at *time.Time) {
		if at == nil {
			return
		}
		if result.LatestChange == nil || at.After(*result.LatestChange) {
			t := *at
			result.LatestChange = &t
		}
		if at.After(since) {
			result.ChangedItems = append(result.ChangedItems, label)
		}
	}
	check("Domains", set.Domains)
	check("Requirements", set.Requirements)
	check("Test Cases", set.TestCases)

	result.HasChanges = len(result.ChangedItems) > 0
	return result, nil
}
