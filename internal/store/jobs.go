package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"specgen/internal/models"
)

// allowedFrom lists the states a job may leave to enter each target state.
// Terminal states never appear as a source.
var allowedFrom = map[models.JobStatus][]string{
	models.JobProcessing: {string(models.JobPending)},
	models.JobCompleted:  {string(models.JobProcessing)},
	models.JobFailed:     {string(models.JobPending), string(models.JobProcessing)},
}

// InsertJob inserts a new pending job under a caller-chosen id.
func (s *Store) InsertJob(ctx context.Context, jobID, projectID, model string) (*models.SpecificationJob, error) {
	job := &models.SpecificationJob{
		ID:        jobID,
		ProjectID: projectID,
		Model:     model,
		Status:    models.JobPending,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO specification_jobs (id, project_id, status, claude_model)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		job.ID, job.ProjectID, string(job.Status), job.Model,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: create job: %v", ErrQueryFailed, err)
	}

	return job, nil
}

// UpdateJobStatus moves a job to status if its current state allows it.
// Entering a terminal state stamps completed_at. A rejected transition returns
// ErrInvalidTransition and leaves the row untouched.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, errorMessage *string) error {
	from, ok := allowedFrom[status]
	if !ok {
		return fmt.Errorf("%w: cannot enter %s", ErrInvalidTransition, status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE specification_jobs
		SET status = $2,
		    error_message = $3,
		    updated_at = NOW(),
		    completed_at = CASE WHEN $4::boolean THEN NOW() ELSE completed_at END
		WHERE id = $1 AND status = ANY($5)`,
		jobID, string(status), errorMessage, status.IsTerminal(), pq.Array(from),
	)
	if err != nil {
		return fmt.Errorf("%w: update job %s: %v", ErrQueryFailed, jobID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update job %s: %v", ErrQueryFailed, jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: job %s cannot enter %s", ErrInvalidTransition, jobID, status)
	}
	return nil
}

// MarkProcessing moves a pending job to processing.
func (s *Store) MarkProcessing(ctx context.Context, jobID string) error {
	return s.UpdateJobStatus(ctx, jobID, models.JobProcessing, nil)
}

// CompleteJob moves a processing job to completed.
func (s *Store) CompleteJob(ctx context.Context, jobID string) error {
	return s.UpdateJobStatus(ctx, jobID, models.JobCompleted, nil)
}

// FailJob moves a non-terminal job to failed with message.
func (s *Store) FailJob(ctx context.Context, jobID, message string) error {
	return s.UpdateJobStatus(ctx, jobID, models.JobFailed, &message)
}

// FindJobByID returns ErrJobNotFound when no row matches or jobID is not a UUID.
func (s *Store) FindJobByID(ctx context.Context, jobID string) (*models.SpecificationJob, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	var job models.SpecificationJob
	var status string
	var errorMessage sql.NullString
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, claude_model, status, error_message, created_at, updated_at, completed_at
		FROM specification_jobs
		WHERE id = $1`, jobID,
	).Scan(&job.ID, &job.ProjectID, &job.Model, &status, &errorMessage, &job.CreatedAt, &job.UpdatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("%w: find job %s: %v", ErrQueryFailed, jobID, err)
	}

	job.Status = models.JobStatus(status)
	job.ErrorMessage = nullableString(errorMessage)
	job.CompletedAt = nullableTime(completedAt)
	return &job, nil
}

// TouchJobs bumps updated_at on the non-terminal jobs among ids so sweeps in
// any process see them as alive.
func (s *Store) TouchJobs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE specification_jobs
		SET updated_at = NOW()
		WHERE id = ANY($1::uuid[]) AND status IN ('pending', 'processing')`,
		pq.Array(ids),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: touch jobs: %v", ErrQueryFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: touch jobs: %v", ErrQueryFailed, err)
	}
	return n, nil
}

// FailStaleJobs fails every non-terminal job not updated since olderThan,
// except the ids in live, and returns the jobs it moved.
func (s *Store) FailStaleJobs(ctx context.Context, olderThan time.Time, message string, live []string) ([]models.SpecificationJob, error) {
	if live == nil {
		live = []string{}
	}
	rows, err := s.db.QueryContext(ctx, `
		UPDATE specification_jobs
		SET status = 'failed',
		    error_message = $1,
		    updated_at = NOW(),
		    completed_at = NOW()
		WHERE status IN ('pending', 'processing')
		  AND updated_at < $2
		  AND NOT (id = ANY($3::uuid[]))
		RETURNING id, project_id, claude_model, created_at, updated_at, completed_at`,
		message, olderThan, pq.Array(live),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: fail stale jobs: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var jobs []models.SpecificationJob
	for rows.Next() {
		job := models.SpecificationJob{Status: models.JobFailed}
		var completedAt time.Time
		if err := rows.Scan(&job.ID, &job.ProjectID, &job.Model, &job.CreatedAt, &job.UpdatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("%w: scan stale job: %v", ErrQueryFailed, err)
		}
		msg := message
		job.ErrorMessage = &msg
		job.CompletedAt = &completedAt
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: fail stale jobs: %v", ErrQueryFailed, err)
	}

	if len(jobs) > 0 {
		s.logger.Warn("failed stale jobs", map[string]interface{}{
			"count":     len(jobs),
			"olderThan": olderThan,
		})
	}
	return jobs, nil
}
