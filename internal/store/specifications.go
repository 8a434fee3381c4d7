package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"specgen/internal/common/database"
	"specgen/internal/models"
)

const specificationColumns = `id, project_id, claude_model, specification_text, metadata, version, created_at`

// CreateSpecification inserts a specification with the project's next version.
// A transaction-scoped advisory lock serializes writers per project and the
// UNIQUE(project_id, version) constraint backs it up.
func (s *Store) CreateSpecification(ctx context.Context, projectID, model, text string, metadata map[string]interface{}) (*models.Specification, error) {
	metaJSON := []byte("{}")
	if metadata != nil {
		var err error
		if metaJSON, err = json.Marshal(metadata); err != nil {
			return nil, fmt.Errorf("%w: marshal metadata: %v", ErrQueryFailed, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrQueryFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, projectID); err != nil {
		return nil, fmt.Errorf("%w: lock project %s: %v", ErrQueryFailed, projectID, err)
	}

	spec := &models.Specification{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Model:     model,
		Text:      text,
		Metadata:  metadata,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO specifications (id, project_id, claude_model, specification_text, metadata, version)
		SELECT $1::uuid, $2::uuid, $3, $4, $5::jsonb, COALESCE(MAX(version), 0) + 1
		FROM specifications
		WHERE project_id = $2::uuid
		RETURNING version, created_at`,
		spec.ID, projectID, model, text, string(metaJSON),
	).Scan(&spec.Version, &spec.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: project %s", ErrVersionConflict, projectID)
		}
		return nil, fmt.Errorf("%w: insert specification: %v", ErrQueryFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrQueryFailed, err)
	}

	return spec, nil
}

// FindSpecificationsByProject returns a project's specifications, newest version first.
func (s *Store) FindSpecificationsByProject(ctx context.Context, projectID string) ([]models.Specification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+specificationColumns+`
		FROM specifications
		WHERE project_id = $1
		ORDER BY version DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: specifications: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	specs := make([]models.Specification, 0)
	for rows.Next() {
		spec, err := scanSpecification(rows)
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: specifications: %v", ErrQueryFailed, err)
	}
	return specs, nil
}

// FindSpecificationByID returns ErrSpecificationNotFound when no row matches or
// id is not a UUID.
func (s *Store) FindSpecificationByID(ctx context.Context, id string) (*models.Specification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSpecificationNotFound, id)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+specificationColumns+`
		FROM specifications
		WHERE id = $1`, id)

	spec, err := scanSpecification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSpecificationNotFound, id)
		}
		return nil, err
	}
	return spec, nil
}

// LatestSpecification returns the highest version for a project, or
// ErrSpecificationNotFound when the project has none.
func (s *Store) LatestSpecification(ctx context.Context, projectID string) (*models.Specification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+specificationColumns+`
		FROM specifications
		WHERE project_id = $1
		ORDER BY version DESC
		LIMIT 1`, projectID)

	spec, err := scanSpecification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: project %s", ErrSpecificationNotFound, projectID)
		}
		return nil, err
	}
	return spec, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSpecification(row scanner) (*models.Specification, error) {
	var spec models.Specification
	var meta []byte
	if err := row.Scan(&spec.ID, &spec.ProjectID, &spec.Model, &spec.Text, &meta, &spec.Version, &spec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scan specification: %v", ErrQueryFailed, err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &spec.Metadata); err != nil {
			return nil, fmt.Errorf("%w: decode metadata for %s: %v", ErrQueryFailed, spec.ID, err)
		}
	}
	return &spec, nil
}
