package store

import (
	"context"
	"fmt"
)

// schema creates the tables specgen owns. Collaborator tables (domains,
// requirements, ...) are migrated by the project service.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS specification_jobs (
		id            UUID PRIMARY KEY,
		project_id    UUID NOT NULL,
		status        TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
		claude_model  TEXT NOT NULL,
		error_message TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_specification_jobs_active
		ON specification_jobs (updated_at)
		WHERE status IN ('pending', 'processing')`,
	`CREATE TABLE IF NOT EXISTS specifications (
		id                 UUID PRIMARY KEY,
		project_id         UUID NOT NULL,
		claude_model       TEXT NOT NULL,
		specification_text TEXT NOT NULL,
		metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
		version            INTEGER NOT NULL CHECK (version > 0),
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT specifications_project_version_key UNIQUE (project_id, version)
	)`,
}

// EnsureSchema applies the idempotent DDL above.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: schema statement %d: %v", ErrQueryFailed, i, err)
		}
	}
	s.logger.Info("schema ensured", map[string]interface{}{"statements": len(schema)})
	return nil
}
