// Package store is the Postgres persistence for specgen: read-only finders over
// the project CRUD tables, plus the job and specification tables it owns.
package store

import (
	"database/sql"
	"errors"
	"time"

	"specgen/internal/common/logger"
)

var (
	ErrJobNotFound           = errors.New("JOB_NOT_FOUND")
	ErrSpecificationNotFound = errors.New("SPECIFICATION_NOT_FOUND")
	ErrInvalidTransition     = errors.New("INVALID_JOB_TRANSITION")
	ErrVersionConflict       = errors.New("SPECIFICATION_VERSION_CONFLICT")
	ErrQueryFailed           = errors.New("QUERY_FAILED")
)

// Store reads and writes through a single *sql.DB.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

// New builds a Store.
func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.With(map[string]interface{}{"component": "store"}),
	}
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
