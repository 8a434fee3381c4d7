package models

import "time"

// JobEvent is published when a job reaches a terminal state.
type JobEvent struct {
	JobID           string    `json:"jobId"`
	ProjectID       string    `json:"projectId"`
	Model           string    `json:"model"`
	Status          JobStatus `json:"status"`
	SpecificationID string    `json:"specificationId,omitempty"`
	Version         int       `json:"version,omitempty"`
	ErrorCode       string    `json:"errorCode,omitempty"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}

// SpecificationHit is one full-text search match.
type SpecificationHit struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Model     string    `json:"model"`
	Version   int       `json:"version"`
	Score     float64   `json:"score"`
	Snippets  []string  `json:"snippets,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
