package models

import "time"

// JobStatus is the lifecycle state of a SpecificationJob.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

type SpecificationJob struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"projectId"`
	Model        string     `json:"model"`
	Status       JobStatus  `json:"status"`
	ErrorMessage *string    `json:"errorMessage"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt"`
}

// Specification is a generated, versioned document. Versions are gapless per project.
type Specification struct {
	ID        string                 `json:"id"`
	ProjectID string                 `json:"projectId"`
	Model     string                 `json:"model"`
	Text      string                 `json:"text"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Version   int                    `json:"version"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Metadata keys stamped on every generated specification.
const (
	MetaJobID             = "job_id"
	MetaModel             = "model"
	MetaDomainsCount      = "domains_count"
	MetaRequirementsCount = "requirements_count"
	MetaTokensUsed        = "tokens_used"
)
