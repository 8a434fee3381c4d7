package generatespecification

import "specgen/internal/models"

type Input struct {
	ProjectID string `json:"projectId"`
	Model     string `json:"model"`
}

type Output struct {
	SpecificationJobID string           `json:"specificationJobId"`
	JobStatus          models.JobStatus `json:"specificationJobStatus"`
	ProjectID          string           `json:"projectId"`
}

// inputSchema leaves other process variables alone.
const inputSchema = `{
	"type": "object",
	"required": ["projectId", "model"],
	"properties": {
		"projectId": {"type": "string", "minLength": 1},
		"model": {"type": "string", "minLength": 1}
	}
}`
