// Package generatespecification is the Zeebe job worker that starts a
// specification generation from a BPMN service task.
package generatespecification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "specgen/internal/common/errors"
	"specgen/internal/common/logger"
	"specgen/internal/common/metrics"
	"specgen/internal/common/validation"
	"specgen/internal/orchestrator"
)

const (
	TaskType = "generate-specification"
)

var schema = validation.MustCompile(TaskType, inputSchema)

// Starter schedules a generation and returns without waiting for it.
type Starter interface {
	StartGeneration(ctx context.Context, projectID, model string) (*orchestrator.StartResult, error)
}

type Handler struct {
	config       *Config
	starter      Starter
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, starter Starter, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		starter:      starter,
		errorHandler: apperrors.NewErrorHandler(l),
		logger:       l,
	}
}

// Handle completes the Zeebe job as soon as the generation is scheduled; the
// process reads specificationJobId and polls or waits for the SNS event.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func parseInput(variables string) (*Input, error) {
	result, err := schema.ValidateBytes([]byte(variables))
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("parse input: %v", err))
	}
	if !result.Valid {
		return nil, apperrors.NewValidationError(result.Summary())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.starter.StartGeneration(ctx, input.ProjectID, input.Model)
	if err != nil {
		return nil, err
	}

	h.logger.Info("generation started", map[string]interface{}{
		"projectId": input.ProjectID,
		"model":     input.Model,
		"jobId":     res.JobID,
	})

	return &Output{
		SpecificationJobID: res.JobID,
		JobStatus:          res.Status,
		ProjectID:          input.ProjectID,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
