package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"specgen/internal/common/logger"
)

// JobHandler handles one activated job and reports the outcome itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// WorkerConfig sizes one job worker.
type WorkerConfig struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
}

// Worker is an open Zeebe job worker for a single task type.
type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// StartWorker opens a job worker that feeds activated jobs to handler.
func StartWorker(client zbc.Client, cfg WorkerConfig, handler JobHandler, log logger.Logger) *Worker {
	jobWorker := client.NewJobWorker().
		JobType(cfg.TaskType).
		Handler(handler.Handle).
		MaxJobsActive(cfg.MaxJobsActive).
		Timeout(cfg.Timeout).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      cfg.TaskType,
		"maxJobsActive": cfg.MaxJobsActive,
		"timeout_ms":    cfg.Timeout.Milliseconds(),
	})

	return &Worker{
		worker:   jobWorker,
		logger:   log,
		taskType: cfg.TaskType,
	}
}

// Stop closes the worker and waits for in-flight handlers.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
}
