package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"specgen/internal/common/logger"
	"specgen/internal/common/observability"
	"specgen/internal/models"
)

const pollInterval = 500 * time.Millisecond

// jobReader is the part of the orchestrator the generate command polls.
type jobReader interface {
	GetJobStatus(ctx context.Context, jobID string) (*models.SpecificationJob, error)
}

func newGenerateCmd() *cobra.Command {
	var model string
	var output string

	cmd := &cobra.Command{
		Use:   "generate <project-id>",
		Short: "Generate a specification for a project and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.NewStructured(cfg.Logging.Level, "console")

			a, err := newApp(cmd.Context(), cfg, log, observability.NewNoop())
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			res, err := a.orchestrator.StartGeneration(cmd.Context(), args[0], model)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "job %s started\n", res.JobID)

			job, err := waitForJob(cmd.Context(), a.orchestrator, res.JobID, pollInterval)
			if err != nil {
				return err
			}
			if job.Status == models.JobFailed {
				return fmt.Errorf("job %s failed: %s", job.ID, derefOr(job.ErrorMessage, "unknown error"))
			}

			specs, err := a.orchestrator.ListSpecifications(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			spec := specificationForJob(specs, job.ID)
			if spec == nil {
				return fmt.Errorf("job %s completed but no specification was found", job.ID)
			}
			return writeSpecification(cmd.OutOrStdout(), spec, output)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "generation model identifier (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "markdown", "output format: markdown or json")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a generation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.NewStructured(cfg.Logging.Level, "console")

			a, err := newApp(cmd.Context(), cfg, log, observability.NewNoop())
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			job, err := a.orchestrator.GetJobStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		},
	}
}

// waitForJob polls until the job is terminal or ctx ends.
func waitForJob(ctx context.Context, r jobReader, jobID string, interval time.Duration) (*models.SpecificationJob, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := r.GetJobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// specificationForJob picks the specification stamped with jobID; another job
// for the same project may have finished in between.
func specificationForJob(specs []models.Specification, jobID string) *models.Specification {
	for i := range specs {
		if id, ok := specs[i].Metadata[models.MetaJobID].(string); ok && id == jobID {
			return &specs[i]
		}
	}
	return nil
}

func writeSpecification(w io.Writer, spec *models.Specification, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(spec)
	case "markdown", "":
		_, err := fmt.Fprintln(w, spec.Text)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
