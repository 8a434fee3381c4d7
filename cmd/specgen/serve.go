package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"specgen/internal/common/camunda"
	"specgen/internal/common/config"
	"specgen/internal/common/logger"
	"specgen/internal/common/observability"
	gs "specgen/internal/workers/specification/generate-specification"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatcher, stale-job reconciler, Zeebe trigger worker and health server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting specgen...", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown(context.Background())

	a, err := newApp(ctx, cfg, log, obs)
	if err != nil {
		return err
	}

	reconcileCtx, stopReconciler := context.WithCancel(ctx)
	defer stopReconciler()
	go a.reconciler.Run(reconcileCtx)

	var zeebe *camunda.Client
	var jobWorker *camunda.Worker
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(ctx, func() error {
			var err error
			zeebe, err = camunda.NewClient(ctx, cfg.Camunda.BrokerAddress)
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			a.shutdown(context.Background())
			return err
		}
		log.Info("Zeebe client connected successfully", nil)

		timeout := config.GetDuration(cfg.Camunda.Timeout)
		handler := gs.NewHandler(gs.LoadConfig(timeout), a.orchestrator, log)
		jobWorker = camunda.StartWorker(zeebe.Zeebe(), camunda.WorkerConfig{
			TaskType:      gs.TaskType,
			MaxJobsActive: cfg.Camunda.MaxJobsActive,
			Timeout:       timeout,
		}, handler, log)
	}

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           newHealthMux(a, zeebe),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err})
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, stopping...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if jobWorker != nil {
		jobWorker.Stop()
	}
	stopReconciler()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping health server", map[string]interface{}{"error": err})
	}
	a.shutdown(shutdownCtx)
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			log.Error("Error closing Zeebe client", map[string]interface{}{"error": err})
		}
	}

	log.Info("specgen stopped gracefully", nil)
	return nil
}

// readinessChecker is satisfied by *app.
type readinessChecker interface {
	ready(ctx context.Context) error
}

func newHealthMux(a readinessChecker, zeebe *camunda.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		err := a.ready(ctx)
		if err == nil && zeebe != nil {
			err = zeebe.HealthCheck(ctx)
		}
		if err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", err)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string, err error) {
	body := map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if err != nil {
		body["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
