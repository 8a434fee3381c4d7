package main

import (
	"context"
	"fmt"
	"time"

	"specgen/internal/common/aws"
	"specgen/internal/common/config"
	"specgen/internal/common/database"
	commonhttp "specgen/internal/common/http"
	"specgen/internal/common/logger"
	"specgen/internal/common/observability"
	"specgen/internal/generation"
	"specgen/internal/notify"
	"specgen/internal/orchestrator"
	"specgen/internal/search"
	"specgen/internal/snapshot"
	"specgen/internal/store"
)

// app holds every long-lived dependency of the pipeline.
type app struct {
	cfg          *config.Config
	log          logger.Logger
	obs          *observability.Observability
	pg           *database.PostgresClient
	redis        *database.RedisClient
	es           *database.ElasticsearchClient
	store        *store.Store
	guard        orchestrator.Guard
	notifier     orchestrator.Notifier
	orchestrator *orchestrator.Orchestrator
	reconciler   *orchestrator.Reconciler
}

// retryWithBackoff attempts operation up to maxRetries times, doubling the delay.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", operationName, ctx.Err())
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger, obs *observability.Observability) (*app, error) {
	a := &app{cfg: cfg, log: log, obs: obs}

	err := retryWithBackoff(ctx, func() error {
		var err error
		a.pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return a.pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected successfully", nil)

	a.store = store.New(a.pg.DB, log)
	if err := a.store.EnsureSchema(ctx); err != nil {
		a.close()
		return nil, err
	}

	err = retryWithBackoff(ctx, func() error {
		var err error
		a.redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return a.redis.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		a.close()
		return nil, err
	}
	log.Info("Redis connected successfully", nil)

	staleAfter := config.GetDuration(cfg.Orchestrator.StaleAfter)
	opts := []orchestrator.Option{
		orchestrator.WithObservability(obs),
		orchestrator.WithStatusCache(orchestrator.NewStatusCache(
			a.redis.Client, config.GetDuration(cfg.Orchestrator.StatusCacheTTL), log,
		)),
	}

	if cfg.Orchestrator.SingleFlight {
		a.guard = orchestrator.NewRedisGuard(a.redis.Client, staleAfter)
		opts = append(opts, orchestrator.WithGuard(a.guard))
	}

	if cfg.Notifications.SNS.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			a.close()
			return nil, err
		}
		a.notifier = notify.NewSNSNotifier(client, cfg.Notifications.SNS.TopicARN, log)
		opts = append(opts, orchestrator.WithNotifier(a.notifier))
	}

	if cfg.Search.Enabled {
		err = retryWithBackoff(ctx, func() error {
			var err error
			a.es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return a.es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			a.close()
			return nil, err
		}
		indexer := search.NewIndexer(a.es.Client, cfg.Search.Index, log)
		if err := indexer.EnsureIndex(ctx); err != nil {
			log.Warn("failed to ensure search index", map[string]interface{}{"error": err})
		}
		opts = append(opts, orchestrator.WithIndexer(indexer))
		log.Info("Elasticsearch connected successfully", nil)
	}

	generator := generation.NewClient(generation.Config{
		BaseURL:          cfg.Generation.BaseURL,
		APIKey:           cfg.Generation.APIKey,
		AnthropicVersion: cfg.Generation.AnthropicVersion,
		MaxTokens:        cfg.Generation.MaxTokens,
		Timeout:          config.GetDuration(cfg.Generation.Timeout),
	}, commonhttp.NewClient(config.GetDuration(cfg.Generation.Timeout)), log)

	a.orchestrator = orchestrator.New(
		orchestrator.Config{
			Workers:   cfg.Orchestrator.Workers,
			QueueSize: cfg.Orchestrator.QueueSize,
		},
		a.store,
		snapshot.NewAggregator(a.store, log),
		generator,
		log,
		opts...,
	)

	a.reconciler = orchestrator.NewReconciler(
		a.store, a.guard, a.notifier,
		staleAfter, config.GetDuration(cfg.Orchestrator.ReconcileInterval),
		log, orchestrator.WithLiveJobs(a.orchestrator),
	)

	return a, nil
}

// ready pings the stores a run depends on.
func (a *app) ready(ctx context.Context) error {
	if err := a.pg.Ping(ctx); err != nil {
		return err
	}
	return a.redis.Ping(ctx)
}

// shutdown drains in-flight runs, then closes connections.
func (a *app) shutdown(ctx context.Context) {
	if a.orchestrator != nil {
		if err := a.orchestrator.Shutdown(ctx); err != nil {
			a.log.Warn("orchestrator did not drain before the deadline", map[string]interface{}{"error": err})
		}
	}
	a.close()
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("error closing Redis", map[string]interface{}{"error": err})
		}
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.log.Error("error closing PostgreSQL", map[string]interface{}{"error": err})
		}
	}
}
