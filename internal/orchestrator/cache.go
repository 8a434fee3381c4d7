package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"specgen/internal/common/logger"
	"specgen/internal/models"
)

const jobCacheKeyPrefix = "specgen:job:"

// StatusCache holds terminal jobs only; those rows never change again.
type StatusCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewStatusCache(client redis.Cmdable, ttl time.Duration, log logger.Logger) *StatusCache {
	return &StatusCache{
		client: client,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "status_cache"}),
	}
}

// Get returns the cached job, if any. Cache errors are logged and read as a miss.
func (c *StatusCache) Get(ctx context.Context, jobID string) (*models.SpecificationJob, bool) {
	data, err := c.client.Get(ctx, jobCacheKeyPrefix+jobID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", map[string]interface{}{"jobId": jobID, "error": err})
		}
		return nil, false
	}

	var job models.SpecificationJob
	if err := json.Unmarshal(data, &job); err != nil {
		c.logger.Warn("cache entry corrupt", map[string]interface{}{"jobId": jobID, "error": err})
		return nil, false
	}
	return &job, true
}

// Put stores job if it is terminal.
func (c *StatusCache) Put(ctx context.Context, job *models.SpecificationJob) {
	if !job.Status.IsTerminal() {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, jobCacheKeyPrefix+job.ID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"jobId": job.ID, "error": err})
	}
}
