package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const inflightKeyPrefix = "specgen:inflight:"

// Guard admits at most one in-flight job per project.
type Guard interface {
	// Acquire claims projectID for jobID. When already held it returns the
	// holder's job id and false.
	Acquire(ctx context.Context, projectID, jobID string) (holder string, acquired bool, err error)
	// Release frees projectID only if jobID still holds it.
	Release(ctx context.Context, projectID, jobID string) error
}

// RedisGuard stores the holder job id under specgen:inflight:<projectID>. The
// TTL bounds how long a crashed process can keep a project locked.
type RedisGuard struct {
	client redis.Cmdable
	ttl    time.Duration
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisGuard(client redis.Cmdable, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func inflightKey(projectID string) string {
	return inflightKeyPrefix + projectID
}

func (g *RedisGuard) Acquire(ctx context.Context, projectID, jobID string) (string, bool, error) {
	key := inflightKey(projectID)

	ok, err := g.client.SetNX(ctx, key, jobID, g.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if ok {
		return jobID, true, nil
	}

	holder, err := g.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// released between SETNX and GET; report busy without a holder
			return "", false, nil
		}
		return "", false, fmt.Errorf("read holder of %s: %w", key, err)
	}
	return holder, false, nil
}

func (g *RedisGuard) Release(ctx context.Context, projectID, jobID string) error {
	key := inflightKey(projectID)
	if err := releaseScript.Run(ctx, g.client, []string{key}, jobID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
