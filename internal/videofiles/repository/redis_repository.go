package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles"
	"github.com/go-redis/redis/v8"
)

const (
	jobStatePrefix = "job:"
	lockPrefix     = "lock:"
	jobStateTTL    = 24 * time.Hour
)

// releaseLockScript deletes the lock only if it still belongs to the caller.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendLockScript resets the lock TTL only if it still belongs to the caller.
var extendLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type videoRedisRepo struct {
	redisClient *redis.Client
}

func NewVideoRedisRepo(redisClient *redis.Client) videofiles.RedisRepository {
	return &videoRedisRepo{
		redisClient: redisClient,
	}
}

func (v *videoRedisRepo) EnqueueJob(ctx context.Context, key string, job *models.QueuedJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := v.redisClient.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// DequeueJob blocks up to timeout for the oldest job. It returns nil, nil
// when the queue stayed empty.
func (v *videoRedisRepo) DequeueJob(ctx context.Context, key string, timeout time.Duration) (*models.QueuedJob, error) {
	res, err := v.redisClient.BRPop(ctx, timeout, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	job := &models.QueuedJob{}
	if err = json.Unmarshal([]byte(res[1]), job); err != nil {
		return nil, fmt.Errorf("error unmarshalling job: %w", err)
	}
	return job, nil
}

func (v *videoRedisRepo) QueueLength(ctx context.Context, key string) (int64, error) {
	n, err := v.redisClient.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return n, nil
}

func (v *videoRedisRepo) SetJobState(ctx context.Context, state *models.JobState) error {
	stateKey := jobStatePrefix + state.JobID
	pipe := v.redisClient.TxPipeline()
	pipe.HSet(ctx, stateKey, map[string]interface{}{
		"job_id":     state.JobID,
		"status":     string(state.Status),
		"video_id":   state.VideoID,
		"name":       state.Name,
		"message":    state.Message,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
	pipe.Expire(ctx, stateKey, jobStateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update job state: %w", err)
	}
	return nil
}

func (v *videoRedisRepo) GetJobState(ctx context.Context, jobID string) (*models.JobState, error) {
	cmd := v.redisClient.HGetAll(ctx, jobStatePrefix+jobID)
	fields, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get job state: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("job %s: %w", jobID, videofiles.ErrNotFound)
	}
	state := &models.JobState{}
	if err := cmd.Scan(state); err != nil {
		return nil, fmt.Errorf("failed to decode job state: %w", err)
	}
	return state, nil
}

func (v *videoRedisRepo) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	locked, err := v.redisClient.SetNX(ctx, lockPrefix+key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return locked, nil
}

// ExtendLock pushes the lock expiry to ttl from now. It reports false when
// the lock expired or is held by someone else.
func (v *videoRedisRepo) ExtendLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	n, err := extendLockScript.Run(ctx, v.redisClient, []string{lockPrefix + key}, owner, ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to extend lock %s: %w", key, err)
	}
	return n == 1, nil
}

func (v *videoRedisRepo) ReleaseLock(ctx context.Context, key, owner string) error {
	if err := releaseLockScript.Run(ctx, v.redisClient, []string{lockPrefix + key}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
