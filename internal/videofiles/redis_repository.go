package videofiles

import (
	"context"
	"time"

	"github.com/amankumarsingh77/hls-transcoder/internal/models"
)

// RedisRepository backs async processing: the job queue, pollable job
// state and the per-output lock shared by every worker process.
type RedisRepository interface {
	EnqueueJob(ctx context.Context, key string, job *models.QueuedJob) error
	DequeueJob(ctx context.Context, key string, timeout time.Duration) (*models.QueuedJob, error)
	QueueLength(ctx context.Context, key string) (int64, error)

	SetJobState(ctx context.Context, state *models.JobState) error
	GetJobState(ctx context.Context, jobID string) (*models.JobState, error)

	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ExtendLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}
