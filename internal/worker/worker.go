package worker

import (
	"context"
	"sync"
	"time"

	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles"
	"github.com/amankumarsingh77/hls-transcoder/pkg/logger"
	"github.com/amankumarsingh77/hls-transcoder/pkg/metrics"
	"github.com/amankumarsingh77/hls-transcoder/pkg/utils"
)

// CPUCheck reports whether the host has headroom for another encode.
type CPUCheck func(maxCPUUsage float64) (bool, float64)

// Worker is a pool of goroutines that pull queued transcode jobs from Redis
// and run them through the video use case.
type Worker struct {
	logger    logger.Logger
	redisRepo videofiles.RedisRepository
	videoUC   videofiles.UseCase
	cfg       *config.Config
	cpuCheck  CPUCheck
	wg        sync.WaitGroup
}

func NewWorker(cfg *config.Config, logger logger.Logger, redisRepo videofiles.RedisRepository, videoUC videofiles.UseCase) *Worker {
	return &Worker{
		logger:    logger,
		redisRepo: redisRepo,
		videoUC:   videoUC,
		cfg:       cfg,
		cpuCheck:  utils.CheckCPUUsage,
	}
}

// Start launches Worker.WorkerCount loops. They stop when ctx is cancelled;
// Wait blocks until they have all returned.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Infof("Starting %d workers on queue %s", w.cfg.Worker.WorkerCount, w.cfg.Redis.JobQueueKey)
	for i := range w.cfg.Worker.WorkerCount {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, id int) {
	defer w.wg.Done()
	for {
		if ctx.Err() != nil {
			w.logger.Debugf("worker %d stopped", id)
			return
		}
		w.sampleQueue(ctx)
		if ok, usage := w.cpuCheck(w.cfg.Worker.MaxCPUUsage); !ok {
			w.logger.Infof("worker %d: CPU usage %.2f%% too high, waiting", id, usage)
			if !sleep(ctx, w.cfg.Worker.CPUBackoff) {
				return
			}
			continue
		}
		job, err := w.redisRepo.DequeueJob(ctx, w.cfg.Redis.JobQueueKey, w.cfg.Worker.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Errorf("worker %d: dequeue: %v", id, err)
			if !sleep(ctx, w.cfg.Worker.CPUBackoff) {
				return
			}
			continue
		}
		if job == nil {
			continue
		}
		w.handle(ctx, job)
	}
}

func (w *Worker) sampleQueue(ctx context.Context) {
	n, err := w.redisRepo.QueueLength(ctx, w.cfg.Redis.JobQueueKey)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warnf("queue length: %v", err)
		}
		return
	}
	metrics.QueueDepth.Set(float64(n))
}

// sleep waits for d or ctx, reporting false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
