package worker

import (
	"context"
	"errors"
	"time"

	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/amankumarsingh77/hls-transcoder/internal/transcode"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles"
)

func (w *Worker) handle(ctx context.Context, job *models.QueuedJob) {
	start := time.Now()
	w.logger.Infof("Processing job %s (%s)", job.JobID, job.Name)

	result, err := w.videoUC.ProcessJob(ctx, job)
	switch {
	case err == nil:
		w.logger.Infof("Job %s completed in %s, video %s", job.JobID, time.Since(start), result.VideoID)
	case errors.Is(err, videofiles.ErrBusy):
		w.logger.Infof("Job %s: output %s is busy, re-queueing", job.JobID, job.Name)
		sleep(ctx, w.cfg.Worker.RequeueDelay)
		w.requeue(job)
	case ctx.Err() != nil && transcode.IsCancelled(err):
		w.logger.Warnf("Job %s interrupted by shutdown, re-queueing", job.JobID)
		w.requeue(job)
	default:
		w.logger.Errorf("Job %s failed at %s: %s", job.JobID, transcode.StageOf(err), transcode.Diagnostic(err))
	}
}

// requeue pushes job back to the queue. It runs detached from the worker
// context so a job survives shutdown.
func (w *Worker) requeue(job *models.QueuedJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job.Attempts++
	state := &models.JobState{
		JobID:     job.JobID,
		Status:    models.QueueStatusQueued,
		Name:      job.Name,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.redisRepo.SetJobState(ctx, state); err != nil {
		w.logger.Errorf("Job %s: reset state: %v", job.JobID, err)
	}
	if err := w.redisRepo.EnqueueJob(ctx, w.cfg.Redis.JobQueueKey, job); err != nil {
		w.logger.Errorf("Job %s: re-queue failed: %v", job.JobID, err)
	}
}
