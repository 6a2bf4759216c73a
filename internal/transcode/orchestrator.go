package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/amankumarsingh77/hls-transcoder/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const outputDirPerm = 0o755

// State is a step of the run state machine:
// Initialized -> RunningRenditions -> BuildingManifest -> Succeeded, or
// Initialized -> RunningRenditions -> Failed.
type State = models.RunState

const (
	StateInitialized       = models.RunStateInitialized
	StateRunningRenditions = models.RunStateRunningRenditions
	StateBuildingManifest  = models.RunStateBuildingManifest
	StateSucceeded         = models.RunStateSucceeded
	StateFailed            = models.RunStateFailed
)

// Orchestrator drives every profile of a Plan through an EncodeInvoker and
// publishes the master manifest once all of them succeed. The first failed
// rendition aborts the run; nothing already written is rolled back.
//
// Callers must not run two Orchestrator.Run calls against the same output
// directory at once.
type Orchestrator struct {
	plan        *Plan
	invoker     EncodeInvoker
	logger      logger.Logger
	concurrency int
}

type Option func(*Orchestrator)

// WithConcurrency encodes up to n renditions at a time. Manifest order stays
// plan order regardless.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func NewOrchestrator(plan *Plan, invoker EncodeInvoker, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		plan:        plan,
		invoker:     invoker,
		logger:      log,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run transcodes sourcePath into outputDirectory. The returned run is never
// nil; on failure err is a *ConfigurationError, *EncodeError or
// *ManifestWriteError.
func (o *Orchestrator) Run(ctx context.Context, sourcePath, outputDirectory string) (*models.TranscodeRun, error) {
	run := o.newRun(sourcePath, outputDirectory)
	o.transition(run, StateInitialized)

	if err := os.MkdirAll(outputDirectory, outputDirPerm); err != nil {
		return o.fail(run, &ConfigurationError{OutputDirectory: outputDirectory, Err: err})
	}

	o.transition(run, StateRunningRenditions)
	artifacts, err := o.runRenditions(ctx, run)
	if err != nil {
		return o.fail(run, err)
	}

	o.transition(run, StateBuildingManifest)
	manifestPath, err := WriteManifest(outputDirectory, BuildManifest(artifacts))
	if err != nil {
		return o.fail(run, &ManifestWriteError{Path: ManifestPath(outputDirectory), Err: err})
	}

	run.ManifestPath = manifestPath
	run.Outcome = models.RunOutcomeSucceeded
	run.CompletedAt = time.Now()
	o.transition(run, StateSucceeded)
	o.logger.Infof("Transcoded %s into %s in %s", sourcePath, manifestPath, run.CompletedAt.Sub(run.StartedAt))
	return run, nil
}

func (o *Orchestrator) newRun(sourcePath, outputDirectory string) *models.TranscodeRun {
	profiles := o.plan.Profiles()
	jobs := make([]*models.EncodeJob, len(profiles))
	for i, p := range profiles {
		jobs[i] = &models.EncodeJob{
			SourcePath:      sourcePath,
			OutputDirectory: outputDirectory,
			Profile:         p,
			Status:          models.JobStatusPending,
		}
	}
	return &models.TranscodeRun{
		SourcePath:      sourcePath,
		OutputDirectory: outputDirectory,
		Jobs:            jobs,
		Outcome:         models.RunOutcomePending,
		StartedAt:       time.Now(),
	}
}

func (o *Orchestrator) runRenditions(ctx context.Context, run *models.TranscodeRun) ([]models.RenditionArtifact, error) {
	if o.concurrency <= 1 {
		return o.runSequential(ctx, run)
	}
	return o.runConcurrent(ctx, run)
}

func (o *Orchestrator) runSequential(ctx context.Context, run *models.TranscodeRun) ([]models.RenditionArtifact, error) {
	artifacts := make([]models.RenditionArtifact, len(run.Jobs))
	for i, job := range run.Jobs {
		if err := ctx.Err(); err != nil {
			return nil, o.cancelJob(job, err)
		}
		artifact, err := o.encode(ctx, job)
		if err != nil {
			return nil, err
		}
		artifacts[i] = artifact
	}
	return artifacts, nil
}

// runConcurrent stops scheduling new renditions after the first failure and
// cancels the ones in flight. Jobs that never started stay pending.
func (o *Orchestrator) runConcurrent(ctx context.Context, run *models.TranscodeRun) ([]models.RenditionArtifact, error) {
	artifacts := make([]models.RenditionArtifact, len(run.Jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, job := range run.Jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			artifact, err := o.encode(gctx, job)
			if err != nil {
				return err
			}
			artifacts[i] = artifact
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// Parent cancelled before any rendition failed; report the first one left unstarted.
		for _, job := range run.Jobs {
			if job.Status == models.JobStatusPending {
				return nil, o.cancelJob(job, err)
			}
		}
	}
	return artifacts, nil
}

func (o *Orchestrator) encode(ctx context.Context, job *models.EncodeJob) (models.RenditionArtifact, error) {
	job.Status = models.JobStatusRunning
	job.StartedAt = time.Now()
	o.logger.Infof("Encoding rendition %s of %s", job.Profile.Label, job.SourcePath)

	artifact, err := o.invoker.Encode(ctx, job.SourcePath, job.OutputDirectory, job.Profile)
	job.CompletedAt = time.Now()
	if err != nil {
		encErr := asEncodeError(job.Profile, err)
		job.Status = models.JobStatusFailed
		job.Diagnostic = Diagnostic(encErr)
		o.logger.Errorf("Rendition %s of %s failed: %v", job.Profile.Label, job.SourcePath, encErr)
		return models.RenditionArtifact{}, encErr
	}

	job.Status = models.JobStatusSucceeded
	o.logger.Infof("Rendition %s of %s finished in %s", job.Profile.Label, job.SourcePath, job.Duration())
	return artifact, nil
}

func (o *Orchestrator) cancelJob(job *models.EncodeJob, cause error) error {
	now := time.Now()
	job.Status = models.JobStatusFailed
	job.StartedAt, job.CompletedAt = now, now
	job.Diagnostic = cause.Error()
	return &EncodeError{Profile: job.Profile, ExitCode: -1, Cancelled: true, Err: cause}
}

func (o *Orchestrator) fail(run *models.TranscodeRun, err error) (*models.TranscodeRun, error) {
	run.Outcome = models.RunOutcomeFailed
	run.CompletedAt = time.Now()
	o.transition(run, StateFailed)
	o.logger.Errorf("Transcode of %s failed at %s stage: %v", run.SourcePath, StageOf(err), err)
	return run, err
}

func (o *Orchestrator) transition(run *models.TranscodeRun, state State) {
	run.State = state
	o.logger.Debugf("Transcode %s -> %s", run.OutputDirectory, state)
}

// asEncodeError keeps the EncodeInvoker contract even for implementations
// that return foreign errors.
func asEncodeError(profile models.RenditionProfile, err error) *EncodeError {
	var encErr *EncodeError
	if errors.As(err, &encErr) {
		return encErr
	}
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	return &EncodeError{Profile: profile, ExitCode: -1, Cancelled: cancelled, Err: fmt.Errorf("encoder: %w", err)}
}
