package usecase

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/amankumarsingh77/hls-transcoder/internal/transcode"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles"
	"github.com/amankumarsingh77/hls-transcoder/pkg/logger"
	"github.com/amankumarsingh77/hls-transcoder/pkg/metrics"
	"github.com/amankumarsingh77/hls-transcoder/pkg/utils"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

const (
	contentTypePlaylist = "application/vnd.apple.mpegurl"
	contentTypeSegment  = "video/mp2t"
)

type videoFileUC struct {
	cfg        *config.Config
	videoRepo  videofiles.Repository
	redisRepo  videofiles.RedisRepository
	awsRepo    videofiles.AWSRepository
	transcoder videofiles.Transcoder
	locks      *utils.KeyMutex
	logger     logger.Logger
}

// NewVideoUseCase wires the gateway. redisRepo may be nil in sync mode and
// awsRepo may be nil when S3 publishing is disabled.
func NewVideoUseCase(
	cfg *config.Config,
	videoRepo videofiles.Repository,
	redisRepo videofiles.RedisRepository,
	awsRepo videofiles.AWSRepository,
	transcoder videofiles.Transcoder,
	log logger.Logger,
) videofiles.UseCase {
	return &videoFileUC{
		cfg:        cfg,
		videoRepo:  videoRepo,
		redisRepo:  redisRepo,
		awsRepo:    awsRepo,
		transcoder: transcoder,
		locks:      utils.NewKeyMutex(),
		logger:     log,
	}
}

func (v *videoFileUC) UploadVideo(ctx context.Context, input *models.UploadInput) (*models.ProcessResult, error) {
	if input == nil || input.File == nil || input.FileName == "" {
		return nil, videofiles.ErrEmptyUpload
	}
	if err := utils.ValidateStruct(ctx, input); err != nil {
		v.logger.Errorf("UploadVideo - ValidateStruct error: %v", err)
		return nil, err
	}

	filename := utils.SecureFilename(input.FileName)
	name := utils.BaseName(filename)
	if name == "" || !utils.AllowedExtension(filename, v.cfg.Storage.AllowedExtensions) {
		v.logger.Warnf("UploadVideo - rejected file %q", input.FileName)
		return nil, videofiles.ErrUnsupportedFormat
	}
	if err := utils.ValidateStruct(ctx, v.catalogEntry(name, filename)); err != nil {
		v.logger.Warnf("UploadVideo - catalog entry for %q invalid: %v", filename, err)
		return nil, err
	}

	if v.cfg.Server.ProcessingMode == config.ProcessingModeAsync {
		return v.enqueue(ctx, input.File, name, filename)
	}

	unlock, ok := v.locks.TryLock(name)
	if !ok {
		return nil, videofiles.ErrBusy
	}
	defer unlock()

	sourcePath := filepath.Join(v.cfg.Storage.UploadDir, filename)
	if err := saveUpload(sourcePath, input.File); err != nil {
		v.logger.Errorf("UploadVideo - saveUpload error: %v", err)
		return nil, err
	}
	v.logger.Infof("Saved upload %s", sourcePath)

	return v.process(ctx, sourcePath, name, filename)
}

func (v *videoFileUC) enqueue(ctx context.Context, file io.Reader, name, filename string) (*models.ProcessResult, error) {
	if v.redisRepo == nil {
		return nil, videofiles.ErrQueueUnavailable
	}
	jobID := uuid.New().String()
	// Queued uploads get a job-scoped source name so a later upload with the
	// same filename cannot overwrite a source that is still being encoded.
	sourcePath := filepath.Join(v.cfg.Storage.UploadDir, jobID+"_"+filename)
	if err := saveUpload(sourcePath, file); err != nil {
		v.logger.Errorf("UploadVideo - saveUpload error: %v", err)
		return nil, err
	}

	job := &models.QueuedJob{
		JobID:            jobID,
		SourcePath:       sourcePath,
		Name:             name,
		OriginalFilename: filename,
		EnqueuedAt:       time.Now().UTC(),
	}
	state := &models.JobState{
		JobID:     jobID,
		Status:    models.QueueStatusQueued,
		Name:      name,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := v.redisRepo.SetJobState(ctx, state); err != nil {
		v.logger.Errorf("UploadVideo - SetJobState error: %v", err)
		return nil, fmt.Errorf("%w: %v", videofiles.ErrQueueUnavailable, err)
	}
	if err := v.redisRepo.EnqueueJob(ctx, v.cfg.Redis.JobQueueKey, job); err != nil {
		v.logger.Errorf("UploadVideo - EnqueueJob error: %v", err)
		return nil, fmt.Errorf("%w: %v", videofiles.ErrQueueUnavailable, err)
	}
	v.logger.Infof("Queued job %s for %s", jobID, name)

	return &models.ProcessResult{JobID: jobID, Name: name}, nil
}

// ProcessJob runs a queued job under the distributed per-output lock. It
// returns ErrBusy without touching the job state when another worker holds
// the lock, so the caller can re-queue.
func (v *videoFileUC) ProcessJob(ctx context.Context, job *models.QueuedJob) (*models.ProcessResult, error) {
	if job == nil {
		return nil, videofiles.ErrEmptyUpload
	}
	if err := utils.ValidateStruct(ctx, job); err != nil {
		v.logger.Errorf("ProcessJob - ValidateStruct error: %v", err)
		return nil, err
	}
	if v.redisRepo == nil {
		return nil, videofiles.ErrQueueUnavailable
	}
	if err := utils.ValidateStruct(ctx, v.catalogEntry(job.Name, job.OriginalFilename)); err != nil {
		v.logger.Errorf("ProcessJob - catalog entry for %s invalid: %v", job.JobID, err)
		v.setState(ctx, job, models.QueueStatusFailed, "", err.Error())
		return nil, err
	}

	acquired, err := v.redisRepo.AcquireLock(ctx, job.Name, job.JobID, v.cfg.Worker.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", videofiles.ErrQueueUnavailable, err)
	}
	if !acquired {
		return nil, videofiles.ErrBusy
	}
	defer func() {
		if err := v.redisRepo.ReleaseLock(context.WithoutCancel(ctx), job.Name, job.JobID); err != nil {
			v.logger.Warnf("ProcessJob - ReleaseLock %s: %v", job.Name, err)
		}
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	stopHeartbeat := v.holdLock(runCtx, cancelRun, job)

	v.setState(ctx, job, models.QueueStatusProcessing, "", "")

	result, err := v.process(runCtx, job.SourcePath, job.Name, job.OriginalFilename)
	stopHeartbeat()
	if err != nil {
		v.setState(ctx, job, models.QueueStatusFailed, "", err.Error())
		return nil, err
	}
	result.JobID = job.JobID
	v.setState(ctx, job, models.QueueStatusCompleted, result.VideoID, "")
	return result, nil
}

// holdLock keeps extending the job lock every third of its TTL until stop is
// called. If the lock is lost the run is cancelled through lost.
func (v *videoFileUC) holdLock(ctx context.Context, lost context.CancelFunc, job *models.QueuedJob) (stop func()) {
	ttl := v.cfg.Worker.LockTTL
	if ttl <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			ok, err := v.redisRepo.ExtendLock(ctx, job.Name, job.JobID, ttl)
			if err != nil {
				v.logger.Warnf("ProcessJob - ExtendLock %s: %v", job.Name, err)
				continue
			}
			if !ok {
				v.logger.Errorf("ProcessJob - lock on %s lost, cancelling job %s", job.Name, job.JobID)
				lost()
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		wg.Wait()
	}
}

func (v *videoFileUC) setState(ctx context.Context, job *models.QueuedJob, status models.QueueStatus, videoID, message string) {
	state := &models.JobState{
		JobID:     job.JobID,
		Status:    status,
		VideoID:   videoID,
		Name:      job.Name,
		Message:   message,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := v.redisRepo.SetJobState(context.WithoutCancel(ctx), state); err != nil {
		v.logger.Errorf("SetJobState %s -> %s: %v", job.JobID, status, err)
	}
}

// process transcodes sourcePath into <HLSDir>/<name>, optionally mirrors the
// tree to S3 and records the catalog entry.
func (v *videoFileUC) process(ctx context.Context, sourcePath, name, originalFilename string) (*models.ProcessResult, error) {
	outputDirectory := filepath.Join(v.cfg.Storage.HLSDir, name)

	metrics.JobsInFlight.Inc()
	run, err := v.transcoder.Run(ctx, sourcePath, outputDirectory)
	metrics.JobsInFlight.Dec()
	observeRun(run)

	if err != nil {
		metrics.TranscodeRuns.WithLabelValues(string(models.RunOutcomeFailed)).Inc()
		v.logger.Errorf("Transcode of %s failed at %s: %v", name, transcode.StageOf(err), err)
		v.cleanup(outputDirectory)
		return nil, err
	}
	metrics.TranscodeRuns.WithLabelValues(string(models.RunOutcomeSucceeded)).Inc()

	if v.awsRepo != nil && v.cfg.S3.Enabled {
		if err := v.publish(ctx, outputDirectory, name); err != nil {
			v.logger.Errorf("Publish of %s failed: %v", name, err)
			return nil, &videofiles.PublishError{Prefix: name, Err: err}
		}
	}

	entry := v.catalogEntry(name, originalFilename)
	entry.VideoID = uuid.New().String()
	entry, err = v.videoRepo.CreateVideo(ctx, entry)
	if err != nil {
		metrics.CatalogWrites.WithLabelValues("failed").Inc()
		v.logger.Errorf("CreateVideo for %s failed: %v", name, err)
		return nil, &videofiles.PersistenceError{ManifestPath: run.ManifestPath, Err: err}
	}
	metrics.CatalogWrites.WithLabelValues("succeeded").Inc()
	v.logger.Infof("Video %s recorded as %s", name, entry.VideoID)

	return &models.ProcessResult{
		VideoID: entry.VideoID,
		Name:    entry.Name,
		URL:     entry.URL,
	}, nil
}

func (v *videoFileUC) catalogEntry(name, originalFilename string) *models.CatalogEntry {
	return &models.CatalogEntry{
		Name:             name,
		URL:              ManifestURL(v.cfg.Storage.PublicHLSPrefix, name),
		OriginalFilename: originalFilename,
	}
}

func (v *videoFileUC) cleanup(outputDirectory string) {
	if !v.cfg.Storage.CleanupOnFailure {
		return
	}
	if err := os.RemoveAll(outputDirectory); err != nil {
		v.logger.Warnf("cleanup %s: %v", outputDirectory, err)
		return
	}
	v.logger.Infof("Removed partial output %s", outputDirectory)
}

// publish uploads every file under outputDirectory to <bucket>/<name>/...,
// master manifest last so readers never see it before its renditions. Keys
// left under the prefix by an earlier run are removed afterwards.
func (v *videoFileUC) publish(ctx context.Context, outputDirectory, name string) error {
	manifest := transcode.ManifestPath(outputDirectory)
	published := make(map[string]struct{})
	err := filepath.WalkDir(outputDirectory, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || p == manifest {
			return nil
		}
		key, err := v.putFile(ctx, outputDirectory, p, name)
		if err != nil {
			return err
		}
		published[key] = struct{}{}
		return nil
	})
	if err != nil {
		return err
	}
	key, err := v.putFile(ctx, outputDirectory, manifest, name)
	if err != nil {
		return err
	}
	published[key] = struct{}{}
	v.pruneStale(ctx, name, published)
	return nil
}

// pruneStale deletes keys under <name>/ that the latest publish did not
// write. Failures are logged; the new tree is already complete.
func (v *videoFileUC) pruneStale(ctx context.Context, name string, published map[string]struct{}) {
	bucket := v.cfg.S3.OutputBucket
	keys, err := v.awsRepo.ListObjects(ctx, bucket, name+"/")
	if err != nil {
		v.logger.Warnf("Publish of %s - ListObjects: %v", name, err)
		return
	}
	for _, key := range keys {
		if _, ok := published[key]; ok {
			continue
		}
		if err := v.awsRepo.RemoveObject(ctx, bucket, key); err != nil {
			v.logger.Warnf("Publish of %s - RemoveObject %s: %v", name, key, err)
			continue
		}
		v.logger.Infof("Removed stale object %s/%s", bucket, key)
	}
}

func (v *videoFileUC) putFile(ctx context.Context, root, p, name string) (string, error) {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", err
	}
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	key := name + "/" + filepath.ToSlash(rel)
	return key, v.awsRepo.PutObject(ctx, v.cfg.S3.OutputBucket, key, contentType(p), f)
}

func (v *videoFileUC) ListVideos(ctx context.Context, pagination *utils.Pagination) (*models.VideoList, error) {
	if pagination == nil {
		pagination = &utils.Pagination{}
	}
	pagination.Normalize()
	videos, err := v.videoRepo.GetVideos(ctx, pagination)
	if err != nil {
		v.logger.Errorf("ListVideos - GetVideos error: %v", err)
		return nil, err
	}
	return videos, nil
}

func (v *videoFileUC) GetVideo(ctx context.Context, videoID string) (*models.CatalogEntry, error) {
	video, err := v.videoRepo.GetVideoByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return video, nil
}

func (v *videoFileUC) GetJobState(ctx context.Context, jobID string) (*models.JobState, error) {
	if v.redisRepo == nil {
		return nil, videofiles.ErrNotFound
	}
	return v.redisRepo.GetJobState(ctx, jobID)
}

// ManifestURL is the public URL of the master manifest for name.
func ManifestURL(prefix, name string) string {
	return strings.TrimRight(prefix, "/") + "/" + name + "/" + transcode.PlaylistName
}

func observeRun(run *models.TranscodeRun) {
	if run == nil {
		return
	}
	for _, job := range run.Jobs {
		if job.Status != models.JobStatusSucceeded && job.Status != models.JobStatusFailed {
			continue
		}
		metrics.RenditionEncodes.WithLabelValues(job.Profile.Label, string(job.Status)).Inc()
		if d := job.Duration(); d > 0 {
			metrics.RenditionDuration.WithLabelValues(job.Profile.Label).Observe(d.Seconds())
		}
	}
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".m3u8":
		return contentTypePlaylist
	case ".ts":
		return contentTypeSegment
	}
	if t := mime.TypeByExtension(filepath.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// saveUpload streams r to path through a temp file in the same directory.
func saveUpload(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	pending, err := renameio.NewPendingFile(path, renameio.WithTempDir(dir), renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}
	defer pending.Cleanup()
	if _, err := io.Copy(pending, r); err != nil {
		return fmt.Errorf("write upload: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit upload: %w", err)
	}
	return nil
}
