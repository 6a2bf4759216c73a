package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/amankumarsingh77/hls-transcoder/internal/transcode"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles/repository"
	"github.com/amankumarsingh77/hls-transcoder/pkg/db/sqlite"
	"github.com/amankumarsingh77/hls-transcoder/pkg/logger"
	"github.com/amankumarsingh77/hls-transcoder/pkg/metrics"
	"github.com/amankumarsingh77/hls-transcoder/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTranscoder writes a one-rendition HLS tree unless err is set.
type stubTranscoder struct {
	mu      sync.Mutex
	calls   [][2]string
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *stubTranscoder) Run(ctx context.Context, sourcePath, outputDirectory string) (*models.TranscodeRun, error) {
	s.mu.Lock()
	s.calls = append(s.calls, [2]string{sourcePath, outputDirectory})
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	profile := models.RenditionProfile{Label: "360p", VideoBitrateKbps: 800, AudioBitrateKbps: 96, Width: 640, Height: 360}
	job := &models.EncodeJob{SourcePath: sourcePath, OutputDirectory: outputDirectory, Profile: profile, StartedAt: time.Now()}
	run := &models.TranscodeRun{SourcePath: sourcePath, OutputDirectory: outputDirectory, Jobs: []*models.EncodeJob{job}}

	rendition := filepath.Join(outputDirectory, profile.Label)
	if err := os.MkdirAll(rendition, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(rendition, "segment_000.ts"), []byte("ts"), 0o644); err != nil {
		return nil, err
	}
	if s.err != nil {
		job.Status = models.JobStatusFailed
		job.CompletedAt = time.Now()
		run.Outcome = models.RunOutcomeFailed
		return run, s.err
	}
	if err := os.WriteFile(filepath.Join(rendition, transcode.PlaylistName), []byte("#EXTM3U\n"), 0o644); err != nil {
		return nil, err
	}
	text := transcode.BuildManifest([]models.RenditionArtifact{{Profile: profile, RelativePlaylistPath: "360p/playlist.m3u8"}})
	manifest, err := transcode.WriteManifest(outputDirectory, text)
	if err != nil {
		return nil, err
	}
	job.Status = models.JobStatusSucceeded
	job.CompletedAt = time.Now()
	run.Outcome = models.RunOutcomeSucceeded
	run.ManifestPath = manifest
	return run, nil
}

func (s *stubTranscoder) Calls() [][2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]string(nil), s.calls...)
}

type failingRepo struct {
	videofiles.Repository
	err error
}

func (f *failingRepo) CreateVideo(ctx context.Context, entry *models.CatalogEntry) (*models.CatalogEntry, error) {
	return nil, f.err
}

type recordingAWS struct {
	mu       sync.Mutex
	keys     []string
	ctypes   map[string]string
	existing []string
	removed  []string
	err      error
}

func (r *recordingAWS) PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	if r.err != nil {
		return r.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, bucket+"/"+key)
	if r.ctypes == nil {
		r.ctypes = map[string]string{}
	}
	r.ctypes[key] = contentType
	return nil
}

func (r *recordingAWS) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for _, key := range r.existing {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	for _, key := range r.keys {
		key = strings.TrimPrefix(key, bucket+"/")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (r *recordingAWS) RemoveObject(ctx context.Context, bucket, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, key)
	return nil
}

type fixture struct {
	cfg        *config.Config
	repo       videofiles.Repository
	redisRepo  videofiles.RedisRepository
	mr         *miniredis.Miniredis
	transcoder *stubTranscoder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{ProcessingMode: config.ProcessingModeSync},
		Storage: config.StorageConfig{
			UploadDir:         filepath.Join(root, "uploads"),
			HLSDir:            filepath.Join(root, "hls"),
			PublicHLSPrefix:   "/hls",
			AllowedExtensions: []string{"mp4", "avi", "mkv", "mov"},
		},
		Redis:  config.RedisConfig{JobQueueKey: "video_jobs"},
		Worker: config.WorkerConfig{LockTTL: time.Minute},
		S3:     config.S3Config{OutputBucket: "out"},
	}

	db, err := sqlite.NewSqliteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := repository.NewVideoRepo(db)
	require.NoError(t, repo.Migrate(context.Background()))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &fixture{
		cfg:        cfg,
		repo:       repo,
		redisRepo:  repository.NewVideoRedisRepo(client),
		mr:         mr,
		transcoder: &stubTranscoder{},
	}
}

func (f *fixture) useCase(aws videofiles.AWSRepository) videofiles.UseCase {
	return NewVideoUseCase(f.cfg, f.repo, f.redisRepo, aws, f.transcoder, logger.NewNop())
}

func upload(name, body string) *models.UploadInput {
	return &models.UploadInput{File: strings.NewReader(body), FileName: name, Size: int64(len(body))}
}

func TestUploadVideoSyncSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uc := f.useCase(nil)

	result, err := uc.UploadVideo(ctx, upload("clip.mp4", "video-bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.VideoID)
	assert.Equal(t, "clip", result.Name)
	assert.Equal(t, "/hls/clip/playlist.m3u8", result.URL)

	source := filepath.Join(f.cfg.Storage.UploadDir, "clip.mp4")
	data, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))

	assert.Equal(t, [][2]string{{source, filepath.Join(f.cfg.Storage.HLSDir, "clip")}}, f.transcoder.Calls())

	entry, err := uc.GetVideo(ctx, result.VideoID)
	require.NoError(t, err)
	assert.Equal(t, "clip", entry.Name)
	assert.Equal(t, "clip.mp4", entry.OriginalFilename)
	assert.Equal(t, "/hls/clip/playlist.m3u8", entry.URL)
}

func TestUploadVideoSanitizesName(t *testing.T) {
	f := newFixture(t)
	uc := f.useCase(nil)

	result, err := uc.UploadVideo(context.Background(), upload("../../My Clip.MP4", "x"))
	require.NoError(t, err)
	assert.Equal(t, "My_Clip", result.Name)
	assert.FileExists(t, filepath.Join(f.cfg.Storage.UploadDir, "My_Clip.MP4"))
}

func TestUploadVideoRejectsInput(t *testing.T) {
	f := newFixture(t)
	uc := f.useCase(nil)

	_, err := uc.UploadVideo(context.Background(), upload("notes.txt", "x"))
	assert.ErrorIs(t, err, videofiles.ErrUnsupportedFormat)

	_, err = uc.UploadVideo(context.Background(), upload(".mp4", "x"))
	assert.ErrorIs(t, err, videofiles.ErrUnsupportedFormat)

	_, err = uc.UploadVideo(context.Background(), &models.UploadInput{FileName: "a.mp4"})
	assert.ErrorIs(t, err, videofiles.ErrEmptyUpload)

	_, err = uc.UploadVideo(context.Background(), nil)
	assert.ErrorIs(t, err, videofiles.ErrEmptyUpload)

	assert.Empty(t, f.transcoder.Calls())
}

func TestUploadVideoRejectsOverlongName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uc := f.useCase(nil)
	long := strings.Repeat("a", 81) + ".mp4"

	_, err := uc.UploadVideo(ctx, upload(long, "x"))
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	assert.Empty(t, f.transcoder.Calls())
	assert.NoFileExists(t, filepath.Join(f.cfg.Storage.UploadDir, long))

	f.cfg.Server.ProcessingMode = config.ProcessingModeAsync
	_, err = uc.UploadVideo(ctx, upload(long, "x"))
	require.ErrorAs(t, err, &validationErrs)
	n, err := f.redisRepo.QueueLength(ctx, f.cfg.Redis.JobQueueKey)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.cfg.Server.ProcessingMode = config.ProcessingModeSync
	result, err := uc.UploadVideo(ctx, upload(strings.Repeat("a", 80)+".mp4", "x"))
	require.NoError(t, err)
	assert.Len(t, result.Name, 80)
}

func TestUploadVideoTranscodeFailureKeepsOutputByDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	encErr := &transcode.EncodeError{Profile: models.RenditionProfile{Label: "360p"}, ExitCode: 1, Diagnostic: "bad input"}
	f.transcoder.err = encErr
	uc := f.useCase(nil)

	_, err := uc.UploadVideo(ctx, upload("clip.mp4", "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, encErr)
	assert.Equal(t, transcode.StageEncode, transcode.StageOf(err))

	assert.DirExists(t, filepath.Join(f.cfg.Storage.HLSDir, "clip", "360p"))
	assert.NoFileExists(t, filepath.Join(f.cfg.Storage.HLSDir, "clip", transcode.PlaylistName))

	list, err := uc.ListVideos(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
}

func TestUploadVideoTranscodeFailureCleanup(t *testing.T) {
	f := newFixture(t)
	f.cfg.Storage.CleanupOnFailure = true
	f.transcoder.err = &transcode.EncodeError{Profile: models.RenditionProfile{Label: "360p"}, ExitCode: 1}
	uc := f.useCase(nil)

	_, err := uc.UploadVideo(context.Background(), upload("clip.mp4", "x"))
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(f.cfg.Storage.HLSDir, "clip"))
}

func TestUploadVideoPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.repo = &failingRepo{Repository: f.repo, err: errors.New("disk full")}
	uc := f.useCase(nil)
	before := testutil.ToFloat64(metrics.CatalogWrites.WithLabelValues("failed"))

	_, err := uc.UploadVideo(context.Background(), upload("clip.mp4", "x"))
	var persistErr *videofiles.PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, transcode.ManifestPath(filepath.Join(f.cfg.Storage.HLSDir, "clip")), persistErr.ManifestPath)
	assert.FileExists(t, persistErr.ManifestPath, "media is not rolled back")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CatalogWrites.WithLabelValues("failed")))
}

func TestUploadVideoSameNameIsBusy(t *testing.T) {
	f := newFixture(t)
	f.transcoder.started = make(chan struct{}, 2)
	f.transcoder.release = make(chan struct{})
	uc := f.useCase(nil)

	done := make(chan error, 1)
	go func() {
		_, err := uc.UploadVideo(context.Background(), upload("clip.mp4", "first"))
		done <- err
	}()
	<-f.transcoder.started

	_, err := uc.UploadVideo(context.Background(), upload("clip.mp4", "second"))
	assert.ErrorIs(t, err, videofiles.ErrBusy)

	close(f.transcoder.release)
	require.NoError(t, <-done)

	data, err := os.ReadFile(filepath.Join(f.cfg.Storage.UploadDir, "clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data), "rejected upload must not overwrite the source")
}

func TestUploadVideoPublishesManifestLast(t *testing.T) {
	f := newFixture(t)
	f.cfg.S3.Enabled = true
	aws := &recordingAWS{}
	uc := f.useCase(aws)

	_, err := uc.UploadVideo(context.Background(), upload("clip.mp4", "x"))
	require.NoError(t, err)

	require.Len(t, aws.keys, 3)
	assert.ElementsMatch(t, []string{"out/clip/360p/playlist.m3u8", "out/clip/360p/segment_000.ts"}, aws.keys[:2])
	assert.Equal(t, "out/clip/playlist.m3u8", aws.keys[2])
	assert.Equal(t, contentTypeSegment, aws.ctypes["clip/360p/segment_000.ts"])
	assert.Equal(t, contentTypePlaylist, aws.ctypes["clip/playlist.m3u8"])
}

func TestUploadVideoPublishRemovesStaleKeys(t *testing.T) {
	f := newFixture(t)
	f.cfg.S3.Enabled = true
	aws := &recordingAWS{existing: []string{
		"clip/720p/playlist.m3u8",
		"clip/720p/segment_000.ts",
		"clip/360p/segment_000.ts",
		"clipper/playlist.m3u8",
	}}
	uc := f.useCase(aws)

	_, err := uc.UploadVideo(context.Background(), upload("clip.mp4", "x"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"clip/720p/playlist.m3u8", "clip/720p/segment_000.ts"}, aws.removed)
}

func TestUploadVideoPublishFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cfg.S3.Enabled = true
	uc := f.useCase(&recordingAWS{err: errors.New("access denied")})

	_, err := uc.UploadVideo(ctx, upload("clip.mp4", "x"))
	var publishErr *videofiles.PublishError
	require.ErrorAs(t, err, &publishErr)
	assert.Equal(t, "clip", publishErr.Prefix)

	list, err := uc.ListVideos(ctx, &utils.Pagination{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
}

func TestUploadVideoAsyncEnqueues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cfg.Server.ProcessingMode = config.ProcessingModeAsync
	uc := f.useCase(nil)

	result, err := uc.UploadVideo(ctx, upload("clip.mp4", "x"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.JobID)
	assert.Empty(t, result.VideoID)
	assert.Empty(t, f.transcoder.Calls())

	state, err := uc.GetJobState(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusQueued, state.Status)

	job, err := f.redisRepo.DequeueJob(ctx, f.cfg.Redis.JobQueueKey, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, result.JobID, job.JobID)
	assert.Equal(t, "clip", job.Name)
	assert.Equal(t, "clip.mp4", job.OriginalFilename)
	assert.Equal(t, filepath.Join(f.cfg.Storage.UploadDir, result.JobID+"_clip.mp4"), job.SourcePath)
	assert.FileExists(t, job.SourcePath)
}

func TestUploadVideoAsyncWithoutQueue(t *testing.T) {
	f := newFixture(t)
	f.cfg.Server.ProcessingMode = config.ProcessingModeAsync
	f.redisRepo = nil
	uc := f.useCase(nil)

	_, err := uc.UploadVideo(context.Background(), upload("clip.mp4", "x"))
	assert.ErrorIs(t, err, videofiles.ErrQueueUnavailable)

	_, err = uc.GetJobState(context.Background(), "anything")
	assert.ErrorIs(t, err, videofiles.ErrNotFound)
}

func queuedJob(t *testing.T, f *fixture, id string) *models.QueuedJob {
	t.Helper()
	source := filepath.Join(f.cfg.Storage.UploadDir, id+"_clip.mp4")
	require.NoError(t, os.MkdirAll(f.cfg.Storage.UploadDir, 0o755))
	require.NoError(t, os.WriteFile(source, []byte("x"), 0o644))
	return &models.QueuedJob{JobID: id, SourcePath: source, Name: "clip", OriginalFilename: "clip.mp4"}
}

func TestProcessJobSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uc := f.useCase(nil)
	job := queuedJob(t, f, "job-1")

	result, err := uc.ProcessJob(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, "job-1", result.JobID)
	assert.NotEmpty(t, result.VideoID)

	state, err := uc.GetJobState(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusCompleted, state.Status)
	assert.Equal(t, result.VideoID, state.VideoID)
	assert.False(t, f.mr.Exists("lock:clip"), "lock released")
}

func TestProcessJobBusyLeavesStateAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uc := f.useCase(nil)
	job := queuedJob(t, f, "job-2")
	require.NoError(t, f.redisRepo.SetJobState(ctx, &models.JobState{JobID: "job-2", Status: models.QueueStatusQueued}))

	ok, err := f.redisRepo.AcquireLock(ctx, "clip", "job-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = uc.ProcessJob(ctx, job)
	assert.ErrorIs(t, err, videofiles.ErrBusy)
	assert.Empty(t, f.transcoder.Calls())

	state, err := uc.GetJobState(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusQueued, state.Status)
}

func TestProcessJobFailureRecordsMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.transcoder.err = &transcode.EncodeError{Profile: models.RenditionProfile{Label: "480p"}, ExitCode: 1, Diagnostic: "moov atom not found"}
	uc := f.useCase(nil)

	_, err := uc.ProcessJob(ctx, queuedJob(t, f, "job-3"))
	require.Error(t, err)

	state, err := uc.GetJobState(ctx, "job-3")
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, state.Status)
	assert.Contains(t, state.Message, "480p")
	assert.False(t, f.mr.Exists("lock:clip"))
}

func TestProcessJobRejectsInvalidJob(t *testing.T) {
	f := newFixture(t)
	uc := f.useCase(nil)

	_, err := uc.ProcessJob(context.Background(), &models.QueuedJob{JobID: "j"})
	assert.Error(t, err)
	_, err = uc.ProcessJob(context.Background(), nil)
	assert.ErrorIs(t, err, videofiles.ErrEmptyUpload)
}

func TestProcessJobRejectsOverlongName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	uc := f.useCase(nil)
	job := queuedJob(t, f, "job-5")
	job.Name = strings.Repeat("b", 81)

	_, err := uc.ProcessJob(ctx, job)
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	assert.Empty(t, f.transcoder.Calls())

	state, err := uc.GetJobState(ctx, "job-5")
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, state.Status)
}

func TestProcessJobHeartbeatKeepsLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cfg.Worker.LockTTL = 600 * time.Millisecond
	f.transcoder.started = make(chan struct{}, 1)
	f.transcoder.release = make(chan struct{})
	uc := f.useCase(nil)
	job := queuedJob(t, f, "job-1")

	done := make(chan error, 1)
	go func() {
		_, err := uc.ProcessJob(ctx, job)
		done <- err
	}()
	<-f.transcoder.started

	// Twice the TTL passes on the server clock while the encode runs.
	for i := 0; i < 4; i++ {
		time.Sleep(450 * time.Millisecond)
		f.mr.FastForward(300 * time.Millisecond)
	}

	ok, err := f.redisRepo.AcquireLock(ctx, "clip", "job-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock must still belong to the running job")

	close(f.transcoder.release)
	require.NoError(t, <-done)
	assert.False(t, f.mr.Exists("lock:clip"), "lock released")
}

func TestProcessJobCancelledWhenLockLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cfg.Worker.LockTTL = 300 * time.Millisecond
	f.transcoder.started = make(chan struct{}, 1)
	f.transcoder.release = make(chan struct{})
	uc := f.useCase(nil)
	job := queuedJob(t, f, "job-6")

	done := make(chan error, 1)
	go func() {
		_, err := uc.ProcessJob(ctx, job)
		done <- err
	}()
	<-f.transcoder.started
	f.mr.Del("lock:clip")

	select {
	case err := <-done:
		assert.True(t, transcode.IsCancelled(err))
	case <-time.After(5 * time.Second):
		t.Fatal("run was not cancelled after losing the lock")
	}

	state, err := uc.GetJobState(ctx, "job-6")
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, state.Status)
}

func TestManifestURL(t *testing.T) {
	assert.Equal(t, "/hls/clip/playlist.m3u8", ManifestURL("/hls", "clip"))
	assert.Equal(t, "/hls/clip/playlist.m3u8", ManifestURL("/hls/", "clip"))
	assert.Equal(t, "https://cdn.example.com/v/clip/playlist.m3u8", ManifestURL("https://cdn.example.com/v", "clip"))
}
