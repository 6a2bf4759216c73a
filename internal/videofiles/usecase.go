package videofiles

import (
	"context"

	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/amankumarsingh77/hls-transcoder/pkg/utils"
)

// UseCase is the UploadGateway: it stores uploads, drives the transcode
// orchestrator and records successful runs in the catalog.
type UseCase interface {
	UploadVideo(ctx context.Context, input *models.UploadInput) (*models.ProcessResult, error)
	ProcessJob(ctx context.Context, job *models.QueuedJob) (*models.ProcessResult, error)
	ListVideos(ctx context.Context, pagination *utils.Pagination) (*models.VideoList, error)
	GetVideo(ctx context.Context, videoID string) (*models.CatalogEntry, error)
	GetJobState(ctx context.Context, jobID string) (*models.JobState, error)
}

// Transcoder runs every rendition of one source into outputDirectory and
// writes its master manifest.
type Transcoder interface {
	Run(ctx context.Context, sourcePath, outputDirectory string) (*models.TranscodeRun, error)
}
