package videofiles

import (
	"context"

	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/amankumarsingh77/hls-transcoder/pkg/utils"
)

// Repository is the catalog store (CatalogRecorder).
type Repository interface {
	Migrate(ctx context.Context) error
	CreateVideo(ctx context.Context, entry *models.CatalogEntry) (*models.CatalogEntry, error)
	GetVideos(ctx context.Context, pq *utils.Pagination) (*models.VideoList, error)
	GetVideoByID(ctx context.Context, videoID string) (*models.CatalogEntry, error)
}
