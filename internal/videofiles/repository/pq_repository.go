package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles"
	"github.com/amankumarsingh77/hls-transcoder/pkg/utils"
	"github.com/jmoiron/sqlx"
)

// videoRepo stores the catalog in any sqlx database. Queries are written
// with '?' placeholders and rebound for the driver (pgx or sqlite).
type videoRepo struct {
	db *sqlx.DB
}

func NewVideoRepo(db *sqlx.DB) videofiles.Repository {
	return &videoRepo{
		db: db,
	}
}

func (v *videoRepo) Migrate(ctx context.Context) error {
	if _, err := v.db.ExecContext(ctx, createVideosTableQuery); err != nil {
		return fmt.Errorf("failed to create videos table: %w", err)
	}
	return nil
}

func (v *videoRepo) CreateVideo(ctx context.Context, entry *models.CatalogEntry) (*models.CatalogEntry, error) {
	created := *entry
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}
	created.CreatedAt = created.CreatedAt.UTC().Truncate(time.Microsecond)
	if _, err := v.db.ExecContext(
		ctx,
		v.db.Rebind(createVideoQuery),
		created.VideoID,
		created.Name,
		created.URL,
		created.OriginalFilename,
		created.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create video: %w", err)
	}
	return &created, nil
}

func (v *videoRepo) GetVideos(ctx context.Context, query *utils.Pagination) (*models.VideoList, error) {
	orderClause, ok := orderClauses[query.GetOrderBy()]
	if !ok {
		return nil, fmt.Errorf("unsupported order %q", query.GetOrderBy())
	}
	var totalCount int
	if err := v.db.GetContext(
		ctx,
		&totalCount,
		getTotalVideosQuery,
	); err != nil {
		return nil, fmt.Errorf("failed to get total videos count: %w", err)
	}
	if totalCount == 0 {
		return &models.VideoList{
			Videos:     make([]*models.CatalogEntry, 0),
			TotalCount: 0,
			TotalPages: 0,
			Page:       query.GetPage(),
			PageSize:   query.GetSize(),
			HasMore:    false,
		}, nil
	}
	rows, err := v.db.QueryxContext(
		ctx,
		v.db.Rebind(fmt.Sprintf(getVideosQuery, orderClause)),
		query.GetLimit(),
		query.GetOffset(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get videos: %w", err)
	}
	defer rows.Close()
	var videos = make([]*models.CatalogEntry, 0, query.GetSize())
	for rows.Next() {
		var video models.CatalogEntry
		if err = rows.StructScan(&video); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, &video)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan videos: %w", err)
	}
	return &models.VideoList{
		Videos:     videos,
		TotalCount: totalCount,
		TotalPages: utils.GetTotalPages(totalCount, query.GetSize()),
		Page:       query.GetPage(),
		PageSize:   query.GetSize(),
		HasMore:    utils.GetHasMore(query.GetPage(), totalCount, query.GetSize()),
	}, nil
}

func (v *videoRepo) GetVideoByID(ctx context.Context, videoID string) (*models.CatalogEntry, error) {
	video := &models.CatalogEntry{}
	if err := v.db.QueryRowxContext(
		ctx,
		v.db.Rebind(getVideoByIDQuery),
		videoID,
	).StructScan(video); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("video %s: %w", videoID, videofiles.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get video by id: %w", err)
	}
	return video, nil
}
