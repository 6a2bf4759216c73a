package server

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/internal/middleware"
	"github.com/amankumarsingh77/hls-transcoder/internal/transcode"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles"
	videoHttp "github.com/amankumarsingh77/hls-transcoder/internal/videofiles/delivery/http"
	videoRepository "github.com/amankumarsingh77/hls-transcoder/internal/videofiles/repository"
	videoUsecase "github.com/amankumarsingh77/hls-transcoder/internal/videofiles/usecase"
	"github.com/amankumarsingh77/hls-transcoder/internal/worker"
	"github.com/amankumarsingh77/hls-transcoder/pkg/logger"
	"github.com/amankumarsingh77/hls-transcoder/pkg/utils"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) MapHandlers(ctx context.Context, e *echo.Echo) error {
	for _, dir := range []string{s.cfg.Storage.UploadDir, s.cfg.Storage.HLSDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	vRepo := videoRepository.NewVideoRepo(s.db)
	if err := vRepo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}

	var vRedisRepo videofiles.RedisRepository
	if s.redisClient != nil {
		vRedisRepo = videoRepository.NewVideoRedisRepo(s.redisClient)
	}
	var vAWSRepo videofiles.AWSRepository
	if s.s3Client != nil && s.cfg.S3.Enabled {
		vAWSRepo = videoRepository.NewAwsRepository(s.s3Client)
	}

	orchestrator, err := NewOrchestrator(s.cfg, s.logger)
	if err != nil {
		return err
	}

	videoUC := videoUsecase.NewVideoUseCase(s.cfg, vRepo, vRedisRepo, vAWSRepo, orchestrator, s.logger)
	videoHandlers := videoHttp.NewVideoHandler(s.cfg, videoUC, s.logger)

	if s.cfg.Server.ProcessingMode == config.ProcessingModeAsync && vRedisRepo != nil && s.cfg.Worker.WorkerCount > 0 {
		s.worker = worker.NewWorker(s.cfg, s.logger, vRedisRepo, videoUC)
	}

	mw := middleware.NewMiddlewareManager(s.cfg, s.cfg.Server.AllowOrigins, s.logger)

	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.Recover())
	e.Use(mw.RequestLoggerMiddleware)
	e.Use(mw.CORS())
	e.Use(mw.BodyLimit())

	e.Static("/hls", s.cfg.Storage.HLSDir)
	e.Static("/uploads", s.cfg.Storage.UploadDir)

	videoHttp.MapVideoRoutes(e, videoHandlers)

	e.GET("/health", func(c echo.Context) error {
		s.logger.Infof("Health check RequestID: %s", utils.GetRequestID(c))
		return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
	})
	if s.cfg.Metrics.Enabled {
		e.GET(s.cfg.Metrics.Path, echo.WrapHandler(promhttp.Handler()))
	}
	return nil
}

// NewOrchestrator builds the transcode pipeline from cfg.Transcode.
func NewOrchestrator(cfg *config.Config, log logger.Logger) (*transcode.Orchestrator, error) {
	plan, err := transcode.PlanFromConfig(cfg.Transcode)
	if err != nil {
		return nil, fmt.Errorf("rendition plan: %w", err)
	}
	log.Infof("Rendition plan has %d profiles, concurrency %d", plan.Len(), cfg.Transcode.Concurrency)
	invoker := transcode.NewFFmpegInvoker(transcode.OptionsFromConfig(cfg.Transcode), log)
	return transcode.NewOrchestrator(plan, invoker, log, transcode.WithConcurrency(cfg.Transcode.Concurrency)), nil
}
