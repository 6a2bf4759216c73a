package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/internal/server"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles/repository"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles/usecase"
	"github.com/amankumarsingh77/hls-transcoder/internal/worker"
	"github.com/amankumarsingh77/hls-transcoder/pkg/db/aws"
	"github.com/amankumarsingh77/hls-transcoder/pkg/db/catalog"
	clientRedis "github.com/amankumarsingh77/hls-transcoder/pkg/db/redis"
	"github.com/amankumarsingh77/hls-transcoder/pkg/logger"
)

func main() {
	configFile := os.Getenv("CONFIG_PATH")
	if configFile == "" {
		configFile = "config.yml"
	}
	cfgFile, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("loadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("parseConfig: %v", err)
	}
	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalogDB, err := catalog.Open(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to catalog: %s", err)
	}
	defer catalogDB.Close()

	redisClient, err := clientRedis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to redis: %s", err)
	}
	defer redisClient.Close()
	appLogger.Infof("redis connected")

	videoRepo := repository.NewVideoRepo(catalogDB)
	if err := videoRepo.Migrate(ctx); err != nil {
		appLogger.Fatalf("migrate catalog: %s", err)
	}
	redisRepo := repository.NewVideoRedisRepo(redisClient)

	var awsRepo videofiles.AWSRepository
	if cfg.S3.Enabled {
		s3Client, err := aws.NewAWSClient(ctx, cfg.S3)
		if err != nil {
			appLogger.Fatalf("could not connect to s3: %s", err)
		}
		awsRepo = repository.NewAwsRepository(s3Client)
	}

	orchestrator, err := server.NewOrchestrator(cfg, appLogger)
	if err != nil {
		appLogger.Fatalf("%s", err)
	}
	videoUC := usecase.NewVideoUseCase(cfg, videoRepo, redisRepo, awsRepo, orchestrator, appLogger)

	w := worker.NewWorker(cfg, appLogger, redisRepo, videoUC)
	w.Start(ctx)
	<-ctx.Done()
	appLogger.Info("Shutting down...")
	w.Wait()
}
