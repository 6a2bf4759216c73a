package main

import (
	"context"
	"log"
	"os"

	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/internal/server"
	"github.com/amankumarsingh77/hls-transcoder/pkg/db/aws"
	"github.com/amankumarsingh77/hls-transcoder/pkg/db/catalog"
	"github.com/amankumarsingh77/hls-transcoder/pkg/db/redis"
	"github.com/amankumarsingh77/hls-transcoder/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	goredis "github.com/go-redis/redis/v8"
)

func main() {
	log.Println("Starting server")
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
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s, Processing: %s",
		cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode, cfg.Server.ProcessingMode)

	catalogDB, err := catalog.Open(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to catalog: %s", err)
	}
	defer catalogDB.Close()
	appLogger.Infof("catalog connected, driver: %s, status: %#v", cfg.Catalog.Driver, catalogDB.Stats())

	var redisClient *goredis.Client
	if cfg.Server.ProcessingMode == config.ProcessingModeAsync {
		redisClient, err = redis.NewRedisClient(cfg)
		if err != nil {
			appLogger.Fatalf("could not connect to redis: %s", err)
		}
		defer redisClient.Close()
		appLogger.Infof("redis connected")
	}

	var s3Client *s3.Client
	if cfg.S3.Enabled {
		s3Client, err = aws.NewAWSClient(context.Background(), cfg.S3)
		if err != nil {
			appLogger.Fatalf("could not connect to s3: %s", err)
		}
	}

	s := server.NewServer(cfg, catalogDB, redisClient, s3Client, appLogger)
	if err = s.Run(); err != nil {
		appLogger.Fatalf("could not start server: %s", err)
	}
}
