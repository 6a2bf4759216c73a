package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	ProcessingModeSync  = "sync"
	ProcessingModeAsync = "async"

	CatalogDriverPostgres = "pgx"
	CatalogDriverSQLite   = "sqlite"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Transcode TranscodeConfig
	Catalog   CatalogConfig
	Postgres  DBConfig
	Redis     RedisConfig
	S3        S3Config
	Logger    Logger
	Worker    WorkerConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	AppVersion     string
	Port           string `validate:"required"`
	Mode           string
	ProcessingMode string        `validate:"oneof=sync async"`
	ReadTimeout    time.Duration `validate:"gte=0"`
	WriteTimeout   time.Duration `validate:"gte=0"`
	IdleTimeout    time.Duration `validate:"gte=0"`
	MaxUploadBytes int64         `validate:"gt=0"`
	AllowOrigins   []string
}

type StorageConfig struct {
	UploadDir         string   `validate:"required"`
	HLSDir            string   `validate:"required"`
	PublicHLSPrefix   string   `validate:"required"`
	AllowedExtensions []string `validate:"min=1"`
	CleanupOnFailure  bool
}

type TranscodeConfig struct {
	FFmpegBinary   string            `validate:"required"`
	VideoCodec     string            `validate:"required"`
	AudioCodec     string            `validate:"required"`
	Preset         string            `validate:"required"`
	SegmentSeconds int               `validate:"gt=0"`
	EncodeTimeout  time.Duration     `validate:"gte=0"`
	Concurrency    int               `validate:"gte=1"`
	Renditions     []RenditionConfig `validate:"dive"`
}

type RenditionConfig struct {
	Label            string `validate:"required"`
	VideoBitrateKbps int    `validate:"gt=0"`
	AudioBitrateKbps int    `validate:"gt=0"`
	Width            int    `validate:"gt=0"`
	Height           int    `validate:"gt=0"`
}

type CatalogConfig struct {
	Driver     string `validate:"oneof=pgx sqlite"`
	SQLitePath string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	PgDriver string
}

type RedisConfig struct {
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	UseTLS        bool
	JobQueueKey   string
}

type S3Config struct {
	Enabled      bool
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	OutputBucket string
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

type WorkerConfig struct {
	WorkerCount  int     `validate:"gte=0"`
	MaxCPUUsage  float64 `validate:"gte=0,lte=100"`
	PollTimeout  time.Duration
	LockTTL      time.Duration
	CPUBackoff   time.Duration
	RequeueDelay time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.appversion", "1.0.0")
	v.SetDefault("server.port", ":5000")
	v.SetDefault("server.mode", "Development")
	v.SetDefault("server.processingmode", ProcessingModeSync)
	v.SetDefault("server.readtimeout", 0)
	v.SetDefault("server.writetimeout", 0)
	v.SetDefault("server.idletimeout", 120*time.Second)
	v.SetDefault("server.maxuploadbytes", 1000*1024*1024)
	v.SetDefault("server.alloworigins", []string{"*"})

	v.SetDefault("storage.uploaddir", "/usr/local/nginx/html/uploads")
	v.SetDefault("storage.hlsdir", "/usr/local/nginx/html/hls")
	v.SetDefault("storage.publichlsprefix", "/hls")
	v.SetDefault("storage.allowedextensions", []string{"mp4", "avi", "mkv", "mov"})
	v.SetDefault("storage.cleanuponfailure", false)

	v.SetDefault("transcode.ffmpegbinary", "ffmpeg")
	v.SetDefault("transcode.videocodec", "libx264")
	v.SetDefault("transcode.audiocodec", "aac")
	v.SetDefault("transcode.preset", "veryfast")
	v.SetDefault("transcode.segmentseconds", 10)
	v.SetDefault("transcode.encodetimeout", 0)
	v.SetDefault("transcode.concurrency", 1)

	v.SetDefault("catalog.driver", CatalogDriverSQLite)
	v.SetDefault("catalog.sqlitepath", "/usr/local/nginx/html/videos.db")

	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "require")
	v.SetDefault("postgres.pgdriver", CatalogDriverPostgres)

	v.SetDefault("redis.redisaddr", ":6379")
	v.SetDefault("redis.minidleconns", 2)
	v.SetDefault("redis.poolsize", 10)
	v.SetDefault("redis.pooltimeout", 30)
	v.SetDefault("redis.jobqueuekey", "video_jobs")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("worker.workercount", 1)
	v.SetDefault("worker.maxcpuusage", 80.0)
	v.SetDefault("worker.polltimeout", 5*time.Second)
	v.SetDefault("worker.lockttl", 2*time.Hour)
	v.SetDefault("worker.cpubackoff", 10*time.Second)
	v.SetDefault("worker.requeuedelay", 2*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// LoadConfig reads filename into a viper instance. A missing file is not an
// error: defaults and environment variables still apply.
func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) || errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
