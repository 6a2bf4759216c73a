package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/internal/worker"
	"github.com/amankumarsingh77/hls-transcoder/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

const (
	maxHeaderBytes = 1 << 20
	ctxTimeout     = 30
)

type Server struct {
	echo        *echo.Echo
	cfg         *config.Config
	db          *sqlx.DB
	redisClient *redis.Client
	s3Client    *s3.Client
	logger      logger.Logger
	worker      *worker.Worker
}

// NewServer builds the HTTP server. redisClient and s3Client may be nil when
// async processing or S3 publishing are disabled.
func NewServer(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, s3Client *s3.Client, logger logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return &Server{
		echo:        e,
		cfg:         cfg,
		db:          db,
		redisClient: redisClient,
		s3Client:    s3Client,
		logger:      logger,
	}
}

func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.MapHandlers(ctx, s.echo); err != nil {
		return err
	}

	requestCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	server := s.httpServer(requestCtx)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	if s.worker != nil {
		s.worker.Start(workerCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Server is listening on PORT: %s", s.cfg.Server.Port)
		if err := s.echo.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*ctxTimeout)
	defer cancel()
	s.logger.Infof("shutting down server")
	// In-flight sync encodes are cancelled so their ffmpeg children exit
	// before Shutdown stops waiting on them.
	cancelRequests()
	err := server.Shutdown(shutdownCtx)

	stopWorkers()
	if s.worker != nil {
		s.worker.Wait()
	}
	return err
}

// httpServer serves s.echo with every request context derived from
// requestCtx, so cancelling it aborts in-flight handlers.
func (s *Server) httpServer(requestCtx context.Context) *http.Server {
	return &http.Server{
		Addr:           s.cfg.Server.Port,
		Handler:        s.echo,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		MaxHeaderBytes: maxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return requestCtx },
	}
}
