package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/pkg/logger"
	"github.com/amankumarsingh77/hls-transcoder/pkg/utils"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type MiddlewareManager struct {
	cfg     *config.Config
	origins []string
	logger  logger.Logger
}

// Middleware manager constructor
func NewMiddlewareManager(cfg *config.Config, origins []string, logger logger.Logger) *MiddlewareManager {
	return &MiddlewareManager{cfg: cfg, origins: origins, logger: logger}
}

// RequestLoggerMiddleware logs one line per request.
func (mw *MiddlewareManager) RequestLoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		req := c.Request()
		res := c.Response()
		status := res.Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}
		mw.logger.Infof("RequestID: %s, Method: %s, URI: %s, Status: %v, Size: %v, Time: %s",
			utils.GetRequestID(c), req.Method, req.URL.Path, status, res.Size, time.Since(start),
		)
		return err
	}
}

// CORS allows the configured origins to reach the API.
func (mw *MiddlewareManager) CORS() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: mw.origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		MaxAge:       300,
	})
}

// BodyLimit rejects request bodies over Server.MaxUploadBytes with 413.
func (mw *MiddlewareManager) BodyLimit() echo.MiddlewareFunc {
	return middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Limit: bodyLimit(mw.cfg.Server.MaxUploadBytes),
	})
}

// bodyLimit renders n bytes in echo's limit syntax.
func bodyLimit(n int64) string {
	return strconv.FormatInt(n, 10) + "B"
}
