package http

import (
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles"
	"github.com/labstack/echo/v4"
)

func MapVideoRoutes(e *echo.Echo, h videofiles.Handler) {
	e.POST("/upload", h.UploadVideo())
	e.GET("/stream/:filename", h.StreamPlaylist())

	videoGroup := e.Group("/videos")
	videoGroup.GET("", h.ListVideos())
	videoGroup.GET("/:video_id", h.GetVideoByID())

	e.GET("/jobs/:job_id", h.GetJobStatus())
}
