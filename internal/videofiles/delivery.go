package videofiles

import "github.com/labstack/echo/v4"

type Handler interface {
	UploadVideo() echo.HandlerFunc
	ListVideos() echo.HandlerFunc
	GetVideoByID() echo.HandlerFunc
	GetJobStatus() echo.HandlerFunc
	StreamPlaylist() echo.HandlerFunc
}
