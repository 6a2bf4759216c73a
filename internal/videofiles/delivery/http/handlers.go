package http

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/internal/models"
	"github.com/amankumarsingh77/hls-transcoder/internal/transcode"
	"github.com/amankumarsingh77/hls-transcoder/internal/videofiles"
	"github.com/amankumarsingh77/hls-transcoder/pkg/logger"
	"github.com/amankumarsingh77/hls-transcoder/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const uploadField = "file"

type videoHandler struct {
	cfg     *config.Config
	videoUC videofiles.UseCase
	logger  logger.Logger
}

func NewVideoHandler(cfg *config.Config, videoUC videofiles.UseCase, log logger.Logger) videofiles.Handler {
	return &videoHandler{
		cfg:     cfg,
		videoUC: videoUC,
		logger:  log,
	}
}

func (h *videoHandler) UploadVideo() echo.HandlerFunc {
	return func(c echo.Context) error {
		fileHeader, err := c.FormFile(uploadField)
		if err != nil {
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return utils.ErrorResponse(c, httpErr.Code, fmt.Sprint(httpErr.Message))
			}
			return utils.ErrorResponse(c, http.StatusBadRequest, "No file part")
		}
		if fileHeader.Filename == "" {
			return utils.ErrorResponse(c, http.StatusBadRequest, "No selected file")
		}
		file, err := fileHeader.Open()
		if err != nil {
			h.logger.Errorf("UploadVideo - Open error: %v", err)
			return utils.ErrorResponse(c, http.StatusBadRequest, "Could not read uploaded file")
		}
		defer file.Close()

		result, err := h.videoUC.UploadVideo(c.Request().Context(), &models.UploadInput{
			File:     file,
			FileName: fileHeader.Filename,
			Size:     fileHeader.Size,
		})
		if err != nil {
			return h.writeError(c, err)
		}

		if result.JobID != "" && result.VideoID == "" {
			return c.JSON(http.StatusAccepted, map[string]string{
				"status":  "accepted",
				"message": "Video queued for processing",
				"job_id":  result.JobID,
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":   "success",
			"message":  "Video processed successfully",
			"video_id": result.VideoID,
			"url":      result.URL,
		})
	}
}

func (h *videoHandler) ListVideos() echo.HandlerFunc {
	return func(c echo.Context) error {
		pagination, err := utils.GetPaginationFromCtx(c)
		if err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		}
		videos, err := h.videoUC.ListVideos(c.Request().Context(), pagination)
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(http.StatusOK, videos)
	}
}

func (h *videoHandler) GetVideoByID() echo.HandlerFunc {
	return func(c echo.Context) error {
		videoID, err := uuid.Parse(c.Param("video_id"))
		if err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, "Invalid video id")
		}
		video, err := h.videoUC.GetVideo(c.Request().Context(), videoID.String())
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(http.StatusOK, video)
	}
}

func (h *videoHandler) GetJobStatus() echo.HandlerFunc {
	return func(c echo.Context) error {
		jobID, err := uuid.Parse(c.Param("job_id"))
		if err != nil {
			return utils.ErrorResponse(c, http.StatusBadRequest, "Invalid job id")
		}
		state, err := h.videoUC.GetJobState(c.Request().Context(), jobID.String())
		if err != nil {
			return h.writeError(c, err)
		}
		return c.JSON(http.StatusOK, state)
	}
}

// StreamPlaylist serves the master manifest of a processed video by name.
func (h *videoHandler) StreamPlaylist() echo.HandlerFunc {
	return func(c echo.Context) error {
		name := c.Param("filename")
		if name == "" || utils.SecureFilename(name) != name {
			return utils.ErrorResponse(c, http.StatusBadRequest, "Invalid video name")
		}
		return c.File(transcode.ManifestPath(filepath.Join(h.cfg.Storage.HLSDir, name)))
	}
}

func (h *videoHandler) writeError(c echo.Context, err error) error {
	code, message := errorStatus(err)
	if code >= http.StatusInternalServerError {
		h.logger.Errorf("request %s failed: %v", utils.GetRequestID(c), err)
	}
	return utils.ErrorResponse(c, code, message)
}

// errorStatus maps gateway and pipeline errors to an HTTP status and message.
func errorStatus(err error) (int, string) {
	var (
		validationErrs validator.ValidationErrors
		persistErr     *videofiles.PersistenceError
		publishErr     *videofiles.PublishError
		httpErr        *echo.HTTPError
	)
	switch {
	case errors.Is(err, videofiles.ErrUnsupportedFormat):
		return http.StatusBadRequest, "File type not allowed"
	case errors.Is(err, videofiles.ErrEmptyUpload):
		return http.StatusBadRequest, "No selected file"
	case errors.As(err, &validationErrs):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, videofiles.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, videofiles.ErrBusy):
		return http.StatusConflict, "Another upload with the same name is being processed"
	case errors.Is(err, videofiles.ErrQueueUnavailable):
		return http.StatusServiceUnavailable, "Job queue unavailable"
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, "Video processed but could not be recorded"
	case errors.As(err, &publishErr):
		return http.StatusInternalServerError, "Video processed but could not be published"
	case errors.As(err, &httpErr):
		return httpErr.Code, fmt.Sprint(httpErr.Message)
	case transcode.IsCancelled(err):
		return http.StatusServiceUnavailable, "Video processing cancelled"
	case transcode.StageOf(err) != "":
		return http.StatusInternalServerError, "Video processing failed"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

