package models

import (
	"io"
	"time"
)

// CatalogEntry is a playable video recorded after a successful run.
type CatalogEntry struct {
	VideoID          string    `json:"id" db:"video_id"`
	Name             string    `json:"name" db:"name" validate:"required,lte=80"`
	URL              string    `json:"url" db:"url" validate:"required,lte=200"`
	OriginalFilename string    `json:"original_name" db:"original_name" validate:"required,lte=200"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

type VideoList struct {
	Videos     []*CatalogEntry `json:"videos"`
	TotalCount int             `json:"total_count"`
	TotalPages int             `json:"total_pages"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	HasMore    bool            `json:"has_more"`
}

// UploadInput is the validated form of an incoming upload.
type UploadInput struct {
	File     io.Reader `json:"-"`
	FileName string    `json:"file_name" validate:"required,lte=200"`
	Size     int64     `json:"size" validate:"gte=0"`
}

// ProcessResult is what the gateway reports back for an upload.
type ProcessResult struct {
	VideoID string `json:"video_id,omitempty"`
	JobID   string `json:"job_id,omitempty"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
}
