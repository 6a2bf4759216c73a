package models

import "time"

type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusProcessing QueueStatus = "in_progress"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// QueuedJob is a TranscodeRun request handed to the worker pool.
type QueuedJob struct {
	JobID            string    `json:"job_id" redis:"job_id" validate:"required"`
	SourcePath       string    `json:"source_path" redis:"source_path" validate:"required"`
	Name             string    `json:"name" redis:"name" validate:"required"`
	OriginalFilename string    `json:"original_filename" redis:"original_filename" validate:"required"`
	Attempts         int       `json:"attempts" redis:"attempts"`
	EnqueuedAt       time.Time `json:"enqueued_at" redis:"enqueued_at"`
}

// JobState is the pollable status of a queued job.
type JobState struct {
	JobID     string      `json:"job_id" redis:"job_id"`
	Status    QueueStatus `json:"status" redis:"status"`
	VideoID   string      `json:"video_id,omitempty" redis:"video_id"`
	Name      string      `json:"name,omitempty" redis:"name"`
	Message   string      `json:"message,omitempty" redis:"message"`
	UpdatedAt string      `json:"updated_at,omitempty" redis:"updated_at"`
}
