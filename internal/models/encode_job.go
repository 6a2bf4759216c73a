package models

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

type RunOutcome string

const (
	RunOutcomePending   RunOutcome = "pending"
	RunOutcomeSucceeded RunOutcome = "succeeded"
	RunOutcomeFailed    RunOutcome = "failed"
)

// RunState is a step of the transcode run state machine.
type RunState string

const (
	RunStateInitialized       RunState = "initialized"
	RunStateRunningRenditions RunState = "running_renditions"
	RunStateBuildingManifest  RunState = "building_manifest"
	RunStateSucceeded         RunState = "succeeded"
	RunStateFailed            RunState = "failed"
)

// EncodeJob tracks one (source, profile) encode within a TranscodeRun.
type EncodeJob struct {
	SourcePath      string           `json:"source_path"`
	OutputDirectory string           `json:"output_directory"`
	Profile         RenditionProfile `json:"profile"`
	Status          JobStatus        `json:"status"`
	Diagnostic      string           `json:"diagnostic,omitempty"`
	StartedAt       time.Time        `json:"started_at,omitempty"`
	CompletedAt     time.Time        `json:"completed_at,omitempty"`
}

func (j *EncodeJob) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.CompletedAt.IsZero() {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}

// TranscodeRun is the aggregate for one source file.
type TranscodeRun struct {
	SourcePath      string       `json:"source_path"`
	OutputDirectory string       `json:"output_directory"`
	Jobs            []*EncodeJob `json:"jobs"`
	State           RunState     `json:"state"`
	Outcome         RunOutcome   `json:"outcome"`
	ManifestPath    string       `json:"manifest_path,omitempty"`
	StartedAt       time.Time    `json:"started_at"`
	CompletedAt     time.Time    `json:"completed_at"`
}

// Job returns the job for label, or nil.
func (r *TranscodeRun) Job(label string) *EncodeJob {
	for _, j := range r.Jobs {
		if j.Profile.Label == label {
			return j
		}
	}
	return nil
}
