package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lab-compliance/constants"
)

// JobOptions are the per-submission knobs persisted with the job.
type JobOptions struct {
	ForceRecovery    bool   `json:"force_recovery,omitempty"`
	CustomCategoryID string `json:"custom_category_id,omitempty"`
}

// ProcessingJob represents one submitted file moving through the pipeline.
type ProcessingJob struct {
	ID              uuid.UUID          `json:"id"`
	FileRef         string             `json:"file_ref"`
	FileName        string             `json:"file_name"`
	State           constants.JobState `json:"state"`
	ProgressPercent int                `json:"progress_percent"`
	Stage           string             `json:"stage"`
	Attempts        int                `json:"attempts"`
	ResultID        *uuid.UUID         `json:"result_id,omitempty"`
	ErrorMessage    string             `json:"error_message,omitempty"`
	Options         JobOptions         `json:"options"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	FinishedAt      *time.Time         `json:"finished_at,omitempty"`
}
