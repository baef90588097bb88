package entity

import (
	"time"

	"github.com/google/uuid"
)

// ResultRecord is the persisted outcome of one job run, stored as a single JSON document.
type ResultRecord struct {
	ID                  uuid.UUID           `json:"id"`
	JobID               uuid.UUID           `json:"job_id"`
	FileName            string              `json:"file_name"`
	Success             bool                `json:"success"`
	EffectiveText       string              `json:"effective_text"`
	UsedRecovery        bool                `json:"used_recovery"`
	RecoveryMethod      string              `json:"recovery_method,omitempty"`
	Profile             SampleProfile       `json:"profile"`
	CategoryID          string              `json:"category_id,omitempty"`
	Readings            []ParameterReading  `json:"readings"`
	Verdicts            []ComplianceVerdict `json:"verdicts"`
	UnmatchedParameters []string            `json:"unmatched_parameters,omitempty"`
	ErrorMessage        string              `json:"error_message,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// FailureRecord builds the record persisted when a job fails: no readings, no verdicts.
func FailureRecord(id, jobID uuid.UUID, fileName, message string) *ResultRecord {
	now := time.Now().UTC()
	return &ResultRecord{
		ID:           id,
		JobID:        jobID,
		FileName:     fileName,
		Success:      false,
		Readings:     []ParameterReading{},
		Verdicts:     []ComplianceVerdict{},
		ErrorMessage: message,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
