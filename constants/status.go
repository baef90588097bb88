package constants

// JobState is the canonical state for rows in processing_job.
type JobState string

// Stable values (store these exact strings in DB).
const (
	JobStatePending    JobState = "PENDING"    // accepted, waiting for a worker
	JobStateProcessing JobState = "PROCESSING" // claimed by exactly one worker
	JobStateCompleted  JobState = "COMPLETED"  // terminal success
	JobStateFailed     JobState = "FAILED"     // terminal failure
)

// Terminal reports whether no worker will touch the job again without a reprocess.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Progress milestones reported while a job runs.
const (
	ProgressQueued     = 0
	ProgressExtracted  = 25
	ProgressClassified = 50
	ProgressDecided    = 80
	ProgressPersisted  = 100
)

// Stage names stored alongside progress.
const (
	StageQueued     = "queued"
	StageExtracted  = "extraction"
	StageClassified = "classification"
	StageDecided    = "decision"
	StagePersisted  = "persisted"
	StageFailed     = "failed"
)
