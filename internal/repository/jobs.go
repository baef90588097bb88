package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

// JobRepository persists processing jobs. State transitions that must not race
// (claim, reset) are single conditional updates.
type JobRepository interface {
	Create(ctx context.Context, job *entity.ProcessingJob) error
	Get(ctx context.Context, id uuid.UUID) (*entity.ProcessingJob, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, percent int, stage string) error
	SetAttempts(ctx context.Context, id uuid.UUID, attempts int) error
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
	Reset(ctx context.Context, id uuid.UUID, fileRef string, opts entity.JobOptions) (*entity.ProcessingJob, error)
	ListByState(ctx context.Context, state constants.JobState, limit int) ([]*entity.ProcessingJob, error)
	ResetStale(ctx context.Context, olderThan time.Time) (int, error)
}

type jobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewJobRepository(db *DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log}
}

var jobColumns = []string{
	"id", "file_ref", "file_name", "state", "progress", "stage", "attempts",
	"result_id", "error_message", "options", "created_at", "updated_at",
	"started_at", "finished_at",
}

// Create inserts job as pending. ID, ResultID and timestamps are filled in when missing.
func (r *jobRepo) Create(ctx context.Context, job *entity.ProcessingJob) error {
	now := time.Now().UTC()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.ResultID == nil {
		rid := uuid.New()
		job.ResultID = &rid
	}
	job.State = constants.JobStatePending
	job.ProgressPercent = constants.ProgressQueued
	job.Stage = constants.StageQueued
	job.CreatedAt, job.UpdatedAt = now, now

	opts, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("marshal job options: %w", err)
	}
	query, args := r.db.builder().Insert(tableJobs).
		Columns(jobColumns...).
		Values(
			job.ID.String(), job.FileRef, job.FileName, string(job.State), job.ProgressPercent, job.Stage, job.Attempts,
			job.ResultID.String(), job.ErrorMessage, string(opts), formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
			nil, nil,
		).
		Query()
	if _, err := r.db.exec(ctx, query, args); err != nil {
		r.log.Error("processing_job create failed", "file_ref", job.FileRef, "err", err)
		return err
	}
	r.log.Info("processing_job created", "job_id", job.ID, "file_name", job.FileName)
	return nil
}

func (r *jobRepo) Get(ctx context.Context, id uuid.UUID) (*entity.ProcessingJob, error) {
	query, args := r.db.builder().Select(jobColumns...).
		From(r.db.builder().Table(tableJobs)).
		Where(entsql.EQ("id", id.String())).
		Query()
	jobs, err := r.queryJobs(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "processing job "+id.String(), common.ErrNotFound)
	}
	return jobs[0], nil
}

// Claim moves a pending job to processing. It reports false when another
// worker got there first or the job is no longer pending.
func (r *jobRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	now := formatTime(time.Now())
	query, args := r.db.builder().Update(tableJobs).
		Set("state", string(constants.JobStateProcessing)).
		Set("progress", constants.ProgressQueued).
		Set("stage", constants.StageQueued).
		Set("attempts", 0).
		Set("error_message", "").
		Set("started_at", now).
		Set("updated_at", now).
		SetNull("finished_at").
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.EQ("state", string(constants.JobStatePending)),
		)).
		Query()
	n, err := r.execCount(ctx, query, args)
	if err != nil {
		r.log.Error("processing_job claim failed", "job_id", id, "err", err)
		return false, err
	}
	return n == 1, nil
}

func (r *jobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, percent int, stage string) error {
	query, args := r.db.builder().Update(tableJobs).
		Set("progress", percent).
		Set("stage", stage).
		Set("updated_at", formatTime(time.Now())).
		Where(entsql.EQ("id", id.String())).
		Query()
	return r.mustTouch(ctx, id, query, args)
}

func (r *jobRepo) SetAttempts(ctx context.Context, id uuid.UUID, attempts int) error {
	query, args := r.db.builder().Update(tableJobs).
		Set("attempts", attempts).
		Set("updated_at", formatTime(time.Now())).
		Where(entsql.EQ("id", id.String())).
		Query()
	return r.mustTouch(ctx, id, query, args)
}

func (r *jobRepo) Complete(ctx context.Context, id uuid.UUID) error {
	now := formatTime(time.Now())
	query, args := r.db.builder().Update(tableJobs).
		Set("state", string(constants.JobStateCompleted)).
		Set("progress", constants.ProgressPersisted).
		Set("stage", constants.StagePersisted).
		Set("error_message", "").
		Set("updated_at", now).
		Set("finished_at", now).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.mustTouch(ctx, id, query, args); err != nil {
		return err
	}
	r.log.Info("processing_job finished (COMPLETED)", "job_id", id)
	return nil
}

func (r *jobRepo) Fail(ctx context.Context, id uuid.UUID, message string) error {
	now := formatTime(time.Now())
	query, args := r.db.builder().Update(tableJobs).
		Set("state", string(constants.JobStateFailed)).
		Set("stage", constants.StageFailed).
		Set("error_message", message).
		Set("updated_at", now).
		Set("finished_at", now).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.mustTouch(ctx, id, query, args); err != nil {
		return err
	}
	r.log.Warn("processing_job finished (FAILED)", "job_id", id, "error", message)
	return nil
}

// Reset puts a job that is not currently processing back to pending, keeping
// its ID and result record ID. A non-empty fileRef replaces the document.
// A processing job yields ErrConflict.
func (r *jobRepo) Reset(ctx context.Context, id uuid.UUID, fileRef string, opts entity.JobOptions) (*entity.ProcessingJob, error) {
	raw, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("marshal job options: %w", err)
	}
	upd := r.db.builder().Update(tableJobs)
	if fileRef != "" {
		upd = upd.Set("file_ref", fileRef).Set("file_name", filepath.Base(fileRef))
	}
	query, args := upd.
		Set("state", string(constants.JobStatePending)).
		Set("progress", constants.ProgressQueued).
		Set("stage", constants.StageQueued).
		Set("attempts", 0).
		Set("error_message", "").
		Set("options", string(raw)).
		Set("updated_at", formatTime(time.Now())).
		SetNull("started_at").
		SetNull("finished_at").
		Where(entsql.And(
			entsql.EQ("id", id.String()),
			entsql.NEQ("state", string(constants.JobStateProcessing)),
		)).
		Query()
	n, err := r.execCount(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		job, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, common.NewAppError("CONFLICT", fmt.Sprintf("job %s is %s", id, job.State), common.ErrConflict)
	}
	r.log.Info("processing_job reset", "job_id", id, "file_ref", fileRef, "force_recovery", opts.ForceRecovery)
	return r.Get(ctx, id)
}

// ListByState returns jobs oldest first. limit <= 0 means no limit.
func (r *jobRepo) ListByState(ctx context.Context, state constants.JobState, limit int) ([]*entity.ProcessingJob, error) {
	sel := r.db.builder().Select(jobColumns...).
		From(r.db.builder().Table(tableJobs)).
		Where(entsql.EQ("state", string(state))).
		OrderBy("created_at")
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()
	return r.queryJobs(ctx, query, args)
}

// ResetStale returns processing jobs not touched since olderThan to pending.
func (r *jobRepo) ResetStale(ctx context.Context, olderThan time.Time) (int, error) {
	query, args := r.db.builder().Update(tableJobs).
		Set("state", string(constants.JobStatePending)).
		Set("progress", constants.ProgressQueued).
		Set("stage", constants.StageQueued).
		Set("updated_at", formatTime(time.Now())).
		Where(entsql.And(
			entsql.EQ("state", string(constants.JobStateProcessing)),
			entsql.LT("updated_at", formatTime(olderThan)),
		)).
		Query()
	n, err := r.execCount(ctx, query, args)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Warn("processing_job stale jobs reset", "count", n)
	}
	return int(n), nil
}

func (r *jobRepo) execCount(ctx context.Context, query string, args []any) (int64, error) {
	res, err := r.db.exec(ctx, query, args)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *jobRepo) mustTouch(ctx context.Context, id uuid.UUID, query string, args []any) error {
	n, err := r.execCount(ctx, query, args)
	if err != nil {
		r.log.Error("processing_job update failed", "job_id", id, "err", err)
		return err
	}
	if n == 0 {
		return common.NewAppError("NOT_FOUND", "processing job "+id.String(), common.ErrNotFound)
	}
	return nil
}

func (r *jobRepo) queryJobs(ctx context.Context, query string, args []any) ([]*entity.ProcessingJob, error) {
	rows, err := r.db.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(common.ErrDatabase, err)
	}
	return out, nil
}

func scanJob(rows *entsql.Rows) (*entity.ProcessingJob, error) {
	var (
		job                       entity.ProcessingJob
		id, state, opts           string
		created, updated          string
		resultID, started, finish sql.NullString
	)
	err := rows.Scan(&id, &job.FileRef, &job.FileName, &state, &job.ProgressPercent, &job.Stage, &job.Attempts,
		&resultID, &job.ErrorMessage, &opts, &created, &updated, &started, &finish)
	if err != nil {
		return nil, errors.Join(common.ErrDatabase, err)
	}

	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("job id %q: %w", id, err)
	}
	job.State = constants.JobState(state)
	if resultID.Valid && resultID.String != "" {
		rid, err := uuid.Parse(resultID.String)
		if err != nil {
			return nil, fmt.Errorf("job %s result id: %w", id, err)
		}
		job.ResultID = &rid
	}
	if opts != "" {
		if err := json.Unmarshal([]byte(opts), &job.Options); err != nil {
			return nil, fmt.Errorf("job %s options: %w", id, err)
		}
	}
	if job.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if job.StartedAt, err = parseTimePtr(started); err != nil {
		return nil, err
	}
	if job.FinishedAt, err = parseTimePtr(finish); err != nil {
		return nil, err
	}
	return &job, nil
}
