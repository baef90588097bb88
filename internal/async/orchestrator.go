package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/metrics"
	"github.com/joseph-ayodele/lab-compliance/internal/pipeline"
	"github.com/joseph-ayodele/lab-compliance/internal/repository"
)

// Pipeline is the stateless work a job runs; *pipeline.Processor implements it.
type Pipeline interface {
	Process(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*entity.ResultRecord, error)
}

// SubmitOptions tune a single submission.
type SubmitOptions struct {
	ForceRecovery    bool
	ExistingJobID    *uuid.UUID
	CustomCategoryID string
}

// JobView is the polling snapshot of a job. Result is set once the job is terminal.
type JobView struct {
	ID              uuid.UUID
	FileName        string
	State           constants.JobState
	ProgressPercent int
	Stage           string
	Attempts        int
	ErrorMessage    string
	Result          *entity.ResultRecord
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RetryPolicy bounds job-level retries.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// completeRetries is how many times a failed COMPLETED write is retried.
const completeRetries = 2

// Orchestrator owns job persistence, progress, retries and the worker pool.
type Orchestrator struct {
	jobs     repository.JobRepository
	results  repository.ResultRepository
	pipeline Pipeline
	queue    *Queue

	limiter    *rate.Limiter
	retry      RetryPolicy
	staleAfter time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
	queueOpts  []Option
}

type OrchestratorOption func(*Orchestrator)

func WithRetryPolicy(p RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		if p.MaxAttempts > 0 {
			o.retry.MaxAttempts = p.MaxAttempts
		}
		if p.Initial > 0 {
			o.retry.Initial = p.Initial
		}
		if p.Max > 0 {
			o.retry.Max = p.Max
		}
	}
}

// WithSubmitRate limits how fast jobs are accepted. rps <= 0 disables the gate.
func WithSubmitRate(rps float64, burst int) OrchestratorOption {
	return func(o *Orchestrator) {
		if rps <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithStaleAfter(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.staleAfter = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithQueueOptions passes worker pool options through to NewQueue.
func WithQueueOptions(opts ...Option) OrchestratorOption {
	return func(o *Orchestrator) { o.queueOpts = append(o.queueOpts, opts...) }
}

// NewOrchestrator starts the worker pool. Call Shutdown to drain it.
func NewOrchestrator(jobs repository.JobRepository, results repository.ResultRepository, p Pipeline, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		jobs:       jobs,
		results:    results,
		pipeline:   p,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		retry:      RetryPolicy{MaxAttempts: 3, Initial: 2 * time.Second, Max: 30 * time.Second},
		staleAfter: 15 * time.Minute,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	qopts := append([]Option{WithQueueMetrics(o.metrics)}, o.queueOpts...)
	o.queue = NewQueue(o.run, o.logger, qopts...)
	return o
}

// Submit validates fileRef, records a pending job (or resets ExistingJobID)
// and hands it to the worker pool.
func (o *Orchestrator) Submit(ctx context.Context, fileRef string, opts SubmitOptions) (uuid.UUID, error) {
	fileRef = strings.TrimSpace(fileRef)
	if err := validateFileRef(fileRef); err != nil {
		return uuid.Nil, err
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("submit rate limit: %w", err)
	}

	jobOpts := entity.JobOptions{ForceRecovery: opts.ForceRecovery, CustomCategoryID: strings.TrimSpace(opts.CustomCategoryID)}
	var id uuid.UUID
	kind := "new"
	if opts.ExistingJobID != nil {
		current, err := o.jobs.Get(ctx, *opts.ExistingJobID)
		if err != nil {
			return uuid.Nil, err
		}
		if jobOpts.CustomCategoryID == "" {
			jobOpts.CustomCategoryID = current.Options.CustomCategoryID
		}
		job, err := o.jobs.Reset(ctx, current.ID, fileRef, jobOpts)
		if err != nil {
			return uuid.Nil, err
		}
		id, kind = job.ID, "resubmit"
	} else {
		job := &entity.ProcessingJob{
			FileRef:  fileRef,
			FileName: filepath.Base(fileRef),
			Options:  jobOpts,
		}
		if err := o.jobs.Create(ctx, job); err != nil {
			return uuid.Nil, err
		}
		id = job.ID
	}
	o.metrics.Submitted(kind)

	if err := o.enqueue(ctx, id); err != nil {
		return id, err
	}
	o.logger.Info("job.submitted", "job_id", id, "file_ref", fileRef, "kind", kind,
		"force_recovery", jobOpts.ForceRecovery, "custom_category_id", jobOpts.CustomCategoryID)
	return id, nil
}

// Poll returns the job snapshot, with the persisted result once terminal.
func (o *Orchestrator) Poll(ctx context.Context, id uuid.UUID) (JobView, error) {
	job, err := o.jobs.Get(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	view := JobView{
		ID:              job.ID,
		FileName:        job.FileName,
		State:           job.State,
		ProgressPercent: job.ProgressPercent,
		Stage:           job.Stage,
		Attempts:        job.Attempts,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
	if job.State.Terminal() && job.ResultID != nil {
		rec, err := o.results.Get(ctx, *job.ResultID)
		switch {
		case err == nil:
			view.Result = rec
		case !errors.Is(err, common.ErrNotFound):
			return JobView{}, err
		}
	}
	return view, nil
}

// Reprocess runs a finished job again under the same ID and result record ID.
// A job that is currently processing is rejected with ErrConflict.
func (o *Orchestrator) Reprocess(ctx context.Context, id uuid.UUID, force bool) error {
	job, err := o.jobs.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.State == constants.JobStateProcessing {
		return common.NewAppError("CONFLICT", "job "+id.String()+" is processing", common.ErrConflict)
	}
	opts := job.Options
	opts.ForceRecovery = force
	if _, err := o.jobs.Reset(ctx, id, "", opts); err != nil {
		return err
	}
	o.metrics.Submitted("reprocess")
	o.logger.Info("job.reprocess", "job_id", id, "previous_state", job.State, "force_recovery", force)
	return o.enqueue(ctx, id)
}

// Recover resets processing jobs left behind by a crash and re-enqueues
// everything pending. It returns how many jobs were enqueued.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	stale, err := o.jobs.ResetStale(ctx, time.Now().Add(-o.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	pending, err := o.jobs.ListByState(ctx, constants.JobStatePending, 0)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	for _, job := range pending {
		if err := o.enqueue(ctx, job.ID); err != nil {
			return 0, err
		}
	}
	o.logger.Info("job.recover", "stale_reset", stale, "enqueued", len(pending))
	return len(pending), nil
}

// Shutdown stops accepting work and drains in-flight jobs.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.queue.Shutdown(ctx)
}

func (o *Orchestrator) enqueue(ctx context.Context, id uuid.UUID) error {
	return o.queue.Enqueue(ctx, Job{ID: id, SubmittedAt: time.Now(), RequestID: common.RequestIDFromContext(ctx)})
}

// run is the queue handler: claim, process with retries, persist, finish.
func (o *Orchestrator) run(ctx context.Context, qj Job) {
	log := common.LoggerFromContext(ctx, o.logger.With("job_id", qj.ID))

	claimed, err := o.jobs.Claim(ctx, qj.ID)
	if err != nil {
		log.Error("job.claim.failed", "err", err)
		return
	}
	if !claimed {
		log.Debug("job.claim.skipped")
		return
	}
	started := time.Now()

	// terminal writes must land even when the job context has expired
	persistCtx := context.WithoutCancel(ctx)

	job, err := o.jobs.Get(ctx, qj.ID)
	if err != nil {
		log.Error("job.load.failed", "err", err)
		o.finishFailed(persistCtx, log, qj.ID, uuid.New(), "", err, started)
		return
	}
	resultID := uuid.New()
	if job.ResultID != nil {
		resultID = *job.ResultID
	}

	req := pipeline.Request{
		JobID:    job.ID,
		ResultID: resultID,
		Path:     job.FileRef,
		FileName: job.FileName,
		Options:  job.Options,
	}
	progress := func(ctx context.Context, percent int, stage string) {
		if err := o.jobs.UpdateProgress(ctx, job.ID, percent, stage); err != nil {
			log.Warn("job.progress.failed", "percent", percent, "err", err)
		}
	}

	rec, err := o.processWithRetry(ctx, log, req, progress)
	if err != nil {
		o.finishFailed(persistCtx, log, job.ID, resultID, job.FileName, err, started)
		return
	}

	if err := o.results.Save(persistCtx, rec); err != nil {
		o.finishFailed(persistCtx, log, job.ID, resultID, job.FileName, err, started)
		return
	}
	if err := o.complete(persistCtx, log, job.ID); err != nil {
		log.Error("job.complete.failed", "err", err)
		o.finishFailed(persistCtx, log, job.ID, resultID, job.FileName, fmt.Errorf("mark completed: %w", err), started)
		return
	}
	o.metrics.JobFinished(string(constants.JobStateCompleted), time.Since(started))
	log.Info("job.completed",
		"verdicts", len(rec.Verdicts),
		"used_recovery", rec.UsedRecovery,
		"elapsed", time.Since(started),
	)
}

// complete marks the job COMPLETED, retrying briefly on storage errors.
func (o *Orchestrator) complete(ctx context.Context, log *slog.Logger, id uuid.UUID) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retry.Initial
	b.MaxInterval = o.retry.Max
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, completeRetries), ctx)
	return backoff.RetryNotify(func() error {
		err := o.jobs.Complete(ctx, id)
		if errors.Is(err, common.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		log.Warn("job.complete.retry", "err", err, "backoff", wait)
	})
}

func (o *Orchestrator) processWithRetry(ctx context.Context, log *slog.Logger, req pipeline.Request, progress pipeline.ProgressFunc) (*entity.ResultRecord, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retry.Initial
	b.MaxInterval = o.retry.Max
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.retry.MaxAttempts-1)), ctx)

	attempt := 0
	var rec *entity.ResultRecord
	op := func() error {
		attempt++
		if err := o.jobs.SetAttempts(ctx, req.JobID, attempt); err != nil {
			log.Warn("job.attempts.failed", "err", err)
		}
		if attempt > 1 {
			o.metrics.JobRetried()
		}
		r, err := o.pipeline.Process(ctx, req, progress)
		if err != nil {
			if common.IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		rec = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("job.retry", "attempt", attempt, "max_attempts", o.retry.MaxAttempts, "wait", wait, "err", err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return rec, nil
}

func (o *Orchestrator) finishFailed(ctx context.Context, log *slog.Logger, jobID, resultID uuid.UUID, fileName string, cause error, started time.Time) {
	msg := cause.Error()
	log.Error("job.failed", "err", cause, "permanent", common.IsPermanent(cause))

	if err := o.results.Save(ctx, entity.FailureRecord(resultID, jobID, fileName, msg)); err != nil {
		log.Error("job.failure_record.failed", "err", err)
	}
	if err := o.jobs.Fail(ctx, jobID, msg); err != nil {
		log.Error("job.fail.failed", "err", err)
	}
	o.metrics.JobFinished(string(constants.JobStateFailed), time.Since(started))
}

func validateFileRef(ref string) error {
	v := common.NewValidator().Field("file_ref", ref, common.Required, common.DocumentPath)
	return common.AsInvalidInput(v)
}
