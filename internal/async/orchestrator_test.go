package async

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/catalog"
	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/pipeline"
	"github.com/joseph-ayodele/lab-compliance/internal/recovery"
	"github.com/joseph-ayodele/lab-compliance/internal/repository"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type repos struct {
	jobs    repository.JobRepository
	results repository.ResultRepository
}

func openRepos(t *testing.T) repos {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, common.DatabaseConfig{DSN: ":memory:", DialTimeout: time.Second}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	return repos{
		jobs:    repository.NewJobRepository(db, quietLogger()),
		results: repository.NewResultRepository(db, quietLogger()),
	}
}

func newOrchestrator(t *testing.T, r repos, p Pipeline) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(r.jobs, r.results, p,
		WithLogger(quietLogger()),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond, Max: 5 * time.Millisecond}),
		WithQueueOptions(WithWorkers(2), WithQueueSize(8), WithProcessTimeout(10*time.Second)),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.Shutdown(ctx)
	})
	return o
}

func waitTerminal(t *testing.T, o *Orchestrator, id uuid.UUID) JobView {
	t.Helper()
	var view JobView
	require.Eventually(t, func() bool {
		v, err := o.Poll(context.Background(), id)
		if err != nil {
			return false
		}
		view = v
		return v.State.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return view
}

type stubPipeline struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, req pipeline.Request) (*entity.ResultRecord, error)
}

func (s *stubPipeline) Process(_ context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (*entity.ResultRecord, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	return s.fn(call, req)
}

func (s *stubPipeline) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func okRecord(req pipeline.Request) *entity.ResultRecord {
	return &entity.ResultRecord{
		ID:       req.ResultID,
		JobID:    req.JobID,
		FileName: req.FileName,
		Success:  true,
		Readings: []entity.ParameterReading{{ParameterName: "Salmonella spp.", ResultText: "Non rilevato"}},
		Verdicts: []entity.ComplianceVerdict{{ParameterName: "Salmonella spp.", Band: constants.BandSatisfactory}},
	}
}

type fakeExtractor struct {
	fragments []entity.TextFragment
	err       error
}

func (f fakeExtractor) ExtractText(context.Context, string) ([]entity.TextFragment, error) {
	return f.fragments, f.err
}

type fakeOCR struct{ pages []string }

func (f fakeOCR) OCRPages(context.Context, string) ([]string, error) { return f.pages, nil }

const recoveredReport = `Rapporto di prova n. 77
Descrizione campione: Carni macinate di suino

Parametro    Risultato    U.M.
Escherichia coli    700    UFC/g
Salmonella spp.    Non rilevato`

var meatCategory = entity.Category{
	ID:   "carni",
	Name: "Carni macinate",
	Entries: []entity.CatalogEntry{
		{ParameterName: "Escherichia coli", Limits: entity.LimitSet{
			Satisfactory:   "< 50 (UFC/g)",
			Acceptable:     "50 ≤ x < 500 (UFC/g)",
			Unsatisfactory: "≥ 500 (UFC/g)",
		}},
		{ParameterName: "Salmonella spp.", Limits: entity.LimitSet{Satisfactory: "Assente in 10 g"}},
	},
}

func TestGarbledTextIsRecoveredBeforeDecisions(t *testing.T) {
	garbled := strings.Repeat("C a r n i macinate E   c o l i 12 ", 8)
	proc := pipeline.NewProcessor(pipeline.Stages{
		Extractor:  fakeExtractor{fragments: []entity.TextFragment{{SourceLabel: "page-1", Content: garbled}}},
		Recovery:   recovery.NewStage(fakeOCR{pages: []string{recoveredReport}}, quietLogger()),
		Regulatory: catalog.NewMemoryStore([]entity.Category{meatCategory}),
	}, quietLogger())
	o := newOrchestrator(t, openRepos(t), proc)

	id, err := o.Submit(context.Background(), "/inbox/report.PDF", SubmitOptions{})
	require.NoError(t, err)

	view := waitTerminal(t, o, id)
	require.Equal(t, constants.JobStateCompleted, view.State)
	assert.Equal(t, constants.ProgressPersisted, view.ProgressPercent)
	require.NotNil(t, view.Result)

	rec := view.Result
	assert.True(t, rec.UsedRecovery)
	assert.Equal(t, recovery.MethodOCR, rec.RecoveryMethod)
	assert.NotContains(t, rec.EffectiveText, "C a r n i")
	require.Len(t, rec.Readings, 2)
	assert.Equal(t, "700", rec.Readings[0].ResultText)
	require.Len(t, rec.Verdicts, 2)
	assert.Equal(t, constants.BandUnsatisfactory, rec.Verdicts[0].Band)
	assert.Equal(t, constants.BandSatisfactory, rec.Verdicts[1].Band)
}

func TestMissingDocumentFailsWithoutRetry(t *testing.T) {
	missing := common.NewAppError("NOT_FOUND", "document /inbox/gone.pdf not found", common.ErrNotFound)
	proc := pipeline.NewProcessor(pipeline.Stages{Extractor: fakeExtractor{err: missing}}, quietLogger())
	o := newOrchestrator(t, openRepos(t), proc)

	id, err := o.Submit(context.Background(), "/inbox/gone.pdf", SubmitOptions{})
	require.NoError(t, err)

	view := waitTerminal(t, o, id)
	assert.Equal(t, constants.JobStateFailed, view.State)
	assert.Contains(t, view.ErrorMessage, "not found")
	assert.Equal(t, 1, view.Attempts)
	require.NotNil(t, view.Result)
	assert.False(t, view.Result.Success)
	assert.Empty(t, view.Result.Readings)
	assert.Empty(t, view.Result.Verdicts)
	assert.Equal(t, view.ErrorMessage, view.Result.ErrorMessage)
}

func TestCapabilityFailuresAreRetried(t *testing.T) {
	tests := []struct {
		name      string
		failUntil int
		wantState constants.JobState
		wantCalls int
	}{
		{name: "recovers on second attempt", failUntil: 1, wantState: constants.JobStateCompleted, wantCalls: 2},
		{name: "gives up after max attempts", failUntil: 10, wantState: constants.JobStateFailed, wantCalls: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubPipeline{fn: func(call int, req pipeline.Request) (*entity.ResultRecord, error) {
				if call <= tt.failUntil {
					return nil, common.CapabilityError("readings", errors.New("upstream 503"))
				}
				return okRecord(req), nil
			}}
			o := newOrchestrator(t, openRepos(t), stub)

			id, err := o.Submit(context.Background(), "/inbox/a.pdf", SubmitOptions{})
			require.NoError(t, err)
			view := waitTerminal(t, o, id)
			assert.Equal(t, tt.wantState, view.State)
			assert.Equal(t, tt.wantCalls, stub.Calls())
			assert.Equal(t, tt.wantCalls, view.Attempts)
		})
	}
}

func TestSubmitRejectsNonPDF(t *testing.T) {
	o := newOrchestrator(t, openRepos(t), &stubPipeline{})
	for _, ref := range []string{"", "  ", "/inbox/photo.jpg", "/inbox/report"} {
		_, err := o.Submit(context.Background(), ref, SubmitOptions{})
		assert.ErrorIs(t, err, common.ErrInvalidInput, ref)
	}
}

func TestReprocessKeepsIdentity(t *testing.T) {
	release := make(chan struct{})
	stub := &stubPipeline{fn: func(call int, req pipeline.Request) (*entity.ResultRecord, error) {
		if call == 1 {
			<-release
		}
		return okRecord(req), nil
	}}
	r := openRepos(t)
	o := newOrchestrator(t, r, stub)
	ctx := context.Background()

	id, err := o.Submit(ctx, "/inbox/a.pdf", SubmitOptions{CustomCategoryID: "mine"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, err := o.Poll(ctx, id)
		return err == nil && v.State == constants.JobStateProcessing
	}, 5*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, o.Reprocess(ctx, id, true), common.ErrConflict)

	close(release)
	first := waitTerminal(t, o, id)
	require.Equal(t, constants.JobStateCompleted, first.State)
	require.NotNil(t, first.Result)

	require.NoError(t, o.Reprocess(ctx, id, true))
	second := waitTerminal(t, o, id)
	require.Equal(t, constants.JobStateCompleted, second.State)
	assert.Equal(t, first.Result.ID, second.Result.ID)
	assert.Equal(t, 2, stub.Calls())

	job, err := r.jobs.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, job.Options.ForceRecovery)
	assert.Equal(t, "mine", job.Options.CustomCategoryID)

	assert.ErrorIs(t, o.Reprocess(ctx, uuid.New(), false), common.ErrNotFound)
}

func TestSubmitWithExistingJobID(t *testing.T) {
	var (
		mu   sync.Mutex
		reqs []pipeline.Request
	)
	stub := &stubPipeline{fn: func(_ int, req pipeline.Request) (*entity.ResultRecord, error) {
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()
		return okRecord(req), nil
	}}
	o := newOrchestrator(t, openRepos(t), stub)
	ctx := context.Background()

	id, err := o.Submit(ctx, "/inbox/a.pdf", SubmitOptions{CustomCategoryID: "mine"})
	require.NoError(t, err)
	waitTerminal(t, o, id)

	again, err := o.Submit(ctx, "/inbox/2024/b.pdf", SubmitOptions{ExistingJobID: &id, ForceRecovery: true})
	require.NoError(t, err)
	assert.Equal(t, id, again)
	view := waitTerminal(t, o, id)
	assert.Equal(t, 2, stub.Calls())
	assert.Equal(t, "b.pdf", view.FileName)

	mu.Lock()
	require.Len(t, reqs, 2)
	second := reqs[1]
	mu.Unlock()
	assert.Equal(t, reqs[0].ResultID, second.ResultID)
	assert.Equal(t, "/inbox/2024/b.pdf", second.Path)
	assert.Equal(t, "b.pdf", second.FileName)
	assert.True(t, second.Options.ForceRecovery)
	assert.Equal(t, "mine", second.Options.CustomCategoryID)

	unknown := uuid.New()
	_, err = o.Submit(ctx, "/inbox/a.pdf", SubmitOptions{ExistingJobID: &unknown})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

// flakyJobs fails the first failures calls to Complete.
type flakyJobs struct {
	repository.JobRepository
	mu       sync.Mutex
	failures int
}

func (f *flakyJobs) Complete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("write job: %w", common.ErrDatabase)
	}
	return f.JobRepository.Complete(ctx, id)
}

func TestCompleteWriteFailures(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		wantState constants.JobState
	}{
		{"transient error is retried", 1, constants.JobStateCompleted},
		{"persistent error fails the job", 100, constants.JobStateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := openRepos(t)
			r.jobs = &flakyJobs{JobRepository: r.jobs, failures: tt.failures}
			stub := &stubPipeline{fn: func(_ int, req pipeline.Request) (*entity.ResultRecord, error) { return okRecord(req), nil }}
			o := newOrchestrator(t, r, stub)

			id, err := o.Submit(context.Background(), "/inbox/a.pdf", SubmitOptions{})
			require.NoError(t, err)
			view := waitTerminal(t, o, id)
			assert.Equal(t, tt.wantState, view.State)
			assert.Equal(t, 1, stub.Calls())
			if tt.wantState == constants.JobStateFailed {
				assert.Contains(t, view.ErrorMessage, "mark completed")
			}
		})
	}
}

func TestRecoverRequeuesPendingJobs(t *testing.T) {
	r := openRepos(t)
	ctx := context.Background()
	job := &entity.ProcessingJob{FileRef: "/inbox/left.pdf", FileName: "left.pdf"}
	require.NoError(t, r.jobs.Create(ctx, job))

	stub := &stubPipeline{fn: func(_ int, req pipeline.Request) (*entity.ResultRecord, error) { return okRecord(req), nil }}
	o := newOrchestrator(t, r, stub)

	n, err := o.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	view := waitTerminal(t, o, job.ID)
	assert.Equal(t, constants.JobStateCompleted, view.State)
	assert.Equal(t, "left.pdf", view.Result.FileName)
}

func TestPollUnknownJob(t *testing.T) {
	o := newOrchestrator(t, openRepos(t), &stubPipeline{})
	_, err := o.Poll(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}
