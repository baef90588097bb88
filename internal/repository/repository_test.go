package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, common.DatabaseConfig{DSN: ":memory:", DialTimeout: time.Second}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t), quietLogger())

	job := &entity.ProcessingJob{
		FileRef:  "/inbox/report.pdf",
		FileName: "report.pdf",
		Options:  entity.JobOptions{ForceRecovery: true, CustomCategoryID: "bakery"},
	}
	require.NoError(t, repo.Create(ctx, job))
	require.NotEqual(t, uuid.Nil, job.ID)
	require.NotNil(t, job.ResultID)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatePending, got.State)
	assert.Equal(t, "report.pdf", got.FileName)
	assert.Equal(t, *job.ResultID, *got.ResultID)
	assert.True(t, got.Options.ForceRecovery)
	assert.Equal(t, "bakery", got.Options.CustomCategoryID)
	assert.Nil(t, got.StartedAt)

	claimed, err := repo.Claim(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	again, err := repo.Claim(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, again, "a processing job must not be claimed twice")

	require.NoError(t, repo.UpdateProgress(ctx, job.ID, constants.ProgressClassified, constants.StageClassified))
	require.NoError(t, repo.SetAttempts(ctx, job.ID, 2))

	got, err = repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStateProcessing, got.State)
	assert.Equal(t, 50, got.ProgressPercent)
	assert.Equal(t, constants.StageClassified, got.Stage)
	assert.Equal(t, 2, got.Attempts)
	require.NotNil(t, got.StartedAt)

	_, err = repo.Reset(ctx, job.ID, "", entity.JobOptions{})
	require.ErrorIs(t, err, common.ErrConflict)

	require.NoError(t, repo.Complete(ctx, job.ID))
	got, err = repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStateCompleted, got.State)
	assert.Equal(t, 100, got.ProgressPercent)
	require.NotNil(t, got.FinishedAt)

	reset, err := repo.Reset(ctx, job.ID, "", entity.JobOptions{ForceRecovery: false})
	require.NoError(t, err)
	assert.Equal(t, job.ID, reset.ID)
	assert.Equal(t, *job.ResultID, *reset.ResultID)
	assert.Equal(t, constants.JobStatePending, reset.State)
	assert.False(t, reset.Options.ForceRecovery)
	assert.Nil(t, reset.FinishedAt)
	assert.Equal(t, "/inbox/report.pdf", reset.FileRef)

	moved, err := repo.Reset(ctx, job.ID, "/inbox/2024/rerun.pdf", reset.Options)
	require.NoError(t, err)
	assert.Equal(t, "/inbox/2024/rerun.pdf", moved.FileRef)
	assert.Equal(t, "rerun.pdf", moved.FileName)
	assert.Equal(t, *job.ResultID, *moved.ResultID)
}

func TestJobFailAndNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t), quietLogger())

	job := &entity.ProcessingJob{FileRef: "/x.pdf", FileName: "x.pdf"}
	require.NoError(t, repo.Create(ctx, job))
	require.NoError(t, repo.Fail(ctx, job.ID, "file not found"))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStateFailed, got.State)
	assert.Equal(t, "file not found", got.ErrorMessage)

	missing := uuid.New()
	_, err = repo.Get(ctx, missing)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.Complete(ctx, missing), common.ErrNotFound)
	_, err = repo.Reset(ctx, missing, "", entity.JobOptions{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListByStateAndResetStale(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t), quietLogger())

	var ids []uuid.UUID
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		job := &entity.ProcessingJob{FileRef: "/in/" + name, FileName: name}
		require.NoError(t, repo.Create(ctx, job))
		ids = append(ids, job.ID)
	}
	claimed, err := repo.Claim(ctx, ids[1])
	require.NoError(t, err)
	require.True(t, claimed)

	pending, err := repo.ListByState(ctx, constants.JobStatePending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[0], pending[0].ID)
	assert.Equal(t, ids[2], pending[1].ID)

	limited, err := repo.ListByState(ctx, constants.JobStatePending, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := repo.ResetStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "recently touched jobs are not stale")

	n, err = repo.ResetStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatePending, got.State)
}

func TestResultSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t), quietLogger())

	id, jobID := uuid.New(), uuid.New()
	compliant := true
	rec := &entity.ResultRecord{
		ID:       id,
		JobID:    jobID,
		FileName: "report.pdf",
		Success:  true,
		Readings: []entity.ParameterReading{{ParameterName: "Listeria monocytogenes", ResultText: "Non rilevato"}},
		Verdicts: []entity.ComplianceVerdict{{
			ParameterName: "Listeria monocytogenes",
			Band:          constants.BandSatisfactory,
			IsCompliant:   &compliant,
		}},
	}
	require.NoError(t, repo.Save(ctx, rec))

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Success)
	require.Len(t, got.Verdicts, 1)
	assert.Equal(t, constants.BandSatisfactory, got.Verdicts[0].Band)

	failed := entity.FailureRecord(id, jobID, "report.pdf", "boom")
	require.NoError(t, repo.Save(ctx, failed))

	got, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Success)
	assert.Empty(t, got.Verdicts)
	assert.Empty(t, got.Readings)
	assert.Equal(t, "boom", got.ErrorMessage)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.Save(ctx, &entity.ResultRecord{}), common.ErrInvalidInput)
}

func TestCategoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCategoryRepository(openTestDB(t), quietLogger())

	bakery := entity.Category{
		ID:   "bakery",
		Name: "Prodotti da forno",
		Entries: []entity.CatalogEntry{{
			ParameterName: "Muffe",
			Limits:        entity.LimitSet{Satisfactory: "< 100 (UFC/g)", Unsatisfactory: "≥ 1000 (UFC/g)"},
		}},
	}
	require.NoError(t, repo.Upsert(ctx, bakery))
	require.NoError(t, repo.Upsert(ctx, entity.Category{ID: "aaa", Name: "Acque"}))

	list, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Acque", list[0].Name)
	assert.Equal(t, entity.SourceCustom, list[1].Source)

	bakery.Name = "Forno"
	require.NoError(t, repo.Upsert(ctx, bakery))
	got, err := repo.GetCategory(ctx, "bakery")
	require.NoError(t, err)
	assert.Equal(t, "Forno", got.Name)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "≥ 1000 (UFC/g)", got.Entries[0].Limits.Unsatisfactory)

	require.NoError(t, repo.Delete(ctx, "bakery"))
	_, err = repo.GetCategory(ctx, "bakery")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "bakery"), common.ErrNotFound)
	assert.ErrorIs(t, repo.Upsert(ctx, entity.Category{ID: " "}), common.ErrInvalidInput)
}
