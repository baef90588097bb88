package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

// ResultRepository stores one JSON document per result record, keyed by its ID.
type ResultRepository interface {
	Save(ctx context.Context, rec *entity.ResultRecord) error
	Get(ctx context.Context, id uuid.UUID) (*entity.ResultRecord, error)
}

type resultRepo struct {
	db  *DB
	log *slog.Logger
}

func NewResultRepository(db *DB, log *slog.Logger) ResultRepository {
	if log == nil {
		log = slog.Default()
	}
	return &resultRepo{db: db, log: log}
}

// Save upserts rec. A reprocessed job overwrites its previous record in place.
func (r *resultRepo) Save(ctx context.Context, rec *entity.ResultRecord) error {
	if rec.ID == uuid.Nil {
		return common.NewAppError("INVALID_INPUT", "result record without id", common.ErrInvalidInput)
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result record: %w", err)
	}
	success := 0
	if rec.Success {
		success = 1
	}
	query, args := r.db.builder().Insert(tableResults).
		Columns("id", "job_id", "success", "payload", "created_at", "updated_at").
		Values(rec.ID.String(), rec.JobID.String(), success, string(payload), formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt)).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("job_id")
				u.SetExcluded("success")
				u.SetExcluded("payload")
				u.SetExcluded("updated_at")
			}),
		).
		Query()
	if _, err := r.db.exec(ctx, query, args); err != nil {
		r.log.Error("result_record save failed", "result_id", rec.ID, "job_id", rec.JobID, "err", err)
		return err
	}
	r.log.Info("result_record saved", "result_id", rec.ID, "job_id", rec.JobID, "success", rec.Success,
		"verdicts", len(rec.Verdicts))
	return nil
}

func (r *resultRepo) Get(ctx context.Context, id uuid.UUID) (*entity.ResultRecord, error) {
	query, args := r.db.builder().Select("payload").
		From(r.db.builder().Table(tableResults)).
		Where(entsql.EQ("id", id.String())).
		Query()
	rows, err := r.db.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.Join(common.ErrDatabase, err)
		}
		return nil, common.NewAppError("NOT_FOUND", "result record "+id.String(), common.ErrNotFound)
	}
	var payload string
	if err := rows.Scan(&payload); err != nil {
		return nil, errors.Join(common.ErrDatabase, err)
	}
	var rec entity.ResultRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode result record %s: %w", id, err)
	}
	return &rec, nil
}
