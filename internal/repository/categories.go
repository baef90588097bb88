package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

// CategoryRepository holds user-authored categories. It satisfies catalog.Store.
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]entity.Category, error)
	GetCategory(ctx context.Context, id string) (*entity.Category, error)
	Upsert(ctx context.Context, c entity.Category) error
	Delete(ctx context.Context, id string) error
}

type categoryRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewCategoryRepository(db *DB, logger *slog.Logger) CategoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &categoryRepository{db: db, logger: logger}
}

var categoryColumns = []string{"id", "name", "description", "entries"}

func (r *categoryRepository) ListCategories(ctx context.Context) ([]entity.Category, error) {
	query, args := r.db.builder().Select(categoryColumns...).
		From(r.db.builder().Table(tableCategories)).
		OrderBy("name").
		Query()
	return r.queryCategories(ctx, query, args)
}

func (r *categoryRepository) GetCategory(ctx context.Context, id string) (*entity.Category, error) {
	query, args := r.db.builder().Select(categoryColumns...).
		From(r.db.builder().Table(tableCategories)).
		Where(entsql.EQ("id", id)).
		Query()
	cats, err := r.queryCategories(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "custom category "+id, common.ErrNotFound)
	}
	return &cats[0], nil
}

func (r *categoryRepository) Upsert(ctx context.Context, c entity.Category) error {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
		return common.NewAppError("INVALID_INPUT", "category id and name are required", common.ErrInvalidInput)
	}
	if c.Entries == nil {
		c.Entries = []entity.CatalogEntry{}
	}
	entries, err := json.Marshal(c.Entries)
	if err != nil {
		return fmt.Errorf("marshal category entries: %w", err)
	}
	now := formatTime(time.Now())
	query, args := r.db.builder().Insert(tableCategories).
		Columns("id", "name", "description", "entries", "created_at", "updated_at").
		Values(c.ID, c.Name, c.Description, string(entries), now, now).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("name")
				u.SetExcluded("description")
				u.SetExcluded("entries")
				u.SetExcluded("updated_at")
			}),
		).
		Query()
	if _, err := r.db.exec(ctx, query, args); err != nil {
		r.logger.Error("custom category upsert failed", "category_id", c.ID, "err", err)
		return err
	}
	r.logger.Info("custom category saved", "category_id", c.ID, "entries", len(c.Entries))
	return nil
}

func (r *categoryRepository) Delete(ctx context.Context, id string) error {
	query, args := r.db.builder().Delete(tableCategories).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.db.exec(ctx, query, args)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Join(common.ErrDatabase, err)
	}
	if n == 0 {
		return common.NewAppError("NOT_FOUND", "custom category "+id, common.ErrNotFound)
	}
	r.logger.Info("custom category deleted", "category_id", id)
	return nil
}

func (r *categoryRepository) queryCategories(ctx context.Context, query string, args []any) ([]entity.Category, error) {
	rows, err := r.db.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Category
	for rows.Next() {
		var (
			c       entity.Category
			entries string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &entries); err != nil {
			return nil, errors.Join(common.ErrDatabase, err)
		}
		if err := json.Unmarshal([]byte(entries), &c.Entries); err != nil {
			return nil, fmt.Errorf("category %s entries: %w", c.ID, err)
		}
		c.Source = entity.SourceCustom
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(common.ErrDatabase, err)
	}
	return out, nil
}
