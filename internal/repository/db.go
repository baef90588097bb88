package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
)

// DB bundles the ent SQL driver with the handles it was opened from.
type DB struct {
	Driver  *entsql.Driver
	Dialect string

	sqlDB  *sql.DB
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to Postgres through a pgx pool or to SQLite through modernc,
// depending on the DSN, and wraps the handle for ent.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IsPostgres() {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(ctx, cfg, logger)
}

func openPostgres(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "pgx")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, common.NewAppError("DB_ERROR", "parse dsn", errors.Join(common.ErrDatabase, err))
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "labcheck"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dialCtx, cancel := common.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, common.NewAppError("DB_ERROR", "connect", errors.Join(common.ErrDatabase, err))
	}

	// Wrap pool as *sql.DB for ent
	sqlDB := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database", "dialect", dialect.Postgres)
	return &DB{
		Driver:  entsql.OpenDB(dialect.Postgres, sqlDB),
		Dialect: dialect.Postgres,
		sqlDB:   sqlDB,
		pool:    pool,
		logger:  logger,
	}, nil
}

func openSQLite(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", "sqlite", "dsn", cfg.DSN)
	sqlDB, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "open sqlite", errors.Join(common.ErrDatabase, err))
	}
	// one writer; also keeps ":memory:" databases on a single connection
	sqlDB.SetMaxOpenConns(1)

	pingCtx, cancel := common.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, common.NewAppError("DB_ERROR", "ping sqlite", errors.Join(common.ErrDatabase, err))
	}

	logger.Info("successfully connected to database", "dialect", dialect.SQLite)
	return &DB{
		Driver:  entsql.OpenDB(dialect.SQLite, sqlDB),
		Dialect: dialect.SQLite,
		sqlDB:   sqlDB,
		logger:  logger,
	}, nil
}

// Close closes the database connections gracefully
func (db *DB) Close() {
	if db == nil {
		return
	}
	db.logger.Info("closing database connections")
	if err := db.Driver.Close(); err != nil {
		db.logger.Error("failed to close ent driver", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	db.logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	db.logger.Debug("pinging database")
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	if db.pool != nil {
		err = db.pool.Ping(ctx)
	} else {
		err = db.sqlDB.PingContext(ctx)
	}
	if err != nil {
		return common.NewAppError("DB_ERROR", "ping", errors.Join(common.ErrDatabase, err))
	}
	db.logger.Debug("database ping successful")
	return nil
}

func (db *DB) builder() *entsql.DialectBuilder {
	return entsql.Dialect(db.Dialect)
}

func (db *DB) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	var res sql.Result
	if err := db.Driver.Exec(ctx, query, args, &res); err != nil {
		return nil, errors.Join(common.ErrDatabase, err)
	}
	return res, nil
}

func (db *DB) query(ctx context.Context, query string, args []any) (*entsql.Rows, error) {
	rows := &entsql.Rows{}
	if err := db.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, errors.Join(common.ErrDatabase, err)
	}
	return rows, nil
}

// timestamps are fixed-width text so they sort lexically in both dialects
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
