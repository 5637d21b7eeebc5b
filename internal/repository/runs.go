package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/renanrgarcia/google-sheets-text-automation/constants"
)

const runsTable = "transfer_runs"

var ErrRunNotFound = errors.New("transfer run not found")

// Run is one row of the transfer_runs table.
type Run struct {
	ID             uuid.UUID
	SourceKind     string
	SourceLocation string
	Destination    string
	Status         constants.RunStatus
	Rows           int
	Warnings       []string
	ErrorMessage   string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// NewRun describes a run about to start.
type NewRun struct {
	SourceKind     string
	SourceLocation string
	Destination    string
}

type RunRepository interface {
	Migrate(ctx context.Context) error
	Start(ctx context.Context, in NewRun) (*Run, error)
	FinishSuccess(ctx context.Context, id uuid.UUID, status constants.RunStatus, rows int, warnings []string) error
	FinishFailure(ctx context.Context, id uuid.UUID, message string) error
	Get(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRecent(ctx context.Context, limit int) ([]*Run, error)
}

type runRepo struct {
	drv     *entsql.Driver
	dialect string
	log     *slog.Logger
	now     func() time.Time
}

func NewRunRepository(db *DB, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{drv: db.Driver, dialect: db.Dialect, log: log, now: func() time.Time { return time.Now().UTC() }}
}

var runColumns = []string{
	"id", "source_kind", "source_location", "destination", "status",
	"row_count", "warnings", "error_message", "started_at", "finished_at",
}

func (r *runRepo) Migrate(ctx context.Context) error {
	ts := "TIMESTAMP"
	if r.dialect == dialect.Postgres {
		ts = "TIMESTAMPTZ"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	source_kind TEXT NOT NULL,
	source_location TEXT NOT NULL,
	destination TEXT NOT NULL,
	status TEXT NOT NULL,
	row_count INTEGER NOT NULL DEFAULT 0,
	warnings TEXT,
	error_message TEXT,
	started_at %s NOT NULL,
	finished_at %s
)`, runsTable, ts, ts),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_transfer_runs_started_at ON %s (started_at)`, runsTable),
	}
	for _, stmt := range stmts {
		if err := r.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			r.log.Error("transfer_runs migrate failed", "err", err)
			return err
		}
	}
	r.log.Debug("transfer_runs migrated", "dialect", r.dialect)
	return nil
}

func (r *runRepo) Start(ctx context.Context, in NewRun) (*Run, error) {
	run := &Run{
		ID:             uuid.New(),
		SourceKind:     in.SourceKind,
		SourceLocation: in.SourceLocation,
		Destination:    in.Destination,
		Status:         constants.RunStatusRunning,
		StartedAt:      r.now(),
	}
	q, args := entsql.Dialect(r.dialect).
		Insert(runsTable).
		Columns("id", "source_kind", "source_location", "destination", "status", "row_count", "started_at").
		Values(run.ID.String(), run.SourceKind, run.SourceLocation, run.Destination, string(run.Status), 0, run.StartedAt).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("transfer_run start failed", "source", in.SourceLocation, "err", err)
		return nil, err
	}
	r.log.Info("transfer_run started", "run_id", run.ID, "source_kind", in.SourceKind, "source", in.SourceLocation)
	return run, nil
}

func (r *runRepo) FinishSuccess(ctx context.Context, id uuid.UUID, status constants.RunStatus, rows int, warnings []string) error {
	var encoded any
	if len(warnings) > 0 {
		b, err := json.Marshal(warnings)
		if err != nil {
			return err
		}
		encoded = string(b)
	}
	q, args := entsql.Dialect(r.dialect).
		Update(runsTable).
		Set("status", string(status)).
		Set("row_count", rows).
		Set("warnings", encoded).
		Set("finished_at", r.now()).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.exec(ctx, id, q, args); err != nil {
		r.log.Error("transfer_run finish failed", "run_id", id, "status", status, "err", err)
		return err
	}
	r.log.Info("transfer_run finished", "run_id", id, "status", status, "rows", rows, "warnings", len(warnings))
	return nil
}

func (r *runRepo) FinishFailure(ctx context.Context, id uuid.UUID, message string) error {
	q, args := entsql.Dialect(r.dialect).
		Update(runsTable).
		Set("status", string(constants.RunStatusFailed)).
		Set("error_message", message).
		Set("finished_at", r.now()).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.exec(ctx, id, q, args); err != nil {
		r.log.Error("transfer_run finish(FAILED) failed", "run_id", id, "err", err)
		return err
	}
	r.log.Warn("transfer_run finished (FAILED)", "run_id", id, "error", message)
	return nil
}

func (r *runRepo) exec(ctx context.Context, id uuid.UUID, q string, args []any) error {
	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	q, args := entsql.Dialect(r.dialect).
		Select(runColumns...).
		From(entsql.Table(runsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	runs, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return runs[0], nil
}

// ListRecent returns up to limit runs, newest first.
func (r *runRepo) ListRecent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	q, args := entsql.Dialect(r.dialect).
		Select(runColumns...).
		From(entsql.Table(runsTable)).
		OrderBy(entsql.Desc("started_at"), entsql.Desc("id")).
		Limit(limit).
		Query()
	return r.query(ctx, q, args)
}

func (r *runRepo) query(ctx context.Context, q string, args []any) ([]*Run, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		var (
			id, status       string
			warnings, errMsg sql.NullString
			finished         sql.NullTime
			run              Run
		)
		if err := rows.Scan(&id, &run.SourceKind, &run.SourceLocation, &run.Destination, &status,
			&run.Rows, &warnings, &errMsg, &run.StartedAt, &finished); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("transfer_runs: bad id %q: %w", id, err)
		}
		run.ID = parsed
		run.Status = constants.RunStatus(status)
		run.ErrorMessage = errMsg.String
		if warnings.Valid && warnings.String != "" {
			if err := json.Unmarshal([]byte(warnings.String), &run.Warnings); err != nil {
				return nil, fmt.Errorf("transfer_runs: bad warnings for %s: %w", id, err)
			}
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		out = append(out, &run)
	}
	return out, rows.Err()
}
