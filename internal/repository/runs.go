package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/entity"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type CheckRunRepository interface {
	Start(ctx context.Context, run *entity.CheckRun) error
	FinishSuccess(ctx context.Context, id uuid.UUID, report entity.ComplianceReport) error
	FinishFailure(ctx context.Context, id uuid.UUID, message string) error
	Get(ctx context.Context, id uuid.UUID) (*entity.CheckRun, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.CheckRun, error)
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	Client string
	Limit  int // default 20
}

type checkRunRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewCheckRunRepository(db *DB, log *slog.Logger) CheckRunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &checkRunRepo{db: db, log: log, now: time.Now}
}

// Start inserts a RUNNING row. A nil ID is assigned; StartedAt defaults to now.
func (r *checkRunRepo) Start(ctx context.Context, run *entity.CheckRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = r.now().UTC()
	}
	run.Status = string(constants.RunStatusRunning)

	_, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`
		INSERT INTO check_runs (id, client, market, document_name, mode, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`),
		run.ID.String(), run.Client, run.Market, run.DocumentName, run.Mode, run.Status,
		run.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		r.log.Error("check_run start failed", "run_id", run.ID, "err", err)
		return err
	}
	r.log.Info("check_run started", "run_id", run.ID, "client", run.Client, "market", run.Market, "mode", run.Mode)
	return nil
}

func (r *checkRunRepo) FinishSuccess(ctx context.Context, id uuid.UUID, report entity.ComplianceReport) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`
		UPDATE check_runs
		SET status = $1, rule_count = $2, batch_count = $3, violation_count = $4, finished_at = $5
		WHERE id = $6`),
		string(constants.RunStatusOK), report.RuleCount, report.BatchCount, len(report.Violations),
		r.now().UTC().Format(timeLayout), id.String(),
	)
	if err := expectOneRow(res, err, id); err != nil {
		r.log.Error("check_run finish(OK) failed", "run_id", id, "err", err)
		return err
	}
	r.log.Info("check_run finished (OK)", "run_id", id, "status", string(report.Status), "violations", len(report.Violations))
	return nil
}

func (r *checkRunRepo) FinishFailure(ctx context.Context, id uuid.UUID, message string) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`
		UPDATE check_runs SET status = $1, error_message = $2, finished_at = $3 WHERE id = $4`),
		string(constants.RunStatusFailed), message, r.now().UTC().Format(timeLayout), id.String(),
	)
	if err := expectOneRow(res, err, id); err != nil {
		r.log.Error("check_run finish(FAILED) failed", "run_id", id, "err", err)
		return err
	}
	r.log.Warn("check_run finished (FAILED)", "run_id", id, "error", message)
	return nil
}

const selectRuns = `
	SELECT id, client, market, document_name, mode, status, rule_count, batch_count,
	       violation_count, error_message, started_at, finished_at
	FROM check_runs`

func (r *checkRunRepo) Get(ctx context.Context, id uuid.UUID) (*entity.CheckRun, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.rebind(selectRuns+` WHERE id = $1`), id.String())
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check run %s: %w", id, common.ErrNotFound)
	}
	return run, err
}

func (r *checkRunRepo) List(ctx context.Context, filter ListFilter) ([]*entity.CheckRun, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if filter.Client != "" {
		rows, err = r.db.SQL.QueryContext(ctx, r.db.rebind(selectRuns+` WHERE client = $1 ORDER BY started_at DESC LIMIT $2`), filter.Client, limit)
	} else {
		rows, err = r.db.SQL.QueryContext(ctx, r.db.rebind(selectRuns+` ORDER BY started_at DESC LIMIT $1`), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.CheckRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*entity.CheckRun, error) {
	var (
		run              entity.CheckRun
		id, started      string
		errMsg, finished sql.NullString
	)
	if err := s.Scan(&id, &run.Client, &run.Market, &run.DocumentName, &run.Mode, &run.Status,
		&run.RuleCount, &run.BatchCount, &run.ViolationCount, &errMsg, &started, &finished); err != nil {
		return nil, err
	}
	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("scan check run id: %w", err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("scan started_at: %w", err)
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("scan finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

func expectOneRow(res sql.Result, err error, id uuid.UUID) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("check run %s: %w", id, common.ErrNotFound)
	}
	return nil
}
