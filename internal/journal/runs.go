package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/anchorpatch/internal/patch"
)

// Status is the terminal state of a recorded run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusDryRun    Status = "dry_run"
)

// ErrRunNotFound is returned by GetRun for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded pipeline execution against one document.
type Run struct {
	ID              string           `json:"id"`
	Seq             int64            `json:"seq"`
	PlanName        string           `json:"plan_name"`
	PlanFingerprint string           `json:"plan_fingerprint"`
	Locator         string           `json:"locator"`
	Status          Status           `json:"status"`
	BeforeHash      string           `json:"before_hash"`
	AfterHash       string           `json:"after_hash,omitempty"`
	OpCount         int              `json:"op_count"`
	Applied         int              `json:"applied"`
	FailedIndex     int              `json:"failed_index"` // -1 unless Status is failed
	ErrorCode       string           `json:"error_code,omitempty"`
	ErrorAnchor     string           `json:"error_anchor,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	Saved           bool             `json:"saved"`
	Ops             []patch.OpReport `json:"ops,omitempty"`
}

// Filter narrows ListRuns results. Zero values match everything.
type Filter struct {
	Locator         string
	PlanFingerprint string
	Status          Status
	Limit           int // most recent N runs; 0 means no limit
}

// RecordRun stores a run and its op reports in one transaction and assigns
// run.Seq. Recording the same run ID twice is a no-op; inserted reports
// whether a new row was written.
func (j *Journal) RecordRun(ctx context.Context, run *Run) (inserted bool, err error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return false, fmt.Errorf("record run: next seq: %w", err)
	}

	var failedIndex sql.NullInt64
	if run.Status == StatusFailed {
		failedIndex = sql.NullInt64{Int64: int64(run.FailedIndex), Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, plan_name, plan_fingerprint, locator, status, before_hash, after_hash,
		 op_count, applied_count, failed_index, error_code, error_anchor, error_message, saved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		seq,
		run.PlanName,
		run.PlanFingerprint,
		run.Locator,
		string(run.Status),
		run.BeforeHash,
		run.AfterHash,
		run.OpCount,
		run.Applied,
		failedIndex,
		run.ErrorCode,
		run.ErrorAnchor,
		run.ErrorMessage,
		run.Saved,
	)
	if err != nil {
		return false, fmt.Errorf("record run: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, tx.Commit()
	}

	for _, op := range run.Ops {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_ops
			(run_id, idx, name, placement, anchor, start_offset, end_offset, skipped)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			op.Index,
			op.Name,
			string(op.Placement),
			op.Anchor,
			op.Start,
			op.End,
			op.Skipped,
		)
		if err != nil {
			return false, fmt.Errorf("record run: insert op %d: %w", op.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("record run: commit: %w", err)
	}

	run.Seq = seq
	return true, nil
}

const runColumns = `id, seq, plan_name, plan_fingerprint, locator, status, before_hash, after_hash,
	op_count, applied_count, failed_index, error_code, error_anchor, error_message, saved`

// ListRuns returns runs matching filter, oldest first. Op reports are not
// loaded; use GetRun for those.
func (j *Journal) ListRuns(ctx context.Context, filter Filter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if filter.Locator != "" {
		where = append(where, "locator = ?")
		args = append(args, filter.Locator)
	}
	if filter.PlanFingerprint != "" {
		where = append(where, "plan_fingerprint = ?")
		args = append(args, filter.PlanFingerprint)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + runColumns + " FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	// Re-sort the (possibly limited) newest-first page into ascending order.
	query = "SELECT * FROM (" + query + ") ORDER BY seq ASC"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run with its op reports.
func (j *Journal) GetRun(ctx context.Context, id string) (*Run, error) {
	row := j.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT idx, name, placement, anchor, start_offset, end_offset, skipped
		FROM run_ops
		WHERE run_id = ?
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get run %s ops: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			op        patch.OpReport
			placement string
		)
		if err := rows.Scan(&op.Index, &op.Name, &placement, &op.Anchor, &op.Start, &op.End, &op.Skipped); err != nil {
			return nil, fmt.Errorf("get run %s ops: %w", id, err)
		}
		op.Placement = patch.Placement(placement)
		run.Ops = append(run.Ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get run %s ops: %w", id, err)
	}

	return &run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		run         Run
		status      string
		failedIndex sql.NullInt64
	)
	err := s.Scan(
		&run.ID,
		&run.Seq,
		&run.PlanName,
		&run.PlanFingerprint,
		&run.Locator,
		&status,
		&run.BeforeHash,
		&run.AfterHash,
		&run.OpCount,
		&run.Applied,
		&failedIndex,
		&run.ErrorCode,
		&run.ErrorAnchor,
		&run.ErrorMessage,
		&run.Saved,
	)
	if err != nil {
		return Run{}, err
	}
	run.Status = Status(status)
	run.FailedIndex = -1
	if failedIndex.Valid {
		run.FailedIndex = int(failedIndex.Int64)
	}
	return run, nil
}
