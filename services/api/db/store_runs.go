package db

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Run is a processing or estimation run.
type Run struct {
	ID          uuid.UUID  `json:"id"`
	Project     string     `json:"project"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Stations    []string   `json:"stations"`
	Pairs       int        `json:"pairs"`
	FailedPairs int        `json:"failed_pairs"`
	Estimates   int        `json:"estimates"`
}

// RunsPage is one page of runs, newest first.
type RunsPage struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"total_count"`
}

// RunFilter restricts listed runs.
type RunFilter struct {
	Project string
	Since   *time.Time
	Until   *time.Time
}

func (f RunFilter) where(args []any) (string, []any) {
	conditions := []string{}
	if f.Project != "" {
		conditions = append(conditions, "r.project = $"+strconv.Itoa(len(args)+1))
		args = append(args, f.Project)
	}
	if f.Since != nil {
		conditions = append(conditions, "r.started_at >= $"+strconv.Itoa(len(args)+1))
		args = append(args, *f.Since)
	}
	if f.Until != nil {
		conditions = append(conditions, "r.started_at <= $"+strconv.Itoa(len(args)+1))
		args = append(args, *f.Until)
	}
	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

const runSelect = `SELECT r.id, r.project, r.started_at, r.finished_at, r.stations, r.pairs, r.failed_pairs,
       (SELECT COUNT(*) FROM geosea.estimates e WHERE e.run_id = r.id) AS estimates
FROM geosea.runs r `

func scanRun(row pgx.Row) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Project, &r.StartedAt, &r.FinishedAt, &r.Stations, &r.Pairs, &r.FailedPairs, &r.Estimates)
	return r, err
}

// ListRuns returns a page of runs matching the filter.
func (s *Store) ListRuns(ctx context.Context, f RunFilter, limit, offset int) (*RunsPage, error) {
	whereClause, args := f.where(nil)

	var totalCount int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM geosea.runs r "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, err
	}

	limitPos := len(args) + 1
	offsetPos := len(args) + 2
	args = append(args, limit, offset)

	query := strings.Builder{}
	query.WriteString(runSelect)
	query.WriteString(whereClause + " ")
	query.WriteString("ORDER BY r.started_at DESC ")
	query.WriteString("LIMIT $" + strconv.Itoa(limitPos) + " OFFSET $" + strconv.Itoa(offsetPos))

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &RunsPage{Runs: runs, TotalCount: totalCount}, nil
}

// GetRun returns a run by id, or nil when unknown.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, runSelect+"WHERE r.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRun returns the most recently started run that processed pairs,
// or nil when none exists.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, runSelect+"WHERE r.pairs > 0 ORDER BY r.started_at DESC LIMIT 1"))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Estimate is a stored constant-baseline estimate.
type Estimate struct {
	RunID       uuid.UUID  `json:"run_id"`
	PairID      string     `json:"pair_id"`
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
	LengthM     float64    `json:"length_m"`
	InterceptS  *float64   `json:"intercept_s,omitempty"`
	StdDevTT    float64    `json:"std_dev_tt"`
	N           int        `json:"n"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EstimateQuery selects stored estimates; empty fields match everything.
type EstimateQuery struct {
	PairID string
	RunID  *uuid.UUID
	Limit  int
}

// ListEstimates returns estimates, newest first.
func (s *Store) ListEstimates(ctx context.Context, q EstimateQuery) ([]Estimate, error) {
	conditions := []string{}
	args := []any{}
	if q.PairID != "" {
		conditions = append(conditions, "pair_id = $"+strconv.Itoa(len(args)+1))
		args = append(args, q.PairID)
	}
	if q.RunID != nil {
		conditions = append(conditions, "run_id = $"+strconv.Itoa(len(args)+1))
		args = append(args, *q.RunID)
	}

	query := strings.Builder{}
	query.WriteString("SELECT run_id, pair_id, window_start, window_end, length_m, intercept_s, std_dev_tt, n, created_at ")
	query.WriteString("FROM geosea.estimates ")
	if len(conditions) > 0 {
		query.WriteString("WHERE " + strings.Join(conditions, " AND ") + " ")
	}
	query.WriteString("ORDER BY created_at DESC, pair_id")
	if q.Limit > 0 {
		query.WriteString(" LIMIT $" + strconv.Itoa(len(args)+1))
		args = append(args, q.Limit)
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	estimates := make([]Estimate, 0)
	for rows.Next() {
		var e Estimate
		if err := rows.Scan(
			&e.RunID,
			&e.PairID,
			&e.WindowStart,
			&e.WindowEnd,
			&e.LengthM,
			&e.InterceptS,
			&e.StdDevTT,
			&e.N,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		estimates = append(estimates, e)
	}
	return estimates, rows.Err()
}
