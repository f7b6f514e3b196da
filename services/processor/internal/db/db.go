package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/estimate"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
)

const schema = `
CREATE SCHEMA IF NOT EXISTS geosea;

CREATE TABLE IF NOT EXISTS geosea.runs (
    id UUID PRIMARY KEY,
    project TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ,
    stations TEXT[] NOT NULL DEFAULT '{}',
    pairs INTEGER NOT NULL DEFAULT 0,
    failed_pairs INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS geosea.pairs (
    id TEXT PRIMARY KEY,
    station_id TEXT NOT NULL,
    range_id TEXT NOT NULL,
    last_run_id UUID REFERENCES geosea.runs(id),
    records INTEGER NOT NULL DEFAULT 0,
    bsl_count INTEGER NOT NULL DEFAULT 0,
    bsl_hrt_count INTEGER NOT NULL DEFAULT 0,
    bsl_tpr_count INTEGER NOT NULL DEFAULT 0,
    match_failures JSONB,
    error TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Events are keyed by their measured range as well as their timestamp: the
-- acoustic log resolves time to the minute, so two interrogations within one
-- minute share ts and must stay separate rows.
CREATE TABLE IF NOT EXISTS geosea.baselines (
    pair_id TEXT NOT NULL REFERENCES geosea.pairs(id),
    ts TIMESTAMPTZ NOT NULL,
    range_ms DOUBLE PRECISION NOT NULL,
    tat_ms DOUBLE PRECISION,
    tt DOUBLE PRECISION,
    ssp1 DOUBLE PRECISION,
    ssp2 DOUBLE PRECISION,
    bsl DOUBLE PRECISION,
    bsl_hrt DOUBLE PRECISION,
    bsl_tpr DOUBLE PRECISION,
    run_id UUID REFERENCES geosea.runs(id),
    PRIMARY KEY (pair_id, ts, range_ms)
);

CREATE TABLE IF NOT EXISTS geosea.estimates (
    run_id UUID NOT NULL REFERENCES geosea.runs(id),
    pair_id TEXT NOT NULL,
    window_start TIMESTAMPTZ,
    window_end TIMESTAMPTZ,
    length_m DOUBLE PRECISION NOT NULL,
    intercept_s DOUBLE PRECISION,
    std_dev_tt DOUBLE PRECISION NOT NULL,
    n INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (run_id, pair_id)
);`

// EnsureSchema creates the geosea tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

// RunRow is the stored summary of a processing run.
type RunRow struct {
	ID          uuid.UUID
	Project     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Stations    []string
	Pairs       int
	FailedPairs int
}

// BaselineRow is one stored enriched range event.
type BaselineRow struct {
	PairID string
	TS     time.Time
	Range  *float64
	TAT    *float64
	TT     *float64
	SSP1   *float64
	SSP2   *float64
	BSL    *float64
	BSLHRT *float64
	BSLTPR *float64
}

// BaselineRows flattens a pair table into storable rows. Events without a
// range cannot be keyed and are dropped.
func BaselineRows(res models.PairResult) []BaselineRow {
	if res.Table == nil {
		return nil
	}
	tbl := res.Table
	rows := make([]BaselineRow, 0, tbl.Len())
	for i, ts := range tbl.Index {
		rng := tbl.Value(models.ColRange, i)
		if rng == nil {
			continue
		}
		rows = append(rows, BaselineRow{
			PairID: res.Pair.String(),
			TS:     ts,
			Range:  rng,
			TAT:    tbl.Value(models.ColTAT, i),
			TT:     tbl.Value(models.ColTT, i),
			SSP1:   tbl.Value(models.ColSSP1, i),
			SSP2:   tbl.Value(models.ColSSP2, i),
			BSL:    tbl.Value(models.ColBSL, i),
			BSLHRT: tbl.Value(models.ColBSLHRT, i),
			BSLTPR: tbl.Value(models.ColBSLTPR, i),
		})
	}
	return rows
}

// UpsertRun inserts or completes a run record.
func UpsertRun(ctx context.Context, pool *pgxpool.Pool, run RunRow) error {
	var finished *time.Time
	if !run.FinishedAt.IsZero() {
		finished = &run.FinishedAt
	}
	_, err := pool.Exec(ctx, `INSERT INTO geosea.runs (id, project, started_at, finished_at, stations, pairs, failed_pairs)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE
SET finished_at = EXCLUDED.finished_at,
    stations = EXCLUDED.stations,
    pairs = EXCLUDED.pairs,
    failed_pairs = EXCLUDED.failed_pairs`,
		run.ID, run.Project, run.StartedAt, finished, run.Stations, run.Pairs, run.FailedPairs)
	return err
}

// UpsertPairs records the latest outcome of each pair.
func UpsertPairs(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID, results []models.PairResult) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO geosea.pairs (id, station_id, range_id, last_run_id, records, bsl_count, bsl_hrt_count, bsl_tpr_count, match_failures, error, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
ON CONFLICT (id) DO UPDATE
SET last_run_id = EXCLUDED.last_run_id,
    records = EXCLUDED.records,
    bsl_count = EXCLUDED.bsl_count,
    bsl_hrt_count = EXCLUDED.bsl_hrt_count,
    bsl_tpr_count = EXCLUDED.bsl_tpr_count,
    match_failures = EXCLUDED.match_failures,
    error = EXCLUDED.error,
    updated_at = NOW()`

	for _, r := range results {
		var errText *string
		if r.Err != nil {
			s := r.Err.Error()
			errText = &s
		}
		batch.Queue(query, r.Pair.String(), r.Pair.A, r.Pair.B, runID, r.Records,
			r.Successes[models.ColBSL], r.Successes[models.ColBSLHRT], r.Successes[models.ColBSLTPR],
			r.MatchFailures, errText)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range results {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}

// UpsertBaselines writes enriched range events; reprocessed events replace
// their stored values.
func UpsertBaselines(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID, rows []BaselineRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO geosea.baselines (pair_id, ts, range_ms, tat_ms, tt, ssp1, ssp2, bsl, bsl_hrt, bsl_tpr, run_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (pair_id, ts, range_ms) DO UPDATE
SET tat_ms = EXCLUDED.tat_ms,
    tt = EXCLUDED.tt,
    ssp1 = EXCLUDED.ssp1,
    ssp2 = EXCLUDED.ssp2,
    bsl = EXCLUDED.bsl,
    bsl_hrt = EXCLUDED.bsl_hrt,
    bsl_tpr = EXCLUDED.bsl_tpr,
    run_id = EXCLUDED.run_id`

	for _, r := range rows {
		batch.Queue(query, r.PairID, r.TS, r.Range, r.TAT, r.TT, r.SSP1, r.SSP2, r.BSL, r.BSLHRT, r.BSLTPR, runID)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range rows {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}

// InsertEstimates stores the constant-baseline estimates of a run.
func InsertEstimates(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID, results []estimate.Result) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO geosea.estimates (run_id, pair_id, window_start, window_end, length_m, intercept_s, std_dev_tt, n, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
ON CONFLICT (run_id, pair_id) DO UPDATE
SET window_start = EXCLUDED.window_start,
    window_end = EXCLUDED.window_end,
    length_m = EXCLUDED.length_m,
    intercept_s = EXCLUDED.intercept_s,
    std_dev_tt = EXCLUDED.std_dev_tt,
    n = EXCLUDED.n`

	for _, r := range results {
		batch.Queue(query, runID, r.Pair, optionalTime(r.Window.Start), optionalTime(r.Window.End),
			r.Length, r.Intercept, r.StdDev, r.N)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range results {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
