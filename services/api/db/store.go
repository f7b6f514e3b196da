package db

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pair is the stored outcome of the latest processing of a station pair.
type Pair struct {
	ID            string         `json:"id"`
	StationID     string         `json:"station_id"`
	RangeID       string         `json:"range_id"`
	LastRunID     *string        `json:"last_run_id,omitempty"`
	Records       int            `json:"records"`
	BSLCount      int            `json:"bsl_count"`
	BSLHRTCount   int            `json:"bsl_hrt_count"`
	BSLTPRCount   int            `json:"bsl_tpr_count"`
	MatchFailures map[string]int `json:"match_failures,omitempty"`
	Error         *string        `json:"error,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

const pairColumns = `id, station_id, range_id, last_run_id::text, records, bsl_count, bsl_hrt_count, bsl_tpr_count, match_failures, error, updated_at`

func scanPair(row pgx.Row) (Pair, error) {
	var p Pair
	err := row.Scan(
		&p.ID,
		&p.StationID,
		&p.RangeID,
		&p.LastRunID,
		&p.Records,
		&p.BSLCount,
		&p.BSLHRTCount,
		&p.BSLTPRCount,
		&p.MatchFailures,
		&p.Error,
		&p.UpdatedAt,
	)
	return p, err
}

// ListPairs returns all processed pairs.
func (s *Store) ListPairs(ctx context.Context) ([]Pair, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pairColumns+` FROM geosea.pairs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pairs := make([]Pair, 0)
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// GetPair returns a pair by its "A-B" id, or nil when unknown.
func (s *Store) GetPair(ctx context.Context, id string) (*Pair, error) {
	p, err := scanPair(s.pool.QueryRow(ctx, `SELECT `+pairColumns+` FROM geosea.pairs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Baseline is one enriched range event.
type Baseline struct {
	PairID    string    `json:"pair_id"`
	Timestamp time.Time `json:"ts"`
	RangeMS   *float64  `json:"range_ms,omitempty"`
	TATMS     *float64  `json:"tat_ms,omitempty"`
	TT        *float64  `json:"tt,omitempty"`
	SSP1      *float64  `json:"ssp1,omitempty"`
	SSP2      *float64  `json:"ssp2,omitempty"`
	BSL       *float64  `json:"bsl,omitempty"`
	BSLHRT    *float64  `json:"bsl_hrt,omitempty"`
	BSLTPR    *float64  `json:"bsl_tpr,omitempty"`
}

// BaselineQuery holds filters for retrieving range events.
type BaselineQuery struct {
	PairID string
	Limit  int
	Since  *time.Time
	Until  *time.Time
	// Latest returns the newest Limit events instead of the oldest.
	Latest bool
}

const baselinesBase = `
    SELECT pair_id, ts, range_ms, tat_ms, tt, ssp1, ssp2, bsl, bsl_hrt, bsl_tpr
    FROM geosea.baselines
    WHERE pair_id = $1
`

// sql builds the event query. Events sharing a timestamp are ordered by range.
func (q BaselineQuery) sql() (string, []any) {
	args := []any{q.PairID}
	clause := ""
	argPos := 2
	if q.Since != nil {
		clause += " AND ts >= $" + strconv.Itoa(argPos)
		args = append(args, *q.Since)
		argPos++
	}
	if q.Until != nil {
		clause += " AND ts <= $" + strconv.Itoa(argPos)
		args = append(args, *q.Until)
		argPos++
	}
	order := " ORDER BY ts, range_ms"
	if q.Latest {
		order = " ORDER BY ts DESC, range_ms DESC"
	}
	limit := ""
	if q.Limit > 0 {
		limit = " LIMIT $" + strconv.Itoa(argPos)
		args = append(args, q.Limit)
	}

	sql := baselinesBase + clause + order + limit
	if q.Latest {
		sql = "SELECT * FROM (" + sql + ") latest ORDER BY ts, range_ms"
	}
	return sql, args
}

// FetchBaselines returns the range events of a pair in chronological order.
func (s *Store) FetchBaselines(ctx context.Context, q BaselineQuery) ([]Baseline, error) {
	sql, args := q.sql()
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	baselines := make([]Baseline, 0)
	for rows.Next() {
		var b Baseline
		if err := rows.Scan(
			&b.PairID,
			&b.Timestamp,
			&b.RangeMS,
			&b.TATMS,
			&b.TT,
			&b.SSP1,
			&b.SSP2,
			&b.BSL,
			&b.BSLHRT,
			&b.BSLTPR,
		); err != nil {
			return nil, err
		}
		baselines = append(baselines, b)
	}
	return baselines, rows.Err()
}

// BaselineStats summarises the stored baseline lengths of a pair.
type BaselineStats struct {
	PairID  string     `json:"pair_id"`
	Count   int        `json:"count"`
	First   *time.Time `json:"first,omitempty"`
	Last    *time.Time `json:"last,omitempty"`
	MeanBSL *float64   `json:"mean_bsl,omitempty"`
	StdBSL  *float64   `json:"std_bsl,omitempty"`
	MinBSL  *float64   `json:"min_bsl,omitempty"`
	MaxBSL  *float64   `json:"max_bsl,omitempty"`
	MeanHRT *float64   `json:"mean_bsl_hrt,omitempty"`
	MeanTPR *float64   `json:"mean_bsl_tpr,omitempty"`
}

const baselineStatsSQL = `
SELECT COUNT(bsl), MIN(ts), MAX(ts),
       AVG(bsl), STDDEV_SAMP(bsl), MIN(bsl), MAX(bsl),
       AVG(bsl_hrt), AVG(bsl_tpr)
FROM geosea.baselines
WHERE pair_id = $1
`

// GetBaselineStats aggregates the stored events of a pair. Averages are nil
// when no baseline could be computed.
func (s *Store) GetBaselineStats(ctx context.Context, pairID string) (*BaselineStats, error) {
	st := BaselineStats{PairID: pairID}
	if err := s.pool.QueryRow(ctx, baselineStatsSQL, pairID).Scan(
		&st.Count,
		&st.First,
		&st.Last,
		&st.MeanBSL,
		&st.StdBSL,
		&st.MinBSL,
		&st.MaxBSL,
		&st.MeanHRT,
		&st.MeanTPR,
	); err != nil {
		return nil, err
	}
	return &st, nil
}
