package baseline

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
)

// Run processes every ordered pair of stations concurrently. Failures are
// confined to the pair's result; only context cancellation aborts the run.
// Results are ordered by pair.
func (p *Processor) Run(ctx context.Context, stations []*models.Station) ([]models.PairResult, error) {
	byID := make(map[string]*models.Station, len(stations))
	ids := make([]string, 0, len(stations))
	for _, st := range stations {
		if st == nil {
			continue
		}
		if _, dup := byID[st.ID]; dup {
			return nil, fmt.Errorf("duplicate station %s", st.ID)
		}
		byID[st.ID] = st
		ids = append(ids, st.ID)
	}
	sort.Strings(ids)

	pairs := models.Pairs(ids)
	results := make([]models.PairResult, len(pairs))

	workers := p.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, pair := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = p.safeProcess(byID[pair.A], byID[pair.B])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.Info("baseline processing finished", "stations", len(ids), "pairs", len(pairs))
	return results, nil
}

func (p *Processor) safeProcess(a, b *models.Station) (res models.PairResult) {
	start := time.Now()
	pair := models.Pair{A: stationID(a), B: stationID(b)}

	defer func() {
		if r := recover(); r != nil {
			res = models.PairResult{Pair: pair, Err: fmt.Errorf("pair %s: panic: %v", pair, r)}
			p.logger.Error("pair processing failed", "pair", pair.String(), "error", res.Err)
		}
		p.metrics.ObservePair(time.Since(start), res.Err != nil, res.Successes, res.MatchFailures)
	}()

	return p.process(a, b)
}

func stationID(st *models.Station) string {
	if st == nil {
		return ""
	}
	return st.ID
}
