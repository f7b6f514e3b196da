package baseline

import (
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/telemetry"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/utils"
)

const (
	// DefaultTolerance is the half-window used to match companion samples.
	DefaultTolerance = 7600 * time.Second
	// OutlierThreshold is the fixed deviation from the pair mean, in metres,
	// beyond which a baseline is rejected.
	OutlierThreshold = 10.0
)

// soundSource ties a station sound-speed channel to the table columns it
// feeds and the baseline column it produces.
type soundSource struct {
	sensor string
	side1  string
	side2  string
	out    string
}

var soundSources = []soundSource{
	{sensor: models.SensorSSP, side1: models.ColSSP1, side2: models.ColSSP2, out: models.ColBSL},
	{sensor: models.SensorSVLHRT, side1: models.ColSVHRT1, side2: models.ColSVHRT2, out: models.ColBSLHRT},
	{sensor: models.SensorSVLTPR, side1: models.ColSVTPR1, side2: models.ColSVTPR2, out: models.ColBSLTPR},
}

// BaselineColumns lists the baseline columns a pair can produce.
var BaselineColumns = []string{models.ColBSL, models.ColBSLHRT, models.ColBSLTPR}

var companions = []struct {
	sensor string
	side1  string
	side2  string
}{
	{sensor: models.SensorPRS, side1: models.ColPRS1, side2: models.ColPRS2},
	{sensor: models.SensorHRT, side1: models.ColHRT1, side2: models.ColHRT2},
	{sensor: models.SensorTPR, side1: models.ColTPR1, side2: models.ColTPR2},
	{sensor: models.SensorSAL, side1: models.ColSAL1, side2: models.ColSAL2},
}

// Processor enriches the range events of station pairs.
type Processor struct {
	tolerance time.Duration
	outliers  bool
	threshold float64
	workers   int
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	// process handles one pair inside Run; Process unless replaced in tests.
	process func(a, b *models.Station) models.PairResult
}

// Option configures a Processor.
type Option func(*Processor)

// WithTolerance sets the matching half-window.
func WithTolerance(d time.Duration) Option {
	return func(p *Processor) {
		p.tolerance = d
	}
}

// WithOutlierFilter enables rejection of baselines far from the pair mean.
func WithOutlierFilter(enabled bool) Option {
	return func(p *Processor) {
		p.outliers = enabled
	}
}

// WithWorkers bounds the number of pairs processed concurrently.
func WithWorkers(n int) Option {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithMetrics records per-pair metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// NewProcessor creates a Processor.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		tolerance: DefaultTolerance,
		threshold: OutlierThreshold,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.process = p.Process
	return p
}

// Process enriches the range events logged at a towards b.
func (p *Processor) Process(a, b *models.Station) models.PairResult {
	pair := models.Pair{A: a.ID, B: b.ID}
	res := models.PairResult{
		Pair:          pair,
		Successes:     make(map[string]int, len(BaselineColumns)),
		MatchFailures: make(map[string]int),
	}
	for _, col := range BaselineColumns {
		res.Successes[col] = 0
	}
	log := p.logger.With("pair", pair.String())

	rows := selectRanges(a, b.ID)
	tbl := rangeTable(a.ID, b.ID, rows)
	res.Records = len(rows)
	res.Table = tbl.Reorder(models.FullColumns)

	if len(rows) == 0 {
		log.Info("no range records for pair")
		return res
	}
	if !a.HasSensors() || !b.HasSensors() {
		log.Info("missing sensor data for pair", "records", len(rows))
		return res
	}

	for _, src := range soundSources {
		p.match(tbl, a.Sensor(src.sensor), src.side1, res.MatchFailures)
		p.match(tbl, b.Sensor(src.sensor), src.side2, res.MatchFailures)
	}
	for _, c := range companions {
		p.match(tbl, a.Sensor(c.sensor), c.side1, res.MatchFailures)
		p.match(tbl, b.Sensor(c.sensor), c.side2, res.MatchFailures)
	}

	computeBaselines(tbl, res.Successes)

	if p.outliers && tbl.Has(models.ColBSL) {
		before := tbl.Len()
		tbl = FilterOutliers(tbl, models.ColBSL, p.threshold)
		log.Debug("outlier filter applied", "before", before, "after", tbl.Len())
	}

	res.Table = tbl.Reorder(models.FullColumns)

	log.Info("pair processed",
		"records", res.Records,
		models.ColBSL, res.Successes[models.ColBSL],
		models.ColBSLHRT, res.Successes[models.ColBSLHRT],
		models.ColBSLTPR, res.Successes[models.ColBSLTPR],
	)
	return res
}

func (p *Processor) match(tbl *models.Table, src *series.Series, col string, failures map[string]int) {
	values, n := series.Match(tbl.Index, src, p.tolerance, nil)
	if values == nil {
		return
	}
	_ = tbl.Set(col, values)
	failures[col] += n
}

func selectRanges(a *models.Station, companion string) []models.RangeRecord {
	out := make([]models.RangeRecord, 0)
	for _, r := range a.Ranges {
		if r.RangeID == companion && r.Range != 0 {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out
}

func rangeTable(id, rangeID string, rows []models.RangeRecord) *models.Table {
	index := make([]time.Time, len(rows))
	rng := make([]*float64, len(rows))
	tat := make([]*float64, len(rows))
	for i, r := range rows {
		index[i] = r.TS
		rng[i] = utils.Float(r.Range)
		tat[i] = utils.Float(r.TAT)
	}
	tbl := models.NewTable(id, rangeID, index)
	_ = tbl.Set(models.ColRange, rng)
	_ = tbl.Set(models.ColTAT, tat)
	return tbl
}

type mask int

const (
	maskNone mask = iota
	maskBoth
	maskSide1
	maskSide2
)

func classify(v1, v2 *float64) mask {
	has1, has2 := utils.Present(v1), utils.Present(v2)
	switch {
	case has1 && has2:
		return maskBoth
	case has1:
		return maskSide1
	case has2:
		return maskSide2
	default:
		return maskNone
	}
}

// computeBaselines fills tt and one harmonic-mean baseline column per sound
// source that has at least one matched side.
func computeBaselines(tbl *models.Table, successes map[string]int) {
	n := tbl.Len()
	rng := tbl.Column(models.ColRange)
	tat := tbl.Column(models.ColTAT)
	tt := make([]*float64, n)
	anyTT := false

	for _, src := range soundSources {
		if !tbl.Has(src.side1) && !tbl.Has(src.side2) {
			continue
		}
		out := make([]*float64, n)
		for i := 0; i < n; i++ {
			v1, v2 := tbl.Value(src.side1, i), tbl.Value(src.side2, i)

			var s1, s2 float64
			switch classify(v1, v2) {
			case maskBoth:
				s1, s2 = *v1, *v2
			case maskSide1:
				s1, s2 = *v1, 0
			case maskSide2:
				s1, s2 = 0, *v2
			default:
				continue
			}

			if tt[i] == nil {
				tt[i] = utils.Float(TravelTime(*rng[i], *tat[i]))
				anyTT = true
			}
			if l, ok := Length(Harmonic, s1, s2, *rng[i], *tat[i]); ok {
				out[i] = utils.Float(l)
			}
		}
		_ = tbl.Set(src.out, out)
		successes[src.out] = tbl.Count(src.out)
	}

	if anyTT {
		_ = tbl.Set(models.ColTT, tt)
	}
}
