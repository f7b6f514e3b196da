package output

import (
	"io"
	"sort"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/estimate"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
)

// Manifest file names.
const (
	ManifestName         = "manifest.json"
	EstimateManifestName = "estimate-manifest.json"
)

// PairSummary is the manifest entry of one processed pair.
type PairSummary struct {
	Pair          string         `json:"pair"`
	Records       int            `json:"records"`
	Successes     map[string]int `json:"successes,omitempty"`
	MatchFailures map[string]int `json:"match_failures,omitempty"`
	Error         string         `json:"error,omitempty"`
	Files         []string       `json:"files,omitempty"`
}

// EstimateSummary is the manifest entry of a constant-baseline estimate.
type EstimateSummary struct {
	Pair      string    `json:"pair"`
	Length    float64   `json:"length_m"`
	Intercept *float64  `json:"intercept_s,omitempty"`
	StdDev    float64   `json:"std_dev_tt_s"`
	N         int       `json:"n"`
	Start     time.Time `json:"start,omitzero"`
	End       time.Time `json:"end,omitzero"`
}

// Manifest records what a processing run produced.
type Manifest struct {
	RunID      uuid.UUID         `json:"run_id"`
	Project    string            `json:"project"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Stations   []string          `json:"stations"`
	Settings   map[string]string `json:"settings,omitempty"`
	Pairs      []PairSummary     `json:"pairs"`
	Estimates  []EstimateSummary `json:"estimates,omitempty"`
}

// NewManifest starts a manifest with a fresh run ID.
func NewManifest(project string, started time.Time) *Manifest {
	return &Manifest{
		RunID:     uuid.New(),
		Project:   project,
		StartedAt: started.UTC(),
		Settings:  make(map[string]string),
	}
}

// AddPair records a pair result and the files written for it.
func (m *Manifest) AddPair(res models.PairResult, files []string) {
	s := PairSummary{
		Pair:          res.Pair.String(),
		Records:       res.Records,
		Successes:     res.Successes,
		MatchFailures: res.MatchFailures,
		Files:         files,
	}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	m.Pairs = append(m.Pairs, s)
}

// AddEstimate records a constant-baseline estimate.
func (m *Manifest) AddEstimate(res estimate.Result) {
	m.Estimates = append(m.Estimates, EstimateSummary{
		Pair:      res.Pair,
		Length:    res.Length,
		Intercept: res.Intercept,
		StdDev:    res.StdDev,
		N:         res.N,
		Start:     res.Window.Start,
		End:       res.Window.End,
	})
}

// Encode writes the manifest as indented JSON with pairs sorted by name.
func (m *Manifest) Encode(out io.Writer) error {
	sort.Slice(m.Pairs, func(i, j int) bool { return m.Pairs[i].Pair < m.Pairs[j].Pair })
	sort.Slice(m.Estimates, func(i, j int) bool { return m.Estimates[i].Pair < m.Estimates[j].Pair })
	return json.MarshalWrite(out, m, json.Deterministic(true), jsontext.WithIndent("  "))
}

// DecodeManifest reads a manifest written by Encode.
func DecodeManifest(in io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.UnmarshalRead(in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// WriteManifest writes the manifest to Dir under name.
func (w *Writer) WriteManifest(name string, m *Manifest) (string, error) {
	return w.create(name, m.Encode)
}
