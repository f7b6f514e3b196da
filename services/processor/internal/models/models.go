package models

import (
	"fmt"
	"time"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
)

// Station sensor channel names.
const (
	SensorSSP    = "ssp"
	SensorHRT    = "hrt"
	SensorTMP    = "tmp"
	SensorPRS    = "prs"
	SensorTPR    = "tpr"
	SensorSAL    = "sal"
	SensorSVLHRT = "svl_hrt"
	SensorSVLTPR = "svl_tpr"
	SensorSSPW   = "ssp_w"
	SensorSSPD   = "ssp_d"
	SensorPAG    = "pag"
	SensorBAT    = "bat"
	SensorVLT    = "vlt"
	SensorPitch  = "pitch"
	SensorRoll   = "roll"
)

// DateLayout is the timestamp format of persisted data files.
const DateLayout = "2006-01-02T15:04"

// RangeRecord is one acoustic range event logged at a station.
type RangeRecord struct {
	TS      time.Time
	RangeID string
	// Range is the measured two-way travel time in milliseconds.
	Range float64
	// TAT is the turn-around time of the replying beacon in milliseconds.
	TAT float64
}

// Station bundles the merged sensor channels and range log of one beacon.
type Station struct {
	ID      string
	Sensors map[string]*series.Series
	Ranges  []RangeRecord
}

// NewStation returns an empty station.
func NewStation(id string) *Station {
	return &Station{ID: id, Sensors: make(map[string]*series.Series)}
}

// Sensor returns the named channel or nil.
func (s *Station) Sensor(name string) *series.Series {
	if s == nil || s.Sensors == nil {
		return nil
	}
	return s.Sensors[name]
}

// HasSensors reports whether any channel carries samples.
func (s *Station) HasSensors() bool {
	if s == nil {
		return false
	}
	for _, ch := range s.Sensors {
		if !ch.Empty() {
			return true
		}
	}
	return false
}

// Pair is an ordered station pair; range events are taken from A.
type Pair struct {
	A string
	B string
}

// String renders the pair as "A-B".
func (p Pair) String() string {
	return fmt.Sprintf("%s-%s", p.A, p.B)
}

// Pairs returns every ordered pair of distinct station IDs.
func Pairs(ids []string) []Pair {
	out := make([]Pair, 0, len(ids)*(len(ids)-1))
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			out = append(out, Pair{A: a, B: b})
		}
	}
	return out
}

// PairResult carries one pair's enriched table and diagnostics.
type PairResult struct {
	Pair    Pair
	Table   *Table
	Records int
	// Successes counts non-missing baselines per baseline column.
	Successes map[string]int
	// MatchFailures counts unresolved lookups per matched column.
	MatchFailures map[string]int
	Err           error
}

// Canonical returns the table restricted to the canonical output columns.
func (r PairResult) Canonical() *Table {
	if r.Table == nil {
		return nil
	}
	return r.Table.Reorder(CanonicalColumns)
}
