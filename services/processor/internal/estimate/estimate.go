// Package estimate fits a constant baseline length to a window of travel
// times by least squares against the reciprocal harmonic-mean sound speed.
package estimate

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/baseline"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/utils"
)

// Window is a closed time interval. Zero bounds are open.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in the window.
func (w Window) Contains(t time.Time) bool {
	return (w.Start.IsZero() || !t.Before(w.Start)) && (w.End.IsZero() || !t.After(w.End))
}

func (w Window) String() string {
	bound := func(t time.Time) string {
		if t.IsZero() {
			return "open"
		}
		return t.Format(time.RFC3339)
	}
	return bound(w.Start) + "/" + bound(w.End)
}

// InsufficientDataError is returned when a window holds too few usable rows
// to fit and derive a residual standard deviation.
type InsufficientDataError struct {
	Pair   string
	Window Window
	N      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for constant baseline of %s in %s: n=%d", e.Pair, e.Window, e.N)
}

// FitError is returned when the least-squares solve of a pair fails, e.g.
// a rank-deficient design when every row shares one sound speed.
type FitError struct {
	Pair   string
	Window Window
	N      int
	Err    error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("fit constant baseline of %s in %s (n=%d): %v", e.Pair, e.Window, e.N, e.Err)
}

func (e *FitError) Unwrap() error { return e.Err }

// Options controls a fit.
type Options struct {
	// Intercept adds a constant design column.
	Intercept bool
	// Window restricts the rows used for fitting.
	Window Window
	// Store is where the result is broadcast; defaults to Window.
	Store *Window
}

// Result is a constant-baseline estimate.
type Result struct {
	Pair string
	// Length is the fitted slope in metres.
	Length float64
	// Intercept is nil for no-intercept fits.
	Intercept *float64
	// StdDev is the residual standard deviation of tt in seconds.
	StdDev float64
	N      int
	Window Window
}

// ReciprocalSpeed adds hmssp and 1/v columns derived from ssp1 and ssp2
// unless already present.
func ReciprocalSpeed(tbl *models.Table) error {
	if tbl.Has(models.ColHMSSP) && tbl.Has(models.ColRecipV) {
		return nil
	}
	n := tbl.Len()
	hm := make([]*float64, n)
	rv := make([]*float64, n)
	for i := 0; i < n; i++ {
		v1 := utils.NormalizeSoundSpeed(tbl.Value(models.ColSSP1, i))
		v2 := utils.NormalizeSoundSpeed(tbl.Value(models.ColSSP2, i))
		var a, b float64
		if v1 != nil {
			a = *v1
		}
		if v2 != nil {
			b = *v2
		}
		v, ok := baseline.HarmonicSpeed(a, b)
		if !ok {
			continue
		}
		hm[i] = utils.Float(v)
		rv[i] = utils.Float(1 / v)
	}
	if err := tbl.Set(models.ColHMSSP, hm); err != nil {
		return err
	}
	return tbl.Set(models.ColRecipV, rv)
}

// Fit estimates the constant baseline of a pair table.
func Fit(tbl *models.Table, opts Options) (Result, error) {
	pair := models.Pair{A: tbl.ID, B: tbl.RangeID}.String()
	res := Result{Pair: pair, Window: opts.Window}

	if err := ReciprocalSpeed(tbl); err != nil {
		return res, err
	}

	var x, y []float64
	for i, ts := range tbl.Index {
		if !opts.Window.Contains(ts) {
			continue
		}
		tt := tbl.Value(models.ColTT, i)
		rv := tbl.Value(models.ColRecipV, i)
		if tt == nil || rv == nil || math.IsNaN(*tt) || math.IsNaN(*rv) {
			continue
		}
		x = append(x, *rv)
		y = append(y, *tt)
	}

	n := len(x)
	res.N = n
	params := 1
	if opts.Intercept {
		params = 2
	}
	if n <= 1 || n < params {
		return res, &InsufficientDataError{Pair: pair, Window: opts.Window, N: n}
	}

	design := mat.NewDense(n, params, nil)
	for i, v := range x {
		design.Set(i, 0, v)
		if opts.Intercept {
			design.Set(i, 1, 1)
		}
	}
	obs := mat.NewVecDense(n, y)

	var coef mat.VecDense
	if err := coef.SolveVec(design, obs); err != nil {
		return res, &FitError{Pair: pair, Window: opts.Window, N: n, Err: err}
	}

	var fitted, resid mat.VecDense
	fitted.MulVec(design, &coef)
	resid.SubVec(obs, &fitted)
	ssr := mat.Dot(&resid, &resid)

	res.Length = coef.AtVec(0)
	if opts.Intercept {
		res.Intercept = utils.Float(coef.AtVec(1))
	}
	res.StdDev = math.Sqrt(ssr / float64(n-1))
	return res, nil
}

// Apply broadcasts the estimate as bsl_const, intercept and std_dev_tt over
// the rows of the store window. Rows outside keep their previous values.
func Apply(tbl *models.Table, res Result, store Window) error {
	slope := tbl.Ensure(models.ColConst)
	sigma := tbl.Ensure(models.ColStdDev)
	var icpt []*float64
	if res.Intercept != nil {
		icpt = tbl.Ensure(models.ColIntcpt)
	}
	for i, ts := range tbl.Index {
		if !store.Contains(ts) {
			continue
		}
		slope[i] = utils.Float(res.Length)
		sigma[i] = utils.Float(res.StdDev)
		if icpt != nil {
			icpt[i] = utils.Float(*res.Intercept)
		}
	}
	return nil
}

// Estimate fits and then broadcasts the result over opts.Store (or the
// fitting window when unset).
func Estimate(tbl *models.Table, opts Options) (Result, error) {
	res, err := Fit(tbl, opts)
	if err != nil {
		return res, err
	}
	store := opts.Window
	if opts.Store != nil {
		store = *opts.Store
	}
	return res, Apply(tbl, res, store)
}
