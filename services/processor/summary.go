package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/baseline"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/estimate"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/vertical"
)

var (
	headc = color.New(color.FgBlue, color.Bold)
	okc   = color.New(color.FgGreen)
	warnc = color.New(color.FgYellow)
	errc  = color.New(color.FgRed, color.Bold)
)

func printPairSummary(w io.Writer, results []models.PairResult) {
	headc.Fprintf(w, "%-12s %8s", "pair", "records")
	for _, col := range baseline.BaselineColumns {
		headc.Fprintf(w, " %8s", col)
	}
	headc.Fprintln(w, "  match failures")

	for _, res := range results {
		if res.Err != nil {
			errc.Fprintf(w, "%-12s %v\n", res.Pair, res.Err)
			continue
		}
		fmt.Fprintf(w, "%-12s %8d", res.Pair, res.Records)
		for _, col := range baseline.BaselineColumns {
			n := res.Successes[col]
			c := okc
			if n == 0 {
				c = warnc
			}
			c.Fprintf(w, " %8d", n)
		}
		fmt.Fprintf(w, "  %s\n", formatFailures(res.MatchFailures))
	}
}

func formatFailures(failures map[string]int) string {
	keys := make([]string, 0, len(failures))
	for k, n := range failures {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "-"
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, failures[k])
	}
	return strings.Join(parts, " ")
}

func printEstimateSummary(w io.Writer, results []estimate.Result, failures []error) {
	headc.Fprintf(w, "%-12s %14s %14s %12s %6s\n", "pair", "length [m]", "intercept [s]", "sigma [s]", "n")
	for _, r := range results {
		icpt := "-"
		if r.Intercept != nil {
			icpt = fmt.Sprintf("%.3e", *r.Intercept)
		}
		fmt.Fprintf(w, "%-12s %14.4f %14s %12.3e %6d\n", r.Pair, r.Length, icpt, r.StdDev, r.N)
	}
	for _, err := range failures {
		warnc.Fprintf(w, "%v\n", err)
	}
}

func printVerticalSummary(w io.Writer, diffs []vertical.Difference) {
	headc.Fprintf(w, "%-12s %8s %12s\n", "pair", "samples", "offset [cm]")
	for _, d := range diffs {
		fmt.Fprintf(w, "%-12s %8d %12.2f\n", d.Pair, d.Raw.Len(), d.OffsetCM)
	}
}
