package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/config"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/ingest"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/output"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/seawater"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/telemetry"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/utils"
)

func testApp(dir string) *app {
	return &app{
		cfg:     config.Config{DataDir: dir},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: telemetry.NewMetrics(),
	}
}

// writePairTable writes n hourly events whose sound speed is speed(i) and
// whose travel time follows a 1500 m baseline with a 1 ms offset.
func writePairTable(t *testing.T, dir string, pair models.Pair, n int, speed func(i int) float64) {
	t.Helper()
	start := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
	index := make([]time.Time, n)
	ssp := make([]*float64, n)
	tt := make([]*float64, n)
	for i := range n {
		index[i] = start.Add(time.Duration(i) * time.Hour)
		v := speed(i)
		ssp[i] = utils.Float(v)
		tt[i] = utils.Float(1500/v + 0.001)
	}
	tbl := models.NewTable(pair.A, pair.B, index)
	require.NoError(t, tbl.Set(models.ColSSP1, ssp))
	require.NoError(t, tbl.Set(models.ColSSP2, ssp))
	require.NoError(t, tbl.Set(models.ColTT, tt))

	_, err := output.NewWriter(dir).WriteTableFile(output.PairFile(pair), tbl)
	require.NoError(t, err)
}

func TestApplyFlagsOverridesEnvironment(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--data", "/tmp/geosea",
		"--project", "Tag 2016",
		"--latitude", "54.3",
		"--tolerance", "15m",
		"--start", "2016-03-01",
	}))
	cfg := config.Config{DataDir: "../DATA", MatchTolerance: time.Hour}

	require.NoError(t, applyFlags(cmd, &cfg))

	assert.Equal(t, filepath.Join("/tmp/geosea", "tag-2016"), cfg.OutputDir())
	assert.True(t, cfg.HasLatitude)
	assert.Equal(t, 54.3, cfg.Latitude)
	assert.Equal(t, 15*time.Minute, cfg.MatchTolerance)
	assert.Equal(t, time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC), cfg.Start)
}

func TestApplyFlagsInvalidTime(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--end", "whenever"}))
	cfg := config.Config{}

	assert.Error(t, applyFlags(cmd, &cfg))
}

func TestPairTables(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2201-2202-BSL.dat", "2202-2201-BSL.dat", "2201-2202.dat", "2201-PRS.dat"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	all, err := pairTables(dir, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := pairTables(dir, []string{"2202-2201"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "2202-2201-BSL.dat")}, only)
}

func TestChannelFile(t *testing.T) {
	assert.Equal(t, "PRS", channelFile(models.SensorPRS))
	assert.Equal(t, "PRS", channelFile(models.SensorTPR))
	assert.Equal(t, "INC", channelFile(models.SensorRoll))
	assert.Equal(t, "HRT", channelFile(models.SensorHRT))
}

func TestPrintPairSummary(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	printPairSummary(&buf, []models.PairResult{
		{
			Pair:          models.Pair{A: "2201", B: "2202"},
			Records:       12,
			Successes:     map[string]int{models.ColBSL: 11},
			MatchFailures: map[string]int{"ssp2": 1, "hrt1": 0},
		},
		{Pair: models.Pair{A: "2202", B: "2201"}, Err: errors.New("boom")},
	})

	out := buf.String()
	assert.Contains(t, out, "2201-2202")
	assert.Contains(t, out, "ssp2=1")
	assert.NotContains(t, out, "hrt1=")
	assert.Contains(t, out, "2202-2201    boom")
}

func TestEstimateContinuesAfterDegeneratePair(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()
	good := models.Pair{A: "2201", B: "2202"}
	flat := models.Pair{A: "2202", B: "2201"}
	writePairTable(t, dir, good, 12, func(i int) float64 { return 1450 + 10*float64(i) })
	writePairTable(t, dir, flat, 5, func(int) float64 { return 1500 })
	a := testApp(dir)

	require.NoError(t, a.estimate(context.Background(), estimateFlags{intercept: true}))

	f, err := os.Open(filepath.Join(dir, output.EstimateManifestName))
	require.NoError(t, err)
	defer f.Close()
	m, err := output.DecodeManifest(f)
	require.NoError(t, err)
	require.Len(t, m.Estimates, 1)
	assert.Equal(t, "2201-2202", m.Estimates[0].Pair)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.EstimateFailures))

	tbl, err := ingest.ReadPairTable(filepath.Join(dir, output.PairFile(good)))
	require.NoError(t, err)
	assert.True(t, tbl.Has(models.ColConst))
}

func TestPrepareStationStoresModelChannels(t *testing.T) {
	dir := t.TempDir()
	a := testApp(dir)
	a.cfg.Salinity = 35
	a.cfg.Latitude = 54.3
	a.cfg.MatchTolerance = time.Minute

	base := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
	st := models.NewStation("2201")
	st.Sensors[models.SensorHRT] = series.New(models.SensorHRT, []series.Sample{{TS: base, Value: utils.Float(2.5)}})
	st.Sensors[models.SensorPRS] = series.New(models.SensorPRS, []series.Sample{{TS: base, Value: utils.Float(10000)}})
	st.Sensors[models.SensorSSP] = series.New(models.SensorSSP, []series.Sample{{TS: base, Value: utils.Float(1475)}})

	salModel, err := seawater.ParseSalinityModel("medwin")
	require.NoError(t, err)
	ms, err := seawater.ParseSpeedModels([]string{"wilson", "delgrosso"})
	require.NoError(t, err)

	a.prepareStation(st, true, salModel, ms)

	const inferred = 34.08685836501912
	require.NotNil(t, st.Sensor(models.SensorSVLHRT))
	_, err = output.NewWriter(dir).WriteStation(st)
	require.NoError(t, err)

	loaded, err := ingest.LoadStation(dir, "2201", "")
	require.NoError(t, err)
	tests := []struct {
		channel string
		want    float64
	}{
		{channel: models.SensorSAL, want: inferred},
		{channel: models.SensorSSP, want: 1475},
		{channel: models.SensorSSPW, want: seawater.SoundSpeedWilson(2.5, 10000, inferred)},
		{channel: models.SensorSSPD, want: seawater.SoundSpeedDelGrosso(2.5, 10000, inferred)},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			ch := loaded.Sensor(tt.channel)
			require.Equal(t, 1, ch.Len())
			require.NotNil(t, ch.Samples[0].Value)
			assert.InDelta(t, tt.want, *ch.Samples[0].Value, 1e-9)
		})
	}
}

func TestRunRejectsUnknownModels(t *testing.T) {
	a := testApp(t.TempDir())
	a.cfg.HasLatitude = true

	err := a.run(context.Background(), runFlags{salinityModel: "unesco"})
	assert.ErrorContains(t, err, "unknown salinity model")

	err = a.run(context.Background(), runFlags{salinityModel: "wilson", models: []string{"chen"}})
	assert.ErrorContains(t, err, "unknown sound speed model")
}

func TestPersistDryRunLogsPairs(t *testing.T) {
	var buf bytes.Buffer
	a := testApp(t.TempDir())
	a.logger = slog.New(slog.NewTextHandler(&buf, nil))
	a.cfg.DatabaseURL = "postgres://localhost/geosea"
	a.cfg.DryRun = true

	base := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
	tbl := models.NewTable("2201", "2202", []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour)})
	require.NoError(t, tbl.Set(models.ColRange, []*float64{utils.Float(2000), utils.Float(2000), utils.Float(2000)}))
	require.NoError(t, tbl.Set(models.ColBSL, []*float64{utils.Float(1500.0004), nil, utils.Float(1500.2496)}))
	results := []models.PairResult{
		{Pair: models.Pair{A: "2201", B: "2202"}, Table: tbl},
		{Pair: models.Pair{A: "2202", B: "2201"}, Err: errors.New("no range records")},
	}

	require.NoError(t, a.persist(context.Background(), output.NewManifest("tag", base), results))

	out := buf.String()
	assert.Contains(t, out, "pair=2201-2202 events=3 bsl_first=1500.000 bsl_last=1500.250")
	assert.NotContains(t, out, "pair=2202-2201")
	assert.Contains(t, out, "baselines=3")
}
