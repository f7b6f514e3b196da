package ingest

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/telemetry"
)

func preamble() string {
	var b strings.Builder
	for i := 0; i < HeaderLines; i++ {
		b.WriteString("# header line\n")
	}
	return b.String()
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const rawBody = `BSL,2016/03/01 12:00:00,,,,2202,1000.5,12.5,,
BSL,2016/03/01 12:00:00,,,,2202,1000.5,12.5,,
BSL,2016/03/01 14:00:00,,,,2203.0,1001.0,12.5,,
SSP,2016/03/01 12:00:00,,,1500.2,,,,,
SSP,2016/03/01 13:00:00,,,9996,,,,,
SSP,2016/03/01 14:00:00,,,0,,,,,
PRS,2016/03/01 12:00:00,,,25000.5,4.1,,,,
HRT,2016/03/01 12:00:00,,,4.2,,,,,
SVT,2016/03/01 13:00:00,,,,4.3,,,,
INC,2016/03/01 12:00:00,,,0.5,-0.25,,,,
BAT,2016/03/01 12:00:00,,,80,12.1,,,,
`

func TestStations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Data_A_2202_1.csv", preamble())
	writeFile(t, dir, "Data_A_2201_1.csv", preamble())
	writeFile(t, dir, "Data_B_2201_2.csv", preamble())
	writeFile(t, dir, "notes.csv", "")

	r := &Reader{Dir: dir}
	ids, err := r.Stations()

	require.NoError(t, err)
	assert.Equal(t, []string{"2201", "2202"}, ids)
}

func TestStationsEmptyDir(t *testing.T) {
	r := &Reader{Dir: t.TempDir()}
	_, err := r.Stations()
	assert.ErrorIs(t, err, ErrNoStations)
}

func TestReadStation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Data_A_2201_1.csv", preamble()+rawBody)
	metrics := telemetry.NewMetrics()

	r := &Reader{Dir: dir, Metrics: metrics}
	st, err := r.ReadStation("2201")

	require.NoError(t, err)
	assert.Equal(t, "2201", st.ID)

	require.Len(t, st.Ranges, 2, "duplicate lines dropped")
	assert.Equal(t, "2202", st.Ranges[0].RangeID)
	assert.Equal(t, "2203", st.Ranges[1].RangeID)
	assert.Equal(t, 1000.5, st.Ranges[0].Range)
	assert.Equal(t, 12.5, st.Ranges[0].TAT)

	ssp := st.Sensor(models.SensorSSP)
	require.Equal(t, 2, ssp.Len(), "out of water sentinel dropped")
	assert.Equal(t, []float64{1500.2}, ssp.Values())

	assert.Equal(t, []float64{25000.5}, st.Sensor(models.SensorPRS).Values())
	assert.Equal(t, []float64{4.1}, st.Sensor(models.SensorTPR).Values())
	assert.Equal(t, []float64{4.2, 4.3}, st.Sensor(models.SensorHRT).Values())
	assert.Equal(t, []float64{12.1}, st.Sensor(models.SensorVLT).Values())

	pitch := st.Sensor(models.SensorPitch).Values()
	require.Len(t, pitch, 1)
	assert.InDelta(t, 0.5*180/math.Pi, pitch[0], 1e-9)
}

func TestReadStationWindow(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Data_A_2201_1.csv", preamble()+rawBody)

	r := &Reader{
		Dir:    dir,
		Window: Window{Start: time.Date(2016, 3, 1, 13, 0, 0, 0, time.UTC)},
	}
	st, err := r.ReadStation("2201")

	require.NoError(t, err)
	require.Len(t, st.Ranges, 1)
	assert.Equal(t, "2203", st.Ranges[0].RangeID)
	assert.Nil(t, st.Sensor(models.SensorPRS))
}

func TestParseInvalidDate(t *testing.T) {
	_, err := Parse(strings.NewReader(preamble() + "SSP,not a date,,,1500,,,,,\n"))
	assert.Error(t, err)
}

func TestParseDatName(t *testing.T) {
	tests := []struct {
		name    string
		want    DatFile
		wantErr bool
	}{
		{name: "2201-PRS.dat", want: DatFile{ID: "2201", Sensor: "PRS"}},
		{name: "/data/2201-hrt-corr.dat", want: DatFile{ID: "2201", Sensor: "HRT", Suffix: "corr"}},
		{name: "2201-XYZ.dat", wantErr: true},
		{name: "2201.dat", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDatName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "2201-HRT-corr.dat", DatFile{ID: "2201", Sensor: "HRT", Suffix: "corr"}.Name())
}

func TestLoadStation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2201-PRS.dat", "date\tprs\ttpr\n2016-03-01T12:00\t25000.5\t4.1\n2016-03-01T13:00\tNaN\t4.2\n")
	writeFile(t, dir, "2201-HRT-corr.dat", "date\thrt\n2016-03-01T12:00\t9.9\n")
	writeFile(t, dir, "2201-HRT.dat", "date\thrt\n2016-03-01T12:00\t4.2\n")

	st, err := LoadStation(dir, "2201", "")

	require.NoError(t, err)
	prs := st.Sensor(models.SensorPRS)
	require.Equal(t, 2, prs.Len())
	assert.Nil(t, prs.Samples[1].Value)
	assert.Equal(t, []float64{4.1, 4.2}, st.Sensor(models.SensorTPR).Values())
	assert.Equal(t, []float64{4.2}, st.Sensor(models.SensorHRT).Values())
}

func TestReadPairTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2201-2202-BSL.dat",
		"date\tID\trange_ID\trange\ttt\tbsl\n"+
			"2016-03-01T12:00\t2201\t2202\t1000.5\t0.494\t741.1\n"+
			"2016-03-01T14:00\t2201\t2202\t1001.0\t0.4943\tNaN\n")

	tbl, err := ReadPairTable(filepath.Join(dir, "2201-2202-BSL.dat"))

	require.NoError(t, err)
	assert.Equal(t, "2201", tbl.ID)
	assert.Equal(t, "2202", tbl.RangeID)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{models.ColID, models.ColRangeID, models.ColRange, models.ColTT, models.ColBSL}, tbl.Columns())
	assert.Equal(t, 741.1, *tbl.Value(models.ColBSL, 0))
	assert.Nil(t, tbl.Value(models.ColBSL, 1))
}
