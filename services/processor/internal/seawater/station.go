package seawater

import (
	"fmt"
	"strings"
	"time"

	"github.com/seafloor-geodesy/geosea/services/processor/internal/models"
	"github.com/seafloor-geodesy/geosea/services/processor/internal/series"
)

// Augment adds the modelled sound-speed channels svl_hrt and svl_tpr to a
// station from its hrt and tpr temperatures and its pressure record. A
// station carrying its own salinity channel uses it instead of sal.
func Augment(st *models.Station, sal Salinity, lat float64, tolerance time.Duration) {
	prs := st.Sensor(models.SensorPRS)
	if prs.Empty() {
		return
	}
	if s := st.Sensor(models.SensorSAL); !s.Empty() {
		sal = SeriesSalinity(s, tolerance)
	}

	for _, ch := range []struct{ temp, out string }{
		{temp: models.SensorHRT, out: models.SensorSVLHRT},
		{temp: models.SensorTPR, out: models.SensorSVLTPR},
	} {
		temp := st.Sensor(ch.temp)
		if temp.Empty() {
			continue
		}
		st.Sensors[ch.out] = Leroy(ch.out, Inputs{Primary: temp, Pressure: prs, Tolerance: tolerance}, sal, lat)
	}
}

// SpeedModel names an alternative sound-speed model evaluated on the hrt
// channel of a station.
type SpeedModel string

const (
	ModelWilson    SpeedModel = "wilson"
	ModelDelGrosso SpeedModel = "delgrosso"
)

var speedModels = map[SpeedModel]struct {
	out  string
	eval func(name string, in Inputs, sal Salinity) *series.Series
}{
	ModelWilson:    {out: models.SensorSSPW, eval: Wilson},
	ModelDelGrosso: {out: models.SensorSSPD, eval: DelGrosso},
}

// ParseSpeedModels validates model names such as "wilson" or "delgrosso".
func ParseSpeedModels(names []string) ([]SpeedModel, error) {
	out := make([]SpeedModel, 0, len(names))
	for _, name := range names {
		m := SpeedModel(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := speedModels[m]; !ok {
			return nil, fmt.Errorf("unknown sound speed model %q (want wilson or delgrosso)", name)
		}
		out = append(out, m)
	}
	return out, nil
}

// AddModels stores the selected models as ssp_w (Wilson) and ssp_d
// (Del Grosso) channels computed from hrt and prs. Salinity resolves the same
// way as in Augment.
func AddModels(st *models.Station, ms []SpeedModel, sal Salinity, tolerance time.Duration) {
	in := Inputs{Primary: st.Sensor(models.SensorHRT), Pressure: st.Sensor(models.SensorPRS), Tolerance: tolerance}
	if in.Primary.Empty() || in.Pressure.Empty() {
		return
	}
	if s := st.Sensor(models.SensorSAL); !s.Empty() {
		sal = SeriesSalinity(s, tolerance)
	}
	for _, m := range ms {
		sm := speedModels[m]
		if sm.eval == nil {
			continue
		}
		st.Sensors[sm.out] = sm.eval(sm.out, in, sal)
	}
}
