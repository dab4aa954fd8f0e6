package gfs

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// regionalBump is a fixed localized Gaussian anomaly used by the synthetic
// generator to make the field look like a plausible weather pattern.
type regionalBump struct {
	name      string
	lat, lon  float64
	amplitude float64
	spread    float64
}

var regionalBumps = []regionalBump{
	{name: "north america warm spot", lat: 45, lon: -100, amplitude: 5, spread: 500},
	{name: "canada cold spot", lat: 55, lon: -110, amplitude: -3, spread: 400},
	{name: "southern us warm spot", lat: 35, lon: -95, amplitude: 4, spread: 600},
	{name: "europe cold spot", lat: 60, lon: 30, amplitude: -4, spread: 300},
}

// SyntheticGenerator produces a plausible-looking anomaly grid with no
// external dependency. It is the terminal fallback of the pipeline and must
// always succeed.
type SyntheticGenerator struct {
	region Region
	seed   int64
}

// NewSyntheticGenerator creates a generator for the given region. seed fixes
// the noise for reproducible output; pass 0 to randomize.
func NewSyntheticGenerator(region Region, seed int64) *SyntheticGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SyntheticGenerator{
		region: region,
		seed:   seed,
	}
}

// Generate builds a synthetic anomaly response for the given run time and
// forecast hour: two global sinusoidal modes, Gaussian noise, the fixed
// regional bumps, and a seasonal tilt following the day of year. One
// generator is shared across handler goroutines, so each call derives its
// own RNG from the seed, run time, and forecast hour instead of mutating
// shared state.
func (s *SyntheticGenerator) Generate(run time.Time, forecastHour int) (AnomalyResponse, error) {
	rng := rand.New(rand.NewSource(s.seed ^ run.Unix() ^ int64(forecastHour)<<40))
	lats := descendingAxis(s.region.LatMax, s.region.LatMin, s.region.Step)
	lons := ascendingAxis(s.region.LonMin, s.region.LonMax, s.region.Step)
	if len(lats) == 0 || len(lons) == 0 {
		return AnomalyResponse{}, errors.New("synthetic region produced an empty grid")
	}

	validTime := run.Add(time.Duration(forecastHour) * time.Hour)
	season := math.Cos(2 * math.Pi * (float64(validTime.YearDay()) - solsticeDay) / yearLength)

	values := make([][]float64, len(lats))
	for i, lat := range lats {
		latRad := lat * math.Pi / 180
		row := make([]float64, len(lons))
		for j, lon := range lons {
			lonRad := lon * math.Pi / 180

			v := 3*math.Sin(2*latRad)*math.Cos(3*lonRad) +
				2*math.Sin(3*latRad)*math.Sin(2*lonRad) +
				rng.NormFloat64()

			for _, b := range regionalBumps {
				dLat := lat - b.lat
				dLon := lon - b.lon
				v += b.amplitude * math.Exp(-(dLat*dLat+dLon*dLon)/b.spread)
			}

			v += 1.5 * (lat / 90.0) * season

			row[j] = v
		}
		values[i] = row
	}

	min, max, mean, _ := nanStats(values)

	return AnomalyResponse{
		RunTime:      isoTime(run),
		ForecastHour: forecastHour,
		ValidTime:    isoTime(validTime),
		AnomalyData: GridData{
			Lats:   lats,
			Lons:   lons,
			Values: values,
		},
		Statistics: Statistics{
			MinAnomaly:  min,
			MaxAnomaly:  max,
			MeanAnomaly: mean,
		},
		MockData:   true,
		Source:     "synthetic",
		Resolution: s.region.Name,
	}, nil
}

func descendingAxis(from, to, step float64) []float64 {
	var axis []float64
	for v := from; v >= to-1e-9; v -= step {
		axis = append(axis, v)
	}
	return axis
}

func ascendingAxis(from, to, step float64) []float64 {
	var axis []float64
	for v := from; v <= to+1e-9; v += step {
		axis = append(axis, v)
	}
	return axis
}
