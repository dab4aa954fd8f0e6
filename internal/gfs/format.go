package gfs

import (
	"errors"
	"math"
	"sort"
	"time"
)

// ErrNoValidData is returned when a grid holds no non-missing values.
var ErrNoValidData = errors.New("no valid data points in grid")

// FormatResponse normalizes a computed anomaly grid into the transport
// payload: longitudes realigned into [-180, 180) ascending, latitudes
// north-to-south, missing values zeroed for display after statistics are
// taken over the valid values only.
func FormatResponse(g Grid, run time.Time, forecastHour int, source, resolution string) (AnomalyResponse, error) {
	g = normalizeLongitudes(g)
	g = ensureLatDescending(g)

	min, max, mean, count := nanStats(g.Values)
	if count == 0 {
		return AnomalyResponse{}, ErrNoValidData
	}

	for _, row := range g.Values {
		for j, v := range row {
			if math.IsNaN(v) {
				row[j] = 0
			}
		}
	}

	return AnomalyResponse{
		RunTime:      isoTime(run),
		ForecastHour: forecastHour,
		ValidTime:    isoTime(run.Add(time.Duration(forecastHour) * time.Hour)),
		AnomalyData: GridData{
			Lats:   g.Lats,
			Lons:   g.Lons,
			Values: g.Values,
		},
		Statistics: Statistics{
			MinAnomaly:  min,
			MaxAnomaly:  max,
			MeanAnomaly: mean,
		},
		MockData:   false,
		Source:     source,
		Resolution: resolution,
	}, nil
}

// normalizeLongitudes remaps a [0, 360) axis into [-180, 180) and reorders
// columns so the axis is monotonically increasing. Reordering is done by
// sorting a column permutation rather than hunting for a single wrap
// discontinuity, which also handles already-aligned or oddly ordered axes.
func normalizeLongitudes(g Grid) Grid {
	lons := make([]float64, len(g.Lons))
	for i, lon := range g.Lons {
		if lon >= 180 {
			lon -= 360
		}
		lons[i] = lon
	}

	perm := make([]int, len(lons))
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(a, b int) bool { return lons[perm[a]] < lons[perm[b]] })

	sorted := true
	for i, p := range perm {
		if p != i {
			sorted = false
			break
		}
	}
	if sorted {
		return Grid{Lats: g.Lats, Lons: lons, Values: g.Values}
	}

	outLons := make([]float64, len(lons))
	for i, p := range perm {
		outLons[i] = lons[p]
	}
	outValues := make([][]float64, len(g.Values))
	for i, row := range g.Values {
		outRow := make([]float64, len(row))
		for j, p := range perm {
			outRow[j] = row[p]
		}
		outValues[i] = outRow
	}
	return Grid{Lats: g.Lats, Lons: outLons, Values: outValues}
}

// ensureLatDescending orders rows north to south.
func ensureLatDescending(g Grid) Grid {
	if len(g.Lats) < 2 || g.Lats[0] > g.Lats[len(g.Lats)-1] {
		return g
	}

	n := len(g.Lats)
	lats := make([]float64, n)
	values := make([][]float64, n)
	for i := 0; i < n; i++ {
		lats[i] = g.Lats[n-1-i]
		values[i] = g.Values[n-1-i]
	}
	return Grid{Lats: lats, Lons: g.Lons, Values: values}
}

// nanStats computes min, max, and mean over the non-NaN values.
func nanStats(values [][]float64) (min, max, mean float64, count int) {
	min = math.Inf(1)
	max = math.Inf(-1)
	var sum float64
	for _, row := range values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0, 0, 0, 0
	}
	return min, max, sum / float64(count), count
}
