package gfs

import (
	"math"
	"time"
)

const (
	kelvinOffset = 273.15

	// A field whose mean is above this is assumed to be absolute Kelvin.
	kelvinThreshold = 200.0

	climoBase        = 27.0  // equatorial baseline, degrees C
	climoLatGradient = 0.62  // cooling per degree of absolute latitude
	seasonalAmp      = 14.0  // peak seasonal swing at the poles
	continentalAmp   = 2.5   // stylized continental vs oceanic term
	solsticeDay      = 172.0 // northern summer solstice, day of year
	yearLength       = 365.25
)

// NormalizeUnits returns g in Celsius. Fields arriving from the model are
// absolute Kelvin; the mean of the valid values decides whether to convert.
func NormalizeUnits(g Grid) Grid {
	mean, count := nanMean(g.Values)
	if count == 0 || mean <= kelvinThreshold {
		return g
	}

	converted := make([][]float64, len(g.Values))
	for i, row := range g.Values {
		converted[i] = make([]float64, len(row))
		for j, v := range row {
			converted[i][j] = v - kelvinOffset
		}
	}
	return Grid{Lats: g.Lats, Lons: g.Lons, Values: converted}
}

// climatologyAt approximates the expected temperature for a point and day of
// year: a latitude-driven base, a hemisphere-aware seasonal swing attenuated
// toward the equator, and a fixed longitude term standing in for continental
// versus oceanic climate. Not real 30-year normals.
func climatologyAt(lat, lon float64, dayOfYear int) float64 {
	base := climoBase - climoLatGradient*math.Abs(lat)

	season := math.Cos(2 * math.Pi * (float64(dayOfYear) - solsticeDay) / yearLength)
	seasonal := seasonalAmp * (lat / 90.0) * season

	continental := continentalAmp * math.Cos(2*lon*math.Pi/180)

	return base + seasonal + continental
}

// Anomaly converts g to Celsius if needed and subtracts the approximate
// climatology for the valid time's day of year. Missing values propagate.
func Anomaly(g Grid, validTime time.Time) Grid {
	g = NormalizeUnits(g)
	doy := validTime.UTC().YearDay()

	values := make([][]float64, len(g.Values))
	for i, row := range g.Values {
		lat := g.Lats[i]
		values[i] = make([]float64, len(row))
		for j, v := range row {
			values[i][j] = v - climatologyAt(lat, g.Lons[j], doy)
		}
	}
	return Grid{Lats: g.Lats, Lons: g.Lons, Values: values}
}

// nanMean returns the mean of the non-NaN values and how many there were.
func nanMean(values [][]float64) (float64, int) {
	var sum float64
	var count int
	for _, row := range values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0, 0
	}
	return sum / float64(count), count
}
