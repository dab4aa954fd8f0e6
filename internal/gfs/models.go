package gfs

import (
	"fmt"
	"time"
)

// Grid is a 2-D temperature or anomaly field over parallel coordinate arrays.
// Values is row-major [lat][lon]; NaN marks missing data.
type Grid struct {
	Lats   []float64
	Lons   []float64
	Values [][]float64
}

// GridData is the wire representation of a Grid.
type GridData struct {
	Lats   []float64   `json:"lats"`
	Lons   []float64   `json:"lons"`
	Values [][]float64 `json:"values"`
}

// Statistics summarizes an anomaly field, excluding missing values.
type Statistics struct {
	MinAnomaly  float64 `json:"min_anomaly"`
	MaxAnomaly  float64 `json:"max_anomaly"`
	MeanAnomaly float64 `json:"mean_anomaly"`
}

// AnomalyResponse is the transport-ready anomaly payload served to clients.
type AnomalyResponse struct {
	RunTime      string     `json:"run_time"`
	ForecastHour int        `json:"forecast_hour"`
	ValidTime    string     `json:"valid_time"`
	AnomalyData  GridData   `json:"anomaly_data"`
	Statistics   Statistics `json:"statistics"`
	MockData     bool       `json:"mock_data"`
	Source       string     `json:"source,omitempty"`
	Resolution   string     `json:"resolution,omitempty"`
}

// Region is a named geographic window with a grid spacing for synthetic output.
// Longitudes are degrees east in [-180, 180).
type Region struct {
	Name   string
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
	Step   float64
}

var (
	// Global covers the whole globe at 1-degree spacing (181 x 360).
	Global = Region{Name: "global", LatMin: -90, LatMax: 90, LonMin: -180, LonMax: 179, Step: 1.0}

	// NorthAmerica covers the continent at 0.5-degree spacing (141 x 241).
	NorthAmerica = Region{Name: "northamerica", LatMin: 10, LatMax: 80, LonMin: -170, LonMax: -50, Step: 0.5}
)

// RegionByName resolves a configured region name.
func RegionByName(name string) (Region, error) {
	switch name {
	case Global.Name:
		return Global, nil
	case NorthAmerica.Name:
		return NorthAmerica, nil
	}
	return Region{}, fmt.Errorf("unknown region %q", name)
}

// isoTime formats t the way the API contract expects run_time and valid_time.
func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// MaxForecastHour is the last forecast hour the GFS publishes.
const MaxForecastHour = 384

// ForecastHours lists the forecast hours exposed by the API, every 6 hours
// out to the end of the GFS run.
func ForecastHours() []int {
	hours := make([]int, 0, MaxForecastHour/6+1)
	for h := 0; h <= MaxForecastHour; h += 6 {
		hours = append(hours, h)
	}
	return hours
}
