package sources

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/anomalyviz/gfs-anomaly-service/internal/gfs"
)

const defaultBaseURL = "https://nomads.ncep.noaa.gov/dods"

// datasetSpec describes the native layout of a NOMADS GrADS dataset.
type datasetSpec struct {
	dataset   string  // path component, e.g. "gfs_0p25"
	latStart  float64 // southernmost latitude of the native grid
	latStep   float64
	nLat      int
	lonStart  float64 // westernmost longitude, degrees east in [0, 360)
	lonStep   float64
	nLon      int
	stepHours int // native forecast time step
}

var (
	spec0p25 = datasetSpec{
		dataset:   "gfs_0p25",
		latStart:  -90,
		latStep:   0.25,
		nLat:      721,
		lonStart:  0,
		lonStep:   0.25,
		nLon:      1440,
		stepHours: 3,
	}
	spec0p50 = datasetSpec{
		dataset:   "gfs_0p50",
		latStart:  -90,
		latStep:   0.5,
		nLat:      361,
		lonStart:  0,
		lonStep:   0.5,
		nLon:      720,
		stepHours: 3,
	}
)

// NomadsSource fetches a single 2-metre temperature slice from a NOMADS
// GrADS data server, subset to a geographic window via the server-side
// index-range syntax.
type NomadsSource struct {
	name       string
	resolution string
	baseURL    string
	spec       datasetSpec
	window     gfs.Region
	httpCfg    httpConfig
	circuit    *gobreaker.CircuitBreaker
}

// NewPrimarySource returns the high-resolution 0.25 degree GFS source.
func NewPrimarySource(client *http.Client, window gfs.Region) *NomadsSource {
	return newNomadsSource("nomads-gfs-0p25", "0.25deg", spec0p25, client, window)
}

// NewArchiveSource returns the coarser 0.50 degree source used when the
// primary dataset is unavailable.
func NewArchiveSource(client *http.Client, window gfs.Region) *NomadsSource {
	return newNomadsSource("nomads-gfs-0p50", "0.5deg", spec0p50, client, window)
}

func newNomadsSource(name, resolution string, spec datasetSpec, client *http.Client, window gfs.Region) *NomadsSource {
	return &NomadsSource{
		name:       name,
		resolution: resolution,
		baseURL:    defaultBaseURL,
		spec:       spec,
		window:     window,
		httpCfg: httpConfig{
			client:  client,
			backoff: defaultBackoff(),
		},
		circuit: newCircuit(name),
	}
}

func (s *NomadsSource) Name() string { return s.name }

func (s *NomadsSource) Resolution() string { return s.resolution }

// Fetch retrieves the requested forecast-hour slice of 2-metre temperature.
func (s *NomadsSource) Fetch(ctx context.Context, run time.Time, forecastHour int) (gfs.Grid, error) {
	url := s.subsetURL(run, forecastHour)
	log.Printf("INFO: fetching %s from %s", s.name, url)

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}

	resp, err := fetchWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return gfs.Grid{}, fmt.Errorf("%s: %w", s.name, err)
	}
	defer resp.Body.Close()

	grid, err := parseGrADSASCII(resp.Body)
	if err != nil {
		return gfs.Grid{}, fmt.Errorf("%s: %w", s.name, err)
	}
	return grid, nil
}

// subsetURL builds the ASCII subset request for one time slice of tmp2m,
// restricted to the source's geographic window.
func (s *NomadsSource) subsetURL(run time.Time, forecastHour int) string {
	timeIdx := forecastHour / s.spec.stepHours

	latLo, latHi := s.latIndexRange()
	lonLo, lonHi := s.lonIndexRange()

	return fmt.Sprintf("%s/%s/gfs%s/%s_%02dz.ascii?tmp2m[%d][%d:%d][%d:%d]",
		s.baseURL, s.spec.dataset,
		run.UTC().Format("20060102"), s.spec.dataset, run.UTC().Hour(),
		timeIdx, latLo, latHi, lonLo, lonHi)
}

// latIndexRange converts the window's latitude bounds to native grid indices.
func (s *NomadsSource) latIndexRange() (int, int) {
	lo := s.clampLatIndex(s.window.LatMin)
	hi := s.clampLatIndex(s.window.LatMax)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// lonIndexRange converts the window's longitude bounds (degrees east in
// [-180, 180)) into the native [0, 360) axis. A window that wraps the prime
// meridian falls back to the full circle rather than splitting the request.
func (s *NomadsSource) lonIndexRange() (int, int) {
	west := s.window.LonMin
	if west < 0 {
		west += 360
	}
	east := s.window.LonMax
	if east < 0 {
		east += 360
	}
	if west > east {
		return 0, s.spec.nLon - 1
	}
	return s.clampLonIndex(west), s.clampLonIndex(east)
}

func (s *NomadsSource) clampLatIndex(lat float64) int {
	idx := int(math.Round((lat - s.spec.latStart) / s.spec.latStep))
	if idx < 0 {
		idx = 0
	}
	if idx > s.spec.nLat-1 {
		idx = s.spec.nLat - 1
	}
	return idx
}

func (s *NomadsSource) clampLonIndex(lon float64) int {
	idx := int(math.Round((lon - s.spec.lonStart) / s.spec.lonStep))
	if idx < 0 {
		idx = 0
	}
	if idx > s.spec.nLon-1 {
		idx = s.spec.nLon - 1
	}
	return idx
}
