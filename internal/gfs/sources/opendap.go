package sources

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/anomalyviz/gfs-anomaly-service/internal/gfs"
)

// GrADS data servers flag missing grid points with this sentinel.
const missingSentinel = 9e20

// The temperature variable and its coordinate axes appear under different
// names depending on the dataset generation.
var (
	temperatureAliases = []string{"tmp2m", "t2m"}
	latAliases         = []string{"lat", "latitude"}
	lonAliases         = []string{"lon", "longitude"}
)

var (
	errEmptyPayload   = errors.New("empty payload from data server")
	errVariableAbsent = errors.New("temperature variable not found in payload")
)

// block accumulates one named section of a GrADS ASCII response: either
// indexed grid rows or a bare list of coordinate values.
type block struct {
	rows [][]float64 // indexed rows, in appearance order, first slice only
	flat []float64   // unindexed values (coordinate axes)
}

// parseGrADSASCII decodes the ASCII subset response of a GrADS data server
// into a Grid. The format is a sequence of "name, [d1][d2]..." headers, each
// followed by "[t][i], v, v, ..." grid rows or bare comma-separated
// coordinate values. Only the first time slice is kept when the variable
// carries a leading time dimension.
func parseGrADSASCII(r io.Reader) (gfs.Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	blocks := make(map[string]*block)
	var current *block
	sawContent := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawContent {
			if looksLikeErrorPage(line) {
				return gfs.Grid{}, fmt.Errorf("data server returned an error page: %.80s", line)
			}
			sawContent = true
		}

		if strings.HasPrefix(line, "[") {
			if current == nil {
				continue
			}
			indices, values, err := parseIndexedRow(line)
			if err != nil {
				return gfs.Grid{}, err
			}
			// A leading time index selects the slice; keep the first only.
			if len(indices) > 1 && indices[0] != 0 {
				continue
			}
			current.rows = append(current.rows, values)
			continue
		}

		if name, ok := parseHeader(line); ok {
			current = &block{}
			blocks[name] = current
			continue
		}

		if current != nil {
			values, err := parseFloats(line)
			if err != nil {
				return gfs.Grid{}, err
			}
			current.flat = append(current.flat, values...)
		}
	}
	if err := scanner.Err(); err != nil {
		return gfs.Grid{}, fmt.Errorf("read payload: %w", err)
	}
	if !sawContent {
		return gfs.Grid{}, errEmptyPayload
	}

	temp := findBlock(blocks, temperatureAliases)
	if temp == nil || len(temp.rows) == 0 {
		return gfs.Grid{}, errVariableAbsent
	}
	latBlock := findBlock(blocks, latAliases)
	lonBlock := findBlock(blocks, lonAliases)
	if latBlock == nil || lonBlock == nil || len(latBlock.flat) == 0 || len(lonBlock.flat) == 0 {
		return gfs.Grid{}, errors.New("coordinate axes not found in payload")
	}

	lats := latBlock.flat
	lons := lonBlock.flat
	if len(temp.rows) != len(lats) {
		return gfs.Grid{}, fmt.Errorf("grid has %d rows for %d latitudes", len(temp.rows), len(lats))
	}
	for i, row := range temp.rows {
		if len(row) != len(lons) {
			return gfs.Grid{}, fmt.Errorf("grid row %d has %d values for %d longitudes", i, len(row), len(lons))
		}
	}

	return gfs.Grid{Lats: lats, Lons: lons, Values: temp.rows}, nil
}

// looksLikeErrorPage detects the HTML error documents NOMADS serves when a
// run is not published yet.
func looksLikeErrorPage(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range []string{"<html", "<!doctype", "grads data server", "error"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// parseHeader matches "name, [d1][d2]..." section headers.
func parseHeader(line string) (string, bool) {
	comma := strings.Index(line, ",")
	if comma <= 0 {
		return "", false
	}
	rest := strings.TrimSpace(line[comma+1:])
	if !strings.HasPrefix(rest, "[") {
		return "", false
	}
	name := strings.TrimSpace(line[:comma])
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "", false
		}
	}
	return strings.ToLower(name), true
}

// parseIndexedRow decodes "[t][i], v, v, ..." into its index tuple and values.
func parseIndexedRow(line string) ([]int, []float64, error) {
	comma := strings.Index(line, ",")
	if comma < 0 {
		return nil, nil, fmt.Errorf("malformed grid row: %.40s", line)
	}

	label := line[:comma]
	var indices []int
	for _, part := range strings.Split(label, "][") {
		part = strings.Trim(part, "[] ")
		idx, err := strconv.Atoi(part)
		if err != nil {
			return nil, nil, fmt.Errorf("malformed row index %q", label)
		}
		indices = append(indices, idx)
	}

	values, err := parseFloats(line[comma+1:])
	if err != nil {
		return nil, nil, err
	}
	return indices, values, nil
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed value %q", part)
		}
		if math.Abs(v) >= missingSentinel {
			v = math.NaN()
		}
		values = append(values, v)
	}
	return values, nil
}

func findBlock(blocks map[string]*block, aliases []string) *block {
	for _, alias := range aliases {
		if b, ok := blocks[alias]; ok {
			return b
		}
	}
	return nil
}
