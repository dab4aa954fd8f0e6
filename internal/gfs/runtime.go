package gfs

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// GFS initializes four times a day at fixed UTC hours.
var runCycleHours = [4]int{0, 6, 12, 18}

// RunResolver determines the latest model run whose output should already be
// published, given the publication latency of the upstream source.
type RunResolver struct {
	clock    clockwork.Clock
	latency  time.Duration
	lookback time.Duration
}

// NewRunResolver creates a resolver. latency is how long after nominal run
// time the data is assumed available; lookback bounds the backward search.
func NewRunResolver(clock clockwork.Clock, latency, lookback time.Duration) *RunResolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RunResolver{clock: clock, latency: latency, lookback: lookback}
}

// LatestRun returns the most recent run cycle at or before now minus the
// publication latency, truncated to the cycle hour with minutes and seconds
// zeroed. If the lookback window yields nothing (not expected in practice),
// it falls back to yesterday's 18Z run.
func (r *RunResolver) LatestRun() time.Time {
	now := r.clock.Now().UTC()
	adjusted := now.Add(-r.latency)

	for back := time.Duration(0); back <= r.lookback; back += 6 * time.Hour {
		candidate := adjusted.Add(-back)
		for i := len(runCycleHours) - 1; i >= 0; i-- {
			cycle := runCycleHours[i]
			if candidate.Hour() < cycle {
				continue
			}
			return time.Date(candidate.Year(), candidate.Month(), candidate.Day(), cycle, 0, 0, 0, time.UTC)
		}
	}

	yesterday := now.AddDate(0, 0, -1)
	return time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 18, 0, 0, 0, time.UTC)
}
