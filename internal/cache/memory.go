package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/anomalyviz/gfs-anomaly-service/internal/gfs"
)

// entry pairs a cached response with its insertion time.
type entry struct {
	resp    gfs.AnomalyResponse
	savedAt time.Time
}

// Memory is a concurrency-safe TTL cache for anomaly responses, keyed by
// run/forecast-hour. Grids for a published run never change, so a short TTL
// only exists to bound memory across run rollovers.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]entry
	ttl   time.Duration
	clock clockwork.Clock
}

// NewMemory creates a cache. A ttl <= 0 disables caching entirely.
func NewMemory(ttl time.Duration, clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		data:  make(map[string]entry),
		ttl:   ttl,
		clock: clock,
	}
}

// Get returns the cached response for key if present and not expired.
func (m *Memory) Get(key string) (gfs.AnomalyResponse, bool) {
	if m.ttl <= 0 {
		return gfs.AnomalyResponse{}, false
	}

	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return gfs.AnomalyResponse{}, false
	}
	if m.clock.Now().Sub(e.savedAt) > m.ttl {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return gfs.AnomalyResponse{}, false
	}
	return e.resp, true
}

// Set stores a response and evicts anything already expired.
func (m *Memory) Set(key string, resp gfs.AnomalyResponse) {
	if m.ttl <= 0 {
		return
	}

	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for k, e := range m.data {
		if now.Sub(e.savedAt) > m.ttl {
			delete(m.data, k)
		}
	}
	m.data[key] = entry{resp: resp, savedAt: now}
}

// Len reports the number of live entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
