package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for HTTP traffic and ticket outcomes.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	outcomeCount  map[string]int64
	runs          int64
	lastRunAt     time.Time
	lastRunTookMs int64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests      map[string]int64 `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
	Outcomes      map[string]int64 `json:"outcomes"`
	Runs          int64            `json:"runs"`
	LastRunAt     *time.Time       `json:"last_run_at,omitempty"`
	LastRunTookMs int64            `json:"last_run_took_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		outcomeCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordOutcome counts a ticket outcome, optionally qualified by an error code.
func (m *Metrics) RecordOutcome(outcome, code string) {
	if m == nil {
		return
	}
	key := outcome
	if code != "" {
		key += "|" + code
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomeCount[key]++
}

// RecordRun notes a finished processing pass.
func (m *Metrics) RecordRun(finishedAt time.Time, took time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	m.lastRunAt = finishedAt
	m.lastRunTookMs = took.Milliseconds()
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Requests:      copyCounts(m.requestCount),
		Errors:        copyCounts(m.errorCount),
		Outcomes:      copyCounts(m.outcomeCount),
		Runs:          m.runs,
		LastRunTookMs: m.lastRunTookMs,
	}
	if !m.lastRunAt.IsZero() {
		at := m.lastRunAt
		snap.LastRunAt = &at
	}
	return snap
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
