package errlog

import (
	"sort"
	"sync"
	"time"
)

// aggregationWindow bounds how long an error keeps counting toward metrics.
const aggregationWindow = 5 * time.Minute

// Metrics is a point-in-time snapshot of error activity in the window.
type Metrics struct {
	Total      int               `json:"total"`
	ByCode     map[string]int    `json:"by_code"`
	BySeverity map[string]int    `json:"by_severity"`
	ByTerminal map[string]int    `json:"by_terminal"`
	Recent     []AggregatedError `json:"recent"`
}

// AggregatedError collapses repeated identical errors from one terminal.
type AggregatedError struct {
	Code       string    `json:"code"`
	Severity   string    `json:"severity"`
	TerminalID string    `json:"terminal_id,omitempty"`
	Count      int       `json:"count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

type aggregator struct {
	window time.Duration

	mu      sync.Mutex
	entries map[string]*AggregatedError // keyed by code|terminal
}

func newAggregator(window time.Duration) *aggregator {
	return &aggregator{window: window, entries: make(map[string]*AggregatedError)}
}

func (a *aggregator) record(e Entry, now time.Time) {
	key := e.Code + "|" + e.TerminalID
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.entries[key]; ok && now.Sub(existing.FirstSeen) <= a.window {
		existing.Count++
		existing.LastSeen = now
		existing.Severity = e.Severity
		return
	}
	// Either new, or the previous window for this key expired. Start fresh.
	a.entries[key] = &AggregatedError{
		Code:       e.Code,
		Severity:   e.Severity,
		TerminalID: e.TerminalID,
		Count:      1,
		FirstSeen:  now,
		LastSeen:   now,
	}
}

func (a *aggregator) metrics(now time.Time) Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := Metrics{
		ByCode:     make(map[string]int),
		BySeverity: make(map[string]int),
		ByTerminal: make(map[string]int),
	}

	for key, e := range a.entries {
		if now.Sub(e.LastSeen) > a.window {
			delete(a.entries, key)
			continue
		}
		m.Total += e.Count
		m.ByCode[e.Code] += e.Count
		m.BySeverity[e.Severity] += e.Count
		if e.TerminalID != "" {
			m.ByTerminal[e.TerminalID] += e.Count
		}
		m.Recent = append(m.Recent, *e)
	}

	sort.Slice(m.Recent, func(i, j int) bool {
		return m.Recent[i].LastSeen.After(m.Recent[j].LastSeen)
	})
	return m
}
