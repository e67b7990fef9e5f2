package executor

import (
	"sync"
	"time"
)

// historyLimit bounds the in-memory execution history. Oldest entries are
// dropped once the limit is reached.
const historyLimit = 1000

// HistoryEntry is one recorded execution outcome.
type HistoryEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	OriginalQuery   string    `json:"original_query,omitempty"`
	SQLExecuted     string    `json:"sql_executed"`
	Strategy        string    `json:"strategy"`
	Success         bool      `json:"success"`
	RowCount        int       `json:"row_count"`
	ExecutionTimeMs float64   `json:"execution_time_ms"`
}

// HistorySummary aggregates the recorded outcomes for diagnostics.
type HistorySummary struct {
	TotalExecutions int            `json:"total_executions"`
	SuccessCount    int            `json:"success_count"`
	SuccessRate     float64        `json:"success_rate"`
	AvgTimeMs       float64        `json:"avg_time_ms"`
	StrategyCounts  map[string]int `json:"strategy_counts"`
}

// History is a bounded, thread-safe execution log. It is diagnostic only,
// never authoritative.
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
	limit   int
}

// NewHistory creates a history bounded at limit entries.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = historyLimit
	}
	return &History{limit: limit}
}

// Record appends an entry, rotating out the oldest when full.
func (h *History) Record(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Entries returns a copy of the retained entries, oldest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Summary aggregates the retained entries.
func (h *History) Summary() HistorySummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	summary := HistorySummary{
		TotalExecutions: len(h.entries),
		StrategyCounts:  make(map[string]int),
	}
	if len(h.entries) == 0 {
		return summary
	}

	var totalMs float64
	for _, e := range h.entries {
		if e.Success {
			summary.SuccessCount++
		}
		totalMs += e.ExecutionTimeMs
		summary.StrategyCounts[e.Strategy]++
	}
	summary.SuccessRate = float64(summary.SuccessCount) / float64(len(h.entries))
	summary.AvgTimeMs = totalMs / float64(len(h.entries))
	return summary
}
