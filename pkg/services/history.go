package services

import "sync"

// processingHistoryLimit caps the orchestrator's in-memory history.
const processingHistoryLimit = 1000

// processingHistory is a bounded, concurrency-safe list of processing
// records. When full, the oldest entry is dropped.
type processingHistory struct {
	mu      sync.Mutex
	limit   int
	entries []ProcessingRecord
}

func newProcessingHistory(limit int) *processingHistory {
	return &processingHistory{limit: limit}
}

func (h *processingHistory) record(r ProcessingRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, r)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

func (h *processingHistory) entriesCopy() []ProcessingRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ProcessingRecord, len(h.entries))
	copy(out, h.entries)
	return out
}
