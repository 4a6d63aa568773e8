package rules

import "sync"

// DefaultHistoryCap is the default execution history size.
const DefaultHistoryCap = 1000

// History is a bounded ring buffer of execution results. When full, the
// oldest entry is evicted first.
type History struct {
	mu      sync.Mutex
	entries []ExecutionResult
	head    int
	full    bool
}

// NewHistory creates a history with the given capacity. A non-positive
// capacity selects DefaultHistoryCap.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &History{
		entries: make([]ExecutionResult, capacity),
	}
}

// Append records a result, evicting the oldest when at capacity.
func (h *History) Append(r ExecutionResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.head] = r
	h.head = (h.head + 1) % len(h.entries)
	if h.head == 0 {
		h.full = true
	}
}

// All returns the retained results, oldest first.
func (h *History) All() []ExecutionResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		out := make([]ExecutionResult, h.head)
		copy(out, h.entries[:h.head])
		return out
	}

	out := make([]ExecutionResult, 0, len(h.entries))
	out = append(out, h.entries[h.head:]...)
	out = append(out, h.entries[:h.head]...)
	return out
}

// Len returns the number of retained results.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.full {
		return len(h.entries)
	}
	return h.head
}

// Cap returns the history capacity.
func (h *History) Cap() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
