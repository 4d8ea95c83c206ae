// Package monitor exposes the mesh pipeline over HTTP debug pages and a
// gRPC health service.
package monitor

import (
	"sync"

	"github.com/banshee-data/depthmesh/internal/mesh"
)

// History keeps the most recent update stats in a fixed-size ring. It
// implements mesh.UpdateObserver.
type History struct {
	mu     sync.RWMutex
	buf    []mesh.UpdateStats
	next   int
	full   bool
	counts map[mesh.Outcome]uint64
}

var _ mesh.UpdateObserver = (*History)(nil)

// NewHistory creates a ring holding up to capacity entries.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		buf:    make([]mesh.UpdateStats, capacity),
		counts: make(map[mesh.Outcome]uint64),
	}
}

// ObserveUpdate records st, evicting the oldest entry when full.
func (h *History) ObserveUpdate(st mesh.UpdateStats) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = st
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
	h.counts[st.Outcome]++
}

// Entries returns the retained stats, oldest first.
func (h *History) Entries() []mesh.UpdateStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full {
		return append([]mesh.UpdateStats(nil), h.buf[:h.next]...)
	}
	out := make([]mesh.UpdateStats, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	return append(out, h.buf[:h.next]...)
}

// Counts returns lifetime totals per outcome, including evicted entries.
func (h *History) Counts() map[mesh.Outcome]uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[mesh.Outcome]uint64, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out
}
