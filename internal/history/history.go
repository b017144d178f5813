// Package history keeps the bounded log of cycle records for one agent and
// derives execution statistics from it.
package history

import (
	"sync"

	"github.com/BTreeMap/StreamAgent/internal/models"
)

// DefaultCapacity is the number of cycle records retained per agent.
const DefaultCapacity = 100

// History is a bounded, FIFO-evicting list of cycle records in start order.
//
// The orchestrator is the only writer. Readers such as the status API get
// deep copies, so the lock is held only while copying.
type History struct {
	mu       sync.RWMutex
	records  []models.CycleRecord
	capacity int
}

// New creates a history holding at most capacity records.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity}
}

// Put stores a snapshot of c. A record whose ID matches the newest entry
// replaces it; any other record is appended, evicting the oldest entries
// beyond capacity.
func (h *History) Put(c models.CycleRecord) {
	snap := c.Clone()
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.records); n > 0 && h.records[n-1].ID == snap.ID {
		h.records[n-1] = snap
		return
	}
	h.records = append(h.records, snap)
	if over := len(h.records) - h.capacity; over > 0 {
		// shift down rather than reslice so the backing array stays bounded
		copy(h.records, h.records[over:])
		clear(h.records[len(h.records)-over:])
		h.records = h.records[:len(h.records)-over]
	}
}

// Load replaces the contents with records, keeping the newest capacity entries.
func (h *History) Load(records []models.CycleRecord) {
	if over := len(records) - h.capacity; over > 0 {
		records = records[over:]
	}
	out := make([]models.CycleRecord, 0, len(records))
	for _, c := range records {
		out = append(out, c.Clone())
	}
	h.mu.Lock()
	h.records = out
	h.mu.Unlock()
}

// Len returns the number of stored records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Snapshot returns deep copies of all records, oldest first.
func (h *History) Snapshot() []models.CycleRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.CycleRecord, len(h.records))
	for i, c := range h.records {
		out[i] = c.Clone()
	}
	return out
}

// Latest returns a copy of the newest record.
func (h *History) Latest() (models.CycleRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return models.CycleRecord{}, false
	}
	return h.records[len(h.records)-1].Clone(), true
}

// Stats computes statistics over the current records.
func (h *History) Stats() Stats {
	return Compute(h.Snapshot())
}
