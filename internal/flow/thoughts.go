package flow

// DefaultThoughtCapacity is the number of recent thoughts kept as context.
const DefaultThoughtCapacity = 5

// ThoughtHistory is a bounded FIFO of recent thoughts.
// It is owned by a single run and is not safe for concurrent use.
type ThoughtHistory struct {
	items    []string
	capacity int
}

// NewThoughtHistory creates a history holding at most capacity entries.
func NewThoughtHistory(capacity int) *ThoughtHistory {
	if capacity <= 0 {
		capacity = DefaultThoughtCapacity
	}
	return &ThoughtHistory{items: make([]string, 0, capacity), capacity: capacity}
}

// Add appends a thought, evicting the oldest entry when full.
func (h *ThoughtHistory) Add(thought string) {
	if len(h.items) == h.capacity {
		copy(h.items, h.items[1:])
		h.items = h.items[:len(h.items)-1]
	}
	h.items = append(h.items, thought)
}

// Items returns a copy of the thoughts, oldest first.
func (h *ThoughtHistory) Items() []string {
	return append([]string(nil), h.items...)
}

// Len returns the number of stored thoughts.
func (h *ThoughtHistory) Len() int { return len(h.items) }

// Clear drops every stored thought.
func (h *ThoughtHistory) Clear() { h.items = h.items[:0] }
