package session

import (
	"sync"

	"github.com/heimdex/heimdex-editor/internal/edit"
)

// DefaultHistoryLimit is how many undo snapshots a session keeps.
const DefaultHistoryLimit = 20

// History is a bounded stack of action-list snapshots. When full, pushing
// evicts the oldest snapshot.
type History struct {
	mu      sync.Mutex
	limit   int
	entries [][]edit.Action
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Push stores a copy of actions as the newest snapshot.
func (h *History) Push(actions []edit.Action) {
	snap := edit.CloneActions(actions)
	if snap == nil {
		snap = []edit.Action{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, snap)
	if len(h.entries) > h.limit {
		h.entries = append([][]edit.Action(nil), h.entries[len(h.entries)-h.limit:]...)
	}
}

// Pop removes and returns the newest snapshot.
func (h *History) Pop() ([]edit.Action, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return nil, false
	}
	last := h.entries[len(h.entries)-1]
	h.entries = h.entries[:len(h.entries)-1]
	return edit.CloneActions(last), true
}

func (h *History) CanUndo() bool {
	return h.Len() > 0
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) Limit() int {
	return h.limit
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

// checkpoint captures the stack so a failed write can put it back exactly,
// including any snapshot the write's push evicted.
func (h *History) checkpoint() [][]edit.Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]edit.Action(nil), h.entries...)
}

func (h *History) restore(cp [][]edit.Action) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = cp
}
