package service

import (
	"slices"
	"sync"
	"time"
)

const (
	historyMax  = 50
	historyKeep = 30
)

// Turn is one exchange of a conversation.
type Turn struct {
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	BackendID string    `json:"backend_id"`
	Timestamp time.Time `json:"timestamp"`
}

// History is an in-memory conversation. Once it grows past historyMax turns
// it is cut back to the most recent historyKeep.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds a turn.
func (h *History) Append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, t)
	if len(h.turns) > historyMax {
		h.turns = slices.Clone(h.turns[len(h.turns)-historyKeep:])
	}
}

// Recent returns up to n of the latest turns, oldest first.
func (h *History) Recent(n int) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	start := max(len(h.turns)-n, 0)
	return slices.Clone(h.turns[start:])
}

// Turns returns a copy of every turn.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return slices.Clone(h.turns)
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.turns)
}

// Clear removes every turn.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = nil
}
