package backend

import "sync"

// Health tracks the last known state of an adapter. Adapters embed it and
// report it from Describe.
type Health struct {
	mu      sync.RWMutex
	healthy bool
	reason  string
}

// Observe records the outcome of a probe or call.
func (h *Health) Observe(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err == nil {
		h.healthy = true
		h.reason = ""
		return
	}

	h.healthy = false
	h.reason = err.Error()
}

// Record stores a probe result and returns it unchanged.
func (h *Health) Record(res ProbeResult) ProbeResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.healthy = res.OK
	h.reason = res.Reason
	return res
}

// Status returns the current health flag and failure reason.
func (h *Health) Status() (bool, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.healthy, h.reason
}
