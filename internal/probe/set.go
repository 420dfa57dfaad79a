package probe

import "sync"

// Set is the availability set of one capability: the ids that probed
// usable, in catalog order, plus the reason each other id was excluded.
type Set struct {
	mu      sync.RWMutex
	order   []string
	members map[string]struct{}
	reasons map[string]string
}

// NewSet creates a set holding ids, in the given order.
func NewSet(ids ...string) *Set {
	s := &Set{}
	s.Replace(ids, nil)
	return s
}

// Replace swaps the whole content of the set.
func (s *Set) Replace(ids []string, reasons map[string]string) {
	members := make(map[string]struct{}, len(ids))
	order := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := members[id]; dup {
			continue
		}
		members[id] = struct{}{}
		order = append(order, id)
	}

	rs := make(map[string]string, len(reasons))
	for id, r := range reasons {
		rs[id] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = order
	s.members = members
	s.reasons = rs
}

// Has reports whether id is available.
func (s *Set) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.members[id]
	return ok
}

// IDs returns the available ids in catalog order.
func (s *Set) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of available ids.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

// Reason returns why id is not available, if known.
func (s *Set) Reason(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.reasons[id]
}

// Remove drops id from the set and records reason. It reports whether id
// was present.
func (s *Set) Remove(id, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[id]; !ok {
		return false
	}

	delete(s.members, id)
	for i, have := range s.order {
		if have == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	s.reasons[id] = reason

	return true
}
