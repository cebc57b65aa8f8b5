package broker

import "sync"

// inflightSet guards per-identity serialization: at most one access
// request may hold a given key at a time. Keys are created lazily on
// acquire and removed on release, so the set never grows beyond the
// number of requests currently in flight.
type inflightSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflightSet() *inflightSet {
	return &inflightSet{keys: make(map[string]struct{})}
}

// tryAcquire claims key if it is free. Returns false when another
// request already holds it.
func (s *inflightSet) tryAcquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.keys[key]; held {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// release frees key. Safe to call for a key that was never acquired.
func (s *inflightSet) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

// size returns the number of keys currently held.
func (s *inflightSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
