package orchestrator

import (
	"sync"
	"time"
)

// seenSet remembers recently processed event ids so retried webhook
// deliveries are suppressed. Entries expire after a fixed window since
// the channel only redelivers within a short horizon.
type seenSet struct {
	mu  sync.Mutex
	ttl time.Duration
	ids map[string]time.Time
	now func() time.Time
}

func newSeenSet(ttl time.Duration) *seenSet {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &seenSet{
		ttl: ttl,
		ids: make(map[string]time.Time),
		now: time.Now,
	}
}

// Remember records id and reports whether this is its first sighting
// inside the window. The check and the insert are one atomic step so
// concurrent deliveries of the same id admit exactly one.
func (s *seenSet) Remember(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if expiry, ok := s.ids[id]; ok && now.Before(expiry) {
		return false
	}
	s.ids[id] = now.Add(s.ttl)
	s.prune(now)
	return true
}

// prune drops expired entries. Called under the lock.
func (s *seenSet) prune(now time.Time) {
	if len(s.ids) < 1024 {
		return
	}
	for id, expiry := range s.ids {
		if now.After(expiry) {
			delete(s.ids, id)
		}
	}
}
