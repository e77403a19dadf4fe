package threatguard

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxEvents caps the in-memory event window so memory stays bounded
// between retention sweeps.
const DefaultMaxEvents = 100000

// EventFilter narrows an event query. Zero values mean "any"; From/To are
// inclusive bounds on the event timestamp.
type EventFilter struct {
	Type          EventType
	Severity      Severity
	SourceAddress string
	UserID        string
	From          time.Time
	To            time.Time
}

// Statistics summarizes the current event window.
type Statistics struct {
	TotalEvents       int               `json:"totalEvents"`
	BySeverity        map[Severity]int  `json:"bySeverity"`
	DistinctAddresses int               `json:"distinctAddresses"`
	DistinctUsers     int               `json:"distinctUsers"`
	TopEventTypes     []EventTypeCount  `json:"topEventTypes"`
}

type EventTypeCount struct {
	Type  EventType `json:"type"`
	Count int       `json:"count"`
}

// EventStore is a bounded in-memory window of recorded events. When the cap
// is reached the oldest events are overwritten.
type EventStore struct {
	mu    sync.RWMutex
	buf   []*SecurityEvent
	next  int
	count int
}

func NewEventStore(maxEvents int) *EventStore {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &EventStore{buf: make([]*SecurityEvent, maxEvents)}
}

// Append adds a finalized event, evicting the oldest when full.
func (s *EventStore) Append(event *SecurityEvent) {
	if event == nil {
		return
	}
	s.mu.Lock()
	s.buf[s.next] = event
	s.next = (s.next + 1) % len(s.buf)
	if s.count < len(s.buf) {
		s.count++
	}
	s.mu.Unlock()
}

// Len returns the number of retained events.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Query returns events matching the filter, newest first.
func (s *EventStore) Query(filter EventFilter) []*SecurityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*SecurityEvent
	s.iterate(func(ev *SecurityEvent) {
		if matchesFilter(ev, filter) {
			out = append(out, ev)
		}
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func matchesFilter(ev *SecurityEvent, f EventFilter) bool {
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	if f.Severity != "" && ev.Severity != f.Severity {
		return false
	}
	if f.SourceAddress != "" && ev.SourceAddress != f.SourceAddress {
		return false
	}
	if f.UserID != "" && ev.UserID != f.UserID {
		return false
	}
	if !f.From.IsZero() && ev.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ev.Timestamp.After(f.To) {
		return false
	}
	return true
}

// Statistics aggregates the retained window. topN bounds the event-type
// ranking; values <= 0 default to 5.
func (s *EventStore) Statistics(topN int) Statistics {
	if topN <= 0 {
		topN = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Statistics{BySeverity: make(map[Severity]int)}
	addresses := make(map[string]struct{})
	users := make(map[string]struct{})
	types := make(map[EventType]int)
	s.iterate(func(ev *SecurityEvent) {
		stats.TotalEvents++
		stats.BySeverity[ev.Severity]++
		if ev.SourceAddress != "" {
			addresses[ev.SourceAddress] = struct{}{}
		}
		if ev.UserID != "" {
			users[ev.UserID] = struct{}{}
		}
		types[ev.Type]++
	})
	stats.DistinctAddresses = len(addresses)
	stats.DistinctUsers = len(users)

	for t, n := range types {
		stats.TopEventTypes = append(stats.TopEventTypes, EventTypeCount{Type: t, Count: n})
	}
	sort.Slice(stats.TopEventTypes, func(i, j int) bool {
		if stats.TopEventTypes[i].Count != stats.TopEventTypes[j].Count {
			return stats.TopEventTypes[i].Count > stats.TopEventTypes[j].Count
		}
		return stats.TopEventTypes[i].Type < stats.TopEventTypes[j].Type
	})
	if len(stats.TopEventTypes) > topN {
		stats.TopEventTypes = stats.TopEventTypes[:topN]
	}
	return stats
}

// Prune drops events with a timestamp before the cutoff and returns how
// many were removed. Running it twice in a row is a no-op the second time.
func (s *EventStore) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*SecurityEvent
	s.iterate(func(ev *SecurityEvent) {
		if !ev.Timestamp.Before(cutoff) {
			kept = append(kept, ev)
		}
	})
	removed := s.count - len(kept)
	if removed == 0 {
		return 0
	}
	// Rebuild the ring oldest-first.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})
	for i := range s.buf {
		s.buf[i] = nil
	}
	copy(s.buf, kept)
	s.count = len(kept)
	s.next = s.count % len(s.buf)
	return removed
}

// iterate visits retained events in insertion order. Callers hold the lock.
func (s *EventStore) iterate(fn func(*SecurityEvent)) {
	start := s.next - s.count
	if start < 0 {
		start += len(s.buf)
	}
	for i := 0; i < s.count; i++ {
		fn(s.buf[(start+i)%len(s.buf)])
	}
}
