package threatguard

import (
	"fmt"
	"testing"
	"time"
)

func storeEvent(eventType EventType, severity Severity, addr, user string, ts time.Time) *SecurityEvent {
	return &SecurityEvent{
		ID:            fmt.Sprintf("ev-%d", ts.UnixNano()),
		Type:          eventType,
		Severity:      severity,
		Timestamp:     ts,
		SourceAddress: addr,
		UserID:        user,
	}
}

func TestQueryFiltersAndOrder(t *testing.T) {
	s := NewEventStore(10)
	now := time.Now()
	s.Append(storeEvent(EventSQLInjectionAttempt, SeverityHigh, "1.1.1.1", "u1", now.Add(-3*time.Minute)))
	s.Append(storeEvent(EventXSSAttempt, SeverityHigh, "2.2.2.2", "u2", now.Add(-2*time.Minute)))
	s.Append(storeEvent(EventSQLInjectionAttempt, SeverityHigh, "1.1.1.1", "u2", now.Add(-time.Minute)))

	all := s.Query(EventFilter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.After(all[i-1].Timestamp) {
			t.Fatalf("expected newest-first ordering")
		}
	}

	byType := s.Query(EventFilter{Type: EventSQLInjectionAttempt})
	if len(byType) != 2 {
		t.Fatalf("expected 2 sql events, got %d", len(byType))
	}
	byAddr := s.Query(EventFilter{SourceAddress: "2.2.2.2"})
	if len(byAddr) != 1 || byAddr[0].Type != EventXSSAttempt {
		t.Fatalf("unexpected address filter result: %+v", byAddr)
	}
	byWindow := s.Query(EventFilter{From: now.Add(-90 * time.Second)})
	if len(byWindow) != 1 {
		t.Fatalf("expected 1 event in window, got %d", len(byWindow))
	}
}

func TestStatistics(t *testing.T) {
	s := NewEventStore(10)
	now := time.Now()
	s.Append(storeEvent(EventSQLInjectionAttempt, SeverityHigh, "1.1.1.1", "u1", now))
	s.Append(storeEvent(EventSQLInjectionAttempt, SeverityHigh, "1.1.1.1", "u1", now))
	s.Append(storeEvent(EventSuspiciousRequest, SeverityMedium, "2.2.2.2", "", now))
	s.Append(storeEvent(EventUnauthorizedAccess, SeverityCritical, "3.3.3.3", "u2", now))

	stats := s.Statistics(2)
	if stats.TotalEvents != 4 {
		t.Fatalf("expected 4 total, got %d", stats.TotalEvents)
	}
	if stats.BySeverity[SeverityHigh] != 2 || stats.BySeverity[SeverityMedium] != 1 || stats.BySeverity[SeverityCritical] != 1 {
		t.Fatalf("unexpected severity counts: %+v", stats.BySeverity)
	}
	if stats.DistinctAddresses != 3 {
		t.Fatalf("expected 3 distinct addresses, got %d", stats.DistinctAddresses)
	}
	if stats.DistinctUsers != 2 {
		t.Fatalf("expected 2 distinct users, got %d", stats.DistinctUsers)
	}
	if len(stats.TopEventTypes) != 2 {
		t.Fatalf("expected top list capped at 2, got %d", len(stats.TopEventTypes))
	}
	if stats.TopEventTypes[0].Type != EventSQLInjectionAttempt || stats.TopEventTypes[0].Count != 2 {
		t.Fatalf("unexpected top type: %+v", stats.TopEventTypes[0])
	}
}

func TestRingEvictsOldest(t *testing.T) {
	s := NewEventStore(3)
	now := time.Now()
	for i := 0; i < 5; i++ {
		s.Append(storeEvent(EventXSSAttempt, SeverityHigh, fmt.Sprintf("1.1.1.%d", i), "", now.Add(time.Duration(i)*time.Second)))
	}
	if s.Len() != 3 {
		t.Fatalf("expected window capped at 3, got %d", s.Len())
	}
	events := s.Query(EventFilter{})
	if events[len(events)-1].SourceAddress != "1.1.1.2" {
		t.Fatalf("expected oldest retained to be 1.1.1.2, got %s", events[len(events)-1].SourceAddress)
	}
}

func TestPruneIsIdempotent(t *testing.T) {
	s := NewEventStore(10)
	now := time.Now()
	s.Append(storeEvent(EventSQLInjectionAttempt, SeverityHigh, "1.1.1.1", "", now.Add(-8*24*time.Hour)))
	s.Append(storeEvent(EventXSSAttempt, SeverityHigh, "2.2.2.2", "", now.Add(-6*24*time.Hour)))
	s.Append(storeEvent(EventSuspiciousRequest, SeverityMedium, "3.3.3.3", "", now))

	cutoff := now.Add(-7 * 24 * time.Hour)
	if removed := s.Prune(cutoff); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 retained, got %d", s.Len())
	}
	if removed := s.Prune(cutoff); removed != 0 {
		t.Fatalf("second sweep must be a no-op, removed %d", removed)
	}
	// The surviving window still appends and queries normally.
	s.Append(storeEvent(EventXSSAttempt, SeverityHigh, "4.4.4.4", "", now))
	if s.Len() != 3 {
		t.Fatalf("expected append after prune to work, len=%d", s.Len())
	}
}
