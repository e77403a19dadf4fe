package threatguard

import (
	"testing"
	"time"
)

func TestSeverityWeights(t *testing.T) {
	rt := NewReputationTracker()
	rt.UpdateScore("1.2.3.4", SeverityLow)
	rt.UpdateScore("1.2.3.4", SeverityMedium)
	rt.UpdateScore("1.2.3.4", SeverityHigh)
	rt.UpdateScore("1.2.3.4", SeverityCritical)
	if score := rt.Score("1.2.3.4"); score != -41 {
		t.Fatalf("expected score -41, got %d", score)
	}
}

func TestUnseenAddressScoresZero(t *testing.T) {
	rt := NewReputationTracker()
	if score := rt.Score("9.9.9.9"); score != 0 {
		t.Fatalf("expected 0 for unseen address, got %d", score)
	}
	if rt.IsBlocked("9.9.9.9") {
		t.Fatalf("unseen address must not be blocked")
	}
	if rt.Reputation("9.9.9.9") != nil {
		t.Fatalf("expected nil reputation for unseen address")
	}
}

func TestBlockThreshold(t *testing.T) {
	rt := NewReputationTracker()
	// Three HIGH (-30) plus one CRITICAL (-25) lands at -55, past -50.
	rt.UpdateScore("5.6.7.8", SeverityHigh)
	rt.UpdateScore("5.6.7.8", SeverityHigh)
	rt.UpdateScore("5.6.7.8", SeverityHigh)
	if rt.IsBlocked("5.6.7.8") {
		t.Fatalf("-30 must not be blocked")
	}
	rt.UpdateScore("5.6.7.8", SeverityCritical)
	if score := rt.Score("5.6.7.8"); score != -55 {
		t.Fatalf("expected -55, got %d", score)
	}
	if !rt.IsBlocked("5.6.7.8") {
		t.Fatalf("-55 must be blocked")
	}
}

func TestExactThresholdNotBlocked(t *testing.T) {
	rt := NewReputationTracker()
	rt.UpdateScore("2.2.2.2", SeverityCritical)
	rt.UpdateScore("2.2.2.2", SeverityCritical)
	if score := rt.Score("2.2.2.2"); score != -50 {
		t.Fatalf("expected -50, got %d", score)
	}
	// Blocked means strictly below -50.
	if rt.IsBlocked("2.2.2.2") {
		t.Fatalf("-50 exactly must not be blocked")
	}
}

func TestForceBlock(t *testing.T) {
	rt := NewReputationTracker()
	rt.ForceBlock("3.3.3.3")
	if !rt.IsBlocked("3.3.3.3") {
		t.Fatalf("force-blocked address must be blocked")
	}
	// Idempotent, and it never raises an already lower score.
	rt.UpdateScore("3.3.3.3", SeverityCritical)
	before := rt.Score("3.3.3.3")
	rt.ForceBlock("3.3.3.3")
	if after := rt.Score("3.3.3.3"); after != before {
		t.Fatalf("force block raised score from %d to %d", before, after)
	}
}

func TestReputationPruneIdle(t *testing.T) {
	rt := NewReputationTracker()
	rt.UpdateScore("old.addr", SeverityCritical)
	rt.UpdateScore("old.addr", SeverityCritical)
	rt.UpdateScore("old.addr", SeverityCritical)
	rt.UpdateScore("new.addr", SeverityLow)
	if !rt.IsBlocked("old.addr") {
		t.Fatalf("expected old.addr blocked before expiry")
	}

	rt.mu.Lock()
	rt.records["old.addr"].LastUpdated = time.Now().Add(-31 * 24 * time.Hour)
	rt.mu.Unlock()

	removed := rt.PruneIdle(time.Now().Add(-30 * 24 * time.Hour))
	if removed != 1 {
		t.Fatalf("expected one record pruned, got %d", removed)
	}
	// Expiry is all-or-nothing: the whole penalty disappears at once.
	if rt.IsBlocked("old.addr") {
		t.Fatalf("expired address must no longer be blocked")
	}
	if rt.Score("old.addr") != 0 {
		t.Fatalf("expired address must score 0, got %d", rt.Score("old.addr"))
	}
	if rt.Score("new.addr") != -1 {
		t.Fatalf("fresh record must survive the sweep")
	}
}
