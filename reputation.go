package threatguard

import (
	"sync"
	"time"
)

// BlockScoreThreshold is the reputation score below which an address is
// considered blocked.
const BlockScoreThreshold = -50

// ReputationTracker keeps one decaying score per source address. Scores
// only decrease; the sole recovery path is the retention sweep dropping a
// record after 30 days without activity, which lifts the whole penalty at
// once.
type ReputationTracker struct {
	mu      sync.RWMutex
	records map[string]*IPReputation
}

func NewReputationTracker() *ReputationTracker {
	return &ReputationTracker{records: make(map[string]*IPReputation)}
}

// UpdateScore applies the severity weight to the address, creating the
// record on first sight.
func (rt *ReputationTracker) UpdateScore(address string, severity Severity) {
	if address == "" {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rec, ok := rt.records[address]
	if !ok {
		rec = &IPReputation{Address: address}
		rt.records[address] = rec
	}
	rec.Score -= severity.Weight()
	rec.LastUpdated = time.Now()
}

// ForceBlock pins the address past the block threshold regardless of how
// much penalty it had accrued. Idempotent: an already-blocked address
// keeps its (lower) score.
func (rt *ReputationTracker) ForceBlock(address string) {
	if address == "" {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rec, ok := rt.records[address]
	if !ok {
		rec = &IPReputation{Address: address}
		rt.records[address] = rec
	}
	if rec.Score >= BlockScoreThreshold {
		rec.Score = BlockScoreThreshold - 1
	}
	rec.LastUpdated = time.Now()
}

// Score returns the current reputation score, 0 for an unseen address.
func (rt *ReputationTracker) Score(address string) int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if rec, ok := rt.records[address]; ok {
		return rec.Score
	}
	return 0
}

// IsBlocked reports whether the address has fallen past the block
// threshold.
func (rt *ReputationTracker) IsBlocked(address string) bool {
	return rt.Score(address) < BlockScoreThreshold
}

// Reputation returns a copy of the address record, or nil if unseen.
func (rt *ReputationTracker) Reputation(address string) *IPReputation {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	rec, ok := rt.records[address]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// PruneIdle drops records not updated since the cutoff and returns how
// many were removed.
func (rt *ReputationTracker) PruneIdle(cutoff time.Time) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	removed := 0
	for addr, rec := range rt.records {
		if rec.LastUpdated.Before(cutoff) {
			delete(rt.records, addr)
			removed++
		}
	}
	return removed
}

func (rt *ReputationTracker) size() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.records)
}
