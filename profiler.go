package threatguard

import (
	"sync"
	"time"
)

const (
	// DefaultFanOutThreshold is the unique-source-address count above which
	// an actor is flagged.
	DefaultFanOutThreshold = 5
	// DefaultVolumeThreshold is the lifetime request count above which an
	// actor is flagged.
	DefaultVolumeThreshold = 1000
)

// ActorProfile is the rolling behavioral record for one authenticated user.
// Request counters never decay; pruning only removes idle profiles.
type ActorProfile struct {
	UserID          string
	RequestCount    int
	SourceAddresses map[string]struct{}
	RouteFrequency  map[string]int
	LastActivity    time.Time
}

// BehaviorProfiler keeps per-actor profiles and re-evaluates the anomaly
// thresholds on every observation. Checks are level-triggered: an actor
// that stays above a threshold produces a signal on every subsequent
// request, not only at the crossing.
type BehaviorProfiler struct {
	mu              sync.Mutex
	profiles        map[string]*ActorProfile
	fanOutThreshold int
	volumeThreshold int
}

func NewBehaviorProfiler(fanOutThreshold, volumeThreshold int) *BehaviorProfiler {
	if fanOutThreshold <= 0 {
		fanOutThreshold = DefaultFanOutThreshold
	}
	if volumeThreshold <= 0 {
		volumeThreshold = DefaultVolumeThreshold
	}
	return &BehaviorProfiler{
		profiles:        make(map[string]*ActorProfile),
		fanOutThreshold: fanOutThreshold,
		volumeThreshold: volumeThreshold,
	}
}

// Observe updates the actor's profile and returns any threshold signals.
// No-op for unauthenticated requests.
func (bp *BehaviorProfiler) Observe(userID, sourceAddress, method, path string) []AnomalySignal {
	if userID == "" {
		return nil
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	prof, ok := bp.profiles[userID]
	if !ok {
		prof = &ActorProfile{
			UserID:          userID,
			SourceAddresses: make(map[string]struct{}),
			RouteFrequency:  make(map[string]int),
		}
		bp.profiles[userID] = prof
	}
	prof.RequestCount++
	if sourceAddress != "" {
		prof.SourceAddresses[sourceAddress] = struct{}{}
	}
	prof.RouteFrequency[method+":"+path]++
	prof.LastActivity = time.Now()

	var signals []AnomalySignal
	if len(prof.SourceAddresses) > bp.fanOutThreshold {
		signals = append(signals, AnomalySignal{
			AnomalyType: "multiple_ips",
			Severity:    SeverityMedium,
			Details: map[string]any{
				"anomalyType":   "multiple_ips",
				"uniqueIPCount": len(prof.SourceAddresses),
			},
		})
	}
	if prof.RequestCount > bp.volumeThreshold {
		signals = append(signals, AnomalySignal{
			AnomalyType: "high_request_volume",
			Severity:    SeverityHigh,
			Details: map[string]any{
				"anomalyType":  "high_request_volume",
				"requestCount": prof.RequestCount,
			},
		})
	}
	return signals
}

// Profile returns a copy of the actor's profile, or nil if never seen.
func (bp *BehaviorProfiler) Profile(userID string) *ActorProfile {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	prof, ok := bp.profiles[userID]
	if !ok {
		return nil
	}
	cp := &ActorProfile{
		UserID:          prof.UserID,
		RequestCount:    prof.RequestCount,
		SourceAddresses: make(map[string]struct{}, len(prof.SourceAddresses)),
		RouteFrequency:  make(map[string]int, len(prof.RouteFrequency)),
		LastActivity:    prof.LastActivity,
	}
	for addr := range prof.SourceAddresses {
		cp.SourceAddresses[addr] = struct{}{}
	}
	for route, n := range prof.RouteFrequency {
		cp.RouteFrequency[route] = n
	}
	return cp
}

// PruneIdle drops profiles whose last activity is older than the cutoff
// and returns how many were removed.
func (bp *BehaviorProfiler) PruneIdle(cutoff time.Time) int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	removed := 0
	for id, prof := range bp.profiles {
		if prof.LastActivity.Before(cutoff) {
			delete(bp.profiles, id)
			removed++
		}
	}
	return removed
}

func (bp *BehaviorProfiler) size() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.profiles)
}
