package threatguard

import (
	"sync"
	"time"
)

// retentionSweeper prunes expired events, reputations and idle behavior
// profiles on fixed cadences. Sweeps take the same locks as normal
// operations, so they are safe alongside concurrent recording.
type retentionSweeper struct {
	engine *Engine
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func newRetentionSweeper(engine *Engine) *retentionSweeper {
	return &retentionSweeper{engine: engine, stopCh: make(chan struct{})}
}

func (rs *retentionSweeper) start() {
	rs.wg.Add(2)
	go rs.loop(rs.engine.cfg.EventSweepInterval, rs.sweepEvents)
	go rs.loop(rs.engine.cfg.ReputationSweepInterval, rs.sweepReputations)
}

func (rs *retentionSweeper) loop(interval time.Duration, sweep func()) {
	defer rs.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sweep()
		case <-rs.stopCh:
			return
		}
	}
}

func (rs *retentionSweeper) sweepEvents() {
	e := rs.engine
	cutoff := time.Now().Add(-e.cfg.EventTTL)
	removed := e.store.Prune(cutoff)
	if removed > 0 {
		e.logger.Info().Int("removed", removed).Msg("expired events pruned")
	}
	e.metrics.SetGauge("threatguard_events_retained", float64(e.store.Len()), nil)
}

func (rs *retentionSweeper) sweepReputations() {
	e := rs.engine
	cutoff := time.Now().Add(-e.cfg.ReputationTTL)
	removedReps := e.reputation.PruneIdle(cutoff)
	removedProfiles := e.profiler.PruneIdle(cutoff)
	if removedReps > 0 || removedProfiles > 0 {
		e.logger.Info().
			Int("reputations", removedReps).
			Int("profiles", removedProfiles).
			Msg("idle records pruned")
	}
	e.metrics.SetGauge("threatguard_reputations_retained", float64(e.reputation.size()), nil)
	e.metrics.SetGauge("threatguard_profiles_retained", float64(e.profiler.size()), nil)
}

func (rs *retentionSweeper) stop() {
	rs.once.Do(func() {
		close(rs.stopCh)
		rs.wg.Wait()
	})
}
