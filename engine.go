package threatguard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oarkflow/log"
)

// Config tunes one Engine instance. Zero values fall back to the defaults
// applied in New.
type Config struct {
	// MaxEvents caps the in-memory event window.
	MaxEvents int
	// MaxBodyBytes caps how much request body is serialized for matching.
	MaxBodyBytes int
	// AnalysisTimeout is the per-request pattern scan budget.
	AnalysisTimeout time.Duration

	// FanOutThreshold and VolumeThreshold tune the behavior profiler.
	FanOutThreshold int
	VolumeThreshold int

	// EventTTL and ReputationTTL control retention. Profiles share the
	// reputation TTL.
	EventTTL      time.Duration
	ReputationTTL time.Duration
	// EventSweepInterval and ReputationSweepInterval are the sweep cadences.
	EventSweepInterval      time.Duration
	ReputationSweepInterval time.Duration

	// AlertQueueSize bounds the async alert backlog; SyncAlerts delivers
	// callbacks inline instead (tests, single-threaded hosts).
	AlertQueueSize int
	SyncAlerts     bool

	// PatternDir optionally points at a directory of JSON pattern
	// overrides; WatchPatterns hot-reloads it on change.
	PatternDir    string
	WatchPatterns bool

	// TopEventTypes bounds the statistics ranking.
	TopEventTypes int

	Blocker   IPBlocker
	Escalator RateLimitEscalator
	Metrics   MetricsCollector
	Archive   *EventArchive
	Logger    *log.Logger
}

const (
	DefaultAnalysisTimeout         = 100 * time.Millisecond
	DefaultEventTTL                = 7 * 24 * time.Hour
	DefaultReputationTTL           = 30 * 24 * time.Hour
	DefaultEventSweepInterval      = time.Hour
	DefaultReputationSweepInterval = 24 * time.Hour
)

// Engine is the threat-detection and IP-reputation core. Construct with
// New, call Start to run background maintenance, Stop to shut down. All
// exported methods are safe for concurrent use; none block on I/O.
type Engine struct {
	cfg        Config
	library    *PatternLibrary
	serializer *RequestSerializer
	classifier *ThreatClassifier
	profiler   *BehaviorProfiler
	store      *EventStore
	reputation *ReputationTracker
	responder  *ResponseController
	alerts     *AlertDispatcher
	metrics    MetricsCollector
	archive    *EventArchive
	logger     *log.Logger
	sweeper    *retentionSweeper
}

// New builds an engine from the config. It does not start background work.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = &log.DefaultLogger
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = DefaultEventTTL
	}
	if cfg.ReputationTTL <= 0 {
		cfg.ReputationTTL = DefaultReputationTTL
	}
	if cfg.EventSweepInterval <= 0 {
		cfg.EventSweepInterval = DefaultEventSweepInterval
	}
	if cfg.ReputationSweepInterval <= 0 {
		cfg.ReputationSweepInterval = DefaultReputationSweepInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewInMemoryMetrics()
	}

	library := NewPatternLibrary()
	e := &Engine{
		cfg:        cfg,
		library:    library,
		serializer: NewRequestSerializer(cfg.MaxBodyBytes),
		classifier: NewThreatClassifier(library),
		profiler:   NewBehaviorProfiler(cfg.FanOutThreshold, cfg.VolumeThreshold),
		store:      NewEventStore(cfg.MaxEvents),
		reputation: NewReputationTracker(),
		responder:  NewResponseController(cfg.Blocker, cfg.Escalator, cfg.Logger),
		alerts:     NewAlertDispatcher(cfg.AlertQueueSize, cfg.SyncAlerts, cfg.Logger),
		metrics:    cfg.Metrics,
		archive:    cfg.Archive,
		logger:     cfg.Logger,
	}
	e.sweeper = newRetentionSweeper(e)
	return e
}

// Start loads pattern overrides and launches the retention sweeper.
func (e *Engine) Start() error {
	if e.cfg.PatternDir != "" {
		if err := e.library.LoadDir(e.cfg.PatternDir); err != nil {
			return err
		}
		if e.cfg.WatchPatterns {
			if err := e.library.Watch(e.cfg.PatternDir, func(err error) {
				if err != nil {
					e.logger.Error().Err(err).Msg("pattern reload failed")
				} else {
					e.logger.Info().Str("dir", e.cfg.PatternDir).Msg("patterns reloaded")
				}
			}); err != nil {
				return err
			}
		}
	}
	e.sweeper.start()
	return nil
}

// Stop halts background work and drains pending alerts.
func (e *Engine) Stop() {
	e.sweeper.stop()
	e.alerts.Close()
	if err := e.library.Close(); err != nil {
		e.logger.Error().Err(err).Msg("pattern watcher close failed")
	}
	if e.archive != nil {
		if err := e.archive.Close(); err != nil {
			e.logger.Error().Err(err).Msg("event archive close failed")
		}
	}
}

// AnalyzeRequest inspects one inbound request and returns every event it
// produced, zero or more. The caller enforces policy on the result: any
// critical event means the request should be denied. Internal faults are
// absorbed; the worst outcome is that this request's analysis is skipped.
func (e *Engine) AnalyzeRequest(ctx context.Context, req *RequestDescriptor, userID, sessionID string) (events []*SecurityEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Msgf("request analysis skipped: %v", r)
			events = nil
		}
	}()
	if req == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	scanCtx, cancel := context.WithTimeout(ctx, e.cfg.AnalysisTimeout)
	defer cancel()

	serialized := e.serializer.Serialize(req)
	for _, match := range e.classifier.Analyze(scanCtx, serialized) {
		eventType, severity := e.classifier.categoryEvent(match.Category)
		events = append(events, e.Record(RawEvent{
			Type:          eventType,
			Severity:      severity,
			SourceAddress: req.SourceAddress,
			UserAgent:     req.UserAgent,
			UserID:        userID,
			SessionID:     sessionID,
			Details: map[string]any{
				"category":    string(match.Category),
				"pattern":     match.Pattern,
				"matchedData": match.MatchedData,
				"url":         req.URL,
				"method":      req.Method,
			},
		}))
	}

	if sig, ok := e.library.MatchAgent(req.UserAgent); ok {
		events = append(events, e.Record(RawEvent{
			Type:          EventSuspiciousRequest,
			Severity:      SeverityMedium,
			SourceAddress: req.SourceAddress,
			UserAgent:     req.UserAgent,
			UserID:        userID,
			SessionID:     sessionID,
			Details: map[string]any{
				"matchedAgent": sig,
				"url":          req.URL,
				"method":       req.Method,
			},
		}))
	}

	for _, signal := range e.profiler.Observe(userID, req.SourceAddress, req.Method, req.URL) {
		details := signal.Details
		if details == nil {
			details = map[string]any{}
		}
		details["url"] = req.URL
		details["method"] = req.Method
		events = append(events, e.Record(RawEvent{
			Type:          EventAnomalousBehavior,
			Severity:      signal.Severity,
			SourceAddress: req.SourceAddress,
			UserAgent:     req.UserAgent,
			UserID:        userID,
			SessionID:     sessionID,
			Details:       details,
		}))
	}
	return events
}

// Record is the single mutation entry point for the event store. It
// finalizes the raw event, commits it, then fans out: reputation update,
// response controller, alert dispatch, in that order.
func (e *Engine) Record(raw RawEvent) *SecurityEvent {
	event := &SecurityEvent{
		ID:            uuid.NewString(),
		Type:          raw.Type,
		Severity:      raw.Severity,
		Timestamp:     time.Now(),
		SourceAddress: raw.SourceAddress,
		UserAgent:     raw.UserAgent,
		UserID:        raw.UserID,
		SessionID:     raw.SessionID,
		Details:       raw.Details,
	}
	e.store.Append(event)
	if e.archive != nil {
		if err := e.archive.Insert(event); err != nil {
			e.logger.Error().Err(err).Str("event_id", event.ID).Msg("event archive insert failed")
		}
	}
	e.reputation.UpdateScore(event.SourceAddress, event.Severity)
	e.responder.OnEvent(event)
	e.alerts.Dispatch(event)
	e.metrics.IncrementCounter("threatguard_events_total", map[string]string{
		"type":     string(event.Type),
		"severity": string(event.Severity),
	})
	return event
}

// BlockIP records a manual UNAUTHORIZED_ACCESS event for the address,
// pins its reputation past the block threshold and invokes the same
// blocking hook an automatic critical detection would. Idempotent in
// effect: repeated calls keep the address blocked and record one event
// each.
func (e *Engine) BlockIP(address, reason string) *SecurityEvent {
	event := e.Record(RawEvent{
		Type:          EventUnauthorizedAccess,
		Severity:      SeverityHigh,
		SourceAddress: address,
		Details: map[string]any{
			"reason": reason,
			"manual": true,
		},
	})
	e.reputation.ForceBlock(address)
	e.responder.blockFor(address, reason)
	return event
}

// IsIPBlocked reports whether the address's reputation is past the block
// threshold.
func (e *Engine) IsIPBlocked(address string) bool {
	return e.reputation.IsBlocked(address)
}

// Reputation exposes the address record for admin tooling.
func (e *Engine) Reputation(address string) *IPReputation {
	return e.reputation.Reputation(address)
}

// Events returns recorded events matching the filter, newest first.
func (e *Engine) Events(filter EventFilter) []*SecurityEvent {
	return e.store.Query(filter)
}

// Statistics summarizes the current event window.
func (e *Engine) Statistics() Statistics {
	return e.store.Statistics(e.cfg.TopEventTypes)
}

// RegisterAlertCallback adds an observer invoked for every recorded event.
func (e *Engine) RegisterAlertCallback(fn AlertCallback) {
	e.alerts.RegisterCallback(fn)
}

// Patterns exposes the library, mainly so hosts can trigger reloads.
func (e *Engine) Patterns() *PatternLibrary {
	return e.library
}
