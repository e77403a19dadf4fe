package threatguard

import (
	"github.com/oarkflow/log"
)

// IPBlocker is the enforcement seam for blocking decisions. The engine
// only decides that a block is warranted; the host (firewall rule,
// reverse-proxy deny list) performs the network effect.
type IPBlocker interface {
	BlockAddress(address, reason string) error
}

// RateLimitEscalator is the enforcement seam for rate-limit escalation.
type RateLimitEscalator interface {
	EscalateRateLimit(address string) error
}

// LogBlocker is the default blocker: it only logs the decision.
type LogBlocker struct {
	Logger *log.Logger
}

func (b *LogBlocker) BlockAddress(address, reason string) error {
	if b.Logger != nil {
		b.Logger.Warn().Str("ip", address).Str("reason", reason).Msg("address blocked")
	}
	return nil
}

// LogRateLimitEscalator is the default escalator: it only logs the decision.
type LogRateLimitEscalator struct {
	Logger *log.Logger
}

func (e *LogRateLimitEscalator) EscalateRateLimit(address string) error {
	if e.Logger != nil {
		e.Logger.Warn().Str("ip", address).Msg("rate limit escalated")
	}
	return nil
}

// ResponseController is a fixed decision table over finalized events:
// critical severity blocks the source address, brute-force attacks
// escalate rate limiting, everything else is observe-only. Collaborator
// failures are logged best-effort; by the time the controller runs the
// event and reputation are already committed, so a failure never rolls
// back recording.
type ResponseController struct {
	blocker   IPBlocker
	escalator RateLimitEscalator
	logger    *log.Logger
}

func NewResponseController(blocker IPBlocker, escalator RateLimitEscalator, logger *log.Logger) *ResponseController {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	if blocker == nil {
		blocker = &LogBlocker{Logger: logger}
	}
	if escalator == nil {
		escalator = &LogRateLimitEscalator{Logger: logger}
	}
	return &ResponseController{blocker: blocker, escalator: escalator, logger: logger}
}

// OnEvent applies the decision table to one recorded event.
func (rc *ResponseController) OnEvent(event *SecurityEvent) {
	if event == nil {
		return
	}
	if event.Severity == SeverityCritical {
		reason := string(event.Type)
		if r, ok := event.Details["reason"].(string); ok && r != "" {
			reason = r
		}
		if err := rc.blocker.BlockAddress(event.SourceAddress, reason); err != nil {
			rc.logger.Error().Err(err).Str("ip", event.SourceAddress).Msg("block collaborator failed")
		}
	}
	if event.Type == EventBruteForceAttack {
		if err := rc.escalator.EscalateRateLimit(event.SourceAddress); err != nil {
			rc.logger.Error().Err(err).Str("ip", event.SourceAddress).Msg("rate limit collaborator failed")
		}
	}
}

// blockFor invokes the blocking collaborator directly; used by the manual
// BlockIP management operation, which shares the hook with automatic
// critical detections.
func (rc *ResponseController) blockFor(address, reason string) {
	if err := rc.blocker.BlockAddress(address, reason); err != nil {
		rc.logger.Error().Err(err).Str("ip", address).Msg("block collaborator failed")
	}
}
