package threatguard

import (
	"time"
)

// Severity classifies how dangerous a detected event is. Values are ordered:
// low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// severityWeights are the per-event reputation penalties.
var severityWeights = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   5,
	SeverityHigh:     10,
	SeverityCritical: 25,
}

// Weight returns the reputation penalty applied for an event of this
// severity. Unknown severities weigh as low.
func (s Severity) Weight() int {
	if w, ok := severityWeights[s]; ok {
		return w
	}
	return severityWeights[SeverityLow]
}

// AtLeast reports whether s is ordered at or above other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// EventType is the closed enumeration of recordable security events.
type EventType string

const (
	EventAuthFailure          EventType = "AUTHENTICATION_FAILURE"
	EventAuthSuccess          EventType = "AUTHENTICATION_SUCCESS"
	EventAuthzFailure         EventType = "AUTHORIZATION_FAILURE"
	EventSuspiciousRequest    EventType = "SUSPICIOUS_REQUEST"
	EventRateLimitExceeded    EventType = "RATE_LIMIT_EXCEEDED"
	EventDataBreachAttempt    EventType = "DATA_BREACH_ATTEMPT"
	EventPrivilegeEscalation  EventType = "PRIVILEGE_ESCALATION"
	EventUnauthorizedAccess   EventType = "UNAUTHORIZED_ACCESS"
	EventMaliciousPayload     EventType = "MALICIOUS_PAYLOAD"
	EventAnomalousBehavior    EventType = "ANOMALOUS_BEHAVIOR"
	EventSessionHijacking     EventType = "SESSION_HIJACKING"
	EventBruteForceAttack     EventType = "BRUTE_FORCE_ATTACK"
	EventSQLInjectionAttempt  EventType = "SQL_INJECTION_ATTEMPT"
	EventXSSAttempt           EventType = "XSS_ATTEMPT"
	EventCSRFAttempt          EventType = "CSRF_ATTEMPT"
	EventPathTraversal        EventType = "PATH_TRAVERSAL_ATTEMPT"
	EventCommandInjection     EventType = "COMMAND_INJECTION_ATTEMPT"
	EventLDAPInjection        EventType = "LDAP_INJECTION_ATTEMPT"
	EventNoSQLInjection       EventType = "NOSQL_INJECTION_ATTEMPT"
)

// SecurityEvent is a single recorded detection. Immutable once recorded
// apart from the Resolved latch, which is reserved for future triage.
type SecurityEvent struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	Severity      Severity       `json:"severity"`
	Timestamp     time.Time      `json:"timestamp"`
	SourceAddress string         `json:"sourceAddress"`
	UserAgent     string         `json:"userAgent,omitempty"`
	UserID        string         `json:"userId,omitempty"`
	SessionID     string         `json:"sessionId,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Resolved      bool           `json:"resolved"`
}

// RawEvent is what detection paths hand to the recorder before an identity
// and timestamp are assigned.
type RawEvent struct {
	Type          EventType
	Severity      Severity
	SourceAddress string
	UserAgent     string
	UserID        string
	SessionID     string
	Details       map[string]any
}

// IPReputation tracks the decaying score of a single source address. The
// score only ever goes down; recovery is the wholesale record expiry after
// 30 days of silence.
type IPReputation struct {
	Address     string    `json:"address"`
	Score       int       `json:"score"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// ThreatMatch is one pattern-library hit produced by the classifier.
type ThreatMatch struct {
	Category    PatternCategory
	Pattern     string
	MatchedData string
}

// AnomalySignal is a behavior-threshold crossing reported by the profiler,
// distinct from a pattern-based match.
type AnomalySignal struct {
	AnomalyType string
	Severity    Severity
	Details     map[string]any
}
