package threatguard

import (
	"context"
)

// maxMatchedData bounds how much of the offending input is copied into
// event details.
const maxMatchedData = 100

// ThreatClassifier runs the pattern library against serialized request
// text. Pure function over its input: no side effects, safe for concurrent
// use, and it never panics on malformed input.
type ThreatClassifier struct {
	library *PatternLibrary
}

func NewThreatClassifier(library *PatternLibrary) *ThreatClassifier {
	if library == nil {
		library = NewPatternLibrary()
	}
	return &ThreatClassifier{library: library}
}

// Analyze scans the serialized request and returns one match per category
// that fired. Every category is evaluated independently; finding the first
// matching pattern within a category is enough. The context deadline is
// checked between categories so a caller-imposed budget bounds the scan.
func (tc *ThreatClassifier) Analyze(ctx context.Context, serialized string) []ThreatMatch {
	if serialized == "" {
		return nil
	}
	categories, _ := tc.library.snapshot()
	var matches []ThreatMatch
	for _, cat := range categories {
		if ctx != nil && ctx.Err() != nil {
			break
		}
		for _, re := range cat.patterns {
			loc := re.FindStringIndex(serialized)
			if loc == nil {
				continue
			}
			end := loc[1]
			if end > loc[0]+maxMatchedData {
				end = loc[0] + maxMatchedData
			}
			matches = append(matches, ThreatMatch{
				Category:    cat.name,
				Pattern:     re.String(),
				MatchedData: serialized[loc[0]:end],
			})
			break
		}
	}
	return matches
}

// categoryEvent maps a classifier match back to the event type and
// severity its category carries.
func (tc *ThreatClassifier) categoryEvent(category PatternCategory) (EventType, Severity) {
	categories, _ := tc.library.snapshot()
	for _, cat := range categories {
		if cat.name == category {
			return cat.eventType, cat.severity
		}
	}
	return EventSuspiciousRequest, SeverityMedium
}
