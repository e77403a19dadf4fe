package threatguard

import (
	"context"
	"testing"
)

func TestAnalyzeSQLInjection(t *testing.T) {
	tc := NewThreatClassifier(NewPatternLibrary())
	matches := tc.Analyze(context.Background(), "/login POST username=admin 1 OR 1=1")
	if len(matches) == 0 {
		t.Fatalf("expected SQL injection match, got none")
	}
	found := false
	for _, m := range matches {
		if m.Category == CategorySQLInjection {
			found = true
			if m.MatchedData == "" {
				t.Fatalf("expected matched substring, got empty")
			}
		}
	}
	if !found {
		t.Fatalf("expected sql_injection category, got %+v", matches)
	}
}

func TestAnalyzeCategories(t *testing.T) {
	tc := NewThreatClassifier(NewPatternLibrary())
	cases := []struct {
		name     string
		input    string
		category PatternCategory
	}{
		{"xss script tag", `/search GET q=<script>alert(1)</script>`, CategoryXSS},
		{"xss handler", `/search GET q=<img onerror=alert(1)>`, CategoryXSS},
		{"path traversal", `/files GET path=../../etc/passwd`, CategoryPathTraversal},
		{"command injection", `/run POST cmd=; cat /etc/hosts`, CategoryCommandInjection},
		{"ldap injection", `/dir GET filter=(|(uid=*)(cn=admin))`, CategoryLDAPInjection},
		{"nosql operator", `/api POST {"user": {"$ne": null}}`, CategoryNoSQLInjection},
	}
	for _, tt := range cases {
		matches := tc.Analyze(context.Background(), tt.input)
		found := false
		for _, m := range matches {
			if m.Category == tt.category {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: expected category %s in %+v", tt.name, tt.category, matches)
		}
	}
}

func TestAnalyzeBenignRequest(t *testing.T) {
	tc := NewThreatClassifier(NewPatternLibrary())
	matches := tc.Analyze(context.Background(), "/api/workshops GET page=2 limit=20")
	if len(matches) != 0 {
		t.Fatalf("expected no matches for benign request, got %+v", matches)
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	tc := NewThreatClassifier(NewPatternLibrary())
	if matches := tc.Analyze(context.Background(), ""); matches != nil {
		t.Fatalf("expected nil for empty input, got %+v", matches)
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	tc := NewThreatClassifier(NewPatternLibrary())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A cancelled context stops the scan without panicking or erroring.
	matches := tc.Analyze(ctx, "1 OR 1=1")
	if len(matches) != 0 {
		t.Fatalf("expected cancelled scan to produce no matches, got %+v", matches)
	}
}

func TestMatchAgent(t *testing.T) {
	lib := NewPatternLibrary()
	sig, ok := lib.MatchAgent("sqlmap/1.6#stable (http://sqlmap.org)")
	if !ok || sig != "sqlmap" {
		t.Fatalf("expected sqlmap signature, got %q ok=%v", sig, ok)
	}
	if _, ok := lib.MatchAgent("Mozilla/5.0 (X11; Linux x86_64)"); ok {
		t.Fatalf("expected browser agent to pass")
	}
	if _, ok := lib.MatchAgent(""); ok {
		t.Fatalf("expected empty agent to pass")
	}
}
