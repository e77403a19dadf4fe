package threatguard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDirAppendsPatterns(t *testing.T) {
	dir := t.TempDir()
	override := `{"category":"sql_injection","patterns":["(?i)\\bpg_sleep\\s*\\("]}`
	if err := os.WriteFile(filepath.Join(dir, "custom.json"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	lib := NewPatternLibrary()
	tc := NewThreatClassifier(lib)

	if matches := tc.Analyze(context.Background(), "SELECT password FROM users"); len(matches) == 0 {
		t.Fatalf("expected built-in patterns before reload")
	}
	if matches := tc.Analyze(context.Background(), "x=pg_sleep(5)"); len(matches) != 0 {
		t.Fatalf("override pattern must not match before LoadDir")
	}

	if err := lib.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	matches := tc.Analyze(context.Background(), "x=pg_sleep(5)")
	if len(matches) != 1 || matches[0].Category != CategorySQLInjection {
		t.Fatalf("expected override pattern to match after reload, got %+v", matches)
	}
}

func TestLoadDirAddsAgentSignatures(t *testing.T) {
	dir := t.TempDir()
	override := `{"suspiciousAgents":["EvilScanner"]}`
	if err := os.WriteFile(filepath.Join(dir, "agents.json"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	lib := NewPatternLibrary()
	if err := lib.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	sig, ok := lib.MatchAgent("Mozilla/5.0 evilscanner/2.1")
	if !ok || sig != "evilscanner" {
		t.Fatalf("expected evilscanner signature, got %q %v", sig, ok)
	}
}

func TestLoadDirMissingDirectory(t *testing.T) {
	lib := NewPatternLibrary()
	if err := lib.LoadDir(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Fatalf("missing directory must not be an error: %v", err)
	}
}

func TestLoadDirInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	lib := NewPatternLibrary()
	if err := lib.LoadDir(dir); err == nil {
		t.Fatalf("expected error for malformed override file")
	}
}

func TestInvalidOverrideRegexSkipped(t *testing.T) {
	dir := t.TempDir()
	override := `{"category":"xss","patterns":["([unclosed","(?i)vbscript\\s*:"]}`
	if err := os.WriteFile(filepath.Join(dir, "xss.json"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}
	lib := NewPatternLibrary()
	if err := lib.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	tc := NewThreatClassifier(lib)
	matches := tc.Analyze(context.Background(), "vbscript: msgbox(1)")
	if len(matches) != 1 || matches[0].Category != CategoryXSS {
		t.Fatalf("expected valid override to survive a broken sibling, got %+v", matches)
	}
}

func TestMatchAgentUnknown(t *testing.T) {
	lib := NewPatternLibrary()
	if _, ok := lib.MatchAgent("Mozilla/5.0 (Windows NT 10.0)"); ok {
		t.Fatalf("ordinary browser agent must not match")
	}
	if _, ok := lib.MatchAgent(""); ok {
		t.Fatalf("empty agent must not match")
	}
}
