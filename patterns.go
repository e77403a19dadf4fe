package threatguard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// PatternCategory names one class of attack signatures.
type PatternCategory string

const (
	CategorySQLInjection     PatternCategory = "sql_injection"
	CategoryXSS              PatternCategory = "xss"
	CategoryPathTraversal    PatternCategory = "path_traversal"
	CategoryCommandInjection PatternCategory = "command_injection"
	CategoryLDAPInjection    PatternCategory = "ldap_injection"
	CategoryNoSQLInjection   PatternCategory = "nosql_injection"
)

type categoryDefinition struct {
	EventType EventType
	Severity  Severity
	Patterns  []string
}

// Built-in signatures per category. Go's regexp is RE2, so every pattern is
// guaranteed linear-time on attacker-controlled input.
var categoryDefinitions = map[PatternCategory]categoryDefinition{
	CategorySQLInjection: {
		EventType: EventSQLInjectionAttempt,
		Severity:  SeverityHigh,
		Patterns: []string{
			`(?i)\b(union|select|insert|update|delete|drop|alter|create)\b[\s\S]{0,40}\b(from|into|where|table|database)\b`,
			`(?i)\b(or|and)\b\s+['"]?\d+['"]?\s*=\s*['"]?\d+`,
			`(?i)'\s*(or|and)\s+'`,
			`(?i)\b(exec|execute)\b\s+(sp_|xp_)\w+`,
			`(?i)(--|#|/\*)\s*$`,
			`(?i)\bwaitfor\s+delay\b|\bsleep\s*\(\s*\d+`,
		},
	},
	CategoryXSS: {
		EventType: EventXSSAttempt,
		Severity:  SeverityHigh,
		Patterns: []string{
			`(?i)<\s*script[^>]*>`,
			`(?i)javascript\s*:`,
			`(?i)\bon(error|load|click|focus|mouseover)\s*=`,
			`(?i)<\s*(iframe|object|embed|svg)\b`,
			`(?i)document\.(cookie|location|write)`,
		},
	},
	CategoryPathTraversal: {
		EventType: EventPathTraversal,
		Severity:  SeverityHigh,
		Patterns: []string{
			`\.\./|\.\.\\`,
			`(?i)%2e%2e(%2f|%5c|/)`,
			`(?i)/etc/(passwd|shadow|hosts)\b`,
			`(?i)\b(boot\.ini|win\.ini)\b`,
		},
	},
	CategoryCommandInjection: {
		EventType: EventCommandInjection,
		Severity:  SeverityCritical,
		Patterns: []string{
			`(?i)[;&|]\s*(cat|ls|rm|wget|curl|nc|bash|sh|cmd|powershell)\b`,
			"`[^`]+`",
			`\$\([^)]+\)`,
			`(?i)\|\s*(id|whoami|uname|ifconfig)\b`,
		},
	},
	CategoryLDAPInjection: {
		EventType: EventLDAPInjection,
		Severity:  SeverityHigh,
		Patterns: []string{
			`\(\s*[|&]\s*\(`,
			`(?i)\(\w+\s*=\s*\*\)`,
			`\*\)\s*\(`,
		},
	},
	CategoryNoSQLInjection: {
		EventType: EventNoSQLInjection,
		Severity:  SeverityHigh,
		Patterns: []string{
			`(?i)\$(where|ne|gt|gte|lt|lte|regex|nin|in|exists)\b`,
			`(?i)\{\s*"?\$`,
			`(?i)this\.\w+\s*==`,
		},
	},
}

// Known scanner fingerprints matched against the User-Agent header,
// lowercase substring match.
var suspiciousAgentSignatures = []string{
	"sqlmap",
	"nikto",
	"nmap",
	"masscan",
	"acunetix",
	"nessus",
	"burpsuite",
	"burp suite",
	"dirbuster",
	"gobuster",
	"wfuzz",
	"hydra",
	"metasploit",
	"havij",
	"w3af",
	"zgrab",
}

type compiledCategory struct {
	name      PatternCategory
	eventType EventType
	severity  Severity
	patterns  []*regexp.Regexp
}

// PatternLibrary holds the compiled detection signatures. Safe for
// concurrent scanning; reloads swap the compiled set under the lock.
type PatternLibrary struct {
	mu         sync.RWMutex
	categories []compiledCategory
	agents     []string
	watcher    *fsnotify.Watcher
	done       chan struct{}
}

// PatternOverride is one JSON file in the override directory: extra
// patterns appended to a built-in category, or extra agent signatures.
type PatternOverride struct {
	Category         string   `json:"category"`
	Patterns         []string `json:"patterns,omitempty"`
	SuspiciousAgents []string `json:"suspiciousAgents,omitempty"`
}

// NewPatternLibrary compiles the built-in signature set.
func NewPatternLibrary() *PatternLibrary {
	lib := &PatternLibrary{}
	lib.compile(nil)
	return lib
}

func (pl *PatternLibrary) compile(overrides []PatternOverride) {
	extra := make(map[PatternCategory][]string)
	agents := append([]string(nil), suspiciousAgentSignatures...)
	for _, o := range overrides {
		if o.Category != "" {
			extra[PatternCategory(o.Category)] = append(extra[PatternCategory(o.Category)], o.Patterns...)
		}
		for _, a := range o.SuspiciousAgents {
			agents = append(agents, strings.ToLower(a))
		}
	}

	order := []PatternCategory{
		CategorySQLInjection,
		CategoryXSS,
		CategoryPathTraversal,
		CategoryCommandInjection,
		CategoryLDAPInjection,
		CategoryNoSQLInjection,
	}
	var categories []compiledCategory
	for _, name := range order {
		def := categoryDefinitions[name]
		cc := compiledCategory{name: name, eventType: def.EventType, severity: def.Severity}
		for _, src := range append(append([]string(nil), def.Patterns...), extra[name]...) {
			re, err := regexp.Compile(src)
			if err != nil {
				// A broken override must not take detection down.
				continue
			}
			cc.patterns = append(cc.patterns, re)
		}
		categories = append(categories, cc)
	}

	pl.mu.Lock()
	pl.categories = categories
	pl.agents = agents
	pl.mu.Unlock()
}

// LoadDir reads every .json override file in dir and recompiles the
// library. A missing directory is not an error.
func (pl *PatternLibrary) LoadDir(dir string) error {
	overrides, err := readOverrideDir(dir)
	if err != nil {
		return err
	}
	pl.compile(overrides)
	return nil
}

func readOverrideDir(dir string) ([]PatternOverride, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pattern dir: %w", err)
	}
	var overrides []PatternOverride
	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read pattern file %s: %w", file.Name(), err)
		}
		if len(data) > 1<<20 {
			return nil, fmt.Errorf("pattern file %s is too large", file.Name())
		}
		var o PatternOverride
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, fmt.Errorf("failed to parse pattern file %s: %w", file.Name(), err)
		}
		overrides = append(overrides, o)
	}
	return overrides, nil
}

// Watch reloads the override directory whenever a file in it changes.
// Call Close to stop the watcher.
func (pl *PatternLibrary) Watch(dir string, onReload func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}
	pl.watcher = watcher
	pl.done = make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				err := pl.LoadDir(dir)
				if onReload != nil {
					onReload(err)
				}
			case <-watcher.Errors:
			case <-pl.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the reload watcher, if one was started.
func (pl *PatternLibrary) Close() error {
	if pl.watcher == nil {
		return nil
	}
	close(pl.done)
	err := pl.watcher.Close()
	pl.watcher = nil
	return err
}

func (pl *PatternLibrary) snapshot() ([]compiledCategory, []string) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return pl.categories, pl.agents
}

// MatchAgent reports the first scanner signature found in the user agent.
func (pl *PatternLibrary) MatchAgent(userAgent string) (string, bool) {
	if userAgent == "" {
		return "", false
	}
	_, agents := pl.snapshot()
	lower := strings.ToLower(userAgent)
	for _, sig := range agents {
		if strings.Contains(lower, sig) {
			return sig, true
		}
	}
	return "", false
}
