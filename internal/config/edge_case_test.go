// internal/config/edge_case_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valpere/uiverify/internal/errors"
)

func TestLoadFromBytesEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "empty", yaml: "", wantErr: "cannot be empty"},
		{name: "whitespace", yaml: "   \n\t", wantErr: "cannot be empty"},
		{name: "malformed yaml", yaml: "name: [unclosed", wantErr: "failed to parse"},
		{
			name:    "missing name",
			yaml:    "base_url: http://localhost\nsteps:\n  - action: goto\n    url: /",
			wantErr: "Scenario name is required",
		},
		{
			name:    "no steps",
			yaml:    "name: x\nbase_url: http://localhost",
			wantErr: "At least one step",
		},
		{
			name:    "unknown action",
			yaml:    "name: x\nbase_url: http://localhost\nsteps:\n  - action: teleport",
			wantErr: "Unknown action",
		},
		{
			name:    "bad base url scheme",
			yaml:    "name: x\nbase_url: ftp://localhost\nsteps:\n  - action: goto\n    url: /",
			wantErr: "protocol",
		},
		{
			name:    "relative goto without base url",
			yaml:    "name: x\nsteps:\n  - action: goto\n    url: /#/about",
			wantErr: "Relative URL needs a base_url",
		},
		{
			name:    "bad duration",
			yaml:    "name: x\nbase_url: http://localhost\ntimeouts:\n  wait: soon\nsteps:\n  - action: goto\n    url: /",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, errors.ErrInvalidScenario) {
				t.Errorf("expected an invalid scenario error, got %v", err)
			}
		})
	}
}

func TestLoadFromFileEdgeCases(t *testing.T) {
	if _, err := LoadFromFile(""); err == nil {
		t.Error("empty filename should fail")
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing file should report not found, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(path, []byte("name: x\nsteps: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("invalid scenario on disk should fail validation")
	}
}

func TestStepValidationEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		step    string
		wantErr string
	}{
		{"wait without target", "action: wait", "exactly one of locator, url or delay"},
		{"wait with two targets", "action: wait\n    delay: 1s\n    locator:\n      css: footer", "exactly one of"},
		{"wait bad state", "action: wait\n    state: gone\n    locator:\n      css: footer", "State must be visible or hidden"},
		{"click without locator", "action: click", "click needs a locator"},
		{"locator with two strategies", "action: click\n    locator:\n      css: a\n      text: b", "more than one"},
		{"locator name without role", "action: hover\n    locator:\n      name: Portfolio", "needs one of"},
		{"press without key", "action: press", "press needs a key"},
		{"eval without script", "action: eval", "eval needs a script"},
		{"scroll without target", "action: scroll\n    to: middle", "scroll needs a locator"},
		{"viewport zero", "action: viewport\n    width: 375", "positive width and height"},
		{"color scheme invalid", "action: color_scheme\n    color_scheme: sepia", "Color scheme must be"},
		{"assert attribute without name", "action: assert_attribute\n    locator:\n      role: dialog", "needs an attribute"},
		{"assert text without text", "action: assert_text\n    locator:\n      css: p", "needs the expected text"},
		{"screenshot without path", "action: screenshot", "needs a path"},
		{"audit unknown rule", "action: audit\n    rules: [color-contrast]", "unknown audit rule"},
		{"log without message", "action: log", "needs a message"},
		{"negative timeout", "action: goto\n    url: /\n    timeout: -1s", "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := "name: x\nbase_url: http://localhost:3000\nsteps:\n  - " + tt.step + "\n"
			_, err := LoadFromBytes([]byte(yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidationCollectsAllErrors(t *testing.T) {
	sc := Scenario{
		BaseURL: "localhost",
		Steps: []Step{
			{Action: ActionClick},
			{Action: ActionPress},
		},
	}
	sc.Browser.ViewportWidth = 1

	result := sc.ValidateWithDetails()
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	// name, base_url scheme, base_url host, browser viewport, click locator, press key
	if len(result.Errors) != 6 {
		t.Errorf("expected 6 errors, got %d: %v", len(result.Errors), result.Errors)
	}

	err := sc.Validate()
	if err == nil {
		t.Fatal("Validate should fail")
	}
	msg := err.Error()
	if !strings.Contains(msg, "1. ") || !strings.Contains(msg, "6. ") {
		t.Errorf("error should number every problem, got %s", msg)
	}
	if !strings.Contains(msg, "(field: steps[1].key)") {
		t.Errorf("error should name the failing field, got %s", msg)
	}
}

func TestValidationWarnings(t *testing.T) {
	sc := GenerateTemplate("basic")
	sc.Steps = append([]Step{{Action: ActionClick, Locator: sc.Steps[2].Locator}}, sc.Steps...)
	sc.Steps = append(sc.Steps, Step{Action: ActionWait, Delay: 500 * time.Millisecond})

	result := sc.ValidateWithDetails()
	if !result.Valid {
		t.Fatalf("expected valid scenario, got %v", result.Errors)
	}

	joined := strings.Join(result.Warnings, "\n")
	if !strings.Contains(joined, "runs before any goto") {
		t.Errorf("expected a warning about a step before goto, got %q", joined)
	}
	if !strings.Contains(joined, "waits a fixed") {
		t.Errorf("expected a warning about a fixed delay, got %q", joined)
	}
}

func TestMockValidationEdgeCases(t *testing.T) {
	base := "name: x\nbase_url: http://localhost:3000\nsteps:\n  - action: goto\n    url: /\nmocks:\n"

	tests := []struct {
		name    string
		mock    string
		wantErr string
	}{
		{"missing pattern", "  - status: 200\n    body: ok", "pattern is required"},
		{"bad status", "  - pattern: '**/api'\n    status: 42", "invalid status"},
		{"two bodies", "  - pattern: '**/api'\n    body: ok\n    json: {a: 1}", "Only one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(base + tt.mock + "\n"))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReportValidationEdgeCases(t *testing.T) {
	base := "name: x\nbase_url: http://localhost:3000\nsteps:\n  - action: goto\n    url: /\nreports:\n"

	tests := []struct {
		name    string
		report  string
		wantErr string
	}{
		{"unknown format", "  - format: pdf\n    file: r.pdf", "Unsupported report format"},
		{"file format without file", "  - format: json", "need a file"},
		{"database without dsn", "  - format: postgresql", "need a connection_string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(base + tt.report + "\n"))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	ok := base + "  - format: sqlite\n    file: results.db\n  - format: mongodb\n    connection_string: mongodb://localhost:27017\n"
	if _, err := LoadFromBytes([]byte(ok)); err != nil {
		t.Errorf("valid reports rejected: %v", err)
	}
}

func TestConcurrentLoading(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := LoadFromBytes([]byte(basicScenario)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent load failed: %v", err)
	}
}

func TestWatcherReloadsScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(basicScenario), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	changed := make(chan *Scenario, 4)
	failed := make(chan error, 4)
	w.OnChange(func(sc *Scenario) { changed <- sc })
	w.OnError(func(err error) { failed <- err })

	updated := strings.Replace(basicScenario, "footer check", "footer check v2", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case sc := <-changed:
		if sc.Name != "footer check v2" {
			t.Errorf("expected reloaded name, got %q", sc.Name)
		}
	case err := <-failed:
		t.Fatalf("reload failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}

	if err := os.WriteFile(path, []byte("name: broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-failed:
		if !errors.Is(err, errors.ErrInvalidScenario) {
			t.Errorf("expected invalid scenario error, got %v", err)
		}
	case sc := <-changed:
		t.Fatalf("broken scenario should not be delivered, got %q", sc.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the reload failure")
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}
