// internal/config/types.go
package config

import (
	"time"

	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/intercept"
)

// Scenario describes one verification run: the session to open, the
// requests to mock and the steps to execute in order.
type Scenario struct {
	Name            string         `yaml:"name" json:"name"`
	Description     string         `yaml:"description,omitempty" json:"description,omitempty"`
	BaseURL         string         `yaml:"base_url" json:"base_url"`
	Browser         browser.Config `yaml:"browser" json:"browser"`
	Timeouts        Timeouts       `yaml:"timeouts" json:"timeouts"`
	ArtifactsDir    string         `yaml:"artifacts_dir,omitempty" json:"artifacts_dir,omitempty"`
	ErrorScreenshot string         `yaml:"error_screenshot,omitempty" json:"error_screenshot,omitempty"`
	Mocks           []MockConfig   `yaml:"mocks,omitempty" json:"mocks,omitempty"`
	Steps           []Step         `yaml:"steps" json:"steps"`
	Reports         []OutputConfig `yaml:"reports,omitempty" json:"reports,omitempty"`
	Metrics         MetricsConfig  `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Tags            []string       `yaml:"tags,omitempty" json:"tags,omitempty"`

	// SourceDir is the directory the scenario was loaded from; body_file paths are relative to it
	SourceDir string `yaml:"-" json:"-"`
}

// Timeouts are per-call defaults; a step's own timeout wins
type Timeouts struct {
	Navigation time.Duration `yaml:"navigation" json:"navigation"`
	Wait       time.Duration `yaml:"wait" json:"wait"`
	Assert     time.Duration `yaml:"assert" json:"assert"`
	// Run bounds the whole scenario; zero means no limit
	Run time.Duration `yaml:"run,omitempty" json:"run,omitempty"`
}

// MockConfig is a route mock as written in a scenario. The body comes from
// exactly one of body, body_file or json.
type MockConfig struct {
	intercept.Mock `yaml:",inline" json:",inline"`
	BodyFile       string      `yaml:"body_file,omitempty" json:"body_file,omitempty"`
	JSON           interface{} `yaml:"json,omitempty" json:"json,omitempty"`
}

// OutputConfig selects a report sink for run results
type OutputConfig struct {
	Format           string `yaml:"format" json:"format"`
	File             string `yaml:"file,omitempty" json:"file,omitempty"`
	ConnectionString string `yaml:"connection_string,omitempty" json:"connection_string,omitempty"`
	Table            string `yaml:"table,omitempty" json:"table,omitempty"`
	Database         string `yaml:"database,omitempty" json:"database,omitempty"`
	Collection       string `yaml:"collection,omitempty" json:"collection,omitempty"`
}

// MetricsConfig controls the Prometheus text file written after a run
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile,omitempty" json:"textfile,omitempty"`
}

// Action names a step type
type Action string

const (
	ActionGoto              Action = "goto"
	ActionWait              Action = "wait"
	ActionClick             Action = "click"
	ActionFill              Action = "fill"
	ActionPress             Action = "press"
	ActionHover             Action = "hover"
	ActionEval              Action = "eval"
	ActionScroll            Action = "scroll"
	ActionViewport          Action = "viewport"
	ActionColorScheme       Action = "color_scheme"
	ActionAssertVisible     Action = "assert_visible"
	ActionAssertHidden      Action = "assert_hidden"
	ActionAssertAttribute   Action = "assert_attribute"
	ActionAssertNoAttribute Action = "assert_no_attribute"
	ActionAssertText        Action = "assert_text"
	ActionScreenshot        Action = "screenshot"
	ActionSnapshot          Action = "snapshot"
	ActionAudit             Action = "audit"
	ActionLog               Action = "log"
)

// ValidActions returns every supported step action
func ValidActions() []Action {
	return []Action{
		ActionGoto, ActionWait, ActionClick, ActionFill, ActionPress, ActionHover,
		ActionEval, ActionScroll, ActionViewport, ActionColorScheme,
		ActionAssertVisible, ActionAssertHidden, ActionAssertAttribute,
		ActionAssertNoAttribute, ActionAssertText, ActionScreenshot,
		ActionSnapshot, ActionAudit, ActionLog,
	}
}

// Wait states
const (
	StateVisible = "visible"
	StateHidden  = "hidden"
)

// Scroll targets besides a locator
const (
	ScrollTop    = "top"
	ScrollBottom = "bottom"
)

// Step is one instruction. Which fields apply depends on Action:
//
//	goto                 url
//	wait                 locator (+state), url pattern or delay
//	click, hover         locator
//	fill                 locator, value
//	press                key, optional locator
//	eval                 script, optional expect
//	scroll               locator or to (top, bottom)
//	viewport             width, height
//	color_scheme         color_scheme
//	assert_visible       locator
//	assert_hidden        locator
//	assert_attribute     locator, attribute, value, prefix
//	assert_no_attribute  locator, attribute, optional value
//	assert_text          locator, text, exact
//	screenshot           path, optional locator, full_page
//	snapshot             path
//	audit                rules, fail_on_findings
//	log                  message
type Step struct {
	Name           string              `yaml:"name,omitempty" json:"name,omitempty"`
	Action         Action              `yaml:"action" json:"action"`
	URL            string              `yaml:"url,omitempty" json:"url,omitempty"`
	Locator        *browser.Locator    `yaml:"locator,omitempty" json:"locator,omitempty"`
	State          string              `yaml:"state,omitempty" json:"state,omitempty"`
	Delay          time.Duration       `yaml:"delay,omitempty" json:"delay,omitempty"`
	Value          string              `yaml:"value,omitempty" json:"value,omitempty"`
	Key            string              `yaml:"key,omitempty" json:"key,omitempty"`
	Script         string              `yaml:"script,omitempty" json:"script,omitempty"`
	Expect         string              `yaml:"expect,omitempty" json:"expect,omitempty"`
	To             string              `yaml:"to,omitempty" json:"to,omitempty"`
	Width          int                 `yaml:"width,omitempty" json:"width,omitempty"`
	Height         int                 `yaml:"height,omitempty" json:"height,omitempty"`
	ColorScheme    browser.ColorScheme `yaml:"color_scheme,omitempty" json:"color_scheme,omitempty"`
	Attribute      string              `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Text           string              `yaml:"text,omitempty" json:"text,omitempty"`
	Exact          bool                `yaml:"exact,omitempty" json:"exact,omitempty"`
	Prefix         bool                `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Path           string              `yaml:"path,omitempty" json:"path,omitempty"`
	FullPage       *bool               `yaml:"full_page,omitempty" json:"full_page,omitempty"`
	Rules          []string            `yaml:"rules,omitempty" json:"rules,omitempty"`
	FailOnFindings bool                `yaml:"fail_on_findings,omitempty" json:"fail_on_findings,omitempty"`
	Message        string              `yaml:"message,omitempty" json:"message,omitempty"`
	Timeout        time.Duration       `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Description is the step name, or the action when it has none
func (s Step) Description() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Action)
}

// IsFullPage reports whether a screenshot step captures the whole page; the default is true
func (s Step) IsFullPage() bool {
	return s.FullPage == nil || *s.FullPage
}
