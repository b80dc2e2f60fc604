// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/intercept"
)

// Default timeouts applied when a scenario leaves them out
const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultWaitTimeout       = 10 * time.Second
	DefaultAssertTimeout     = 5 * time.Second
)

// NoErrorScreenshot disables the screenshot taken when a run fails
const NoErrorScreenshot = "-"

// LoadFromFile loads a scenario from a YAML file
func LoadFromFile(filename string) (*Scenario, error) {
	if filename == "" {
		return nil, errors.InvalidScenario("scenario filename cannot be empty")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, errors.InvalidScenario("scenario file not found: %s", filename)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	sc, err := parse(data)
	if err != nil {
		return nil, err
	}
	sc.SourceDir = filepath.Dir(filename)

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// LoadFromBytes loads a scenario from YAML bytes
func LoadFromBytes(data []byte) (*Scenario, error) {
	sc, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// LoadFromReader loads a scenario from an io.Reader
func LoadFromReader(reader io.Reader) (*Scenario, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

func parse(data []byte) (*Scenario, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.InvalidScenario("scenario data cannot be empty")
	}

	expanded := expandEnvironmentVariables(string(data))

	// Decoding on top of the defaults keeps unset booleans such as headless at their default.
	sc := Scenario{Browser: *browser.DefaultConfig()}
	if err := yaml.Unmarshal([]byte(expanded), &sc); err != nil {
		return nil, errors.InvalidScenario("failed to parse scenario YAML: %v", err)
	}

	applyDefaults(&sc)
	return &sc, nil
}

// Prepare applies defaults to a scenario built in code and validates it
func Prepare(sc *Scenario) error {
	if sc == nil {
		return errors.InvalidScenario("scenario cannot be nil")
	}
	applyDefaults(sc)
	return sc.Validate()
}

// SaveToFile writes a scenario to a YAML file
func SaveToFile(sc *Scenario, filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create scenario file: %w", err)
	}
	defer f.Close()

	return SaveToWriter(sc, f)
}

// SaveToWriter writes a scenario as YAML
func SaveToWriter(sc *Scenario, writer io.Writer) error {
	if sc == nil {
		return fmt.Errorf("scenario cannot be nil")
	}
	if writer == nil {
		return fmt.Errorf("writer cannot be nil")
	}

	if err := sc.Validate(); err != nil {
		return err
	}

	enc := yaml.NewEncoder(writer)
	enc.SetIndent(2)
	if err := enc.Encode(sc); err != nil {
		return fmt.Errorf("failed to marshal scenario to YAML: %w", err)
	}
	return enc.Close()
}

// envPattern matches ${NAME} and ${NAME:-default}. Bare $NAME is left alone
// so scripts in eval steps keep their dollar signs.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnvironmentVariables substitutes environment variables in the scenario
func expandEnvironmentVariables(content string) string {
	return envPattern.ReplaceAllStringFunc(content, func(m string) string {
		parts := envPattern.FindStringSubmatch(m)
		if v, ok := os.LookupEnv(parts[1]); ok && v != "" {
			return v
		}
		return parts[2]
	})
}

// applyDefaults fills in values the scenario left out
func applyDefaults(sc *Scenario) {
	if sc.Timeouts.Navigation == 0 {
		sc.Timeouts.Navigation = DefaultNavigationTimeout
	}
	if sc.Timeouts.Wait == 0 {
		sc.Timeouts.Wait = DefaultWaitTimeout
	}
	if sc.Timeouts.Assert == 0 {
		sc.Timeouts.Assert = DefaultAssertTimeout
	}

	defaults := browser.DefaultConfig()
	if sc.Browser.ViewportWidth == 0 {
		sc.Browser.ViewportWidth = defaults.ViewportWidth
	}
	if sc.Browser.ViewportHeight == 0 {
		sc.Browser.ViewportHeight = defaults.ViewportHeight
	}
	if sc.Browser.LaunchTimeout == 0 {
		sc.Browser.LaunchTimeout = defaults.LaunchTimeout
	}

	if sc.ErrorScreenshot == "" && sc.Name != "" {
		sc.ErrorScreenshot = filepath.Join("verification", Slug(sc.Name)+"-error.png")
	}

	for i := range sc.Mocks {
		if sc.Mocks[i].Status == 0 {
			sc.Mocks[i].Status = 200
		}
		if sc.Mocks[i].JSON != nil && sc.Mocks[i].ContentType == "" {
			sc.Mocks[i].ContentType = "application/json"
		}
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a scenario name into a file-name friendly form
func Slug(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "scenario"
	}
	return s
}

// ErrorScreenshotEnabled reports whether a failing run captures a screenshot
func (sc *Scenario) ErrorScreenshotEnabled() bool {
	return sc.ErrorScreenshot != "" && sc.ErrorScreenshot != NoErrorScreenshot
}

// Resolve builds the intercept mock, reading body_file relative to baseDir
func (m MockConfig) Resolve(baseDir string) (intercept.Mock, error) {
	mock := m.Mock

	switch {
	case m.BodyFile != "":
		path := m.BodyFile
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return intercept.Mock{}, errors.InvalidScenario("mock %s: cannot read body_file: %v", m.Pattern, err)
		}
		mock.Body = string(data)

	case m.JSON != nil:
		data, err := json.Marshal(m.JSON)
		if err != nil {
			return intercept.Mock{}, errors.InvalidScenario("mock %s: cannot encode json body: %v", m.Pattern, err)
		}
		mock.Body = string(data)
		if mock.ContentType == "" {
			mock.ContentType = "application/json"
		}
	}

	if err := mock.Validate(); err != nil {
		return intercept.Mock{}, errors.InvalidScenario("mock %s: %v", m.Pattern, err)
	}
	return mock, nil
}

// GenerateTemplate generates a starting scenario of the given type
func GenerateTemplate(templateType string) Scenario {
	switch strings.ToLower(templateType) {
	case "mock":
		return generateMockTemplate()
	case "modal":
		return generateModalTemplate()
	default:
		return generateBasicTemplate()
	}
}

func baseTemplate(name string) Scenario {
	sc := Scenario{
		Name:    name,
		BaseURL: "${UIVERIFY_BASE_URL:-http://localhost:3000}",
		Browser: *browser.DefaultConfig(),
	}
	applyDefaults(&sc)
	return sc
}

func fullPage(v bool) *bool { return &v }

func generateBasicTemplate() Scenario {
	sc := baseTemplate("nav-current-page")
	sc.Description = "Active navigation link carries aria-current"
	sc.Steps = []Step{
		{Action: ActionGoto, URL: "/#/portfolio"},
		{Action: ActionWait, Locator: browser.Role("navigation", "")},
		{
			Action:    ActionAssertAttribute,
			Locator:   browser.Role("link", "Portfolio").In(browser.Role("navigation", "")),
			Attribute: "aria-current",
			Value:     "page",
		},
		{
			Action:    ActionAssertNoAttribute,
			Locator:   browser.Role("link", "About").In(browser.Role("navigation", "")),
			Attribute: "aria-current",
		},
		{Action: ActionScreenshot, Path: "verification/nav-current-page.png", FullPage: fullPage(true)},
	}
	return sc
}

func generateMockTemplate() Scenario {
	sc := baseTemplate("about-testimonials")
	sc.Description = "Testimonials render from a mocked REST response"
	sc.Mocks = []MockConfig{{
		Mock: intercept.Mock{Pattern: "**/rest/v1/testimonials*", Status: 200, ContentType: "application/json"},
		JSON: []map[string]interface{}{{
			"id":            "1",
			"client_name":   "Test Client",
			"quote":         "Great photos",
			"rating":        5,
			"display_order": 1,
		}},
	}}
	sc.Steps = []Step{
		{Action: ActionGoto, URL: "/#/about"},
		{Action: ActionWait, Locator: browser.Text("Test Client"), Timeout: 5 * time.Second},
		{Action: ActionScreenshot, Path: "verification/about-testimonials.png"},
	}
	return sc
}

func generateModalTemplate() Scenario {
	sc := baseTemplate("portfolio-modal")
	sc.Description = "Modal dialog is announced as modal and closes"
	dialog := browser.Role("dialog", "")
	sc.Steps = []Step{
		{Action: ActionGoto, URL: "/#/test-portfolio"},
		{Action: ActionClick, Locator: browser.Role("button", "Add New Item")},
		{Action: ActionAssertVisible, Locator: dialog},
		{Action: ActionAssertAttribute, Locator: dialog, Attribute: "aria-modal", Value: "true"},
		{Action: ActionClick, Locator: browser.Role("button", "Close modal")},
		{Action: ActionAssertHidden, Locator: dialog},
	}
	return sc
}
