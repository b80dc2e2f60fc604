// internal/config/validation.go - Scenario validation with detailed error messages
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/valpere/uiverify/internal/audit"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/navigate"
)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Value != "" {
		return fmt.Sprintf("%s: %s (value: %s)", ve.Field, ve.Message, ve.Value)
	}
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

func (r *ValidationResult) addError(field, value, format string, args ...interface{}) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
	r.Valid = false
}

func (r *ValidationResult) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks the scenario and returns an InvalidScenario error listing every problem
func (sc *Scenario) Validate() error {
	result := sc.ValidateWithDetails()
	if !result.Valid {
		return formatValidationError(result)
	}
	return nil
}

// ValidateWithDetails provides detailed validation results
func (sc *Scenario) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}

	sc.validateBasicFields(result)
	sc.validateURL(result)
	sc.validateBrowser(result)
	sc.validateMocks(result)
	sc.validateSteps(result)
	sc.validateReports(result)

	return result
}

func (sc *Scenario) validateBasicFields(result *ValidationResult) {
	if strings.TrimSpace(sc.Name) == "" {
		result.addError("name", "", "Scenario name is required")
	}
	if len(sc.Steps) == 0 {
		result.addError("steps", "[]", "At least one step must be configured")
	}
	for field, d := range map[string]int64{
		"timeouts.navigation": int64(sc.Timeouts.Navigation),
		"timeouts.wait":       int64(sc.Timeouts.Wait),
		"timeouts.assert":     int64(sc.Timeouts.Assert),
		"timeouts.run":        int64(sc.Timeouts.Run),
	} {
		if d < 0 {
			result.addError(field, "", "Timeout cannot be negative")
		}
	}
}

func (sc *Scenario) validateURL(result *ValidationResult) {
	if sc.BaseURL == "" {
		result.addWarning("No base_url set, every goto step needs an absolute URL")
		return
	}
	if strings.Contains(sc.BaseURL, "${") {
		result.addWarning("base_url is resolved from the environment at load time")
		return
	}

	parsedURL, err := url.Parse(sc.BaseURL)
	if err != nil {
		result.addError("base_url", sc.BaseURL, "Invalid URL format: %s", err.Error())
		return
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		result.addError("base_url", sc.BaseURL, "URL must include protocol (http:// or https://)")
	}
	if parsedURL.Host == "" {
		result.addError("base_url", sc.BaseURL, "URL must include hostname")
	}
}

func (sc *Scenario) validateBrowser(result *ValidationResult) {
	if err := sc.Browser.Validate(); err != nil {
		result.addError("browser", "", "%s", err.Error())
	}
	if !sc.Browser.Headless {
		result.addWarning("Browser runs with a visible window")
	}
}

func (sc *Scenario) validateMocks(result *ValidationResult) {
	for i, m := range sc.Mocks {
		prefix := fmt.Sprintf("mocks[%d]", i)
		if err := m.Mock.Validate(); err != nil {
			result.addError(prefix, m.Pattern, "%s", err.Error())
		}

		sources := 0
		if m.Body != "" {
			sources++
		}
		if m.BodyFile != "" {
			sources++
		}
		if m.JSON != nil {
			sources++
		}
		if sources > 1 {
			result.addError(prefix, m.Pattern, "Only one of body, body_file and json may be set")
		}
	}
}

func (sc *Scenario) validateSteps(result *ValidationResult) {
	valid := make(map[Action]bool)
	for _, a := range ValidActions() {
		valid[a] = true
	}

	sawGoto := false
	for i, step := range sc.Steps {
		prefix := fmt.Sprintf("steps[%d]", i)

		if !valid[step.Action] {
			result.addError(prefix+".action", string(step.Action), "Unknown action")
			continue
		}
		if step.Timeout < 0 {
			result.addError(prefix+".timeout", step.Timeout.String(), "Timeout cannot be negative")
		}

		switch step.Action {
		case ActionGoto:
			sawGoto = true
			if step.URL == "" {
				result.addError(prefix+".url", "", "goto needs a url")
			} else if sc.BaseURL == "" && !strings.Contains(step.URL, "://") {
				result.addError(prefix+".url", step.URL, "Relative URL needs a base_url")
			}

		case ActionWait:
			set := 0
			if step.Locator != nil {
				set++
			}
			if step.URL != "" {
				set++
				if _, err := navigate.URLMatches(step.URL); err != nil {
					result.addError(prefix+".url", step.URL, "Invalid URL pattern: %s", err.Error())
				}
			}
			if step.Delay > 0 {
				set++
				result.addWarning("%s waits a fixed %s, prefer waiting for an element", prefix, step.Delay)
			}
			if set != 1 {
				result.addError(prefix, "", "wait needs exactly one of locator, url or delay")
			}
			if step.State != "" && step.State != StateVisible && step.State != StateHidden {
				result.addError(prefix+".state", step.State, "State must be visible or hidden")
			}

		case ActionClick, ActionHover, ActionAssertVisible, ActionAssertHidden:
			sc.requireLocator(result, prefix, step)

		case ActionFill:
			sc.requireLocator(result, prefix, step)

		case ActionPress:
			if step.Key == "" {
				result.addError(prefix+".key", "", "press needs a key")
			}
			if step.Locator != nil {
				sc.requireLocator(result, prefix, step)
			}

		case ActionEval:
			if strings.TrimSpace(step.Script) == "" {
				result.addError(prefix+".script", "", "eval needs a script")
			}

		case ActionScroll:
			if step.Locator != nil {
				sc.requireLocator(result, prefix, step)
			} else if step.To != ScrollTop && step.To != ScrollBottom {
				result.addError(prefix+".to", step.To, "scroll needs a locator or to: top|bottom")
			}

		case ActionViewport:
			if step.Width <= 0 || step.Height <= 0 {
				result.addError(prefix, fmt.Sprintf("%dx%d", step.Width, step.Height), "viewport needs positive width and height")
			}

		case ActionColorScheme:
			if step.ColorScheme == "" || !step.ColorScheme.Valid() {
				result.addError(prefix+".color_scheme", string(step.ColorScheme), "Color scheme must be light, dark or no-preference")
			}

		case ActionAssertAttribute, ActionAssertNoAttribute:
			sc.requireLocator(result, prefix, step)
			if step.Attribute == "" {
				result.addError(prefix+".attribute", "", "%s needs an attribute", step.Action)
			}

		case ActionAssertText:
			sc.requireLocator(result, prefix, step)
			if step.Text == "" {
				result.addError(prefix+".text", "", "assert_text needs the expected text")
			}

		case ActionScreenshot, ActionSnapshot:
			if step.Path == "" {
				result.addError(prefix+".path", "", "%s needs a path", step.Action)
			}
			if step.Locator != nil {
				sc.requireLocator(result, prefix, step)
			}

		case ActionAudit:
			if _, err := audit.New(step.Rules...); err != nil {
				result.addError(prefix+".rules", strings.Join(step.Rules, ","), "%s", err.Error())
			}

		case ActionLog:
			if step.Message == "" {
				result.addError(prefix+".message", "", "log needs a message")
			}
		}

		if !sawGoto && needsPage(step.Action) {
			result.addWarning("%s runs before any goto", prefix)
		}
	}
}

func needsPage(a Action) bool {
	switch a {
	case ActionGoto, ActionLog, ActionViewport, ActionColorScheme:
		return false
	}
	return true
}

func (sc *Scenario) requireLocator(result *ValidationResult, prefix string, step Step) {
	if step.Locator == nil {
		result.addError(prefix+".locator", "", "%s needs a locator", step.Action)
		return
	}
	if err := step.Locator.Validate(); err != nil {
		result.addError(prefix+".locator", step.Locator.String(), "%s", err.Error())
	}
}

func (sc *Scenario) validateReports(result *ValidationResult) {
	valid := map[string]bool{
		"json": true, "yaml": true, "csv": true, "excel": true,
		"sqlite": true, "postgresql": true, "mysql": true, "mongodb": true,
	}
	for i, r := range sc.Reports {
		prefix := fmt.Sprintf("reports[%d]", i)
		if !valid[r.Format] {
			result.addError(prefix+".format", r.Format, "Unsupported report format")
			continue
		}
		switch r.Format {
		case "postgresql", "mysql", "mongodb":
			if r.ConnectionString == "" {
				result.addError(prefix+".connection_string", "", "%s reports need a connection_string", r.Format)
			}
		default:
			if r.File == "" {
				result.addError(prefix+".file", "", "%s reports need a file", r.Format)
			}
		}
	}
}

// formatValidationError creates a comprehensive error message
func formatValidationError(result *ValidationResult) error {
	var errorMsg strings.Builder

	errorMsg.WriteString("scenario validation failed:\n")

	for i, err := range result.Errors {
		errorMsg.WriteString(fmt.Sprintf("  %d. %s", i+1, err.Message))
		if err.Field != "" {
			errorMsg.WriteString(fmt.Sprintf(" (field: %s)", err.Field))
		}
		if err.Value != "" {
			errorMsg.WriteString(fmt.Sprintf(" (value: %s)", err.Value))
		}
		errorMsg.WriteString("\n")
	}

	return errors.InvalidScenario("%s", strings.TrimRight(errorMsg.String(), "\n"))
}
