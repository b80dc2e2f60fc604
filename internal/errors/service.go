// internal/errors/service.go - Error reporting and recovery service
package errors

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Exit codes returned by verification executables
const (
	ExitOK              = 0
	ExitInternal        = 1
	ExitLaunchFailure   = 2
	ExitNavigation      = 3
	ExitCondition       = 4
	ExitAssertion       = 5
	ExitInvalidScenario = 6
)

// Service formats failures for humans and retries transient side work
type Service struct {
	retryConfig    RetryConfig
	messageHandler *MessageHandler
}

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay" json:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`
}

// MessageHandler converts technical errors to user-friendly messages
type MessageHandler struct {
	showTechnical bool
}

// NewService creates a service with default retry settings
func NewService() *Service {
	return &Service{
		retryConfig: RetryConfig{
			MaxRetries:    3,
			BaseDelay:     500 * time.Millisecond,
			BackoffFactor: 2.0,
			MaxDelay:      10 * time.Second,
		},
		messageHandler: &MessageHandler{showTechnical: false},
	}
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.messageHandler.showTechnical = verbose
	return s
}

// WithRetryConfig replaces the retry settings
func (s *Service) WithRetryConfig(cfg RetryConfig) *Service {
	s.retryConfig = cfg
	return s
}

// ExecuteWithRetry runs operation until it succeeds, fails permanently, or retries run out.
// Verification failures are never retried: a failed expectation is a result, not a glitch.
func (s *Service) ExecuteWithRetry(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		attempts++
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !s.shouldRetry(err, attempt) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.calculateDelay(attempt)):
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", operationName, attempts, lastErr)
}

// shouldRetry determines if error is retryable
func (s *Service) shouldRetry(err error, attempt int) bool {
	if attempt >= s.retryConfig.MaxRetries {
		return false
	}

	var e *Error
	if As(err, &e) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"timeout", "connection refused", "connection reset", "no such host",
		"database is locked", "temporary", "too many connections", "broken pipe",
	}

	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}

	return false
}

// calculateDelay computes exponential backoff delay
func (s *Service) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(float64(s.retryConfig.BaseDelay) * math.Pow(s.retryConfig.BackoffFactor, float64(attempt)))
	if delay > s.retryConfig.MaxDelay {
		delay = s.retryConfig.MaxDelay
	}
	return delay
}

// GetUserFriendlyError converts technical errors to user-friendly messages
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	var e *Error
	if !As(err, &e) {
		return "Unexpected Error",
			"An unexpected error occurred during verification.",
			[]string{
				"Run again with --verbose for technical details",
				"Check the scenario file",
			}
	}

	switch e.Kind {
	case KindLaunchFailure:
		return "Browser Launch Failed",
			"Chrome could not be started.",
			[]string{
				"Check that Chrome or Chromium is installed",
				"Set browser.exec_path in the scenario to the browser binary",
				"Containers usually need the no_sandbox option",
			}
	case KindNavigationTimeout:
		return "Navigation Timeout",
			fmt.Sprintf("The page at %s did not load in time.", e.URL),
			[]string{
				"Check that the dev server is running on the expected port",
				"Override the origin with UIVERIFY_BASE_URL",
				"Increase timeouts.navigation in the scenario",
			}
	case KindConditionNotMet:
		return "Condition Not Met",
			fmt.Sprintf("Waited for %s but it never happened.", e.Condition),
			[]string{
				"Look at the error screenshot to see what the page rendered",
				"The page structure or copy might have changed",
			}
	case KindAssertionMismatch:
		return "Assertion Failed",
			fmt.Sprintf("%s: expected %q, observed %q.", e.Locator, e.Expected, e.Observed),
			[]string{
				"Look at the error screenshot to see what the page rendered",
				"Check whether the expectation is still correct",
			}
	case KindInvalidScenario:
		return "Invalid Scenario",
			e.Message,
			[]string{
				"Validate the file with: uiverify validate <scenario.yaml>",
				"Generate a starting point with: uiverify template",
			}
	case KindArtifactWriteFailure:
		return "Artifact Not Written",
			fmt.Sprintf("Could not write %s.", e.Path),
			[]string{"Check permissions of the artifacts directory"}
	default:
		return "Unexpected Error", e.Message, nil
	}
}

// GetExitCode returns appropriate exit code for error
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	switch KindOf(err) {
	case KindLaunchFailure:
		return ExitLaunchFailure
	case KindNavigationTimeout:
		return ExitNavigation
	case KindConditionNotMet:
		return ExitCondition
	case KindAssertionMismatch:
		return ExitAssertion
	case KindInvalidScenario:
		return ExitInvalidScenario
	default:
		return ExitInternal
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	title, message, suggestions := s.GetUserFriendlyError(err)

	output := fmt.Sprintf("❌ %s\n%s\n", title, message)

	if s.messageHandler.showTechnical {
		output += fmt.Sprintf("\nTechnical details: %s\n", err.Error())
	}

	if len(suggestions) > 0 {
		output += "\n💡 Suggestions:\n"
		for _, suggestion := range suggestions {
			output += fmt.Sprintf("  • %s\n", suggestion)
		}
	}

	return output
}
