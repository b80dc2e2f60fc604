// internal/errors/service_test.go
package errors

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func fastService() *Service {
	return NewService().WithRetryConfig(RetryConfig{
		MaxRetries:    3,
		BaseDelay:     time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      5 * time.Millisecond,
	})
}

func TestService_ExecuteWithRetry_Success(t *testing.T) {
	service := fastService()

	calls := 0
	err := service.ExecuteWithRetry(context.Background(), func() error {
		calls++
		return nil
	}, "report")

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestService_ExecuteWithRetry_TransientThenSuccess(t *testing.T) {
	service := fastService()

	calls := 0
	err := service.ExecuteWithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("database is locked")
		}
		return nil
	}, "report")

	if err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestService_ExecuteWithRetry_VerificationErrorNotRetried(t *testing.T) {
	service := fastService()

	calls := 0
	err := service.ExecuteWithRetry(context.Background(), func() error {
		calls++
		return NavigationTimeout("http://localhost:3000", time.Second, fmt.Errorf("timeout"))
	}, "goto")

	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected verification errors not to be retried, got %d calls", calls)
	}
	if !Is(err, ErrNavigationTimeout) {
		t.Errorf("Expected wrapped NavigationTimeout, got %v", err)
	}
}

func TestService_ExecuteWithRetry_ContextCanceled(t *testing.T) {
	service := NewService()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := service.ExecuteWithRetry(ctx, func() error {
		return fmt.Errorf("connection refused")
	}, "report")

	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestService_GetExitCode(t *testing.T) {
	service := NewService()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"launch", LaunchFailure(fmt.Errorf("exec: not found")), ExitLaunchFailure},
		{"navigation", NavigationTimeout("http://x", time.Second, nil), ExitNavigation},
		{"condition", ConditionNotMet("text \"x\" visible", "", time.Second, nil), ExitCondition},
		{"assertion", AssertionMismatch("css=h1", "a", "b", nil), ExitAssertion},
		{"invalid", InvalidScenario("no steps"), ExitInvalidScenario},
		{"wrapped", fmt.Errorf("step 3: %w", AssertionMismatch("css=h1", "a", "b", nil)), ExitAssertion},
		{"plain", fmt.Errorf("boom"), ExitInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := service.GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestService_FormatErrorForCLI(t *testing.T) {
	err := AssertionMismatch(`role=link[name="Portfolio"]`, "page", "", nil)

	output := NewService().FormatErrorForCLI(err)
	if !strings.Contains(output, "Assertion Failed") {
		t.Errorf("Expected title in output, got: %s", output)
	}
	if strings.Contains(output, "Technical details") {
		t.Error("Technical details should be hidden when not verbose")
	}

	verbose := NewService().WithVerbose(true).FormatErrorForCLI(err)
	if !strings.Contains(verbose, "Technical details") {
		t.Errorf("Expected technical details in verbose output, got: %s", verbose)
	}
}

func TestError_MessageCarriesContext(t *testing.T) {
	err := NavigationTimeout("http://127.0.0.1:1/#/about", 1500*time.Millisecond, fmt.Errorf("net::ERR_CONNECTION_REFUSED"))

	msg := err.Error()
	for _, want := range []string{"NavigationTimeout", "http://127.0.0.1:1/#/about", "1.5s", "ERR_CONNECTION_REFUSED"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in %q", want, msg)
		}
	}

	if KindOf(fmt.Errorf("wrapped: %w", err)) != KindNavigationTimeout {
		t.Error("KindOf should see through wrapping")
	}
	if KindNavigationTimeout.String() != "NavigationTimeout" {
		t.Errorf("unexpected kind name %s", KindNavigationTimeout)
	}
	if KindArtifactWriteFailure.Fatal() {
		t.Error("artifact write failures must not be fatal")
	}
}
