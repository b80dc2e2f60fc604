// internal/fixture/browser_test.go
package fixture_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/config"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/fixture"
	"github.com/valpere/uiverify/internal/runner"
	"github.com/valpere/uiverify/internal/scenarios"
)

// startSite serves the fixture for the duration of the test
func startSite(t *testing.T) (*fixture.Server, string) {
	t.Helper()
	s := fixture.New(nil)
	baseURL, err := s.Start("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close(ctx)
	})
	return s, baseURL
}

func builtin(t *testing.T, name, baseURL string) *config.Scenario {
	t.Helper()
	b, ok := scenarios.Lookup(name)
	require.True(t, ok, "built-in %s", name)
	sc, err := b.Scenario(baseURL)
	require.NoError(t, err)
	sc.ArtifactsDir = t.TempDir()
	return sc
}

// run executes sc and skips the test when no browser can be launched
func run(t *testing.T, sc *config.Scenario) *runner.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res := runner.New().Run(ctx, sc)
	if errors.KindOf(res.Err) == errors.KindLaunchFailure {
		t.Skipf("Skipping browser test - Chrome may not be available: %v", res.Err)
	}
	return res
}

func requirePassed(t *testing.T, res *runner.Result) {
	t.Helper()
	require.True(t, res.Passed(), "%s\n%v", res.Summary(), res.Err)
}

func TestBrowser_AboutTestimonialsMocked(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	site, baseURL := startSite(t)

	sc := builtin(t, "about-testimonials", baseURL)
	res := run(t, sc)
	requirePassed(t, res)

	assert.Equal(t, int64(1), res.MockHits[scenarios.TestimonialsPattern])
	assert.Zero(t, site.TestimonialHits(), "the mocked resource must never reach the backend")
	assert.FileExists(t, filepath.Join(sc.ArtifactsDir, "verification", "about_page_final.png"))
}

func TestBrowser_AboutTestimonialsLive(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	site, baseURL := startSite(t)

	sc := &config.Scenario{
		Name:         "about live",
		BaseURL:      baseURL,
		Browser:      *browser.DefaultConfig(),
		ArtifactsDir: t.TempDir(),
		Steps: []config.Step{
			{Action: config.ActionGoto, URL: "/#/about"},
			{Action: config.ActionWait, Locator: browser.Text("Real Client"), Timeout: 5 * time.Second},
			{Action: config.ActionAssertHidden, Locator: browser.Text("Test Client")},
		},
	}
	require.NoError(t, config.Prepare(sc))

	res := run(t, sc)
	requirePassed(t, res)
	assert.Equal(t, int64(1), site.TestimonialHits())
}

func TestBrowser_Builtins(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	_, baseURL := startSite(t)

	tests := []struct {
		name      string
		artifacts []string
	}{
		{"char-count", []string{"verification/contact_char_count.png"}},
		{"nav-a11y", []string{"verification/mobile_menu_a11y.png"}},
		{"header-link", []string{"verification/verification.png"}},
		{"footer", []string{"verification/footer_initial.png"}},
		{"services", []string{"verification/services_verification.png"}},
		{"portfolio-modal", []string{"verification/portfolio_modal_light_mode_forced.png"}},
		{"book-now", []string{".jules/verification/verification.png"}},
		{"admin-dashboard", []string{"verification/0_login.png", "verification/3_blog_editor.png", "verification/5_settings.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := builtin(t, tt.name, baseURL)
			res := run(t, sc)
			requirePassed(t, res)

			for _, p := range tt.artifacts {
				info, err := os.Stat(filepath.Join(sc.ArtifactsDir, p))
				require.NoError(t, err)
				assert.Positive(t, info.Size())
			}
			assert.Equal(t, runner.StateClosed, res.Trace[len(res.Trace)-1])
		})
	}
}

func TestBrowser_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	sc := builtin(t, "header-link", "http://127.0.0.1:1")
	sc.Timeouts.Navigation = 3 * time.Second

	start := time.Now()
	res := run(t, sc)

	require.False(t, res.Passed())
	assert.Equal(t, errors.KindNavigationTimeout, errors.KindOf(res.Err))
	assert.Equal(t, 0, res.FailedStep)
	assert.Less(t, time.Since(start), 30*time.Second)
}
