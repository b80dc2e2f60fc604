// Package scenarios holds the built-in verifications of the photography site.
// Each one keeps the origin its script was written against; UIVERIFY_BASE_URL
// overrides it.
package scenarios

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/config"
	"github.com/valpere/uiverify/internal/intercept"
)

// BaseURLEnv names the environment variable that overrides every built-in origin
const BaseURLEnv = "UIVERIFY_BASE_URL"

const (
	devServer         = "http://localhost:3000"
	testimonialServer = "http://localhost:3004"
)

// Builtin is a named verification that builds its scenario for an origin
type Builtin struct {
	Name           string
	Description    string
	DefaultBaseURL string
	build          func(baseURL string) *config.Scenario
}

// Scenario builds the verification against baseURL, or against its default
// origin (subject to UIVERIFY_BASE_URL) when baseURL is empty.
func (b Builtin) Scenario(baseURL string) (*config.Scenario, error) {
	if baseURL == "" {
		baseURL = ResolveBaseURL(b.DefaultBaseURL)
	}
	sc := b.build(strings.TrimRight(baseURL, "/"))
	sc.Name = b.Name
	sc.Description = b.Description
	if err := config.Prepare(sc); err != nil {
		return nil, fmt.Errorf("built-in %s: %w", b.Name, err)
	}
	return sc, nil
}

// ResolveBaseURL returns UIVERIFY_BASE_URL when set, otherwise def
func ResolveBaseURL(def string) string {
	if v := strings.TrimSpace(os.Getenv(BaseURLEnv)); v != "" {
		return v
	}
	return def
}

var registry = map[string]Builtin{}

func register(b Builtin) {
	if _, dup := registry[b.Name]; dup {
		panic("scenarios: duplicate built-in " + b.Name)
	}
	registry[b.Name] = b
}

// Names lists the built-in verifications in alphabetical order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every built-in ordered by name
func All() []Builtin {
	out := make([]Builtin, 0, len(registry))
	for _, name := range Names() {
		out = append(out, registry[name])
	}
	return out
}

// Lookup returns the built-in called name
func Lookup(name string) (Builtin, bool) {
	b, ok := registry[name]
	return b, ok
}

// Get builds the named built-in against its default origin
func Get(name string) (*config.Scenario, error) {
	b, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown built-in verification %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return b.Scenario("")
}

func newScenario(baseURL string) *config.Scenario {
	return &config.Scenario{
		BaseURL: baseURL,
		Browser: *browser.DefaultConfig(),
	}
}

func goTo(url string) config.Step {
	return config.Step{Action: config.ActionGoto, URL: url}
}

func waitFor(l *browser.Locator, timeout time.Duration) config.Step {
	return config.Step{Action: config.ActionWait, Locator: l, Timeout: timeout}
}

func click(l *browser.Locator) config.Step {
	return config.Step{Action: config.ActionClick, Locator: l}
}

func screenshot(path string, fullPage bool) config.Step {
	return config.Step{Action: config.ActionScreenshot, Path: path, FullPage: &fullPage}
}

func logf(format string, args ...interface{}) config.Step {
	return config.Step{Action: config.ActionLog, Message: fmt.Sprintf(format, args...)}
}

func init() {
	register(Builtin{
		Name:           "about-testimonials",
		Description:    "Testimonials on the about page render from a mocked REST response",
		DefaultBaseURL: testimonialServer,
		build:          aboutTestimonials,
	})
	register(Builtin{
		Name:           "char-count",
		Description:    "The contact form counter follows what is typed",
		DefaultBaseURL: devServer,
		build:          charCount,
	})
	register(Builtin{
		Name:           "nav-a11y",
		Description:    "Navigation marks the current page and the mobile menu is a modal dialog",
		DefaultBaseURL: devServer,
		build:          navA11y,
	})
	register(Builtin{
		Name:           "header-link",
		Description:    "The header's Book a Session link points at the contact page",
		DefaultBaseURL: devServer,
		build:          headerLink,
	})
	register(Builtin{
		Name:           "footer",
		Description:    "The footer renders at the bottom of the home page",
		DefaultBaseURL: devServer,
		build:          footer,
	})
	register(Builtin{
		Name:           "services",
		Description:    "The services comparison table renders its static rows",
		DefaultBaseURL: devServer,
		build:          services,
	})
	register(Builtin{
		Name:           "portfolio-modal",
		Description:    "The portfolio editor opens a modal dialog in light mode and closes it",
		DefaultBaseURL: devServer,
		build:          portfolioModal,
	})
	register(Builtin{
		Name:           "admin-dashboard",
		Description:    "Admin login reaches the dashboard and each manager renders",
		DefaultBaseURL: devServer,
		build:          adminDashboard,
	})
	register(Builtin{
		Name:           "book-now",
		Description:    "Service cards carry a labelled Book Now link to the contact page",
		DefaultBaseURL: devServer,
		build:          bookNow,
	})
}

// Testimonial is one row of the testimonials REST resource
type Testimonial struct {
	ID           string `json:"id"`
	ClientName   string `json:"client_name"`
	Quote        string `json:"quote"`
	Rating       int    `json:"rating"`
	ImageURL     string `json:"image_url"`
	DisplayOrder int    `json:"display_order"`
	Subtitle     string `json:"subtitle"`
}

// TestimonialsPattern matches the testimonials REST resource on any origin
const TestimonialsPattern = "**/rest/v1/testimonials*"

// MockTestimonials is the canned response served in place of the real backend
func MockTestimonials() []Testimonial {
	return []Testimonial{{
		ID:           "1",
		ClientName:   "Test Client",
		Quote:        "This is a test testimonial.",
		Rating:       5,
		ImageURL:     "https://via.placeholder.com/150",
		DisplayOrder: 1,
		Subtitle:     "Test Subtitle",
	}}
}

func aboutTestimonials(baseURL string) *config.Scenario {
	sc := newScenario(baseURL)
	sc.Mocks = []config.MockConfig{{
		Mock: intercept.Mock{Pattern: TestimonialsPattern, Status: 200, ContentType: "application/json"},
		JSON: MockTestimonials(),
	}}
	sc.Steps = []config.Step{
		logf("Navigating to About page..."),
		goTo("/#/about"),
		waitFor(browser.Text("Latest Words"), 5*time.Second),
		waitFor(browser.Text("Test Client"), 5*time.Second),
		screenshot("verification/about_page_final.png", false),
		logf("Testimonials verification passed"),
	}
	return sc
}

func charCount(baseURL string) *config.Scenario {
	vision := browser.Label("Your Vision")
	sc := newScenario(baseURL)
	sc.Steps = []config.Step{
		goTo("/#/contact"),
		waitFor(browser.Text("Let's Create Together"), 0),
		{Action: config.ActionAssertVisible, Locator: vision},
		{Action: config.ActionAssertVisible, Locator: browser.Text("0/2000")},
		logf("Initial count 0/2000 verified"),
		{Action: config.ActionFill, Locator: vision, Value: "Hello World"},
		{Action: config.ActionAssertVisible, Locator: browser.Text("11/2000")},
		logf("Updated count 11/2000 verified"),
		screenshot("verification/contact_char_count.png", false),
	}
	return sc
}

func navA11y(baseURL string) *config.Scenario {
	nav := browser.CSS("nav")
	mobileMenu := browser.Label("Mobile navigation")
	sc := newScenario(baseURL)
	sc.Steps = []config.Step{
		goTo("/"),
		waitFor(nav, 0),
		{
			Name:      "active link is current",
			Action:    config.ActionAssertAttribute,
			Locator:   browser.Role("link", "Portfolio").Exactly().In(nav).At(0),
			Attribute: "aria-current",
			Value:     "page",
		},
		{
			Name:      "inactive link is not current",
			Action:    config.ActionAssertNoAttribute,
			Locator:   browser.Role("link", "Services").Exactly().In(nav).At(0),
			Attribute: "aria-current",
			Value:     "page",
		},
		logf("aria-current verification passed for desktop"),
		{Action: config.ActionViewport, Width: 375, Height: 667},
		click(browser.Label("Open main menu")),
		waitFor(mobileMenu, 0),
		{Action: config.ActionAssertVisible, Locator: mobileMenu},
		{Action: config.ActionAssertAttribute, Locator: mobileMenu, Attribute: "role", Value: "dialog"},
		{Action: config.ActionAssertAttribute, Locator: mobileMenu, Attribute: "aria-modal", Value: "true"},
		logf("Mobile menu accessible attributes verification passed"),
		screenshot("verification/mobile_menu_a11y.png", false),
	}
	return sc
}

func headerLink(baseURL string) *config.Scenario {
	header := browser.CSS("header")
	book := browser.Role("link", "Book a Session")
	sc := newScenario(baseURL)
	sc.Steps = []config.Step{
		goTo("/"),
		waitFor(header, 0),
		{Action: config.ActionAssertVisible, Locator: book},
		{Action: config.ActionAssertAttribute, Locator: book, Attribute: "href", Value: "#/contact"},
		{Action: config.ActionScreenshot, Locator: header, Path: "verification/verification.png"},
	}
	return sc
}

func footer(baseURL string) *config.Scenario {
	f := browser.CSS("footer")
	sc := newScenario(baseURL)
	sc.Timeouts.Navigation = 60 * time.Second
	sc.Steps = []config.Step{
		goTo("/"),
		{Action: config.ActionScroll, To: config.ScrollBottom},
		waitFor(f, 0),
		{Action: config.ActionScreenshot, Locator: f, Path: "verification/footer_initial.png"},
	}
	return sc
}

func services(baseURL string) *config.Scenario {
	sc := newScenario(baseURL)
	sc.Steps = []config.Step{
		logf("Navigating to Services page..."),
		goTo("/#/services"),
		waitFor(browser.Text("Compare Tiers"), 30*time.Second),
		waitFor(browser.Text("Photo Resolution"), 0),
		waitFor(browser.Text("Ultra High Res (42MP+)"), 0),
		screenshot("verification/services_verification.png", true),
	}
	return sc
}

const removeDarkClass = "document.documentElement.classList.remove('dark')"

func portfolioModal(baseURL string) *config.Scenario {
	dialog := browser.Role("dialog", "")
	closeButton := browser.CSS("button[aria-label='Close modal']")
	sc := newScenario(baseURL)
	sc.Browser.ColorScheme = browser.ColorSchemeLight
	sc.Steps = []config.Step{
		goTo("/#/test-portfolio"),
		{Name: "force light mode", Action: config.ActionEval, Script: removeDarkClass},
		waitFor(browser.Text("Add New Item"), 0),
		click(browser.Text("Add New Item")),
		waitFor(browser.Text("New Portfolio Item"), 0),
		{Action: config.ActionAssertVisible, Locator: dialog},
		{Action: config.ActionAssertAttribute, Locator: dialog, Attribute: "aria-modal", Value: "true"},
		{
			Name:   "dark class stays off",
			Action: config.ActionEval,
			Script: removeDarkClass + "; document.documentElement.classList.contains('dark')",
			Expect: "false",
		},
		{Action: config.ActionHover, Locator: closeButton},
		screenshot("verification/portfolio_modal_light_mode_forced.png", false),
		click(closeButton),
		{Action: config.ActionAssertHidden, Locator: dialog},
	}
	return sc
}

func adminDashboard(baseURL string) *config.Scenario {
	dashboard := browser.Text("CMS Dashboard")
	sc := newScenario(baseURL)
	sc.Browser.ViewportHeight = 800
	sc.Timeouts.Navigation = 60 * time.Second
	sc.ErrorScreenshot = "verification/error_login_timeout.png"
	sc.Steps = []config.Step{
		logf("Navigating to login..."),
		goTo("/#/login"),
		waitFor(browser.CSS("input[type='email']"), 30*time.Second),
		{Action: config.ActionFill, Locator: browser.CSS("input[type='email']"), Value: "admin@lensandlight.com"},
		{Action: config.ActionFill, Locator: browser.CSS("input[type='password']"), Value: "admin"},
		screenshot("verification/0_login.png", false),
		click(browser.CSS("button[type='submit']")),
		{Action: config.ActionWait, URL: "**/#/admin", Timeout: 60 * time.Second},
		waitFor(dashboard, 0),
		screenshot("verification/1_dashboard.png", false),

		goTo("/#/admin/media"),
		waitFor(browser.Text("media Manager"), 0),
		screenshot("verification/2_media.png", false),

		goTo("/#/admin/blog"),
		waitFor(browser.Text("New Post"), 0),
		click(browser.Text("New Post")),
		{Name: "editor settles", Action: config.ActionWait, Delay: 2 * time.Second},
		screenshot("verification/3_blog_editor.png", false),

		goTo("/#/admin/comments"),
		waitFor(browser.Text("comments Manager"), 0),
		screenshot("verification/4_comments.png", false),

		goTo("/#/admin/settings"),
		waitFor(browser.Text("settings Manager"), 0),
		screenshot("verification/5_settings.png", false),
	}
	return sc
}

func bookNow(baseURL string) *config.Scenario {
	heading := browser.Text("Select Your Session")
	book := browser.CSS("a").Containing("Book Now").At(0)
	sc := newScenario(baseURL)
	sc.Browser.ViewportHeight = 800
	sc.ErrorScreenshot = ".jules/verification/error.png"
	sc.Steps = []config.Step{
		goTo("/#/services"),
		waitFor(heading, 0),
		{Action: config.ActionAssertVisible, Locator: book},
		{Action: config.ActionAssertAttribute, Locator: book, Attribute: "href", Value: "#/contact"},
		{Action: config.ActionAssertAttribute, Locator: book, Attribute: "aria-label", Value: "Book ", Prefix: true},
		{Action: config.ActionScroll, Locator: heading},
		screenshot(".jules/verification/verification.png", false),
	}
	return sc
}
