// internal/browser/types.go
package browser

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ColorScheme is the value emulated for the prefers-color-scheme media feature
type ColorScheme string

const (
	ColorSchemeDefault      ColorScheme = ""
	ColorSchemeLight        ColorScheme = "light"
	ColorSchemeDark         ColorScheme = "dark"
	ColorSchemeNoPreference ColorScheme = "no-preference"
)

// Valid reports whether the scheme is one the browser understands
func (c ColorScheme) Valid() bool {
	switch c {
	case ColorSchemeDefault, ColorSchemeLight, ColorSchemeDark, ColorSchemeNoPreference:
		return true
	}
	return false
}

// Config defines how a Session's browser is launched
type Config struct {
	Headless       bool              `yaml:"headless" json:"headless"`
	ExecPath       string            `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`
	UserDataDir    string            `yaml:"user_data_dir,omitempty" json:"user_data_dir,omitempty"`
	UserAgent      string            `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	ViewportWidth  int               `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int               `yaml:"viewport_height" json:"viewport_height"`
	ColorScheme    ColorScheme       `yaml:"color_scheme,omitempty" json:"color_scheme,omitempty"`
	NoSandbox      bool              `yaml:"no_sandbox" json:"no_sandbox"`
	LaunchTimeout  time.Duration     `yaml:"launch_timeout" json:"launch_timeout"`
	Flags          map[string]string `yaml:"flags,omitempty" json:"flags,omitempty"`
}

// DefaultConfig returns default browser configuration
func DefaultConfig() *Config {
	return &Config{
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		NoSandbox:      true, // Required for Docker environments
		LaunchTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration before a launch is attempted
func (c *Config) Validate() error {
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.ViewportWidth, c.ViewportHeight)
	}
	if !c.ColorScheme.Valid() {
		return fmt.Errorf("unsupported color scheme %q", c.ColorScheme)
	}
	if c.LaunchTimeout < 0 {
		return fmt.Errorf("launch timeout cannot be negative")
	}
	return nil
}

// Location is the navigation state of the page
type Location struct {
	Href       string `json:"href"`
	ReadyState string `json:"readyState"`
	Marker     string `json:"marker"`
}

// NavigationResult describes a navigation that was issued
type NavigationResult struct {
	URL          string
	SameDocument bool
	// Marker identifies the document that was current before the navigation
	Marker string
}

// Box is an element's border box in viewport CSS pixels
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the middle point of the box
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// ElementState is a snapshot of the element a Locator resolved to
type ElementState struct {
	Found      bool              `json:"found"`
	Count      int               `json:"count"`
	Visible    bool              `json:"visible"`
	Tag        string            `json:"tag,omitempty"`
	Role       string            `json:"role,omitempty"`
	Name       string            `json:"name,omitempty"`
	Text       string            `json:"text,omitempty"`
	Value      string            `json:"value,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Box        Box               `json:"box"`
	Ref        string            `json:"ref,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Attribute returns the value of name and whether it is present
func (s ElementState) Attribute(name string) (string, bool) {
	v, ok := s.Attributes[name]
	return v, ok
}

// Stats contains browser automation statistics of one Session
type Stats struct {
	Navigations       atomic.Int64
	NavigationErrors  atomic.Int64
	Evaluations       atomic.Int64
	Screenshots       atomic.Int64
	InterceptedTotal  atomic.Int64
	FulfilledRequests atomic.Int64
	loadNanos         atomic.Int64
}

// AverageNavigationTime returns the mean time spent issuing navigations
func (s *Stats) AverageNavigationTime() time.Duration {
	n := s.Navigations.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(s.loadNanos.Load() / n)
}

func (s *Stats) recordNavigation(d time.Duration, err error) {
	s.Navigations.Add(1)
	s.loadNanos.Add(int64(d))
	if err != nil {
		s.NavigationErrors.Add(1)
	}
}
