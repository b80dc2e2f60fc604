// Package artifact writes the evidence a verification run leaves behind:
// screenshots of the page or of single elements and DOM snapshots.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/valpere/uiverify/internal/browser"
	"github.com/valpere/uiverify/internal/errors"
	"github.com/valpere/uiverify/internal/utils"
)

// Page is what the capturer needs from a browser session
type Page interface {
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	ScreenshotElement(ctx context.Context, l *browser.Locator) ([]byte, error)
	HTML(ctx context.Context) (string, error)
}

// Target selects what a screenshot covers
type Target struct {
	FullPage bool
	Element  *browser.Locator
}

// FullPage covers the whole scrollable page
func FullPage() Target { return Target{FullPage: true} }

// Viewport covers what is currently on screen
func Viewport() Target { return Target{} }

// Element covers the box of the element l resolves to
func Element(l *browser.Locator) Target { return Target{Element: l} }

func (t Target) String() string {
	switch {
	case t.Element != nil:
		return "element " + t.Element.String()
	case t.FullPage:
		return "full page"
	default:
		return "viewport"
	}
}

// Artifact describes one written file
type Artifact struct {
	Path       string    `json:"path" yaml:"path"`
	Kind       string    `json:"kind" yaml:"kind"`
	Bytes      int       `json:"bytes" yaml:"bytes"`
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
}

// Capturer writes artifacts below a base directory. Each path is written at most once.
type Capturer struct {
	page    Page
	baseDir string
	logger  utils.Logger

	mu      sync.Mutex
	written []Artifact
	seen    map[string]bool
}

// NewCapturer creates a capturer; relative paths are resolved against baseDir
func NewCapturer(page Page, baseDir string, logger utils.Logger) *Capturer {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Capturer{page: page, baseDir: baseDir, logger: logger, seen: make(map[string]bool)}
}

// Resolve returns the file path an artifact path maps to
func (c *Capturer) Resolve(path string) string {
	if c.baseDir == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.baseDir, path)
}

// Capture takes a PNG screenshot of target and writes it to path
func (c *Capturer) Capture(ctx context.Context, target Target, path string) (*Artifact, error) {
	full := c.Resolve(path)
	if err := c.reserve(full); err != nil {
		return nil, err
	}

	var data []byte
	var err error
	if target.Element != nil {
		data, err = c.page.ScreenshotElement(ctx, target.Element)
	} else {
		data, err = c.page.Screenshot(ctx, target.FullPage)
	}
	if err != nil {
		c.release(full)
		return nil, errors.ArtifactWriteFailure(full, fmt.Errorf("capture %s: %w", target, err))
	}

	return c.write(full, "screenshot", data)
}

// CaptureHTML writes the serialized DOM to path
func (c *Capturer) CaptureHTML(ctx context.Context, path string) (*Artifact, error) {
	full := c.Resolve(path)
	if err := c.reserve(full); err != nil {
		return nil, err
	}

	html, err := c.page.HTML(ctx)
	if err != nil {
		c.release(full)
		return nil, errors.ArtifactWriteFailure(full, err)
	}

	return c.write(full, "snapshot", []byte(html))
}

// Artifacts returns what has been written so far, in order
func (c *Capturer) Artifacts() []Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Artifact, len(c.written))
	copy(out, c.written)
	return out
}

func (c *Capturer) reserve(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[path] {
		return errors.ArtifactWriteFailure(path, fmt.Errorf("already written in this run"))
	}
	c.seen[path] = true
	return nil
}

func (c *Capturer) release(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, path)
}

func (c *Capturer) write(path, kind string, data []byte) (*Artifact, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.release(path)
		return nil, errors.ArtifactWriteFailure(path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.release(path)
		return nil, errors.ArtifactWriteFailure(path, err)
	}

	a := Artifact{Path: path, Kind: kind, Bytes: len(data), CapturedAt: time.Now()}
	c.mu.Lock()
	c.written = append(c.written, a)
	c.mu.Unlock()

	c.logger.Infof("%s saved to %s (%d bytes)", kind, path, len(data))
	return &a, nil
}
