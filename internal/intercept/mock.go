// Package intercept keeps the canned responses that stand in for real backend
// calls during a verification run. Matching is pure; the browser wires it to
// the DevTools Fetch domain.
package intercept

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/valpere/uiverify/internal/utils"
)

// Mock is a canned response for requests whose URL matches Pattern
type Mock struct {
	Pattern     string            `yaml:"pattern" json:"pattern"`
	Method      string            `yaml:"method,omitempty" json:"method,omitempty"`
	Status      int               `yaml:"status,omitempty" json:"status,omitempty"`
	ContentType string            `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body        string            `yaml:"body,omitempty" json:"body,omitempty"`
}

// JSON builds a mock answering with v encoded as JSON
func JSON(pattern string, status int, v interface{}) (Mock, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Mock{}, fmt.Errorf("failed to encode mock body for %s: %w", pattern, err)
	}
	return Mock{
		Pattern:     pattern,
		Status:      status,
		ContentType: "application/json",
		Body:        string(body),
	}, nil
}

// ResponseHeaders returns the headers to send, sorted by name.
// Content-Type and a permissive CORS origin are filled in when absent.
func (m Mock) ResponseHeaders() [][2]string {
	headers := make(map[string]string, len(m.Headers)+2)
	for k, v := range m.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}
	if _, ok := headers["Content-Type"]; !ok {
		ct := m.ContentType
		if ct == "" {
			ct = "text/plain; charset=utf-8"
		}
		headers["Content-Type"] = ct
	}
	if _, ok := headers["Access-Control-Allow-Origin"]; !ok {
		headers["Access-Control-Allow-Origin"] = "*"
	}

	out := make([][2]string, 0, len(headers))
	for k, v := range headers {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func (m Mock) withDefaults() Mock {
	if m.Status == 0 {
		m.Status = http.StatusOK
	}
	m.Method = strings.ToUpper(m.Method)
	return m
}

// Validate checks the mock can be registered
func (m Mock) Validate() error {
	if m.Pattern == "" {
		return fmt.Errorf("mock pattern is required")
	}
	if m.Status != 0 && (m.Status < 100 || m.Status > 599) {
		return fmt.Errorf("mock %s: invalid status %d", m.Pattern, m.Status)
	}
	if _, err := utils.CompileGlob(m.Pattern); err != nil {
		return fmt.Errorf("mock %s: %w", m.Pattern, err)
	}
	return nil
}

type route struct {
	mock Mock
	glob *utils.Glob
	seq  uint64
	hits atomic.Int64
}

// Registry holds the active mocks of one Session
type Registry struct {
	mu     sync.RWMutex
	routes map[string]*route
	seq    uint64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]*route)}
}

// Register adds m, replacing any mock previously registered for the same pattern
func (r *Registry) Register(m Mock) error {
	if err := m.Validate(); err != nil {
		return err
	}
	m = m.withDefaults()
	glob, err := utils.CompileGlob(m.Pattern)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.routes[m.Pattern] = &route{mock: m, glob: glob, seq: r.seq}
	return nil
}

// Match finds the most recently registered mock matching the request and counts the hit
func (r *Registry) Match(method, url string) (Mock, bool) {
	rt := r.lookup(method, url)
	if rt == nil {
		return Mock{}, false
	}
	rt.hits.Add(1)
	return rt.mock, true
}

// Covers reports whether any mock matches url regardless of method, without counting a hit.
// Used to answer CORS preflights for mocked resources.
func (r *Registry) Covers(url string) bool {
	return r.lookup("", url) != nil
}

func (r *Registry) lookup(method, url string) *route {
	method = strings.ToUpper(method)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *route
	for _, rt := range r.routes {
		if method != "" && rt.mock.Method != "" && rt.mock.Method != method {
			continue
		}
		if !rt.glob.Match(url) {
			continue
		}
		if best == nil || rt.seq > best.seq {
			best = rt
		}
	}
	return best
}

// Hits returns how many requests the mock for pattern has answered
func (r *Registry) Hits(pattern string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rt, ok := r.routes[pattern]; ok {
		return rt.hits.Load()
	}
	return 0
}

// HitCounts returns the hit count of every registered pattern
func (r *Registry) HitCounts() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int64, len(r.routes))
	for p, rt := range r.routes {
		out[p] = rt.hits.Load()
	}
	return out
}

// DevToolsPatterns returns the Fetch.enable url patterns covering every mock
func (r *Registry) DevToolsPatterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.routes))
	out := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		p := rt.glob.DevToolsPattern()
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered patterns
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}
