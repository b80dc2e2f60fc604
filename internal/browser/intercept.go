// internal/browser/intercept.go
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"

	"github.com/valpere/uiverify/internal/intercept"
)

// Route registers m and makes the page answer matching requests with it.
// Mocks stay active for the lifetime of the session.
func (s *Session) Route(ctx context.Context, m intercept.Mock) error {
	if err := s.mocks.Register(m); err != nil {
		return err
	}
	return s.enableInterception(ctx)
}

// RouteHits returns how many requests each mock pattern answered
func (s *Session) RouteHits() map[string]int64 {
	return s.mocks.HitCounts()
}

// Mocks returns the session's mock registry
func (s *Session) Mocks() *intercept.Registry {
	return s.mocks
}

// enableInterception (re)enables the Fetch domain with a pattern per mock.
// DevTools patterns are coarser than the globs, so every paused request is
// checked against the registry again.
func (s *Session) enableInterception(ctx context.Context) error {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	s.listenOnce.Do(func() {
		chromedp.ListenTarget(s.ctx, s.handleTargetEvent)
	})

	patterns := make([]*fetch.RequestPattern, 0, s.mocks.Len())
	for _, p := range s.mocks.DevToolsPatterns() {
		patterns = append(patterns, &fetch.RequestPattern{
			URLPattern:   p,
			RequestStage: fetch.RequestStageRequest,
		})
	}

	if err := s.run(ctx, fetch.Enable().WithPatterns(patterns)); err != nil {
		return fmt.Errorf("failed to enable request interception: %w", err)
	}
	return nil
}

func (s *Session) handleTargetEvent(ev interface{}) {
	if e, ok := ev.(*fetch.EventRequestPaused); ok {
		// Commands cannot be sent from the event goroutine.
		go s.servePaused(e)
	}
}

func (s *Session) servePaused(e *fetch.EventRequestPaused) {
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil || s.closed.Load() {
		return
	}
	ctx := cdp.WithExecutor(s.ctx, c.Target)
	s.stats.InterceptedTotal.Add(1)

	url := e.Request.URL
	if e.Request.URLFragment != "" {
		url += e.Request.URLFragment
	}

	if e.Request.Method == http.MethodOptions && s.mocks.Covers(url) {
		s.fulfill(ctx, e.RequestID, http.StatusNoContent, preflightHeaders(), nil)
		return
	}

	m, ok := s.mocks.Match(e.Request.Method, url)
	if !ok {
		if err := fetch.ContinueRequest(e.RequestID).Do(ctx); err != nil {
			s.logger.Debugf("continue request %s failed: %v", url, err)
		}
		return
	}

	s.logger.Debugf("mocked %s %s with status %d", e.Request.Method, url, m.Status)
	s.fulfill(ctx, e.RequestID, m.Status, m.ResponseHeaders(), []byte(m.Body))
}

func (s *Session) fulfill(ctx context.Context, id fetch.RequestID, status int, headers [][2]string, body []byte) {
	entries := make([]*fetch.HeaderEntry, 0, len(headers))
	for _, h := range headers {
		entries = append(entries, &fetch.HeaderEntry{Name: h[0], Value: h[1]})
	}

	err := fetch.FulfillRequest(id, int64(status)).
		WithResponseHeaders(entries).
		WithBody(base64.StdEncoding.EncodeToString(body)).
		Do(ctx)
	if err != nil {
		s.logger.Warnf("fulfill request failed: %v", err)
		return
	}
	s.stats.FulfilledRequests.Add(1)
}

func preflightHeaders() [][2]string {
	return [][2]string{
		{"Access-Control-Allow-Headers", "*"},
		{"Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS"},
		{"Access-Control-Allow-Origin", "*"},
		{"Access-Control-Max-Age", "600"},
	}
}
