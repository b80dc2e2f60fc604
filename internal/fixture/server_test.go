// internal/fixture/server_test.go
package fixture

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/valpere/uiverify/internal/scenarios"
)

func TestHealthEndpoint(t *testing.T) {
	server := httptest.NewServer(New(nil).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", response["status"])
	}
}

func TestTestimonialsEndpoint(t *testing.T) {
	s := New(nil)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/rest/v1/testimonials?select=*&order=display_order.asc")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var rows []scenarios.Testimonial
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(rows) == 0 || rows[0].ClientName != "Real Client" {
		t.Errorf("Expected the real testimonials, got %+v", rows)
	}
	if s.TestimonialHits() != 1 {
		t.Errorf("Expected 1 hit, got %d", s.TestimonialHits())
	}
}

func TestTestimonialsEndpoint_MethodNotAllowed(t *testing.T) {
	s := New(nil)
	req := httptest.NewRequest(http.MethodPost, "/rest/v1/testimonials", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
	if s.TestimonialHits() != 0 {
		t.Errorf("Rejected requests must not count as hits")
	}
}

func TestSiteAssets(t *testing.T) {
	server := httptest.NewServer(New(nil).Handler())
	defer server.Close()

	tests := []struct {
		path     string
		contains string
	}{
		{"/", `id="mobile-menu"`},
		{"/app.js", "hashchange"},
		{"/app.css", ".mobile-menu"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(server.URL + tt.path)
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", resp.StatusCode)
			}
			body, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(body), tt.contains) {
				t.Errorf("Expected %s to contain %q", tt.path, tt.contains)
			}
		})
	}
}

func TestStartAndClose(t *testing.T) {
	s := New(nil)
	baseURL, err := s.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	if !strings.HasPrefix(baseURL, "http://127.0.0.1:") {
		t.Errorf("Unexpected base URL %s", baseURL)
	}
	if _, err := s.Start("127.0.0.1:0"); err == nil {
		t.Error("Expected an error when starting twice")
	}

	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		t.Fatalf("Failed to reach the started server: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}
}
