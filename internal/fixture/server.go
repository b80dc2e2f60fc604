// Package fixture serves a local copy of the photography site: a hash-routed
// single page application and the REST resources it reads. It stands in for
// the dev server in tests and in `uiverify fixture`.
package fixture

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/valpere/uiverify/internal/scenarios"
	"github.com/valpere/uiverify/internal/utils"
)

//go:embed site
var siteFS embed.FS

// Server is the fixture HTTP server
type Server struct {
	logger          utils.Logger
	router          *mux.Router
	testimonials    []scenarios.Testimonial
	testimonialHits atomic.Int64

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
}

// RealTestimonials is what the fixture backend returns when nothing mocks it
func RealTestimonials() []scenarios.Testimonial {
	return []scenarios.Testimonial{
		{
			ID:           "t-100",
			ClientName:   "Real Client",
			Quote:        "The photos from our wedding are stunning.",
			Rating:       5,
			ImageURL:     "/img/real-client.jpg",
			DisplayOrder: 1,
			Subtitle:     "Wedding, 2024",
		},
		{
			ID:           "t-101",
			ClientName:   "Second Client",
			Quote:        "Fast turnaround and a relaxed session.",
			Rating:       4,
			DisplayOrder: 2,
			Subtitle:     "Portrait session",
		},
	}
}

// New creates a fixture server. A nil logger discards output.
func New(logger utils.Logger) *Server {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	s := &Server{
		logger:       logger.WithField("component", "fixture"),
		testimonials: RealTestimonials(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.healthHandler).Methods("GET")

	api := r.PathPrefix("/rest/v1").Subrouter()
	api.HandleFunc("/testimonials", s.testimonialsHandler).Methods("GET")

	site, err := fs.Sub(siteFS, "site")
	if err != nil {
		// the embed directive guarantees the directory
		panic(err)
	}
	r.PathPrefix("/").Handler(http.FileServer(http.FS(site))).Methods("GET", "HEAD")
	return r
}

// Handler returns the router, for use with httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// TestimonialHits reports how many requests reached the testimonials resource
func (s *Server) TestimonialHits() int64 {
	return s.testimonialHits.Load()
}

// Start listens on addr (":0" picks a free port) and serves in the
// background. It returns the base URL of the site.
func (s *Server) Start(addr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpSrv != nil {
		return "", fmt.Errorf("fixture server already started on %s", s.listener.Addr())
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.httpSrv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("fixture server stopped: %v", err)
		}
	}(s.httpSrv)

	baseURL := "http://" + ln.Addr().String()
	s.logger.Infof("fixture site listening on %s", baseURL)
	return baseURL, nil
}

// Close shuts the server down, waiting for in-flight requests until ctx ends
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.httpSrv = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) testimonialsHandler(w http.ResponseWriter, r *http.Request) {
	s.testimonialHits.Add(1)
	writeJSON(w, http.StatusOK, s.testimonials)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugf("%s %s (%s)", r.Method, r.URL.RequestURI(), time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
