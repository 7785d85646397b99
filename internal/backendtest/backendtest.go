// Package backendtest runs fake rendering backends for tests.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rendini/mashup/api/backend"
)

// RenderFunc answers one render call with a status code and a JSON body
type RenderFunc func(call backend.RenderCall) (int, any)

// Server is a fake backend serving the rendering contract under /api
type Server struct {
	srv  *httptest.Server
	name string

	targets any
	sitemap any
	index   any
	render  RenderFunc
	status  int
	delay   time.Duration
	raw     map[string]string

	calls atomic.Int64

	mu      sync.Mutex
	queries map[string]url.Values
	renders []backend.RenderCall
}

// Option configures a Server
type Option func(*Server)

// WithTargets sets the body of GET /render-targets
func WithTargets(body any) Option {
	return func(s *Server) { s.targets = body }
}

// WithSitemap sets the body of GET /sitemap
func WithSitemap(body any) Option {
	return func(s *Server) { s.sitemap = body }
}

// WithIndex sets the body of GET /index
func WithIndex(body any) Option {
	return func(s *Server) { s.index = body }
}

// WithRender sets the handler for POST /render
func WithRender(fn RenderFunc) Option {
	return func(s *Server) { s.render = fn }
}

// WithStatus makes every endpoint answer status with an empty JSON object
func WithStatus(status int) Option {
	return func(s *Server) { s.status = status }
}

// WithDelay delays every answer
func WithDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

// WithRawBody makes endpoint (e.g. "sitemap") answer 200 with body verbatim
func WithRawBody(endpoint, body string) Option {
	return func(s *Server) { s.raw[endpoint] = body }
}

// New starts a fake backend and stops it when the test ends
func New(t testing.TB, name string, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		name:    name,
		targets: []any{},
		sitemap: []any{},
		index:   []any{},
		raw:     map[string]string{},
		queries: map[string]url.Values{},
		render: func(call backend.RenderCall) (int, any) {
			return http.StatusOK, map[string]any{
				"content":     "<p>" + name + ":" + call.Name + "</p>",
				"contentType": "text/html",
			}
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/render-targets", s.list("render-targets", func() any { return s.targets }))
	mux.HandleFunc("GET /api/sitemap", s.list("sitemap", func() any { return s.sitemap }))
	mux.HandleFunc("GET /api/index", s.list("index", func() any { return s.index }))
	mux.HandleFunc("POST /api/render", s.handleRender)

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

// Backend returns the registry entry pointing at this server
func (s *Server) Backend() backend.Backend {
	u, err := url.Parse(s.srv.URL + "/api")
	if err != nil {
		panic(err)
	}
	return backend.Backend{Name: s.name, BaseURL: u}
}

// URL returns the base address including the /api prefix
func (s *Server) URL() string {
	return s.srv.URL + "/api"
}

// Calls returns how many requests the server has received
func (s *Server) Calls() int {
	return int(s.calls.Load())
}

// Query returns the query of the last request to endpoint
func (s *Server) Query(endpoint string) url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[endpoint]
}

// Renders returns the render calls received so far, in arrival order
func (s *Server) Renders() []backend.RenderCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.RenderCall(nil), s.renders...)
}

func (s *Server) begin(r *http.Request, endpoint string) bool {
	s.calls.Add(1)
	s.mu.Lock()
	s.queries[endpoint] = r.URL.Query()
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return false
		}
	}
	return true
}

func (s *Server) list(endpoint string, body func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.begin(r, endpoint) {
			return
		}
		if raw, ok := s.raw[endpoint]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(raw))
			return
		}
		if s.status != 0 {
			writeJSON(w, s.status, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, body())
	}
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if !s.begin(r, "render") {
		return
	}
	if s.status != 0 {
		writeJSON(w, s.status, map[string]any{})
		return
	}

	var call backend.RenderCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	s.mu.Lock()
	s.renders = append(s.renders, call)
	s.mu.Unlock()

	status, body := s.render(call)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
