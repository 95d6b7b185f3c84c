package testsupport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Op identifies an SDK API endpoint of the fake server.
type Op string

const (
	OpHealth        Op = "health"
	OpEvaluate      Op = "evaluate"
	OpReportError   Op = "report_error"
	OpFeatureHealth Op = "feature_health"
	OpTrack         Op = "track"
)

// Response is one scripted answer of the fake server.
type Response struct {
	Status int
	// Body is rendered as JSON. Nil writes no body.
	Body any
	// Delay is applied before answering, or until the client goes away.
	Delay time.Duration
}

// Request is a request received by the fake server.
type Request struct {
	Op         Op
	FeatureKey string
	Method     string
	Path       string
	Header     http.Header
	Body       []byte
}

// APIError builds the error envelope returned by the SDK API.
func APIError(code, message string) map[string]any {
	return map[string]any{"error": map[string]string{"code": code, "message": message}}
}

// Evaluated is a 200 evaluation response.
func Evaluated(featureKey, value string, enabled bool) Response {
	return Response{
		Status: http.StatusOK,
		Body:   map[string]any{"feature_key": featureKey, "enabled": enabled, "value": value},
	}
}

// Status is a response with the API error envelope for the given status.
func Status(code int) Response {
	return Response{Status: code, Body: APIError(http.StatusText(code), http.StatusText(code))}
}

// Server is a fake Togglr SDK API built on chi.
//
// Responses are scripted per (op, feature key). Scripted responses are consumed
// in order and the last one repeats. Unscripted calls get the API defaults:
// health is ok, evaluate and feature health answer 404, report-error and track
// answer 202.
type Server struct {
	*httptest.Server

	apiKey string

	mu       sync.Mutex
	scripts  map[scriptKey][]Response
	requests []Request
}

type scriptKey struct {
	op  Op
	key string
}

// NewServer starts a fake server requiring apiKey in the Authorization header.
// An empty apiKey disables authentication. The server is closed with the test.
func NewServer(t testing.TB, apiKey string) *Server {
	t.Helper()

	s := &Server{apiKey: apiKey, scripts: make(map[scriptKey][]Response)}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// NewTLSServer is NewServer over TLS with httptest's self-signed certificate.
func NewTLSServer(t testing.TB, apiKey string) *Server {
	t.Helper()

	s := &Server{apiKey: apiKey, scripts: make(map[scriptKey][]Response)}
	s.Server = httptest.NewTLSServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/sdk/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/health", s.handle(OpHealth))
		r.Route("/features/{key}", func(r chi.Router) {
			r.Post("/evaluate", s.handle(OpEvaluate))
			r.Post("/report-error", s.handle(OpReportError))
			r.Get("/health", s.handle(OpFeatureHealth))
			r.Post("/track", s.handle(OpTrack))
		})
	})

	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("Authorization") != s.apiKey {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, APIError("ERR_UNAUTHORIZED", "invalid api key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handle(op Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		featureKey := chi.URLParam(r, "key")
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Op:         op,
			FeatureKey: featureKey,
			Method:     r.Method,
			Path:       r.URL.EscapedPath(),
			Header:     r.Header.Clone(),
			Body:       body,
		})
		resp := s.next(op, featureKey)
		s.mu.Unlock()

		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		if resp.Body == nil {
			w.WriteHeader(resp.Status)
			return
		}
		render.Status(r, resp.Status)
		render.JSON(w, r, resp.Body)
	}
}

// next pops the scripted response. Callers hold s.mu.
func (s *Server) next(op Op, featureKey string) Response {
	k := scriptKey{op: op, key: featureKey}
	queue := s.scripts[k]
	if len(queue) == 0 {
		return defaultResponse(op, featureKey)
	}
	resp := queue[0]
	if len(queue) > 1 {
		s.scripts[k] = queue[1:]
	}
	return resp
}

func defaultResponse(op Op, featureKey string) Response {
	switch op {
	case OpHealth:
		return Response{Status: http.StatusOK, Body: map[string]any{"status": "ok"}}
	case OpReportError, OpTrack:
		return Response{Status: http.StatusAccepted}
	default:
		return Response{Status: http.StatusNotFound, Body: APIError("ERR_NOT_FOUND", "feature "+featureKey+" not found")}
	}
}

// Script queues responses for op on featureKey. Health ignores the feature key.
func (s *Server) Script(op Op, featureKey string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[scriptKey{op: op, key: featureKey}] = append([]Response(nil), responses...)
}

// Requests returns the recorded requests for op, in arrival order.
func (s *Server) Requests(op Op) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, r := range s.requests {
		if r.Op == op {
			out = append(out, r)
		}
	}
	return out
}

// Count returns how many requests for op on featureKey were received.
func (s *Server) Count(op Op, featureKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.requests {
		if r.Op == op && r.FeatureKey == featureKey {
			n++
		}
	}
	return n
}

// Reset forgets recorded requests and scripts.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
	s.scripts = make(map[scriptKey][]Response)
}
