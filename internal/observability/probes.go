package observability

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/render"
)

// ReadinessResponse is the body of the readiness probe.
type ReadinessResponse struct {
	Ready      bool              `json:"ready"`
	Components map[string]string `json:"components"`
}

// liveness responds with 200 OK while the process serves HTTP.
func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness runs every checker in parallel and answers 200 only if all pass.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	resp := s.check(ctx)

	if resp.Ready {
		render.Status(r, http.StatusOK)
	} else {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}

func (s *Server) check(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{Ready: true, Components: make(map[string]string, len(s.checkers))}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, checker := range s.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				s.logger.Warn("readiness check failed",
					slog.String("component", c.Name()),
					slog.String("error", err.Error()),
				)
				resp.Components[c.Name()] = "down: " + err.Error()
				resp.Ready = false
				return
			}
			resp.Components[c.Name()] = "up"
		}(checker)
	}

	wg.Wait()
	return resp
}
