// Package healthcheck implements spec.md §6's optional healthcheck
// endpoint: GET /health returns 200 if the monitored base URL is
// reachable within 5s, 503 otherwise. Grounded on the teacher's
// internal/ws HTTP server setup (route registration + ListenAndServe).
package healthcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const probeTimeout = 5 * time.Second

// Server serves the /health endpoint on a configured port. Additional
// routes (e.g. the optional /status WebSocket stream) can be registered
// via Handle before ListenAndServe is called.
type Server struct {
	baseURL string
	client  *http.Client
	mux     *http.ServeMux
	srv     *http.Server
}

// New builds a Server that probes baseURL on each /health request.
func New(addr, baseURL string) *Server {
	mux := http.NewServeMux()
	s := &Server{
		baseURL: baseURL,
		client:  &http.Client{Timeout: probeTimeout},
		mux:     mux,
	}
	mux.HandleFunc("/health", s.handleHealth)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handle registers an additional route on the same server/port.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.baseURL, nil)
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "unreachable")
		return
	}

	resp, err := s.client.Do(req)
	if err != nil || resp.StatusCode >= 500 {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "unreachable")
		return
	}
	resp.Body.Close()

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// ListenAndServe starts the HTTP server, blocking until ctx is cancelled
// or it fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
