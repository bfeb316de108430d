// Package server assembles the HTTP surface: health endpoints,
// metrics, the telephony webhooks, and the live voice websocket.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/voicedesk-io/voicedesk/pkg/gateway/ivr"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/live"
)

// Dependencies are the mounted components.
type Dependencies struct {
	IVR     *ivr.Handler
	Live    *live.Handler
	Metrics *Metrics
	Logger  *slog.Logger

	// Ready reports whether backing services are reachable. nil means
	// always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	deps Dependencies
	mux  *http.ServeMux
}

func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.deps.Ready(ctx); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}
	if s.deps.IVR != nil {
		s.deps.IVR.Register(s.mux)
	}
	if s.deps.Live != nil {
		s.mux.Handle("GET /v1/voice", s.deps.Live)
	}
}

// Handler wraps the mux in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = Recover(s.deps.Logger, h)
	h = AccessLog(s.deps.Logger, s.deps.Metrics, h)
	h = RequestID(h)
	return h
}
