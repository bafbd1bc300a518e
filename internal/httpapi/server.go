// Package httpapi exposes a read-only HTTP view of the status board.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/ipmon/internal/monitor"
)

// Source yields the engine currently serving reads. Implemented by the
// reload coordinator.
type Source interface {
	Current() *monitor.Engine
}

type Server struct {
	Logger *zap.Logger
	Source Source
}

func NewServer(l *zap.Logger, src Source) *Server {
	return &Server{Logger: l, Source: src}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/status/{address}", s.handleTarget)

	return r
}

type statusPayload struct {
	Running bool             `json:"running"`
	Targets []monitor.Record `json:"targets"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	eng := s.Source.Current()
	if eng == nil || eng.Board() == nil {
		http.Error(w, "no engine running", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusPayload{
		Running: eng.Running(),
		Targets: eng.Board().Snapshot(),
	})
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	eng := s.Source.Current()
	if eng == nil || eng.Board() == nil {
		http.Error(w, "no engine running", http.StatusServiceUnavailable)
		return
	}
	address := chi.URLParam(r, "address")
	rec, ok := eng.Board().Get(address)
	if !ok {
		http.Error(w, "unknown target", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}
