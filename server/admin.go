package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/reglet-dev/luabridge/infrastructure/metrics"
)

// SlotStatus is one entry of the /slots listing.
type SlotStatus struct {
	ID     int   `json:"id"`
	Served int64 `json:"served"`
	Queued int   `json:"queued"`
}

// AdminRouter serves /healthz, /slots and, when m is non-nil, /metrics.
func (s *Server) AdminRouter(m *metrics.Collectors) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if m != nil {
		r.Use(m.Collect)
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/slots", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.SlotStatus())
	})
	return r
}

// SlotStatus reports per-slot counters. It is safe to call while serving.
func (s *Server) SlotStatus() []SlotStatus {
	out := make([]SlotStatus, len(s.workers))
	for i, w := range s.workers {
		out[i] = SlotStatus{ID: w.id, Queued: len(w.queue)}
		if slot := s.exec.Slot(i); slot != nil {
			out[i].Served = slot.Served()
		}
	}
	return out
}
