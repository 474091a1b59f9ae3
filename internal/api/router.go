package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const defaultWSPath = "/api/v1/ws"

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/slots", func(r chi.Router) {
			r.Get("/", s.handleListSlots)
			r.Get("/{id}", s.handleGetSlot)
			r.Put("/{id}", s.handleSetSlot)
		})
	})

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}
	r.Get(wsPath, s.handleWebSocket)

	return r
}

// handleHealth reports "degraded" while the projector is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":            "ok",
		"device_id":         s.deviceID,
		"version":           s.version,
		"websocket_clients": s.hub.ClientCount(),
	}
	if s.session != nil {
		snap := s.session.Snapshot()
		resp["session"] = snap
		if !snap.Connected {
			resp["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
