package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	// API v1 routes (read-only; all mutation goes through MQTT)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleGetState)

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleListHistoryFields)
			r.Get("/{field}", s.handleGetFieldHistory)
		})
	})

	return r
}

// handleHealth returns the bridge health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	brokerUp := false
	if s.broker != nil {
		brokerUp = s.broker.IsConnected()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"version":           s.version,
		"speaker_connected": s.speaker.Connected(),
		"broker_connected":  brokerUp,
		"history_enabled":   s.history != nil,
	})
}
