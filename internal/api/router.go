package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fhz2mqtt/internal/bridge"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestID, s.withAccessLog, s.withRecovery, s.withBodyLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/commands", s.handleListCommands)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{houseCode}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/commands/{command}", s.handleSetCommand)
			})
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status      string                   `json:"status"`
	Version     string                   `json:"version"`
	Transceiver bridge.TransceiverStatus `json:"transceiver"`
	MQTT        MQTTMetrics              `json:"mqtt"`
}

// handleHealth returns the bridge health. A degraded bridge still answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.bridge.Health()

	resp := HealthResponse{
		Status:  string(h.Status),
		Version: s.version,
		MQTT:    MQTTMetrics{Connected: s.bridge.MQTTConnected()},
	}
	if h.Transceiver != nil {
		resp.Transceiver = *h.Transceiver
	}
	respond(w, http.StatusOK, resp)
}
