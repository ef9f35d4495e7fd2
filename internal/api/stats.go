package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/fhz2mqtt/internal/bridge"
)

const bytesPerMiB = 1 << 20

// StatsResponse is the body of GET /api/v1/stats.
type StatsResponse struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Bridge        bridge.Statistics `json:"bridge"`
	Transceiver   TransceiverInfo   `json:"transceiver"`
	MQTT          MQTTMetrics       `json:"mqtt"`
	Runtime       RuntimeMetrics    `json:"runtime"`
	WebSocket     HubStats          `json:"websocket"`
	Database      *DatabaseMetrics  `json:"database,omitempty"`
}

// TransceiverInfo reports whether the serial port is open.
type TransceiverInfo struct {
	Connected bool `json:"connected"`
}

// MQTTMetrics reports the broker link.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// RuntimeMetrics is a snapshot of the Go runtime.
type RuntimeMetrics struct {
	Goroutines   int     `json:"goroutines"`
	HeapAllocMB  float64 `json:"heap_alloc_mb"`
	TotalAllocMB float64 `json:"total_alloc_mb"`
	GCCycles     uint32  `json:"gc_cycles"`
}

// DatabaseMetrics describes the inventory database and its pool.
type DatabaseMetrics struct {
	Schema      string  `json:"schema_version,omitempty"`
	OpenConns   int     `json:"open_connections"`
	InUse       int     `json:"in_use"`
	WaitCount   int64   `json:"wait_count"`
	WaitSeconds float64 `json:"wait_seconds"`
}

func runtimeMetrics() RuntimeMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeMetrics{
		Goroutines:   runtime.NumGoroutine(),
		HeapAllocMB:  float64(m.HeapAlloc) / bytesPerMiB,
		TotalAllocMB: float64(m.TotalAlloc) / bytesPerMiB,
		GCCycles:     m.NumGC,
	}
}

// handleStats reports bridge counters alongside process, websocket and
// database figures.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Bridge:        s.bridge.Stats(),
		Transceiver:   TransceiverInfo{Connected: s.bridge.IsConnected()},
		MQTT:          MQTTMetrics{Connected: s.bridge.MQTTConnected()},
		Runtime:       runtimeMetrics(),
	}
	if s.hub != nil {
		resp.WebSocket = s.hub.Stats()
	}

	if s.db != nil {
		pool := s.db.Stats()
		resp.Database = &DatabaseMetrics{
			OpenConns:   pool.OpenConnections,
			InUse:       pool.InUse,
			WaitCount:   pool.WaitCount,
			WaitSeconds: pool.WaitDuration.Seconds(),
		}
		if status, err := s.db.MigrationStatus(r.Context()); err == nil {
			resp.Database.Schema = status.Version()
		} else {
			s.logger.Warn("reading schema version", "error", err)
		}
	}

	respond(w, http.StatusOK, resp)
}
