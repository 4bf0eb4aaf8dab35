package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-lights/internal/device"
)

// SystemStatus is the body of GET /status.
type SystemStatus struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeStatus   `json:"runtime"`
	WebSocket     WSStatus        `json:"websocket"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Devices       device.Stats    `json:"devices"`
	Schedules     ScheduleStatus  `json:"schedules"`
	Database      *DatabaseStatus `json:"database,omitempty"`
}

// RuntimeStatus contains Go runtime statistics.
type RuntimeStatus struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSStatus contains WebSocket hub statistics.
type WSStatus struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTStatus reports the broker connection.
type MQTTStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// ScheduleStatus counts schedules.
type ScheduleStatus struct {
	Total   int `json:"total"`
	Enabled int `json:"enabled"`
}

// DatabaseStatus contains connection pool statistics.
type DatabaseStatus struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

func (s *Server) handleStatus(r *http.Request) Result {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Runtime: RuntimeStatus{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / 1024 / 1024,
			NumGC:         mem.NumGC,
		},
		WebSocket: WSStatus{ConnectedClients: s.hub.ClientCount()},
		Devices:   s.registry.Stats(),
		Schedules: ScheduleStatus{
			Total:   len(s.schedules.List(r.Context())),
			Enabled: len(s.schedules.Enabled(r.Context())),
		},
	}

	if s.mqtt != nil {
		status.MQTT = MQTTStatus{Enabled: true, Connected: s.mqtt.IsConnected()}
	}
	if s.db != nil {
		st := s.db.Stats()
		status.Database = &DatabaseStatus{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}
	return ok(status)
}
