package api

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics is the response of GET /metrics.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	Users         UserMetrics      `json:"users"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client state.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// UserMetrics contains directory statistics.
type UserMetrics struct {
	Total  int `json:"total"`
	Admins int `json:"admins"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// poolStatter is implemented by *database.DB.
type poolStatter interface {
	Stats() sql.DBStats
}

// handleMetrics returns process, directory and connection statistics. Admin only.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.mqtt != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.HealthCheck(ctx) == nil}
		cancel()
	}

	users, err := s.users.List(r.Context())
	if err != nil {
		s.writeFailure(w, "failed to collect user metrics", err)
		return
	}
	metrics.Users.Total = len(users)
	for i := range users {
		if users[i].Rank.IsAdmin() {
			metrics.Users.Admins++
		}
	}

	if st, ok := s.db.(poolStatter); ok {
		dbStats := st.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
