package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics is the body of GET /metrics.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	WebSocket     WSMetrics          `json:"websocket"`
	MQTT          MQTTMetrics        `json:"mqtt"`
	Integrations  IntegrationMetrics `json:"integrations"`
	Database      DatabaseMetrics    `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
	LastGCSeconds float64 `json:"last_gc_seconds_ago,omitempty"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
	CachedStates     int `json:"cached_states"`
}

// MQTTMetrics reports the broker connection.
type MQTTMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// IntegrationMetrics summarises domains, entries and open flows.
type IntegrationMetrics struct {
	Domains       int                      `json:"domains"`
	LoadedEntries int                      `json:"loaded_entries"`
	OpenFlows     int                      `json:"open_flows"`
	ByDomain      map[string]DomainMetrics `json:"by_domain"`
}

// DomainMetrics counts the entries of one domain.
type DomainMetrics struct {
	Stored    int `json:"stored"`
	Loaded    int `json:"loaded"`
	Available int `json:"available"`
}

// DatabaseMetrics contains connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	WaitCount       int64 `json:"wait_count"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	now := time.Now()

	m := SystemMetrics{
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(now.Sub(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:  runtime.NumGoroutine(),
			HeapAllocMB: float64(mem.HeapAlloc) / (1 << 20),
			NumGC:       mem.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
		Integrations: IntegrationMetrics{
			LoadedEntries: s.integrations.LoadedCount(),
			OpenFlows:     len(s.flows.List()),
			ByDomain:      make(map[string]DomainMetrics),
		},
	}
	if mem.LastGC > 0 {
		m.Runtime.LastGCSeconds = now.Sub(time.Unix(0, int64(mem.LastGC))).Seconds() //nolint:gosec // Nanoseconds since epoch fit in int64
	}

	for _, in := range s.integrations.Integrations() {
		m.Integrations.ByDomain[in.Domain] = DomainMetrics{}
	}
	m.Integrations.Domains = len(m.Integrations.ByDomain)

	if entries, err := s.entries.List(r.Context()); err != nil {
		s.logger.Warn("metrics: listing entries failed", "error", err)
	} else {
		for _, e := range entries {
			d := m.Integrations.ByDomain[e.Domain]
			d.Stored++
			if s.integrations.Loaded(e.ID) {
				d.Loaded++
			}
			m.Integrations.ByDomain[e.Domain] = d
		}
	}

	states := s.hub.States(entryFilter{all: true})
	m.WebSocket.CachedStates = len(states)
	for _, p := range states {
		if d, ok := m.Integrations.ByDomain[p.Domain]; ok && p.Available {
			d.Available++
			m.Integrations.ByDomain[p.Domain] = d
		}
	}

	if s.mqtt != nil {
		m.MQTT = MQTTMetrics{Enabled: true, Connected: s.mqtt.IsConnected()}
	}
	if s.db != nil {
		st := s.db.Stats()
		m.Database = DatabaseMetrics{OpenConnections: st.OpenConnections, InUse: st.InUse, WaitCount: st.WaitCount}
	}

	writeJSON(w, http.StatusOK, m)
}
