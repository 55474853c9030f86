package types

import (
	"time"
)

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Size        int64   `json:"size"`
	Capacity    int64   `json:"capacity"`
	HitRate     float64 `json:"hit_rate"`
	Utilization float64 `json:"utilization"`
}

// Finalize derives the ratios from the counters.
func (s *CacheStats) Finalize() {
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	if s.Capacity > 0 {
		s.Utilization = float64(s.Size) / float64(s.Capacity)
	}
}

// PoolStats represents I/O worker pool statistics
type PoolStats struct {
	Workers    int    `json:"workers"`
	QueueDepth int    `json:"queue_depth"`
	Queued     int    `json:"queued"`
	Submitted  uint64 `json:"submitted"`
	Completed  uint64 `json:"completed"`
	Failed     uint64 `json:"failed"`
	CacheHits  uint64 `json:"cache_hits"`
}

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status    string            `json:"status"`
	LastCheck time.Time         `json:"last_check"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// BackendStatus describes one configured backend
type BackendStatus struct {
	ID      int       `json:"id"`
	Type    string    `json:"type"`
	Group   uint32    `json:"group"`
	Stage   string    `json:"stage"`
	Session string    `json:"session,omitempty"`
	Started time.Time `json:"started,omitempty"`
}
