package cache

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"github.com/objectfs/storenode/internal/backend"
	"github.com/objectfs/storenode/internal/monitor"
	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/types"
	"github.com/objectfs/storenode/pkg/utils"
)

// Manager creates backend caches and reports their statistics.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	caches map[int]*LRU
}

// NewManager creates a cache manager.
func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	if cfg.MaxEntries <= 0 {
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "cache max_entries must be positive, got %d", cfg.MaxEntries)
	}
	if cfg.TTL < 0 {
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "cache ttl cannot be negative")
	}
	return &Manager{
		cfg:    cfg,
		logger: utils.Component(logger, "cache"),
		caches: make(map[int]*LRU),
	}, nil
}

// Init creates the cache of h.
func (m *Manager) Init(h *backend.Handle) (backend.Cache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.caches[h.ID]; ok {
		return nil, errors.Newf(errors.ErrCodeConflict, "backend %d already has a cache", h.ID)
	}

	c := NewLRU(h.ID, m.cfg)
	c.onClose = m.forget
	m.caches[h.ID] = c
	m.logger.Debug("cache initialized", "backend", h.ID, "max_entries", m.cfg.MaxEntries, "ttl", m.cfg.TTL.String())
	return c, nil
}

func (m *Manager) forget(id int, c *LRU) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.caches[id] == c {
		delete(m.caches, id)
	}
}

// Stats returns the statistics of every live cache keyed by backend.
func (m *Manager) Stats() map[int]types.CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]types.CacheStats, len(m.caches))
	for id, c := range m.caches {
		out[id] = c.Stats()
	}
	return out
}

// JSON implements monitor.Provider.
func (m *Manager) JSON() ([]byte, error) {
	stats := m.Stats()
	out := make(map[string]types.CacheStats, len(stats))
	for id, s := range stats {
		out[strconv.Itoa(id)] = s
	}
	return json.Marshal(out)
}

// Stop implements monitor.Provider.
func (m *Manager) Stop() {}

// CheckCategory implements monitor.Provider.
func (m *Manager) CheckCategory(c monitor.Category) bool {
	return c == monitor.CategoryCache || c == monitor.CategoryAll
}
