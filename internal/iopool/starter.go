package iopool

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"github.com/objectfs/storenode/internal/backend"
	"github.com/objectfs/storenode/internal/monitor"
	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/types"
)

// Starter starts backend pools and reports their statistics.
type Starter struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	pools map[int]*Pool
}

// NewStarter creates a pool starter.
func NewStarter(cfg Config, logger *slog.Logger) *Starter {
	return &Starter{cfg: cfg, logger: logger, pools: make(map[int]*Pool)}
}

// Start starts the pool of h. The returned pool deregisters itself on Stop.
func (s *Starter) Start(h *backend.Handle) (backend.Pool, error) {
	if h.Engine == nil {
		return nil, errors.Newf(errors.ErrCodeIOPool, "backend %d has no engine", h.ID)
	}
	p := New(h, s.cfg, s.logger)
	if err := p.Start(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.pools[h.ID] = p
	s.mu.Unlock()
	return &tracked{Pool: p, s: s}, nil
}

// Pool returns the running pool of backend id.
func (s *Starter) Pool(id int) (*Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[id]
	return p, ok
}

// JSON implements monitor.Provider.
func (s *Starter) JSON() ([]byte, error) {
	s.mu.RLock()
	out := make(map[string]types.PoolStats, len(s.pools))
	for id, p := range s.pools {
		out[strconv.Itoa(id)] = p.Stats()
	}
	s.mu.RUnlock()
	return json.Marshal(out)
}

// Stop implements monitor.Provider.
func (s *Starter) Stop() {}

// CheckCategory implements monitor.Provider.
func (s *Starter) CheckCategory(c monitor.Category) bool {
	return c == monitor.CategoryIO || c == monitor.CategoryAll
}

type tracked struct {
	*Pool
	s *Starter
}

func (t *tracked) Stop(ctx context.Context) error {
	t.s.mu.Lock()
	if t.s.pools[t.id] == t.Pool {
		delete(t.s.pools, t.id)
	}
	t.s.mu.Unlock()
	return t.Pool.Stop(ctx)
}
