package backend

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cache is the per-backend read cache.
type Cache interface {
	Get(key string) ([]byte, bool)
	Add(key string, value []byte)
	Remove(key string)
	Close() error
}

// Pool is the per-backend I/O worker pool.
type Pool interface {
	Submit(ctx context.Context, cmd *Command) (*Reply, error)
	Stop(ctx context.Context) error
}

// Handle is a running backend. Its fields are set before it is published and
// are not modified while it sits in the Registry.
type Handle struct {
	ID      int
	Session uuid.UUID
	Group   uint32
	IO      *Registry
	Config  *Config
	Engine  Engine
	Cache   Cache
	Pool    Pool
	Started time.Time
}

// Submit sends cmd through the backend's worker pool.
func (h *Handle) Submit(ctx context.Context, cmd *Command) (*Reply, error) {
	return h.Pool.Submit(ctx, cmd)
}
