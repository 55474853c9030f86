package backend

import (
	"context"
	"time"

	"github.com/objectfs/storenode/internal/identity"
	"github.com/objectfs/storenode/internal/monitor"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

// CacheInitializer creates the read cache of a backend.
type CacheInitializer interface {
	Init(h *Handle) (Cache, error)
}

// StatMonitor is the node's statistics provider table.
type StatMonitor interface {
	AddProvider(name string, p monitor.Provider) error
	RemoveProvider(name string)
}

// PoolStarter starts the I/O worker pool of a backend.
type PoolStarter interface {
	Start(h *Handle) (Pool, error)
}

// IdentitySource provisions the identity set of a backend.
type IdentitySource interface {
	Provision(ctx context.Context, req identity.Request) (identity.Result, error)
}

// RouteTable is the cluster route list.
type RouteTable interface {
	EnableBackend(group uint32, backendID int, ids identity.Set) error
	DisableBackend(backendID int) int
}

// Recorder observes bring-up progress.
type Recorder interface {
	RecordStage(stage string, d time.Duration, ok bool)
	SetReady(n int)
}
