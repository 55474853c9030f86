package backend

import (
	"context"
	"sort"
	"sync"

	"github.com/objectfs/storenode/pkg/errors"
)

// Op is an engine command.
type Op uint8

const (
	OpRead Op = iota + 1
	OpWrite
	OpDelete
)

// String returns the command name.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Command is a request dispatched to an engine.
type Command struct {
	Op    Op
	Key   []byte
	Value []byte
}

// Reply is an engine's answer to a Command.
type Reply struct {
	Value []byte
}

// Engine is the capability set every storage engine exposes to the node.
type Engine interface {
	// StatJSON returns the engine statistics as a JSON document.
	StatJSON() ([]byte, error)
	// Command executes cmd. A missing key is reported with ErrCodeNotFound.
	Command(ctx context.Context, cmd *Command) (*Reply, error)
	Close() error
}

// Driver creates engines of one type.
type Driver interface {
	Name() string
	Options() []OptionEntry
	// NewData returns the zero settings that option callbacks fill in.
	NewData() any
	// Init opens an engine for cfg and records cfg.StorageFree.
	Init(cfg *Config) (Engine, error)
}

// Drivers is a table of drivers keyed by name.
type Drivers struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewDrivers creates a table holding ds.
func NewDrivers(ds ...Driver) *Drivers {
	t := &Drivers{drivers: make(map[string]Driver)}
	for _, d := range ds {
		_ = t.Register(d)
	}
	return t
}

// Register adds d. Registering a name twice is a conflict.
func (t *Drivers) Register(d Driver) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.drivers[d.Name()]; ok {
		return errors.Newf(errors.ErrCodeConflict, "driver '%s' already registered", d.Name())
	}
	t.drivers[d.Name()] = d
	return nil
}

// Lookup returns the driver called name.
func (t *Drivers) Lookup(name string) (Driver, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.drivers[name]
	if !ok {
		return nil, errors.Config(errors.ErrCodeUnknownDriver, "unknown backend type '%s'", name)
	}
	return d, nil
}

// Names returns the registered driver names, sorted.
func (t *Drivers) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.drivers))
	for name := range t.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
