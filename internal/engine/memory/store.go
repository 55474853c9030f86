// Package memory is an in-memory storage engine. Values are copied on the
// way in and out, and the total value size is bounded by the configured
// capacity.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/objectfs/storenode/internal/backend"
	"github.com/objectfs/storenode/internal/engine"
	"github.com/objectfs/storenode/pkg/errors"
)

// Name is the backend type of this driver.
const Name = "memory"

// Settings are the options of a memory backend.
type Settings struct {
	Capacity int64
	ReadOnly bool
}

// Driver creates memory engines.
type Driver struct{}

// NewDriver returns the memory driver.
func NewDriver() *Driver {
	return &Driver{}
}

// Name returns "memory".
func (Driver) Name() string { return Name }

// Options declares capacity (bytes) and read_only.
func (Driver) Options() []backend.OptionEntry {
	return []backend.OptionEntry{
		engine.SizeOption("capacity", "100GiB", func(s *Settings, n int64) { s.Capacity = n }),
		engine.BoolOption("read_only", "false", func(s *Settings, b bool) { s.ReadOnly = b }),
	}
}

// NewData returns empty settings.
func (Driver) NewData() any {
	return &Settings{}
}

// Init opens an empty store. The whole capacity is reported as free.
func (Driver) Init(cfg *backend.Config) (backend.Engine, error) {
	s, err := engine.Data[Settings](cfg)
	if err != nil {
		return nil, err
	}
	if s.Capacity <= 0 {
		return nil, errors.Config(errors.ErrCodeInvalidOption, "backend %d: capacity must be positive", cfg.BackendID)
	}
	cfg.StorageFree = uint64(s.Capacity)
	return NewStore(s.Capacity, s.ReadOnly), nil
}

// Store is a map-backed engine.
type Store struct {
	mu       sync.RWMutex
	data     map[string][]byte
	bytes    int64
	capacity int64
	readOnly bool
	closed   atomic.Bool

	stats struct {
		reads   atomic.Int64
		writes  atomic.Int64
		deletes atomic.Int64
		misses  atomic.Int64
	}
}

// NewStore creates an empty store holding at most capacity value bytes.
func NewStore(capacity int64, readOnly bool) *Store {
	return &Store{
		data:     make(map[string][]byte),
		capacity: capacity,
		readOnly: readOnly,
	}
}

// Stats is the JSON statistics document of a store.
type Stats struct {
	Keys     int   `json:"keys"`
	Bytes    int64 `json:"bytes"`
	Capacity int64 `json:"capacity"`
	Reads    int64 `json:"reads"`
	Writes   int64 `json:"writes"`
	Deletes  int64 `json:"deletes"`
	Misses   int64 `json:"misses"`
}

// Stats returns a snapshot of the store counters.
func (m *Store) Stats() Stats {
	m.mu.RLock()
	keys, bytes := len(m.data), m.bytes
	m.mu.RUnlock()

	return Stats{
		Keys:     keys,
		Bytes:    bytes,
		Capacity: m.capacity,
		Reads:    m.stats.reads.Load(),
		Writes:   m.stats.writes.Load(),
		Deletes:  m.stats.deletes.Load(),
		Misses:   m.stats.misses.Load(),
	}
}

// StatJSON renders Stats.
func (m *Store) StatJSON() ([]byte, error) {
	return json.Marshal(m.Stats())
}

// Command executes cmd against the map.
func (m *Store) Command(ctx context.Context, cmd *backend.Command) (*backend.Reply, error) {
	if m.closed.Load() {
		return nil, errors.NewError(errors.ErrCodeNotStarted, "memory store is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(cmd.Key) == 0 {
		return nil, engine.BadCommand(cmd, "empty key")
	}

	switch cmd.Op {
	case backend.OpRead:
		return m.get(cmd.Key)
	case backend.OpWrite:
		if m.readOnly {
			return nil, engine.BadCommand(cmd, "store is read-only")
		}
		return &backend.Reply{}, m.put(cmd.Key, cmd.Value)
	case backend.OpDelete:
		if m.readOnly {
			return nil, engine.BadCommand(cmd, "store is read-only")
		}
		m.remove(cmd.Key)
		return &backend.Reply{}, nil
	default:
		return nil, engine.BadCommand(cmd, "unsupported operation")
	}
}

func (m *Store) get(key []byte) (*backend.Reply, error) {
	m.stats.reads.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[string(key)]
	if !ok {
		m.stats.misses.Add(1)
		return nil, engine.NotFound(key)
	}

	// Return a copy to prevent external modification
	out := make([]byte, len(value))
	copy(out, value)
	return &backend.Reply{Value: out}, nil
}

func (m *Store) put(key, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	old := int64(len(m.data[string(key)]))
	if m.bytes-old+int64(len(stored)) > m.capacity {
		return errors.Resource("memory store full: %d of %d bytes used", m.bytes, m.capacity)
	}
	m.data[string(key)] = stored
	m.bytes += int64(len(stored)) - old
	m.stats.writes.Add(1)
	return nil
}

func (m *Store) remove(key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[string(key)]; ok {
		m.bytes -= int64(len(old))
		delete(m.data, string(key))
	}
	m.stats.deletes.Add(1)
}

// Close drops the contents. Later commands fail.
func (m *Store) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.mu.Lock()
	m.data = nil
	m.bytes = 0
	m.mu.Unlock()
	return nil
}

var _ backend.Engine = (*Store)(nil)
var _ backend.Driver = Driver{}
