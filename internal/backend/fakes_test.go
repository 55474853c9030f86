package backend

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/objectfs/storenode/pkg/errors"
)

type fakeSettings struct {
	Capacity int
	Sync     bool
}

type fakeEngine struct {
	mu       sync.Mutex
	data     map[string][]byte
	closed   int
	closeErr error
}

func (e *fakeEngine) StatJSON() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.Marshal(map[string]int{"keys": len(e.data)})
}

func (e *fakeEngine) Command(_ context.Context, cmd *Command) (*Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch cmd.Op {
	case OpWrite:
		e.data[string(cmd.Key)] = append([]byte(nil), cmd.Value...)
		return &Reply{}, nil
	case OpRead:
		v, ok := e.data[string(cmd.Key)]
		if !ok {
			return nil, errors.NewError(errors.ErrCodeNotFound, "no such key")
		}
		return &Reply{Value: v}, nil
	default:
		return nil, errors.NewError(errors.ErrCodeEngineCommand, "unsupported")
	}
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return e.closeErr
}

type fakeDriver struct {
	mu      sync.Mutex
	initErr error
	free    uint64
	inits   int
	engines []*fakeEngine
	seen    []*Config
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Options() []OptionEntry {
	return []OptionEntry{
		{Key: "capacity", Default: "16", Callback: func(cfg *Config, _, value string) error {
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			cfg.Data.(*fakeSettings).Capacity = n
			return nil
		}},
		{Key: "sync", Default: "false", Callback: func(cfg *Config, _, value string) error {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			cfg.Data.(*fakeSettings).Sync = b
			return nil
		}},
	}
}

func (d *fakeDriver) NewData() any { return &fakeSettings{} }

func (d *fakeDriver) Init(cfg *Config) (Engine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inits++
	d.seen = append(d.seen, cfg)
	if d.initErr != nil {
		return nil, d.initErr
	}
	cfg.StorageFree = d.free
	e := &fakeEngine{data: make(map[string][]byte)}
	d.engines = append(d.engines, e)
	return e, nil
}

type fakeCache struct {
	mu     sync.Mutex
	closed int
}

func (c *fakeCache) Get(string) ([]byte, bool) { return nil, false }
func (c *fakeCache) Add(string, []byte)        {}
func (c *fakeCache) Remove(string)             {}
func (c *fakeCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

type fakePool struct {
	h       *Handle
	mu      sync.Mutex
	stopped int
}

func (p *fakePool) Submit(ctx context.Context, cmd *Command) (*Reply, error) {
	return p.h.Engine.Command(ctx, cmd)
}

func (p *fakePool) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
	return nil
}
