package backend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/objectfs/storenode/internal/identity"
	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/utils"
)

// ManagerConfig wires a Manager to its collaborators.
type ManagerConfig struct {
	Backends []*Info
	Registry *Registry
	Cache    CacheInitializer
	Monitor  StatMonitor
	Pools    PoolStarter
	Identity IdentitySource
	Routes   RouteTable
	Recorder Recorder
	Logger   *slog.Logger
}

// undo reverses one completed stage.
type undo struct {
	stage Stage
	fn    func(ctx context.Context) error
}

// Manager brings backends up and tears them down.
type Manager struct {
	infos    []*Info
	registry *Registry
	cache    CacheInitializer
	monitor  StatMonitor
	pools    PoolStarter
	identity IdentitySource
	routes   RouteTable
	recorder Recorder
	logger   *slog.Logger

	mu      sync.Mutex
	states  []Stage
	busy    []bool
	running [][]undo
}

// NewManager creates a manager for cfg.Backends. Backend i must have ID i.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	for i, info := range cfg.Backends {
		if info == nil || info.ID != i {
			return nil, errors.Config(errors.ErrCodeInvalidBackend, "backend descriptor %d is missing or misnumbered", i)
		}
	}
	switch {
	case cfg.Cache == nil:
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "cache initializer is required")
	case cfg.Monitor == nil:
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "stat monitor is required")
	case cfg.Pools == nil:
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "pool starter is required")
	case cfg.Identity == nil:
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "identity source is required")
	case cfg.Routes == nil:
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "route table is required")
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry(len(cfg.Backends))
	}
	n := len(cfg.Backends)
	return &Manager{
		infos:    cfg.Backends,
		registry: registry,
		cache:    cfg.Cache,
		monitor:  cfg.Monitor,
		pools:    cfg.Pools,
		identity: cfg.Identity,
		routes:   cfg.Routes,
		recorder: cfg.Recorder,
		logger:   utils.Component(cfg.Logger, "backend"),
		states:   make([]Stage, n),
		busy:     make([]bool, n),
		running:  make([][]undo, n),
	}, nil
}

// Registry returns the table the manager publishes into.
func (m *Manager) Registry() *Registry { return m.registry }

// Len returns the number of configured backends.
func (m *Manager) Len() int { return len(m.infos) }

// Info returns the descriptor of backend id.
func (m *Manager) Info(id int) (*Info, bool) {
	if id < 0 || id >= len(m.infos) {
		return nil, false
	}
	return m.infos[id], true
}

// State returns the last stage backend id completed.
func (m *Manager) State(id int) Stage {
	if id < 0 || id >= len(m.infos) {
		return StageNone
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id]
}

// Init brings backend id up. On failure every completed stage is undone and
// the error of the failing stage is returned.
func (m *Manager) Init(ctx context.Context, id int) error {
	if id < 0 || id >= len(m.infos) {
		err := errors.Config(errors.ErrCodeInvalidBackend, "backend index %d out of range [0, %d)", id, len(m.infos)).
			WithComponent("backend").WithOperation(StageConfigReset.String())
		m.logger.Error("backend bring-up failed", "backend", id, "stage", StageConfigReset.String(), "error", err)
		return err
	}
	if err := m.acquire(id); err != nil {
		return err
	}

	b := &bringup{m: m, id: id, info: m.infos[id], logger: m.logger.With("backend", id)}
	err := b.run(ctx)

	m.mu.Lock()
	m.busy[id] = false
	if err != nil {
		m.states[id] = StageNone
		m.running[id] = nil
	} else {
		m.running[id] = b.undos
	}
	m.mu.Unlock()

	if err == nil && m.recorder != nil {
		m.recorder.SetReady(m.registry.Len())
	}
	return err
}

func (m *Manager) acquire(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.busy[id]:
		return errors.Newf(errors.ErrCodeConflict, "backend %d is changing state", id).WithComponent("backend")
	case m.states[id] == StageReady:
		return errors.Newf(errors.ErrCodeAlreadyStarted, "backend %d is already running", id).WithComponent("backend")
	}
	m.busy[id] = true
	m.states[id] = StageNone
	return nil
}

func (m *Manager) advance(id int, s Stage) {
	m.mu.Lock()
	m.states[id] = s
	m.mu.Unlock()
}

// Stop takes backend id out of the registry and releases what its bring-up
// acquired, in reverse order. A backend that is not published is left alone.
func (m *Manager) Stop(ctx context.Context, id int) error {
	if id < 0 || id >= len(m.infos) {
		return nil
	}

	m.mu.Lock()
	if m.busy[id] {
		m.mu.Unlock()
		return errors.Newf(errors.ErrCodeConflict, "backend %d is changing state", id).WithComponent("backend")
	}
	m.busy[id] = true
	undos := m.running[id]
	m.mu.Unlock()

	h, ok := m.registry.Take(id)
	var err error
	if ok {
		err = unwind(ctx, undos, StagePublished)
	}

	m.mu.Lock()
	m.busy[id] = false
	if ok {
		m.states[id] = StageNone
		m.running[id] = nil
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if m.recorder != nil {
		m.recorder.SetReady(m.registry.Len())
	}
	if err != nil {
		m.logger.Error("backend teardown incomplete", "backend", id, "session", h.Session.String(), "error", err)
		return errors.Newf(errors.ErrCodeInternalError, "backend %d teardown incomplete", id).
			WithComponent("backend").WithOperation("stop").WithCause(err)
	}
	m.logger.Info("backend stopped", "backend", id, "session", h.Session.String(), "uptime", time.Since(h.Started).String())
	return nil
}

// StopAll stops every backend, highest index first.
func (m *Manager) StopAll(ctx context.Context) error {
	var errs error
	for id := len(m.infos) - 1; id >= 0; id-- {
		errs = multierr.Append(errs, m.Stop(ctx, id))
	}
	return errs
}

// unwind runs undos in reverse, skipping the stage named skip.
func unwind(ctx context.Context, undos []undo, skip Stage) error {
	var errs error
	for i := len(undos) - 1; i >= 0; i-- {
		if undos[i].stage == skip {
			continue
		}
		if err := undos[i].fn(ctx); err != nil {
			errs = multierr.Append(errs, errors.Newf(errors.ErrCodeInternalError, "undo %s", undos[i].stage).WithCause(err))
		}
	}
	return errs
}

// bringup carries one Init call through its stages.
type bringup struct {
	m      *Manager
	id     int
	info   *Info
	logger *slog.Logger

	cfg    *Config
	handle *Handle
	ids    int
	undos  []undo
}

func (b *bringup) run(ctx context.Context) error {
	steps := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageConfigReset, b.resetConfig},
		{StageEngineInit, b.initEngine},
		{StageCacheInit, b.initCache},
		{StageStatRegistered, b.registerStat},
		{StageIoPoolStarted, b.startPool},
		{StagePublished, b.publish},
		{StageRouteEnabled, b.enableRoute},
		{StageReady, b.ready},
	}

	for _, step := range steps {
		start := time.Now()
		err := step.fn(ctx)
		if b.m.recorder != nil {
			b.m.recorder.RecordStage(step.stage.String(), time.Since(start), err == nil)
		}
		if err != nil {
			b.logger.Error("backend bring-up failed",
				"stage", step.stage.String(), "status", errors.StatusOf(err), "error", err)
			if rerr := unwind(ctx, b.undos, StageNone); rerr != nil {
				b.logger.Warn("rollback incomplete", "stage", step.stage.String(), "error", rerr)
			}
			b.undos = nil
			return err
		}
		b.m.advance(b.id, step.stage)
	}
	return nil
}

func (b *bringup) push(s Stage, fn func(context.Context) error) {
	b.undos = append(b.undos, undo{stage: s, fn: fn})
}

func (b *bringup) fail(code errors.ErrorCode, s Stage, cause error, format string, args ...interface{}) error {
	return errors.Collaborator(code, cause, format, args...).
		WithComponent("backend").WithOperation(s.String()).
		WithContext("type", b.info.Type)
}

func (b *bringup) resetConfig(context.Context) error {
	b.cfg = b.info.Reset()
	if b.cfg.Log == nil {
		b.cfg.Log = b.logger
	}
	return nil
}

func (b *bringup) initEngine(context.Context) error {
	b.handle = &Handle{
		ID:      b.id,
		Session: uuid.New(),
		Group:   b.info.Group,
		IO:      b.m.registry,
		Config:  b.cfg,
		Started: time.Now(),
	}
	if err := b.info.apply(b.cfg); err != nil {
		return err
	}

	engine, err := b.info.Driver.Init(b.cfg)
	if err == nil && engine == nil {
		err = errors.NewError(errors.ErrCodeInternalError, "driver returned no engine")
	}
	if err != nil {
		return errors.Engine(errors.StatusOf(err), err, "backend %d: %s engine init failed", b.id, b.info.Type).
			WithComponent("backend").WithOperation(StageEngineInit.String())
	}
	b.handle.Engine = engine
	b.push(StageEngineInit, func(context.Context) error { return engine.Close() })
	return nil
}

func (b *bringup) initCache(context.Context) error {
	c, err := b.m.cache.Init(b.handle)
	if err != nil {
		return b.fail(errors.ErrCodeCacheInit, StageCacheInit, err, "backend %d: cache init failed", b.id)
	}
	b.handle.Cache = c
	b.push(StageCacheInit, func(context.Context) error { return c.Close() })
	return nil
}

func (b *bringup) registerStat(context.Context) error {
	name := ProviderName(b.id)
	if err := b.m.monitor.AddProvider(name, NewStatProvider(b.handle)); err != nil {
		return b.fail(errors.ErrCodeStatProvider, StageStatRegistered, err, "backend %d: stat provider registration failed", b.id)
	}
	b.push(StageStatRegistered, func(context.Context) error {
		b.m.monitor.RemoveProvider(name)
		return nil
	})
	return nil
}

func (b *bringup) startPool(context.Context) error {
	pool, err := b.m.pools.Start(b.handle)
	if err != nil {
		return b.fail(errors.ErrCodeIOPool, StageIoPoolStarted, err, "backend %d: io pool start failed", b.id)
	}
	b.handle.Pool = pool
	b.push(StageIoPoolStarted, pool.Stop)
	return nil
}

func (b *bringup) publish(context.Context) error {
	h := b.handle
	if err := b.m.registry.Publish(b.id, h); err != nil {
		return err
	}
	b.push(StagePublished, func(context.Context) error {
		b.m.registry.takeIf(b.id, h)
		return nil
	})
	return nil
}

func (b *bringup) enableRoute(ctx context.Context) error {
	res, err := b.m.identity.Provision(ctx, identity.Request{
		HistoryDir:  b.cfg.HistoryDir,
		StorageFree: b.cfg.StorageFree,
		BackendID:   b.id,
	})
	if err != nil {
		return err
	}
	if err := b.m.routes.EnableBackend(b.info.Group, b.id, res.IDs); err != nil {
		return b.fail(errors.ErrCodeRouteEnable, StageRouteEnabled, err, "backend %d: route enable failed", b.id)
	}
	b.ids = len(res.IDs)
	b.push(StageRouteEnabled, func(context.Context) error {
		b.m.routes.DisableBackend(b.id)
		return nil
	})
	return nil
}

func (b *bringup) ready(context.Context) error {
	b.logger.Info("backend ready",
		"type", b.info.Type,
		"group", b.info.Group,
		"session", b.handle.Session.String(),
		"ids", b.ids,
		"storage_free", utils.FormatBytes(int64(b.cfg.StorageFree)))
	return nil
}
