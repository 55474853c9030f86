package node

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/objectfs/storenode/internal/backend"
	"github.com/objectfs/storenode/internal/cache"
	"github.com/objectfs/storenode/internal/circuit"
	"github.com/objectfs/storenode/internal/config"
	"github.com/objectfs/storenode/internal/engine/badger"
	"github.com/objectfs/storenode/internal/engine/memory"
	"github.com/objectfs/storenode/internal/identity"
	"github.com/objectfs/storenode/internal/idsync"
	"github.com/objectfs/storenode/internal/iopool"
	"github.com/objectfs/storenode/internal/metrics"
	"github.com/objectfs/storenode/internal/monitor"
	"github.com/objectfs/storenode/internal/route"
	"github.com/objectfs/storenode/pkg/api"
	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/health"
	"github.com/objectfs/storenode/pkg/retry"
	"github.com/objectfs/storenode/pkg/types"
	"github.com/objectfs/storenode/pkg/utils"
)

// Option customizes a Node.
type Option func(*options)

type options struct {
	drivers    []backend.Driver
	objectAPI  idsync.ObjectAPI
	httpClient *http.Client
	health     health.TrackerConfig
}

// WithDrivers registers extra engine drivers next to the built-in ones.
func WithDrivers(ds ...backend.Driver) Option {
	return func(o *options) { o.drivers = append(o.drivers, ds...) }
}

// WithObjectAPI replaces the S3 client used by the s3 sync mode.
func WithObjectAPI(api idsync.ObjectAPI) Option {
	return func(o *options) { o.objectAPI = api }
}

// WithHTTPClient replaces the client used by the http sync mode.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithHealthConfig overrides the health tracker thresholds.
func WithHealthConfig(cfg health.TrackerConfig) Option {
	return func(o *options) { o.health = cfg }
}

// Node owns the backends of one storage node and the services around them.
type Node struct {
	cfg    *config.Configuration
	logger *slog.Logger

	drivers     *backend.Drivers
	manager     *backend.Manager
	registry    *backend.Registry
	routes      *route.Table
	transform   identity.Transform
	collector   *metrics.Collector
	monitor     *monitor.Monitor
	caches      *cache.Manager
	pools       *iopool.Starter
	provisioner *identity.Provisioner
	tracker     *health.Tracker
	server      *api.Server
	store       *idsync.Store

	mu           sync.Mutex
	started      bool
	cancelChecks context.CancelFunc
	checksDone   chan struct{}
}

// New assembles a node from cfg. It validates cfg, resolves every backend's
// driver and options, and wires the collaborators. Nothing is started.
func New(ctx context.Context, cfg *config.Configuration, logger *slog.Logger, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{health: health.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = utils.Discard()
	}

	n := &Node{
		cfg:       cfg,
		logger:    utils.Component(logger, "node"),
		transform: identity.NewBlake3Transform(cfg.Node.TransformKey),
		routes:    route.NewTable(logger),
	}

	n.drivers = backend.NewDrivers(memory.NewDriver(), badger.NewDriver())
	for _, d := range o.drivers {
		if err := n.drivers.Register(d); err != nil {
			return nil, err
		}
	}

	var err error
	n.collector, err = metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Monitoring.Enabled,
		Path:      cfg.Monitoring.Path,
		Labels:    cfg.Monitoring.CustomLabels,
		Namespace: cfg.Monitoring.Namespace,
	})
	if err != nil {
		return nil, err
	}
	n.monitor, err = monitor.New(cfg.Monitoring.Namespace, n.collector.Registerer(), logger)
	if err != nil {
		return nil, err
	}

	maxValue, err := utils.ParseBytes(cfg.Cache.MaxValueSize)
	if err != nil {
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "invalid cache max_value_size '%s': %v", cfg.Cache.MaxValueSize, err)
	}
	n.caches, err = cache.NewManager(cache.Config{
		MaxEntries:   cfg.Cache.MaxEntries,
		TTL:          cfg.Cache.TTL,
		MaxValueSize: maxValue,
	}, logger)
	if err != nil {
		return nil, err
	}
	n.pools = iopool.NewStarter(iopool.Config{Workers: cfg.IOPool.Workers, QueueDepth: cfg.IOPool.QueueDepth}, logger)
	if err := n.monitor.AddProvider("cache", n.caches); err != nil {
		return nil, err
	}
	if err := n.monitor.AddProvider("io", n.pools); err != nil {
		return nil, err
	}

	syncer, err := n.newSyncer(ctx, o, logger)
	if err != nil {
		return nil, err
	}
	n.provisioner = identity.NewProvisioner(identity.ProvisionerConfig{
		Transform:         n.transform,
		Syncer:            syncer,
		KeepsIDsInCluster: cfg.Node.KeepsIDsInCluster,
		Peers:             cfg.Node.Peers,
		Logger:            logger,
		Recorder:          n.collector,
	})

	backends := cfg.SortedBackends()
	infos := make([]*backend.Info, 0, len(backends))
	for _, bc := range backends {
		driver, err := n.drivers.Lookup(bc.Type)
		if err != nil {
			return nil, err
		}
		info, err := backend.NewInfo(bc.ID, bc.Group, bc.History, driver, bc.Options, logger)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	n.registry = backend.NewRegistry(len(infos))
	n.manager, err = backend.NewManager(backend.ManagerConfig{
		Backends: infos,
		Registry: n.registry,
		Cache:    n.caches,
		Monitor:  n.monitor,
		Pools:    n.pools,
		Identity: n.provisioner,
		Routes:   n.routes,
		Recorder: n.collector,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	n.tracker = health.NewTracker(o.health)
	for _, info := range infos {
		n.tracker.RegisterComponent(backend.ProviderName(info.ID))
	}
	n.tracker.AddListener(func(component string, oldState, newState health.HealthState, err error) {
		n.logger.Warn("backend health changed", "component", component,
			"from", oldState.String(), "to", newState.String(), "error", err)
	})

	if cfg.API.Enabled {
		n.server = api.NewServer(api.ServerConfig{
			Address:      cfg.API.ListenAddress,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		}, n.tracker, n, n, logger)
		if n.collector.Enabled() {
			n.server.Mount("GET "+cfg.Monitoring.Path, n.collector.Handler())
		}
		if n.store != nil {
			n.server.Mount(idsync.PathPrefix, n.store)
		}
	}
	return n, nil
}

func (n *Node) newSyncer(ctx context.Context, o options, logger *slog.Logger) (identity.Syncer, error) {
	cfg := n.cfg
	switch cfg.Sync.Mode {
	case config.SyncHTTP:
		store, err := idsync.NewStore(cfg.API.IDStoreDir, logger)
		if err != nil {
			return nil, err
		}
		n.store = store
		hc := idsync.HTTPConfig{
			Node:    cfg.Node.Name,
			Timeout: cfg.Sync.Timeout,
			Retry: retry.Config{
				MaxAttempts:  cfg.Sync.Retry.MaxAttempts,
				InitialDelay: cfg.Sync.Retry.BaseDelay,
				MaxDelay:     cfg.Sync.Retry.MaxDelay,
				Jitter:       retry.DefaultConfig().Jitter,
			},
			Client: o.httpClient,
			Logger: logger,
		}
		if cfg.Sync.Breaker.FailureThreshold > 0 {
			hc.Breaker = &circuit.Config{
				FailureThreshold: uint32(cfg.Sync.Breaker.FailureThreshold),
				Cooldown:         cfg.Sync.Breaker.Cooldown,
			}
		}
		syncer, err := idsync.NewHTTPSyncer(hc)
		if err != nil {
			return nil, err
		}
		if b := syncer.Breakers(); b != nil {
			if err := n.monitor.AddProvider("peers", b); err != nil {
				return nil, err
			}
		}
		return syncer, nil
	case config.SyncS3:
		s3cfg := idsync.S3Config{
			Node:           cfg.Node.Name,
			Bucket:         cfg.Sync.S3.Bucket,
			Region:         cfg.Sync.S3.Region,
			Endpoint:       cfg.Sync.S3.Endpoint,
			Prefix:         cfg.Sync.S3.Prefix,
			ForcePathStyle: cfg.Sync.S3.ForcePathStyle,
			MaxRetries:     cfg.Sync.S3.MaxRetries,
		}
		client := o.objectAPI
		if client == nil {
			c, err := idsync.NewS3Client(ctx, s3cfg)
			if err != nil {
				return nil, err
			}
			client = c
		}
		return idsync.NewS3Syncer(client, s3cfg, logger)
	default:
		return idsync.Nop{}, nil
	}
}

// Start serves the API and brings every backend up concurrently. A backend
// that fails stays down while the others keep running; the failures are
// returned joined.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return errors.NewError(errors.ErrCodeAlreadyStarted, "node already started").WithComponent("node")
	}
	n.started = true
	n.mu.Unlock()

	if n.server != nil {
		if err := n.server.Start(); err != nil {
			n.mu.Lock()
			n.started = false
			n.mu.Unlock()
			return err
		}
	}

	if n.cfg.Node.StartTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.cfg.Node.StartTimeout)
		defer cancel()
	}

	start := time.Now()
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for id := 0; id < n.manager.Len(); id++ {
		g.Go(func() error {
			name := backend.ProviderName(id)
			if err := n.manager.Init(ctx, id); err != nil {
				n.tracker.MarkUnavailable(name, err)
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
				return nil
			}
			n.tracker.MarkAvailable(name)
			return nil
		})
	}
	_ = g.Wait()

	checkCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.tracker.StartHealthChecks(checkCtx, n.check)
	}()
	n.mu.Lock()
	n.cancelChecks = cancel
	n.checksDone = done
	n.mu.Unlock()

	n.logger.Info("node started", "backends", n.manager.Len(), "ready", n.registry.Len(),
		"failed", len(multierr.Errors(errs)), "elapsed", time.Since(start))
	return errs
}

// Stop tears every running backend down and closes the API server.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.started {
		n.mu.Unlock()
		return nil
	}
	n.started = false
	cancel, done := n.cancelChecks, n.checksDone
	n.cancelChecks, n.checksDone = nil, nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if n.cfg.Node.StopTimeout > 0 {
		var cancelStop context.CancelFunc
		ctx, cancelStop = context.WithTimeout(ctx, n.cfg.Node.StopTimeout)
		defer cancelStop()
	}

	err := n.manager.StopAll(ctx)
	for id := 0; id < n.manager.Len(); id++ {
		n.tracker.MarkUnavailable(backend.ProviderName(id), nil)
	}
	if n.server != nil {
		err = multierr.Append(err, n.server.Shutdown(ctx))
	}
	n.logger.Info("node stopped")
	return err
}

// check is the periodic health probe of one backend.
func (n *Node) check(component string) error {
	id, ok := backendID(component)
	if !ok {
		return errors.Newf(errors.ErrCodeInternalError, "unknown component '%s'", component)
	}
	h, ok := n.registry.Lookup(id)
	if !ok {
		return errors.Newf(errors.ErrCodeNotStarted, "backend %d is not running", id)
	}
	_, err := h.Engine.StatJSON()
	return err
}

func backendID(component string) (int, bool) {
	rest, ok := strings.CutPrefix(component, "backend-")
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	return id, err == nil && id >= 0
}

// Lookup returns the running handle of backend id.
func (n *Node) Lookup(id int) (*backend.Handle, bool) {
	return n.registry.Lookup(id)
}

// Route returns the route serving key.
func (n *Node) Route(key []byte) (route.Route, bool) {
	return n.routes.Lookup(n.transform.Transform(key))
}

// Dispatch routes cmd by its key to the owning backend and runs it there.
func (n *Node) Dispatch(ctx context.Context, cmd *backend.Command) (*backend.Reply, error) {
	if cmd == nil {
		return nil, errors.Newf(errors.ErrCodeEngineCommand, "nil command")
	}
	r, ok := n.Route(cmd.Key)
	if !ok {
		return nil, errors.NewError(errors.ErrCodeNotStarted, "no backend is serving requests").
			WithComponent("node").WithOperation(cmd.Op.String())
	}
	h, ok := n.registry.Lookup(r.Backend)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeNotStarted, "backend %d is not running", r.Backend).
			WithComponent("node").WithOperation(cmd.Op.String())
	}

	start := time.Now()
	reply, err := h.Submit(ctx, cmd)
	failed := err != nil && !errors.HasCode(err, errors.ErrCodeNotFound)
	n.collector.RecordCommand(cmd.Op.String(), time.Since(start), !failed)

	name := backend.ProviderName(h.ID)
	switch {
	case !failed:
		n.tracker.RecordSuccess(name)
	case ctx.Err() == nil:
		n.tracker.RecordError(name, err)
	}
	return reply, err
}

// Backends reports every configured backend and its current stage.
func (n *Node) Backends() []types.BackendStatus {
	out := make([]types.BackendStatus, 0, n.manager.Len())
	for id := 0; id < n.manager.Len(); id++ {
		info, _ := n.manager.Info(id)
		st := types.BackendStatus{
			ID:    id,
			Type:  info.Type,
			Group: info.Group,
			Stage: n.manager.State(id).String(),
		}
		if h, ok := n.registry.Lookup(id); ok {
			st.Session = h.Session.String()
			st.Started = h.Started
		}
		out = append(out, st)
	}
	return out
}

// Stats returns the statistics snapshot of the named category.
func (n *Node) Stats(category string) (map[string]json.RawMessage, error) {
	c, err := monitor.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	return n.monitor.Snapshot(c), nil
}

// Manager returns the backend lifecycle manager.
func (n *Node) Manager() *backend.Manager { return n.manager }

// Health returns the backend health tracker.
func (n *Node) Health() *health.Tracker { return n.tracker }

// Metrics returns the node's metric collector.
func (n *Node) Metrics() *metrics.Collector { return n.collector }

// Routes returns the route table.
func (n *Node) Routes() *route.Table { return n.routes }

// Addr returns the API address, or "" when the API is disabled or stopped.
func (n *Node) Addr() string {
	if n.server == nil {
		return ""
	}
	return n.server.Addr()
}
