// Package iopool runs the I/O workers of each backend. Reads are served from
// the backend cache when possible; everything else goes to the engine and
// keeps the cache coherent.
package iopool

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/objectfs/storenode/internal/backend"
	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/types"
	"github.com/objectfs/storenode/pkg/utils"
)

// Config contains configuration for the worker pools
type Config struct {
	Workers    int `yaml:"workers"`     // Workers per backend
	QueueDepth int `yaml:"queue_depth"` // Pending requests per backend
}

// DefaultConfig returns the pool defaults.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueDepth: 256}
}

type result struct {
	reply *backend.Reply
	err   error
}

type request struct {
	ctx   context.Context
	cmd   *backend.Command
	reply chan result
}

// Pool is the worker pool of one backend.
type Pool struct {
	id      int
	engine  backend.Engine
	cache   backend.Cache
	workers int
	logger  *slog.Logger

	mu       sync.RWMutex
	started  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	queue    chan *request

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	cacheHits atomic.Uint64
}

// New creates a pool serving h. The cache may be nil.
func New(h *backend.Handle, cfg Config, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultConfig().QueueDepth
	}
	return &Pool{
		id:      h.ID,
		engine:  h.Engine,
		cache:   h.Cache,
		workers: cfg.Workers,
		logger:  utils.Component(logger, "iopool").With("backend", h.ID),
		stopCh:  make(chan struct{}),
		queue:   make(chan *request, cfg.QueueDepth),
	}
}

// Start launches the workers.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.Newf(errors.ErrCodeAlreadyStarted, "io pool of backend %d already started", p.id)
	}
	select {
	case <-p.stopCh:
		return errors.Newf(errors.ErrCodeNotStarted, "io pool of backend %d was stopped", p.id)
	default:
	}

	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.logger.Debug("io pool started", "workers", p.workers, "queue_depth", cap(p.queue))
	return nil
}

// Stop stops the workers and fails requests still queued. It waits for
// in-flight requests until ctx is done.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	wasStarted := p.started
	p.started = false
	p.mu.Unlock()
	if !wasStarted {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Newf(errors.ErrCodeIOPool, "io pool of backend %d did not drain", p.id).WithCause(ctx.Err())
	}

	for {
		select {
		case req := <-p.queue:
			p.failed.Add(1)
			req.reply <- result{err: errors.Newf(errors.ErrCodeNotStarted, "io pool of backend %d stopped", p.id)}
		default:
			p.logger.Debug("io pool stopped")
			return nil
		}
	}
}

// Submit queues cmd and waits for its reply.
func (p *Pool) Submit(ctx context.Context, cmd *backend.Command) (*backend.Reply, error) {
	if cmd == nil || len(cmd.Key) == 0 {
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "command needs a key")
	}
	req := &request{ctx: ctx, cmd: cmd, reply: make(chan result, 1)}

	p.mu.RLock()
	if !p.started {
		p.mu.RUnlock()
		return nil, errors.Newf(errors.ErrCodeNotStarted, "io pool of backend %d not started", p.id)
	}
	select {
	case p.queue <- req:
		p.submitted.Add(1)
	case <-p.stopCh:
		p.mu.RUnlock()
		return nil, errors.Newf(errors.ErrCodeNotStarted, "io pool of backend %d stopped", p.id)
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, ctx.Err()
	}
	p.mu.RUnlock()

	select {
	case res := <-req.reply:
		return res.reply, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case req := <-p.queue:
			reply, err := p.serve(req)
			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}
			req.reply <- result{reply: reply, err: err}
		}
	}
}

func (p *Pool) serve(req *request) (*backend.Reply, error) {
	if err := req.ctx.Err(); err != nil {
		return nil, err
	}
	cmd := req.cmd
	key := string(cmd.Key)

	if cmd.Op == backend.OpRead && p.cache != nil {
		if v, ok := p.cache.Get(key); ok {
			p.cacheHits.Add(1)
			return &backend.Reply{Value: v}, nil
		}
	}

	reply, err := p.engine.Command(req.ctx, cmd)
	if err != nil {
		if cmd.Op != backend.OpRead && p.cache != nil {
			p.cache.Remove(key)
		}
		return nil, err
	}

	if p.cache != nil {
		switch cmd.Op {
		case backend.OpRead:
			p.cache.Add(key, reply.Value)
		case backend.OpWrite:
			p.cache.Add(key, cmd.Value)
		case backend.OpDelete:
			p.cache.Remove(key)
		}
	}
	return reply, nil
}

// Stats returns the pool statistics.
func (p *Pool) Stats() types.PoolStats {
	return types.PoolStats{
		Workers:    p.workers,
		QueueDepth: cap(p.queue),
		Queued:     len(p.queue),
		Submitted:  p.submitted.Load(),
		Completed:  p.completed.Load(),
		Failed:     p.failed.Load(),
		CacheHits:  p.cacheHits.Load(),
	}
}
