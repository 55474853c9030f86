package circuit

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/objectfs/storenode/internal/monitor"
	"github.com/objectfs/storenode/pkg/errors"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed - requests pass through
	StateClosed State = iota
	// StateOpen - requests are rejected until the cooldown expires
	StateOpen
	// StateHalfOpen - a limited number of probes test whether the peer recovered
	StateHalfOpen
)

// String returns string representation of state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config contains circuit breaker configuration
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// Cooldown is how long the breaker stays open before probing
	Cooldown time.Duration `yaml:"cooldown"`

	// MaxProbes bounds the requests let through while half-open
	MaxProbes uint32 `yaml:"max_probes"`

	// IsFailure decides whether an error counts against the peer
	IsFailure func(err error) bool `yaml:"-"`

	// OnStateChange is called, under the breaker lock, when the state changes
	OnStateChange func(name string, from State, to State) `yaml:"-"`

	Clock clock.Clock `yaml:"-"`
}

// DefaultConfig returns the breaker defaults used for peer traffic.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		MaxProbes:        1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.MaxProbes == 0 {
		c.MaxProbes = d.MaxProbes
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool { return err != nil }
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

// Counts holds the numbers of requests and their successes/failures
type Counts struct {
	Requests             uint32    `json:"requests"`
	TotalSuccesses       uint32    `json:"total_successes"`
	TotalFailures        uint32    `json:"total_failures"`
	ConsecutiveSuccesses uint32    `json:"consecutive_successes"`
	ConsecutiveFailures  uint32    `json:"consecutive_failures"`
	Rejected             uint32    `json:"rejected"`
	LastActivity         time.Time `json:"last_activity"`
}

// Breaker guards calls to one peer.
type Breaker struct {
	name   string
	config Config

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probes   uint32
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, config Config) *Breaker {
	return &Breaker{name: name, config: config.withDefaults()}
}

// Execute runs fn unless the breaker is open. Calls abandoned because ctx
// ended are not counted.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.beforeRequest()
	if err != nil {
		return err
	}

	err = fn(ctx)
	b.afterRequest(probe, err, ctx.Err() != nil)
	return err
}

func (b *Breaker) beforeRequest() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.config.Clock.Now()
	switch b.currentState(now) {
	case StateOpen:
		b.counts.Rejected++
		return false, errors.Newf(errors.ErrCodeCircuitOpen, "circuit '%s' is open", b.name).
			WithDetail("retry_after", b.openedAt.Add(b.config.Cooldown).Sub(now).String())
	case StateHalfOpen:
		if b.probes >= b.config.MaxProbes {
			b.counts.Rejected++
			return false, errors.Newf(errors.ErrCodeCircuitOpen, "circuit '%s' is probing", b.name)
		}
		b.probes++
		b.counts.onRequest(now)
		return true, nil
	}
	b.counts.onRequest(now)
	return false, nil
}

func (b *Breaker) afterRequest(probe bool, err error, abandoned bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe && b.probes > 0 {
		b.probes--
	}
	if abandoned {
		return
	}

	now := b.config.Clock.Now()
	state := b.currentState(now)
	if !b.config.IsFailure(err) {
		b.counts.onSuccess()
		if state == StateHalfOpen {
			b.setState(StateClosed, now)
		}
		return
	}

	b.counts.onFailure()
	switch state {
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.config.FailureThreshold {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

func (b *Breaker) currentState(now time.Time) State {
	if b.state == StateOpen && !now.Before(b.openedAt.Add(b.config.Cooldown)) {
		b.setState(StateHalfOpen, now)
	}
	return b.state
}

func (b *Breaker) setState(state State, now time.Time) {
	prev := b.state
	if prev == state {
		return
	}

	b.state = state
	b.probes = 0
	switch state {
	case StateOpen:
		b.openedAt = now
	case StateClosed:
		b.counts.ConsecutiveFailures = 0
		b.openedAt = time.Time{}
	}

	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.name, prev, state)
	}
}

// State returns the current state of the breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(b.config.Clock.Now())
}

// Counts returns a copy of the current counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Reset closes the breaker and clears its counts
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed, b.config.Clock.Now())
	b.counts = Counts{}
}

// Name returns the name of the breaker
func (b *Breaker) Name() string {
	return b.name
}

func (c *Counts) onRequest(now time.Time) {
	c.Requests++
	c.LastActivity = now
}

func (c *Counts) onSuccess() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Manager keeps one breaker per peer
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	config   Config
}

// NewManager creates a manager whose breakers share config
func NewManager(config Config) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		config:   config.withDefaults(),
	}
}

// Get returns the breaker of name, creating it on first use
func (m *Manager) Get(name string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[name]; ok {
		return b
	}
	b = NewBreaker(name, m.config)
	m.breakers[name] = b
	return b
}

// Open returns the names of the breakers currently open, sorted
func (m *Manager) Open() []string {
	var open []string
	for name, st := range m.Stats() {
		if st.State == StateOpen {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

// Stats returns a snapshot of every breaker
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	breakers := make([]*Breaker, 0, len(m.breakers))
	for _, b := range m.breakers {
		breakers = append(breakers, b)
	}
	m.mu.RUnlock()

	stats := make(map[string]Stats, len(breakers))
	for _, b := range breakers {
		stats[b.name] = Stats{State: b.State(), Counts: b.Counts()}
	}
	return stats
}

// Stats is the snapshot of one breaker
type Stats struct {
	State  State  `json:"state"`
	Counts Counts `json:"counts"`
}

// JSON renders Stats for the node statistics.
func (m *Manager) JSON() ([]byte, error) {
	return json.Marshal(m.Stats())
}

// Stop is a no-op.
func (m *Manager) Stop() {}

// CheckCategory accepts the peers category and "all".
func (m *Manager) CheckCategory(c monitor.Category) bool {
	return c == monitor.CategoryPeers || c == monitor.CategoryAll
}
