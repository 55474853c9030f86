// Package health tracks the health of the node's backends and derives the
// node's overall state from them.
package health

import (
	"context"
	stderr "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/objectfs/storenode/pkg/errors"
)

// HealthState represents the health state of a component
type HealthState int

const (
	// StateHealthy indicates the component is fully operational
	StateHealthy HealthState = iota

	// StateDegraded indicates the component is serving but failing some requests
	StateDegraded

	// StateReadOnly indicates the component can only serve reads
	StateReadOnly

	// StateUnavailable indicates the component is not serving
	StateUnavailable
)

// String returns the string representation of a health state
func (s HealthState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateReadOnly:
		return "read-only"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON documents.
func (s HealthState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ComponentHealth tracks the health of a specific component
type ComponentHealth struct {
	Name              string      `json:"name"`
	State             HealthState `json:"state"`
	LastStateChange   time.Time   `json:"last_state_change"`
	LastHealthCheck   time.Time   `json:"last_health_check"`
	ConsecutiveErrors int         `json:"consecutive_errors"`
	LastErrorMessage  string      `json:"last_error_message,omitempty"`
}

// Tracker tracks the health of multiple components
type Tracker struct {
	mu         sync.RWMutex
	components map[string]*ComponentHealth
	config     TrackerConfig
	clock      clock.Clock
	listeners  []StateChangeListener
}

// TrackerConfig configures health tracking behavior
type TrackerConfig struct {
	// ErrorThreshold is the number of consecutive errors before marking a component degraded
	ErrorThreshold int `yaml:"error_threshold" json:"error_threshold"`

	// UnavailableThreshold is the number of consecutive errors before marking unavailable
	UnavailableThreshold int `yaml:"unavailable_threshold" json:"unavailable_threshold"`

	// HealthCheckInterval is the interval for periodic health checks
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// StateChangeListener is called synchronously, outside the tracker lock,
// whenever a component changes state.
type StateChangeListener func(component string, oldState, newState HealthState, err error)

// DefaultConfig returns a default tracker configuration
func DefaultConfig() TrackerConfig {
	return TrackerConfig{
		ErrorThreshold:       3,
		UnavailableThreshold: 10,
		HealthCheckInterval:  30 * time.Second,
	}
}

// NewTracker creates a new health tracker
func NewTracker(config TrackerConfig) *Tracker {
	return NewTrackerWithClock(config, clock.New())
}

// NewTrackerWithClock creates a tracker reading time from clk.
func NewTrackerWithClock(config TrackerConfig, clk clock.Clock) *Tracker {
	return &Tracker{
		components: make(map[string]*ComponentHealth),
		config:     config,
		clock:      clk,
	}
}

// RegisterComponent registers a component in the unavailable state. It
// becomes healthy with MarkAvailable.
func (t *Tracker) RegisterComponent(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.components[name]; !exists {
		now := t.clock.Now()
		t.components[name] = &ComponentHealth{
			Name:            name,
			State:           StateUnavailable,
			LastStateChange: now,
			LastHealthCheck: now,
		}
	}
}

// MarkAvailable resets a component to healthy, e.g. after it was started.
func (t *Tracker) MarkAvailable(component string) {
	t.set(component, StateHealthy, nil)
}

// MarkUnavailable takes a component out of service, e.g. after it was stopped
// or failed to start.
func (t *Tracker) MarkUnavailable(component string, err error) {
	t.set(component, StateUnavailable, err)
}

func (t *Tracker) set(component string, state HealthState, err error) {
	t.mu.Lock()
	health, exists := t.components[component]
	if !exists {
		t.mu.Unlock()
		return
	}
	oldState := health.State
	health.LastHealthCheck = t.clock.Now()
	health.ConsecutiveErrors = 0
	health.LastErrorMessage = ""
	if err != nil {
		health.LastErrorMessage = err.Error()
	}
	t.transitionState(health, state)
	listeners := t.listeners
	t.mu.Unlock()

	t.notify(listeners, component, oldState, state, err)
}

// RecordSuccess records a successful operation for a component. A component
// recovers once its consecutive error count drops back to zero.
func (t *Tracker) RecordSuccess(component string) {
	t.mu.Lock()
	health, exists := t.components[component]
	if !exists || health.State == StateUnavailable && health.ConsecutiveErrors == 0 {
		t.mu.Unlock()
		return
	}

	oldState := health.State
	health.LastHealthCheck = t.clock.Now()
	if health.ConsecutiveErrors > 0 {
		health.ConsecutiveErrors--
		if health.ConsecutiveErrors == 0 && health.State != StateHealthy {
			t.transitionState(health, StateHealthy)
			health.LastErrorMessage = ""
		}
	}
	newState := health.State
	listeners := t.listeners
	t.mu.Unlock()

	if oldState != newState {
		t.notify(listeners, component, oldState, newState, nil)
	}
}

// RecordError records a failed operation for a component. Components taken
// out of service with MarkUnavailable ignore errors.
func (t *Tracker) RecordError(component string, err error) {
	t.mu.Lock()
	health, exists := t.components[component]
	if !exists || health.State == StateUnavailable && health.ConsecutiveErrors == 0 {
		t.mu.Unlock()
		return
	}

	oldState := health.State
	health.LastHealthCheck = t.clock.Now()
	health.ConsecutiveErrors++
	if err != nil {
		health.LastErrorMessage = err.Error()
	}

	newState := oldState
	switch {
	case health.ConsecutiveErrors >= t.config.UnavailableThreshold:
		newState = StateUnavailable
	case health.ConsecutiveErrors >= t.config.ErrorThreshold && oldState != StateUnavailable:
		if isWriteError(err) {
			newState = StateReadOnly
		} else {
			newState = StateDegraded
		}
	}
	if newState != oldState {
		t.transitionState(health, newState)
	}
	listeners := t.listeners
	t.mu.Unlock()

	if newState != oldState {
		t.notify(listeners, component, oldState, newState, err)
	}
}

// GetState returns the current health state of a component
func (t *Tracker) GetState(component string) HealthState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if health, exists := t.components[component]; exists {
		return health.State
	}
	return StateUnavailable
}

// GetComponentHealth returns a copy of the health information for a component
func (t *Tracker) GetComponentHealth(component string) (*ComponentHealth, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	health, exists := t.components[component]
	if !exists {
		return nil, fmt.Errorf("component %s not registered", component)
	}
	c := *health
	return &c, nil
}

// GetAllComponents returns health information for all registered components
func (t *Tracker) GetAllComponents() map[string]*ComponentHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]*ComponentHealth, len(t.components))
	for name, health := range t.components {
		c := *health
		result[name] = &c
	}
	return result
}

// Components returns the registered component names, sorted.
func (t *Tracker) Components() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.components))
	for name := range t.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetOverallHealth summarizes all components: healthy when every component
// is, unavailable when none is serving, degraded otherwise. A tracker without
// components is healthy.
func (t *Tracker) GetOverallHealth() HealthState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.components) == 0 {
		return StateHealthy
	}

	healthy, unavailable := 0, 0
	for _, health := range t.components {
		switch health.State {
		case StateHealthy:
			healthy++
		case StateUnavailable:
			unavailable++
		}
	}
	switch {
	case healthy == len(t.components):
		return StateHealthy
	case unavailable == len(t.components):
		return StateUnavailable
	default:
		return StateDegraded
	}
}

// IsHealthy returns true if the component is in a healthy state
func (t *Tracker) IsHealthy(component string) bool {
	return t.GetState(component) == StateHealthy
}

// CanRead returns true if the component can perform read operations
func (t *Tracker) CanRead(component string) bool {
	state := t.GetState(component)
	return state == StateHealthy || state == StateDegraded || state == StateReadOnly
}

// CanWrite returns true if the component can perform write operations
func (t *Tracker) CanWrite(component string) bool {
	state := t.GetState(component)
	return state == StateHealthy || state == StateDegraded
}

// AddListener registers a state change listener
func (t *Tracker) AddListener(listener StateChangeListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, listener)
}

// transitionState must be called with the lock held
func (t *Tracker) transitionState(health *ComponentHealth, newState HealthState) {
	if health.State != newState {
		health.State = newState
		health.LastStateChange = t.clock.Now()
	}
}

func (t *Tracker) notify(listeners []StateChangeListener, component string, oldState, newState HealthState, err error) {
	if oldState == newState {
		return
	}
	for _, listener := range listeners {
		listener(component, oldState, newState, err)
	}
}

// isWriteError reports errors after which reads may still work
func isWriteError(err error) bool {
	if err == nil {
		return false
	}

	var nodeErr *errors.NodeError
	if stderr.As(err, &nodeErr) {
		switch nodeErr.Code {
		case errors.ErrCodeIOWrite,
			errors.ErrCodeShortWrite,
			errors.ErrCodeResourceExhausted:
			return true
		}
	}
	return false
}

// StartHealthChecks runs checkFn against every component that is not
// unavailable, once per HealthCheckInterval, until ctx is done.
func (t *Tracker) StartHealthChecks(ctx context.Context, checkFn func(component string) error) {
	ticker := t.clock.Ticker(t.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.performHealthChecks(checkFn)
		}
	}
}

// performHealthChecks performs one round of health checks
func (t *Tracker) performHealthChecks(checkFn func(component string) error) {
	t.mu.RLock()
	components := make([]string, 0, len(t.components))
	for name, health := range t.components {
		if health.State != StateUnavailable || health.ConsecutiveErrors > 0 {
			components = append(components, name)
		}
	}
	t.mu.RUnlock()

	for _, component := range components {
		if err := checkFn(component); err != nil {
			t.RecordError(component, err)
		} else {
			t.RecordSuccess(component)
		}
	}
}
