// Package monitor keeps the node's statistics providers and renders their
// snapshots by category.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/utils"
)

// Category selects which providers contribute to a snapshot.
type Category uint32

const (
	CategoryCache Category = 1 << iota
	CategoryIO
	CategoryCommands
	CategoryBackend
	CategoryProcfs
	CategoryPeers

	CategoryAll Category = ^Category(0)
)

var categoryNames = map[string]Category{
	"cache":    CategoryCache,
	"io":       CategoryIO,
	"commands": CategoryCommands,
	"backend":  CategoryBackend,
	"procfs":   CategoryProcfs,
	"peers":    CategoryPeers,
	"all":      CategoryAll,
}

// ParseCategory parses a category name.
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return 0, errors.Config(errors.ErrCodeInvalidConfig, "unknown stat category '%s'", s)
}

// String returns the category name.
func (c Category) String() string {
	for name, v := range categoryNames {
		if v == c {
			return name
		}
	}
	return fmt.Sprintf("category(%#x)", uint32(c))
}

// Provider supplies one section of the node statistics.
type Provider interface {
	// JSON renders the current statistics.
	JSON() ([]byte, error)
	// Stop is called once when the provider is removed.
	Stop()
	// CheckCategory reports whether the provider answers for c.
	CheckCategory(c Category) bool
}

// Monitor is the table of registered providers.
type Monitor struct {
	mu        sync.RWMutex
	providers map[string]Provider
	logger    *slog.Logger

	registered prometheus.Gauge
}

// New creates a monitor. When reg is non-nil the provider count is exported.
func New(namespace string, reg prometheus.Registerer, logger *slog.Logger) (*Monitor, error) {
	m := &Monitor{
		providers: make(map[string]Provider),
		logger:    utils.Component(logger, "monitor"),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "providers",
			Help:      "Number of registered statistics providers",
		}),
	}
	if reg != nil {
		if err := reg.Register(m.registered); err != nil {
			return nil, errors.Collaborator(errors.ErrCodeStatProvider, err, "failed to register monitor gauge")
		}
	}
	return m, nil
}

// AddProvider registers p under name.
func (m *Monitor) AddProvider(name string, p Provider) error {
	if name == "" || p == nil {
		return errors.Newf(errors.ErrCodeStatProvider, "invalid stat provider '%s'", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[name]; ok {
		return errors.Newf(errors.ErrCodeStatProvider, "stat provider '%s' already registered", name)
	}
	m.providers[name] = p
	m.registered.Set(float64(len(m.providers)))
	m.logger.Debug("stat provider added", "provider", name)
	return nil
}

// RemoveProvider unregisters name and stops it. Unknown names are ignored.
func (m *Monitor) RemoveProvider(name string) {
	m.mu.Lock()
	p, ok := m.providers[name]
	delete(m.providers, name)
	m.registered.Set(float64(len(m.providers)))
	m.mu.Unlock()

	if ok {
		p.Stop()
		m.logger.Debug("stat provider removed", "provider", name)
	}
}

// Providers returns the registered provider names, sorted.
func (m *Monitor) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot collects the JSON of every provider answering for c. A provider
// that fails is reported under its name as {"error": ...}.
func (m *Monitor) Snapshot(c Category) map[string]json.RawMessage {
	m.mu.RLock()
	selected := make(map[string]Provider, len(m.providers))
	for name, p := range m.providers {
		if p.CheckCategory(c) {
			selected[name] = p
		}
	}
	m.mu.RUnlock()

	out := make(map[string]json.RawMessage, len(selected))
	for name, p := range selected {
		data, err := p.JSON()
		if err == nil && !json.Valid(data) {
			err = fmt.Errorf("provider returned invalid JSON")
		}
		if err != nil {
			m.logger.Warn("stat provider failed", "provider", name, "error", err)
			data, _ = json.Marshal(map[string]string{"error": err.Error()})
		}
		out[name] = data
	}
	return out
}
