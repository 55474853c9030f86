package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exports backend lifecycle and dispatch metrics on a private registry.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry

	stageCounter     *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	provisionCounter *prometheus.CounterVec
	provisionedIDs   *prometheus.CounterVec
	commandCounter   *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	readyBackends    prometheus.Gauge

	// Internal tracking
	stages    map[string]*StageMetrics
	ready     int
	lastReset time.Time
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Path      string            `yaml:"path"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
}

// DefaultConfig returns the metrics defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "storenode",
		Labels:    make(map[string]string),
	}
}

// StageMetrics tracks the outcomes of one bring-up stage.
type StageMetrics struct {
	Count         int64         `json:"count"`
	Failures      int64         `json:"failures"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
	LastRun       time.Time     `json:"last_run"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}

	collector := &Collector{
		config:    config,
		stages:    make(map[string]*StageMetrics),
		lastReset: time.Now(),
	}
	if !config.Enabled {
		return collector, nil
	}

	collector.registry = prometheus.NewRegistry()
	collector.initMetrics()
	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return collector, nil
}

// Enabled reports whether metrics are exported.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// Registerer returns the registry other components register into, or nil
// when metrics are disabled.
func (c *Collector) Registerer() prometheus.Registerer {
	if c.registry == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordStage records one bring-up stage attempt.
func (c *Collector) RecordStage(stage string, duration time.Duration, success bool) {
	c.mu.Lock()
	m, ok := c.stages[stage]
	if !ok {
		m = &StageMetrics{}
		c.stages[stage] = m
	}
	m.Count++
	if !success {
		m.Failures++
	}
	m.TotalDuration += duration
	m.AvgDuration = time.Duration(int64(m.TotalDuration) / m.Count)
	m.LastRun = time.Now()
	c.mu.Unlock()

	if !c.config.Enabled {
		return
	}
	c.stageCounter.With(prometheus.Labels{
		"stage":  stage,
		"status": status(success),
	}).Inc()
	c.stageDuration.With(prometheus.Labels{"stage": stage}).Observe(duration.Seconds())
}

// RecordProvision records one identity provisioning outcome.
func (c *Collector) RecordProvision(source string, count int, success bool) {
	if !c.config.Enabled {
		return
	}
	c.provisionCounter.With(prometheus.Labels{
		"source": source,
		"status": status(success),
	}).Inc()
	if success && count > 0 {
		c.provisionedIDs.With(prometheus.Labels{"source": source}).Add(float64(count))
	}
}

// RecordCommand records one dispatched backend command.
func (c *Collector) RecordCommand(op string, duration time.Duration, success bool) {
	if !c.config.Enabled {
		return
	}
	c.commandCounter.With(prometheus.Labels{
		"op":     op,
		"status": status(success),
	}).Inc()
	c.commandDuration.With(prometheus.Labels{"op": op}).Observe(duration.Seconds())
}

// SetReady sets the number of published backends.
func (c *Collector) SetReady(n int) {
	c.mu.Lock()
	c.ready = n
	c.mu.Unlock()

	if c.config.Enabled {
		c.readyBackends.Set(float64(n))
	}
}

// Ready returns the last published backend count.
func (c *Collector) Ready() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Stages returns a copy of the per-stage tracking.
func (c *Collector) Stages() map[string]StageMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]StageMetrics, len(c.stages))
	for name, m := range c.stages {
		out[name] = *m
	}
	return out
}

// ResetStages clears the per-stage tracking. Exported counters are untouched.
func (c *Collector) ResetStages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = make(map[string]*StageMetrics)
	c.lastReset = time.Now()
}

func (c *Collector) initMetrics() {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: c.config.Labels,
		}
	}

	c.stageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts(opts("backend_stages_total", "Backend bring-up stage attempts")),
		[]string{"stage", "status"},
	)

	stageHist := opts("backend_stage_duration_seconds", "Duration of backend bring-up stages")
	c.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   stageHist.Namespace,
			Subsystem:   stageHist.Subsystem,
			Name:        stageHist.Name,
			Help:        stageHist.Help,
			ConstLabels: stageHist.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
		},
		[]string{"stage"},
	)

	c.provisionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts(opts("identity_provisions_total", "Identity set provisioning attempts")),
		[]string{"source", "status"},
	)

	c.provisionedIDs = prometheus.NewCounterVec(
		prometheus.CounterOpts(opts("identity_ids_total", "Identifiers handed out by provisioning")),
		[]string{"source"},
	)

	c.commandCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts(opts("commands_total", "Commands dispatched to backends")),
		[]string{"op", "status"},
	)

	cmdHist := opts("command_duration_seconds", "Duration of dispatched commands")
	c.commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   cmdHist.Namespace,
			Subsystem:   cmdHist.Subsystem,
			Name:        cmdHist.Name,
			Help:        cmdHist.Help,
			ConstLabels: cmdHist.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(0.00005, 2, 16), // 50µs to ~1.6s
		},
		[]string{"op"},
	)

	c.readyBackends = prometheus.NewGauge(
		prometheus.GaugeOpts(opts("backends_ready", "Number of published backends")),
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.stageCounter,
		c.stageDuration,
		c.provisionCounter,
		c.provisionedIDs,
		c.commandCounter,
		c.commandDuration,
		c.readyBackends,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
