package config

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/utils"
)

// Sync modes.
const (
	SyncNone = "none"
	SyncHTTP = "http"
	SyncS3   = "s3"
)

// Configuration represents the complete node configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Node       NodeConfig       `yaml:"node"`
	API        APIConfig        `yaml:"api"`
	IOPool     IOPoolConfig     `yaml:"io_pool"`
	Cache      CacheConfig      `yaml:"cache"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Sync       SyncConfig       `yaml:"sync"`
	Backends   []BackendConfig  `yaml:"backends"`
}

// GlobalConfig represents process-wide logging settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`
}

// NodeConfig describes this node within the cluster
type NodeConfig struct {
	Name              string        `yaml:"name"`
	Peers             []string      `yaml:"peers"`
	KeepsIDsInCluster bool          `yaml:"keeps_ids_in_cluster"`
	TransformKey      string        `yaml:"transform_key"`
	StartTimeout      time.Duration `yaml:"start_timeout"`
	StopTimeout       time.Duration `yaml:"stop_timeout"`
}

// APIConfig represents the HTTP listener serving health, stats, metrics and
// the id store
type APIConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ListenAddress string        `yaml:"listen_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IDStoreDir    string        `yaml:"id_store_dir"`
}

// IOPoolConfig represents per-backend worker pool settings
type IOPoolConfig struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`
}

// CacheConfig represents per-backend read cache settings
type CacheConfig struct {
	MaxEntries   int           `yaml:"max_entries"`
	TTL          time.Duration `yaml:"ttl"`
	MaxValueSize string        `yaml:"max_value_size"`
}

// MonitoringConfig represents metrics settings
type MonitoringConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Namespace    string            `yaml:"namespace"`
	Path         string            `yaml:"path"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// SyncConfig selects how identity sets are shared with the cluster
type SyncConfig struct {
	Mode    string        `yaml:"mode"`
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
	S3      S3Config      `yaml:"s3"`
}

// RetryConfig represents retry settings
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// BreakerConfig represents the per-peer circuit breaker of the http sync
// mode. A zero failure threshold disables it.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// S3Config represents the bucket used by the s3 sync mode
type S3Config struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	Prefix         string `yaml:"prefix"`
	ForcePathStyle bool   `yaml:"force_path_style"`
	MaxRetries     int    `yaml:"max_retries"`
}

// BackendConfig represents one configured backend
type BackendConfig struct {
	ID      int               `yaml:"id"`
	Type    string            `yaml:"type"`
	Group   uint32            `yaml:"group"`
	History string            `yaml:"history"`
	Options map[string]string `yaml:"options"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFile:   "",
			LogFormat: "text",
		},
		Node: NodeConfig{
			Name:         hostname(),
			StartTimeout: 2 * time.Minute,
			StopTimeout:  30 * time.Second,
		},
		API: APIConfig{
			Enabled:       true,
			ListenAddress: ":8080",
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  60 * time.Second,
			IDStoreDir:    "/var/lib/storenode/ids",
		},
		IOPool: IOPoolConfig{
			Workers:    4,
			QueueDepth: 256,
		},
		Cache: CacheConfig{
			MaxEntries:   65536,
			TTL:          5 * time.Minute,
			MaxValueSize: "1MB",
		},
		Monitoring: MonitoringConfig{
			Enabled:   true,
			Namespace: "storenode",
			Path:      "/metrics",
			CustomLabels: map[string]string{
				"service": "storenode",
			},
		},
		Sync: SyncConfig{
			Mode:    SyncNone,
			Timeout: 10 * time.Second,
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   100 * time.Millisecond,
				MaxDelay:    5 * time.Second,
			},
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				Cooldown:         30 * time.Second,
			},
			S3: S3Config{
				Region:     "us-east-1",
				Prefix:     "storenode",
				MaxRetries: 3,
			},
		},
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "storenode"
	}
	return name
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.IO(errors.ErrCodeConfigLoad, err, "failed to read config file '%s'", filename)
	}

	// Strict decoding rejects keys already present in a map, so labels are
	// decoded into an empty map and the defaults merged back afterwards.
	labels := c.Monitoring.CustomLabels
	c.Monitoring.CustomLabels = nil
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		c.Monitoring.CustomLabels = labels
		return errors.Config(errors.ErrCodeConfigLoad, "failed to parse config file '%s'", filename).WithCause(err)
	}
	if c.Monitoring.CustomLabels == nil {
		c.Monitoring.CustomLabels = labels
	} else {
		for k, v := range labels {
			if _, ok := c.Monitoring.CustomLabels[k]; !ok {
				c.Monitoring.CustomLabels[k] = v
			}
		}
	}

	return nil
}

// LoadFromEnv loads configuration from STORENODE_* environment variables
func (c *Configuration) LoadFromEnv() error {
	env := envReader{}

	// Global settings
	env.str("STORENODE_LOG_LEVEL", &c.Global.LogLevel)
	env.str("STORENODE_LOG_FILE", &c.Global.LogFile)
	env.str("STORENODE_LOG_FORMAT", &c.Global.LogFormat)

	// Node settings
	env.str("STORENODE_NODE_NAME", &c.Node.Name)
	env.list("STORENODE_PEERS", &c.Node.Peers)
	env.boolean("STORENODE_KEEPS_IDS_IN_CLUSTER", &c.Node.KeepsIDsInCluster)
	env.str("STORENODE_TRANSFORM_KEY", &c.Node.TransformKey)

	// API settings
	env.boolean("STORENODE_API_ENABLED", &c.API.Enabled)
	env.str("STORENODE_API_LISTEN_ADDRESS", &c.API.ListenAddress)
	env.str("STORENODE_ID_STORE_DIR", &c.API.IDStoreDir)

	// Pool and cache settings
	env.integer("STORENODE_IO_WORKERS", &c.IOPool.Workers)
	env.integer("STORENODE_IO_QUEUE_DEPTH", &c.IOPool.QueueDepth)
	env.integer("STORENODE_CACHE_MAX_ENTRIES", &c.Cache.MaxEntries)
	env.duration("STORENODE_CACHE_TTL", &c.Cache.TTL)

	// Monitoring settings
	env.boolean("STORENODE_METRICS_ENABLED", &c.Monitoring.Enabled)

	// Sync settings
	env.str("STORENODE_SYNC_MODE", &c.Sync.Mode)
	env.duration("STORENODE_SYNC_TIMEOUT", &c.Sync.Timeout)
	env.integer("STORENODE_SYNC_BREAKER_FAILURES", &c.Sync.Breaker.FailureThreshold)
	env.duration("STORENODE_SYNC_BREAKER_COOLDOWN", &c.Sync.Breaker.Cooldown)
	env.str("STORENODE_SYNC_S3_BUCKET", &c.Sync.S3.Bucket)
	env.str("STORENODE_SYNC_S3_REGION", &c.Sync.S3.Region)
	env.str("STORENODE_SYNC_S3_ENDPOINT", &c.Sync.S3.Endpoint)
	env.str("STORENODE_SYNC_S3_PREFIX", &c.Sync.S3.Prefix)
	env.boolean("STORENODE_SYNC_S3_FORCE_PATH_STYLE", &c.Sync.S3.ForcePathStyle)

	if len(env.bad) > 0 {
		sort.Strings(env.bad)
		return errors.Config(errors.ErrCodeConfigLoad, "invalid environment values: %s", strings.Join(env.bad, ", "))
	}
	return nil
}

type envReader struct {
	bad []string
}

func (e *envReader) str(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func (e *envReader) list(key string, dst *[]string) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (e *envReader) boolean(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			e.bad = append(e.bad, key)
			return
		}
		*dst = b
	}
}

func (e *envReader) integer(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			e.bad = append(e.bad, key)
			return
		}
		*dst = n
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			e.bad = append(e.bad, key)
			return
		}
		*dst = d
	}
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Config(errors.ErrCodeConfigSave, "failed to marshal config").WithCause(err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return errors.IO(errors.ErrCodeConfigSave, err, "failed to create config directory")
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return errors.IO(errors.ErrCodeConfigSave, err, "failed to write config file")
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if _, err := utils.ParseLogLevel(c.Global.LogLevel); err != nil {
		return invalid("invalid log_level: %s (must be one of: DEBUG, INFO, WARN, ERROR)", c.Global.LogLevel)
	}
	switch strings.ToLower(c.Global.LogFormat) {
	case "", "text", "json":
	default:
		return invalid("invalid log_format: %s (must be text or json)", c.Global.LogFormat)
	}

	if c.IOPool.Workers <= 0 {
		return invalid("io_pool.workers must be greater than 0")
	}
	if c.IOPool.QueueDepth < 0 {
		return invalid("io_pool.queue_depth cannot be negative")
	}

	if c.Cache.MaxEntries <= 0 {
		return invalid("cache.max_entries must be greater than 0")
	}
	if c.Cache.TTL < 0 {
		return invalid("cache.ttl cannot be negative")
	}
	if c.Cache.MaxValueSize != "" {
		if _, err := utils.ParseBytes(c.Cache.MaxValueSize); err != nil {
			return invalid("invalid cache.max_value_size: %v", err)
		}
	}

	if c.API.Enabled && c.API.ListenAddress == "" {
		return invalid("api.listen_address is required when the api is enabled")
	}

	if err := c.validateSync(); err != nil {
		return err
	}
	return c.validateBackends()
}

func (c *Configuration) validateSync() error {
	switch c.Sync.Mode {
	case SyncNone, "":
		if c.Node.KeepsIDsInCluster {
			return invalid("node.keeps_ids_in_cluster requires a sync.mode")
		}
		return nil
	case SyncHTTP:
		if !c.API.Enabled {
			return invalid("sync.mode http requires the api to serve the id store")
		}
		if c.API.IDStoreDir == "" {
			return invalid("sync.mode http requires api.id_store_dir")
		}
	case SyncS3:
		if c.Sync.S3.Bucket == "" {
			return invalid("sync.mode s3 requires sync.s3.bucket")
		}
	default:
		return invalid("invalid sync.mode: %s (must be one of: none, http, s3)", c.Sync.Mode)
	}

	if c.Node.Name == "" || strings.Contains(c.Node.Name, "/") {
		return invalid("node.name must be non-empty and contain no '/' when sync is enabled")
	}
	if c.Sync.Timeout <= 0 {
		return invalid("sync.timeout must be greater than 0")
	}
	if c.Sync.Breaker.FailureThreshold < 0 || c.Sync.Breaker.Cooldown < 0 {
		return invalid("sync.breaker values cannot be negative")
	}
	return nil
}

func (c *Configuration) validateBackends() error {
	seen := make(map[int]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.ID < 0 || b.ID >= len(c.Backends) {
			return invalid("backend %d: id must be in [0, %d)", b.ID, len(c.Backends))
		}
		if seen[b.ID] {
			return invalid("backend %d: duplicate id", b.ID)
		}
		seen[b.ID] = true

		if b.Type == "" {
			return invalid("backend %d (entry %d): type is required", b.ID, i)
		}
		if b.Group == 0 {
			return invalid("backend %d: group must be non-zero", b.ID)
		}
		if b.History == "" {
			return invalid("backend %d: history is required", b.ID)
		}
	}
	return nil
}

// SortedBackends returns the backends ordered by id.
func (c *Configuration) SortedBackends() []BackendConfig {
	out := append([]BackendConfig(nil), c.Backends...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Logging returns the logger settings of the global section.
func (c *Configuration) Logging() utils.LoggingConfig {
	return utils.LoggingConfig{
		Level:  c.Global.LogLevel,
		Format: c.Global.LogFormat,
		File:   c.Global.LogFile,
	}
}

func invalid(format string, args ...interface{}) error {
	return errors.Config(errors.ErrCodeConfigValidation, format, args...)
}
