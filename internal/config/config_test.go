package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/objectfs/storenode/pkg/errors"
)

func validConfig() *Configuration {
	cfg := NewDefault()
	cfg.Node.Name = "node-a"
	cfg.Backends = []BackendConfig{
		{ID: 1, Type: "memory", Group: 2, History: "/tmp/b1"},
		{ID: 0, Type: "badger", Group: 1, History: "/tmp/b0", Options: map[string]string{"sync_writes": "true"}},
	}
	return cfg
}

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	if cfg.Global.LogLevel != "INFO" {
		t.Errorf("Expected LogLevel to be INFO, got %s", cfg.Global.LogLevel)
	}
	if cfg.API.ListenAddress != ":8080" {
		t.Errorf("Expected ListenAddress to be :8080, got %s", cfg.API.ListenAddress)
	}
	if cfg.IOPool.Workers != 4 || cfg.IOPool.QueueDepth != 256 {
		t.Errorf("Expected io_pool 4/256, got %d/%d", cfg.IOPool.Workers, cfg.IOPool.QueueDepth)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Expected Cache TTL to be 5 minutes, got %v", cfg.Cache.TTL)
	}
	if cfg.Sync.Mode != SyncNone {
		t.Errorf("Expected sync mode none, got %s", cfg.Sync.Mode)
	}
	if cfg.Node.KeepsIDsInCluster {
		t.Error("Expected KeepsIDsInCluster to be disabled by default")
	}
	if cfg.Node.Name == "" {
		t.Error("Expected a default node name")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Configuration)
		wantErr bool
		errMsg  string
	}{
		{name: "valid config", mutate: func(*Configuration) {}},
		{
			name:    "invalid log level",
			mutate:  func(c *Configuration) { c.Global.LogLevel = "LOUD" },
			wantErr: true,
			errMsg:  "invalid log_level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Configuration) { c.Global.LogFormat = "xml" },
			wantErr: true,
			errMsg:  "invalid log_format",
		},
		{
			name:    "no workers",
			mutate:  func(c *Configuration) { c.IOPool.Workers = 0 },
			wantErr: true,
			errMsg:  "io_pool.workers",
		},
		{
			name:    "no cache entries",
			mutate:  func(c *Configuration) { c.Cache.MaxEntries = 0 },
			wantErr: true,
			errMsg:  "cache.max_entries",
		},
		{
			name:    "bad max value size",
			mutate:  func(c *Configuration) { c.Cache.MaxValueSize = "big" },
			wantErr: true,
			errMsg:  "cache.max_value_size",
		},
		{
			name:    "backend id gap",
			mutate:  func(c *Configuration) { c.Backends[0].ID = 2 },
			wantErr: true,
			errMsg:  "id must be in [0, 2)",
		},
		{
			name:    "duplicate backend id",
			mutate:  func(c *Configuration) { c.Backends[0].ID = 0 },
			wantErr: true,
			errMsg:  "duplicate id",
		},
		{
			name:    "zero group",
			mutate:  func(c *Configuration) { c.Backends[1].Group = 0 },
			wantErr: true,
			errMsg:  "group must be non-zero",
		},
		{
			name:    "missing history",
			mutate:  func(c *Configuration) { c.Backends[0].History = "" },
			wantErr: true,
			errMsg:  "history is required",
		},
		{
			name:    "missing type",
			mutate:  func(c *Configuration) { c.Backends[0].Type = "" },
			wantErr: true,
			errMsg:  "type is required",
		},
		{
			name:    "keeps ids without sync",
			mutate:  func(c *Configuration) { c.Node.KeepsIDsInCluster = true },
			wantErr: true,
			errMsg:  "keeps_ids_in_cluster",
		},
		{
			name:    "unknown sync mode",
			mutate:  func(c *Configuration) { c.Sync.Mode = "carrier-pigeon" },
			wantErr: true,
			errMsg:  "invalid sync.mode",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Configuration) { c.Sync.Mode = SyncS3 },
			wantErr: true,
			errMsg:  "sync.s3.bucket",
		},
		{
			name: "s3 with bucket",
			mutate: func(c *Configuration) {
				c.Sync.Mode = SyncS3
				c.Sync.S3.Bucket = "ids"
				c.Node.KeepsIDsInCluster = true
			},
		},
		{
			name: "http without api",
			mutate: func(c *Configuration) {
				c.Sync.Mode = SyncHTTP
				c.API.Enabled = false
			},
			wantErr: true,
			errMsg:  "requires the api",
		},
		{
			name: "sync with slash in node name",
			mutate: func(c *Configuration) {
				c.Sync.Mode = SyncHTTP
				c.Node.Name = "a/b"
			},
			wantErr: true,
			errMsg:  "node.name",
		},
		{
			name: "negative breaker cooldown",
			mutate: func(c *Configuration) {
				c.Sync.Mode = SyncHTTP
				c.Sync.Breaker.Cooldown = -time.Second
			},
			wantErr: true,
			errMsg:  "sync.breaker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want message containing %q", err, tt.errMsg)
			}
			if !errors.HasCode(err, errors.ErrCodeConfigValidation) {
				t.Errorf("Validate() error code = %v, want %s", err, errors.ErrCodeConfigValidation)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
global:
  log_level: DEBUG
  log_format: json
node:
  name: node-b
  peers: ["10.0.0.2:8080", "10.0.0.3:8080"]
  keeps_ids_in_cluster: true
sync:
  mode: http
  timeout: 3s
cache:
  ttl: 1m
backends:
  - id: 0
    type: memory
    group: 7
    history: /srv/b0
    options:
      capacity: 8GiB
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Global.LogLevel != "DEBUG" {
		t.Errorf("Expected LogLevel DEBUG, got %s", cfg.Global.LogLevel)
	}
	if len(cfg.Node.Peers) != 2 || cfg.Node.Peers[1] != "10.0.0.3:8080" {
		t.Errorf("Unexpected peers: %v", cfg.Node.Peers)
	}
	if cfg.Sync.Timeout != 3*time.Second {
		t.Errorf("Expected sync timeout 3s, got %v", cfg.Sync.Timeout)
	}
	if cfg.Cache.TTL != time.Minute {
		t.Errorf("Expected cache TTL 1m, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.MaxEntries != 65536 {
		t.Errorf("Defaults should survive a partial file, got max_entries %d", cfg.Cache.MaxEntries)
	}
	if len(cfg.Backends) != 1 || cfg.Backends[0].Options["capacity"] != "8GiB" || cfg.Backends[0].Group != 7 {
		t.Errorf("Unexpected backends: %+v", cfg.Backends)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Expected error when loading non-existent file")
	}
	if !errors.HasCode(err, errors.ErrCodeConfigLoad) {
		t.Errorf("unexpected error code: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("node:\n  nmae: typo\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewDefault().LoadFromFile(bad); err == nil {
		t.Error("Expected unknown keys to be rejected")
	}
}

func TestLoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"STORENODE_LOG_LEVEL":             "WARN",
		"STORENODE_NODE_NAME":             "env-node",
		"STORENODE_PEERS":                 "a:1, b:2,,",
		"STORENODE_KEEPS_IDS_IN_CLUSTER":  "true",
		"STORENODE_IO_WORKERS":            "8",
		"STORENODE_CACHE_TTL":             "90s",
		"STORENODE_SYNC_MODE":             "s3",
		"STORENODE_SYNC_S3_BUCKET":        "cluster-ids",
		"STORENODE_SYNC_BREAKER_FAILURES": "2",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Global.LogLevel != "WARN" {
		t.Errorf("Expected LogLevel WARN, got %s", cfg.Global.LogLevel)
	}
	if cfg.Node.Name != "env-node" {
		t.Errorf("Expected node name env-node, got %s", cfg.Node.Name)
	}
	if len(cfg.Node.Peers) != 2 || cfg.Node.Peers[0] != "a:1" || cfg.Node.Peers[1] != "b:2" {
		t.Errorf("Unexpected peers: %q", cfg.Node.Peers)
	}
	if !cfg.Node.KeepsIDsInCluster {
		t.Error("Expected KeepsIDsInCluster to be true")
	}
	if cfg.IOPool.Workers != 8 {
		t.Errorf("Expected 8 workers, got %d", cfg.IOPool.Workers)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Expected cache TTL 90s, got %v", cfg.Cache.TTL)
	}
	if cfg.Sync.Mode != SyncS3 || cfg.Sync.S3.Bucket != "cluster-ids" {
		t.Errorf("Unexpected sync: %+v", cfg.Sync)
	}
	if cfg.Sync.Breaker.FailureThreshold != 2 || cfg.Sync.Breaker.Cooldown != 30*time.Second {
		t.Errorf("Unexpected breaker: %+v", cfg.Sync.Breaker)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("STORENODE_IO_WORKERS", "many")
	t.Setenv("STORENODE_API_ENABLED", "perhaps")

	cfg := NewDefault()
	err := cfg.LoadFromEnv()
	if err == nil {
		t.Fatal("Expected error for invalid environment values")
	}
	if !strings.Contains(err.Error(), "STORENODE_API_ENABLED, STORENODE_IO_WORKERS") {
		t.Errorf("error should name the bad variables: %v", err)
	}
	if cfg.IOPool.Workers != 4 {
		t.Errorf("invalid value should leave the default, got %d", cfg.IOPool.Workers)
	}
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	cfg := validConfig()
	cfg.Global.LogLevel = "ERROR"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	loaded := NewDefault()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Global.LogLevel != "ERROR" {
		t.Errorf("Expected LogLevel ERROR, got %s", loaded.Global.LogLevel)
	}
	if len(loaded.Backends) != 2 || loaded.Backends[1].Options["sync_writes"] != "true" {
		t.Errorf("Unexpected backends after round trip: %+v", loaded.Backends)
	}
}

func TestLoadFromFileOverridesDefaultLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	content := "monitoring:\n  custom_labels:\n    service: mynode\n    zone: eu-1\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefault()
	cfg.Monitoring.CustomLabels["team"] = "storage"
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	want := map[string]string{"service": "mynode", "zone": "eu-1", "team": "storage"}
	if len(cfg.Monitoring.CustomLabels) != len(want) {
		t.Errorf("CustomLabels = %v, want %v", cfg.Monitoring.CustomLabels, want)
	}
	for k, v := range want {
		if cfg.Monitoring.CustomLabels[k] != v {
			t.Errorf("CustomLabels[%s] = %q, want %q", k, cfg.Monitoring.CustomLabels[k], v)
		}
	}

	untouched := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(untouched, []byte("global:\n  log_level: WARN\n"), 0644); err != nil {
		t.Fatal(err)
	}
	defaults := NewDefault()
	if err := defaults.LoadFromFile(untouched); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if defaults.Monitoring.CustomLabels["service"] != "storenode" {
		t.Errorf("default labels lost: %v", defaults.Monitoring.CustomLabels)
	}
}

func TestSortedBackends(t *testing.T) {
	cfg := validConfig()
	sorted := cfg.SortedBackends()
	if sorted[0].ID != 0 || sorted[1].ID != 1 {
		t.Errorf("SortedBackends() = %+v", sorted)
	}
	if cfg.Backends[0].ID != 1 {
		t.Error("SortedBackends() must not reorder the configuration")
	}

	logging := cfg.Logging()
	if logging.Level != "INFO" || logging.Format != "text" {
		t.Errorf("Logging() = %+v", logging)
	}
}
