package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with valid config", func(t *testing.T) {
		config := &Config{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "storenode",
			Subsystem: "test",
			Labels:    map[string]string{"node": "n1"},
		}
		collector, err := NewCollector(config)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.config != config {
			t.Error("collector.config does not match input config")
		}
		if collector.registry == nil {
			t.Error("collector.registry is nil")
		}
		if collector.Registerer() == nil {
			t.Error("Registerer() is nil for an enabled collector")
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		collector, err := NewCollector(nil)
		if err != nil {
			t.Fatalf("NewCollector(nil) error = %v, want nil", err)
		}
		if collector.config.Path != "/metrics" {
			t.Errorf("default path = %q, want %q", collector.config.Path, "/metrics")
		}
		if collector.config.Namespace != "storenode" {
			t.Errorf("default namespace = %q, want %q", collector.config.Namespace, "storenode")
		}
		if !collector.Enabled() {
			t.Error("default collector should be enabled")
		}
	})

	t.Run("with disabled config", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: false})
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.registry != nil {
			t.Error("disabled collector should not have registry")
		}
		if collector.Registerer() != nil {
			t.Error("disabled collector should not expose a registerer")
		}
	})
}

func TestRecordStage(t *testing.T) {
	t.Parallel()

	t.Run("tracks counts and failures", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: true, Namespace: "test"})
		if err != nil {
			t.Fatalf("NewCollector() error = %v", err)
		}

		collector.RecordStage("engine_init", 10*time.Millisecond, true)
		collector.RecordStage("engine_init", 30*time.Millisecond, false)

		stages := collector.Stages()
		m, ok := stages["engine_init"]
		if !ok {
			t.Fatal("engine_init not recorded")
		}
		if m.Count != 2 || m.Failures != 1 {
			t.Errorf("Count/Failures = %d/%d, want 2/1", m.Count, m.Failures)
		}
		if m.AvgDuration != 20*time.Millisecond {
			t.Errorf("AvgDuration = %v, want 20ms", m.AvgDuration)
		}

		ok1 := testutil.ToFloat64(collector.stageCounter.With(prometheus.Labels{"stage": "engine_init", "status": "success"}))
		fail := testutil.ToFloat64(collector.stageCounter.With(prometheus.Labels{"stage": "engine_init", "status": "error"}))
		if ok1 != 1 || fail != 1 {
			t.Errorf("counter success/error = %v/%v, want 1/1", ok1, fail)
		}
	})

	t.Run("disabled collector still tracks stages", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: false})
		if err != nil {
			t.Fatalf("NewCollector() error = %v", err)
		}

		collector.RecordStage("published", time.Millisecond, true)
		collector.RecordProvision("generated", 3, true)
		collector.RecordCommand("read", time.Millisecond, true)
		collector.SetReady(2)

		if got := collector.Stages()["published"].Count; got != 1 {
			t.Errorf("Count = %d, want 1", got)
		}
		if collector.Ready() != 2 {
			t.Errorf("Ready() = %d, want 2", collector.Ready())
		}
	})

	t.Run("reset clears tracking", func(t *testing.T) {
		collector, _ := NewCollector(&Config{Enabled: true, Namespace: "test"})
		collector.RecordStage("ready", time.Millisecond, true)
		collector.ResetStages()
		if len(collector.Stages()) != 0 {
			t.Error("ResetStages() left entries behind")
		}
	})
}

func TestRecordProvision(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	collector.RecordProvision("generated", 3, true)
	collector.RecordProvision("fetched", 5, true)
	collector.RecordProvision("generated", 0, false)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"generated success", testutil.ToFloat64(collector.provisionCounter.With(prometheus.Labels{"source": "generated", "status": "success"})), 1},
		{"generated error", testutil.ToFloat64(collector.provisionCounter.With(prometheus.Labels{"source": "generated", "status": "error"})), 1},
		{"generated ids", testutil.ToFloat64(collector.provisionedIDs.With(prometheus.Labels{"source": "generated"})), 3},
		{"fetched ids", testutil.ToFloat64(collector.provisionedIDs.With(prometheus.Labels{"source": "fetched"})), 5},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	t.Run("serves registered series", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: true, Namespace: "storenode"})
		if err != nil {
			t.Fatalf("NewCollector() error = %v", err)
		}
		collector.SetReady(3)
		collector.RecordCommand("write", 2*time.Millisecond, true)

		srv := httptest.NewServer(collector.Handler())
		defer srv.Close()

		resp, err := http.Get(srv.URL)
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		for _, want := range []string{
			"storenode_backends_ready 3",
			`storenode_commands_total{op="write",status="success"} 1`,
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("body missing %q", want)
			}
		}
	})

	t.Run("disabled collector answers 404", func(t *testing.T) {
		collector, _ := NewCollector(&Config{Enabled: false})
		rec := httptest.NewRecorder()
		collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("const labels are attached", func(t *testing.T) {
		collector, _ := NewCollector(&Config{Enabled: true, Namespace: "storenode", Labels: map[string]string{"node": "n1"}})
		collector.SetReady(1)

		rec := httptest.NewRecorder()
		collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if !strings.Contains(rec.Body.String(), `storenode_backends_ready{node="n1"} 1`) {
			t.Errorf("body missing labelled gauge:\n%s", rec.Body.String())
		}
	})
}
