package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/storenode/pkg/errors"
)

func availableTracker(t *testing.T, config TrackerConfig, names ...string) *Tracker {
	t.Helper()
	tracker := NewTracker(config)
	for _, name := range names {
		tracker.RegisterComponent(name)
		tracker.MarkAvailable(name)
	}
	return tracker
}

func TestTracker_RegisterComponent(t *testing.T) {
	tracker := NewTracker(DefaultConfig())
	tracker.RegisterComponent("backend-0")

	if state := tracker.GetState("backend-0"); state != StateUnavailable {
		t.Errorf("Expected initial state to be StateUnavailable, got %s", state)
	}

	tracker.MarkAvailable("backend-0")
	if state := tracker.GetState("backend-0"); state != StateHealthy {
		t.Errorf("Expected StateHealthy after MarkAvailable, got %s", state)
	}

	if state := tracker.GetState("missing"); state != StateUnavailable {
		t.Errorf("Expected unknown component to be unavailable, got %s", state)
	}
}

func TestTracker_RecordError_Degradation(t *testing.T) {
	config := DefaultConfig()
	config.ErrorThreshold = 3
	tracker := availableTracker(t, config, "backend-0")

	for i := 0; i < 2; i++ {
		tracker.RecordError("backend-0", fmt.Errorf("error %d", i))
	}
	if state := tracker.GetState("backend-0"); state != StateHealthy {
		t.Errorf("Expected StateHealthy before threshold, got %s", state)
	}

	tracker.RecordError("backend-0", fmt.Errorf("error 3"))
	if state := tracker.GetState("backend-0"); state != StateDegraded {
		t.Errorf("Expected StateDegraded after threshold, got %s", state)
	}
}

func TestTracker_RecordError_Unavailable(t *testing.T) {
	config := DefaultConfig()
	config.UnavailableThreshold = 5
	tracker := availableTracker(t, config, "backend-0")

	for i := 0; i < 5; i++ {
		tracker.RecordError("backend-0", fmt.Errorf("error %d", i))
	}
	assert.Equal(t, StateUnavailable, tracker.GetState("backend-0"))

	for i := 0; i < 5; i++ {
		tracker.RecordSuccess("backend-0")
	}
	assert.Equal(t, StateHealthy, tracker.GetState("backend-0"), "error-driven outage recovers")
}

func TestTracker_RecordError_ReadOnly(t *testing.T) {
	config := DefaultConfig()
	config.ErrorThreshold = 2
	tracker := availableTracker(t, config, "backend-0")

	full := errors.Resource("memory store full")
	tracker.RecordError("backend-0", full)
	tracker.RecordError("backend-0", full)

	assert.Equal(t, StateReadOnly, tracker.GetState("backend-0"))
	assert.True(t, tracker.CanRead("backend-0"))
	assert.False(t, tracker.CanWrite("backend-0"))
}

func TestTracker_StoppedComponentIgnoresErrors(t *testing.T) {
	tracker := availableTracker(t, DefaultConfig(), "backend-0")
	tracker.MarkUnavailable("backend-0", fmt.Errorf("stopped"))

	tracker.RecordError("backend-0", fmt.Errorf("late error"))
	tracker.RecordSuccess("backend-0")

	h, err := tracker.GetComponentHealth("backend-0")
	require.NoError(t, err)
	assert.Equal(t, StateUnavailable, h.State)
	assert.Equal(t, 0, h.ConsecutiveErrors)
	assert.Equal(t, "stopped", h.LastErrorMessage)
}

func TestTracker_GetOverallHealth(t *testing.T) {
	tracker := NewTracker(DefaultConfig())
	assert.Equal(t, StateHealthy, tracker.GetOverallHealth(), "no components")

	tracker.RegisterComponent("backend-0")
	tracker.RegisterComponent("backend-1")
	assert.Equal(t, StateUnavailable, tracker.GetOverallHealth())

	tracker.MarkAvailable("backend-0")
	assert.Equal(t, StateDegraded, tracker.GetOverallHealth())

	tracker.MarkAvailable("backend-1")
	assert.Equal(t, StateHealthy, tracker.GetOverallHealth())

	assert.Equal(t, []string{"backend-0", "backend-1"}, tracker.Components())
	assert.Len(t, tracker.GetAllComponents(), 2)
}

func TestTracker_Listener(t *testing.T) {
	config := DefaultConfig()
	config.ErrorThreshold = 1
	tracker := NewTracker(config)
	tracker.RegisterComponent("backend-0")

	type change struct{ from, to HealthState }
	var changes []change
	tracker.AddListener(func(_ string, from, to HealthState, _ error) {
		changes = append(changes, change{from, to})
	})

	tracker.MarkAvailable("backend-0")
	tracker.MarkAvailable("backend-0")
	tracker.RecordError("backend-0", fmt.Errorf("boom"))
	tracker.RecordSuccess("backend-0")
	tracker.MarkUnavailable("backend-0", nil)

	assert.Equal(t, []change{
		{StateUnavailable, StateHealthy},
		{StateHealthy, StateDegraded},
		{StateDegraded, StateHealthy},
		{StateHealthy, StateUnavailable},
	}, changes)
}

func TestTracker_StartHealthChecks(t *testing.T) {
	mock := clock.NewMock()
	config := DefaultConfig()
	config.ErrorThreshold = 1
	config.UnavailableThreshold = 100
	config.HealthCheckInterval = time.Second
	tracker := NewTrackerWithClock(config, mock)
	tracker.RegisterComponent("backend-0")
	tracker.RegisterComponent("backend-1")
	tracker.MarkAvailable("backend-0")

	var (
		mu      sync.Mutex
		checked = map[string]int{}
		rounds  atomic.Int32
	)
	check := func(component string) error {
		mu.Lock()
		checked[component]++
		mu.Unlock()
		rounds.Add(1)
		return fmt.Errorf("stat failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tracker.StartHealthChecks(ctx, check)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return rounds.Load() > 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, checked["backend-1"], "stopped components are not checked")
	assert.Positive(t, checked["backend-0"])
	assert.Equal(t, StateDegraded, tracker.GetState("backend-0"))
}

func TestHealthState_String(t *testing.T) {
	tests := []struct {
		state HealthState
		want  string
	}{
		{StateHealthy, "healthy"},
		{StateDegraded, "degraded"},
		{StateReadOnly, "read-only"},
		{StateUnavailable, "unavailable"},
		{HealthState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("HealthState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestTracker_GetComponentHealth_NotRegistered(t *testing.T) {
	tracker := NewTracker(DefaultConfig())
	if _, err := tracker.GetComponentHealth("missing"); err == nil {
		t.Error("Expected error for unregistered component")
	}
}
