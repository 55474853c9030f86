package backend

import (
	"strconv"

	"github.com/objectfs/storenode/internal/monitor"
)

// StatProvider exposes a backend's engine statistics to the monitor.
type StatProvider struct {
	engine Engine
}

// NewStatProvider creates the provider of h.
func NewStatProvider(h *Handle) *StatProvider {
	return &StatProvider{engine: h.Engine}
}

// ProviderName is the monitor name of backend id.
func ProviderName(id int) string {
	return "backend-" + strconv.Itoa(id)
}

// JSON returns the engine's statistics.
func (p *StatProvider) JSON() ([]byte, error) {
	return p.engine.StatJSON()
}

// Stop is a no-op; the engine is closed by the lifecycle manager.
func (p *StatProvider) Stop() {}

// CheckCategory accepts the backend category and "all".
func (p *StatProvider) CheckCategory(c monitor.Category) bool {
	return c == monitor.CategoryBackend || c == monitor.CategoryAll
}
