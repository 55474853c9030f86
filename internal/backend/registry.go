package backend

import (
	"sync"

	"github.com/objectfs/storenode/pkg/errors"
)

// MaxBackends bounds the registry table.
const MaxBackends = 1 << 16

// Registry is the index-addressed table of running backends shared by the
// lifecycle manager, the I/O path and routing. One lock covers the table and
// every slot, and it is never held across engine or filesystem calls.
type Registry struct {
	mu      sync.RWMutex
	static  int
	handles []*Handle
}

// NewRegistry creates an empty registry for a node configured with static
// backends. No table is allocated until the first EnsureCapacity or Publish.
func NewRegistry(static int) *Registry {
	if static < 0 {
		static = 0
	}
	return &Registry{static: static}
}

// EnsureCapacity grows the table to hold at least n slots. The table is sized
// to max(n, static) and never shrinks. Existing slots are preserved.
func (r *Registry) EnsureCapacity(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureLocked(n)
}

func (r *Registry) ensureLocked(n int) error {
	if n <= len(r.handles) {
		return nil
	}
	size := n
	if r.static > size {
		size = r.static
	}
	if size > MaxBackends {
		return errors.Resource("backend table of %d slots exceeds limit %d", size, MaxBackends).
			WithComponent("registry").WithOperation("ensure_capacity")
	}

	grown := make([]*Handle, size)
	copy(grown, r.handles)
	r.handles = grown
	return nil
}

// Publish stores h at index id, growing the table first. A reader that
// observes the slot afterwards sees the fully constructed handle.
func (r *Registry) Publish(id int, h *Handle) error {
	if id < 0 {
		return errors.Config(errors.ErrCodeInvalidBackend, "invalid backend index %d", id)
	}
	if h == nil {
		return errors.Newf(errors.ErrCodeInternalError, "nil handle for backend %d", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLocked(id + 1); err != nil {
		return err
	}
	if cur := r.handles[id]; cur != nil && cur != h {
		return errors.Newf(errors.ErrCodeConflict, "backend %d already published (session %s)", id, cur.Session).
			WithComponent("registry").WithOperation("publish")
	}
	r.handles[id] = h
	return nil
}

// Lookup returns the handle at id.
func (r *Registry) Lookup(id int) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.handles) {
		return nil, false
	}
	h := r.handles[id]
	return h, h != nil
}

// Take clears the slot at id and returns what it held. It does not release
// anything the handle owns.
func (r *Registry) Take(id int) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.handles) {
		return nil, false
	}
	h := r.handles[id]
	r.handles[id] = nil
	return h, h != nil
}

// takeIf clears the slot only while it still holds h.
func (r *Registry) takeIf(id int, h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.handles) || r.handles[id] != h {
		return false
	}
	r.handles[id] = nil
	return true
}

// Cap returns the current table size.
func (r *Registry) Cap() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Len returns the number of published backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, h := range r.handles {
		if h != nil {
			n++
		}
	}
	return n
}

// Handles returns the published handles ordered by index.
func (r *Registry) Handles() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}
