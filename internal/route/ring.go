// Package route keeps the node's route list: the ring of identities each
// running backend owns in the cluster hash space.
package route

import (
	"bytes"
	"log/slog"
	"sort"
	"sync"

	"github.com/objectfs/storenode/internal/identity"
	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/utils"
)

// Route is one point on the ring.
type Route struct {
	ID      identity.RawID
	Group   uint32
	Backend int
}

// Table is the ring, ordered by ID.
type Table struct {
	mu       sync.RWMutex
	ring     []Route
	backends map[int]int
	logger   *slog.Logger
}

// NewTable creates an empty table.
func NewTable(logger *slog.Logger) *Table {
	return &Table{backends: make(map[int]int), logger: utils.Component(logger, "route")}
}

// EnableBackend places ids on the ring for backendID, replacing whatever the
// backend owned before. An id owned by a different backend is a conflict and
// leaves the table unchanged.
func (t *Table) EnableBackend(group uint32, backendID int, ids identity.Set) error {
	if len(ids) == 0 {
		return errors.Config(errors.ErrCodeInvalidConfig, "backend %d has no ids to route", backendID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	next := make([]Route, 0, len(t.ring)+len(ids))
	for _, r := range t.ring {
		if r.Backend != backendID {
			next = append(next, r)
		}
	}
	for _, id := range ids {
		next = append(next, Route{ID: id, Group: group, Backend: backendID})
	}
	sort.Slice(next, func(i, j int) bool {
		return bytes.Compare(next[i].ID[:], next[j].ID[:]) < 0
	})
	for i := 1; i < len(next); i++ {
		if next[i].ID == next[i-1].ID && next[i].Backend != next[i-1].Backend {
			return errors.Newf(errors.ErrCodeConflict, "id %s claimed by backends %d and %d",
				next[i].ID, next[i-1].Backend, next[i].Backend)
		}
	}
	next = dedup(next)

	t.ring = next
	t.backends[backendID] = countOf(next, backendID)
	t.logger.Info("routes enabled", "backend", backendID, "group", group, "ids", len(ids), "ring", len(next))
	return nil
}

// DisableBackend removes every id of backendID and returns how many.
func (t *Table) DisableBackend(backendID int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.ring[:0:0]
	removed := 0
	for _, r := range t.ring {
		if r.Backend == backendID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	t.ring = kept
	delete(t.backends, backendID)
	if removed > 0 {
		t.logger.Info("routes disabled", "backend", backendID, "ids", removed)
	}
	return removed
}

// Lookup returns the route owning key: the first id not below it, wrapping
// to the start of the ring.
func (t *Table) Lookup(key identity.RawID) (Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.ring) == 0 {
		return Route{}, false
	}
	i := sort.Search(len(t.ring), func(i int) bool {
		return bytes.Compare(t.ring[i].ID[:], key[:]) >= 0
	})
	if i == len(t.ring) {
		i = 0
	}
	return t.ring[i], true
}

// Backends returns the number of ids each routed backend owns.
func (t *Table) Backends() map[int]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[int]int, len(t.backends))
	for k, v := range t.backends {
		out[k] = v
	}
	return out
}

// Len returns the ring size.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ring)
}

func dedup(rs []Route) []Route {
	if len(rs) < 2 {
		return rs
	}
	out := rs[:1]
	for _, r := range rs[1:] {
		if r.ID != out[len(out)-1].ID {
			out = append(out, r)
		}
	}
	return out
}

func countOf(rs []Route, backendID int) int {
	n := 0
	for _, r := range rs {
		if r.Backend == backendID {
			n++
		}
	}
	return n
}
