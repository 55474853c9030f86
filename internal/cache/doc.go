/*
Package cache provides the per-backend read cache.

Every running backend gets its own bounded LRU with an optional entry TTL,
built on hashicorp/golang-lru's expirable cache. The Manager creates a cache
when a backend comes up and forgets it when the cache is closed during
teardown. The I/O pool consults the cache before dispatching reads to the
engine and keeps it coherent on writes and deletes.

	┌──────────────┐   Get    ┌──────────────┐  miss  ┌──────────────┐
	│   I/O pool   │ ───────▶ │ backend LRU  │ ─────▶ │    engine    │
	└──────────────┘          └──────────────┘        └──────────────┘

The Manager also serves as the monitor's "cache" statistics provider,
reporting hits, misses, evictions and size for each backend.
*/
package cache
