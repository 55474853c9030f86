// Package node assembles a storage node from its configuration: engine
// drivers, backend lifecycle, identity provisioning and cluster sync, caches,
// worker pools, statistics, health tracking and the HTTP API.
package node
