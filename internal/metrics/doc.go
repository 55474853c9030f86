/*
Package metrics exports storenode metrics through Prometheus.

# Overview

A Collector owns a private prometheus.Registry. Backend bring-up stages,
identity provisioning and dispatched commands are recorded as counters and
histograms, and the number of published backends as a gauge. Other
components that export their own series (the stat monitor, for example)
register into the same registry through Registerer.

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "storenode",
	})
	if err != nil {
		return err
	}
	mux.Handle("GET /metrics", collector.Handler())

# Exported series

	storenode_backend_stages_total{stage,status}
	storenode_backend_stage_duration_seconds{stage}
	storenode_identity_provisions_total{source,status}
	storenode_identity_ids_total{source}
	storenode_commands_total{op,status}
	storenode_command_duration_seconds{op}
	storenode_backends_ready

A disabled collector still tracks per-stage counts in memory so Stages and
Ready keep working, but nothing is exported and Handler answers 404.
*/
package metrics
