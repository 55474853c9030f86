/*
Package config loads and validates the storenode configuration.

Values come from three layers, later ones overriding earlier ones: the
compiled-in defaults of NewDefault, a YAML file (LoadFromFile) and
STORENODE_* environment variables (LoadFromEnv). Validate must pass before
the configuration is handed to the node.

# Example

	global:
	  log_level: INFO
	  log_format: json
	node:
	  name: node-a
	  peers: ["10.0.0.2:8080", "10.0.0.3:8080"]
	  keeps_ids_in_cluster: true
	api:
	  listen_address: ":8080"
	  id_store_dir: /var/lib/storenode/ids
	sync:
	  mode: http
	backends:
	  - id: 0
	    type: badger
	    group: 1
	    history: /var/lib/storenode/0
	    options:
	      sync_writes: "true"
	  - id: 1
	    type: memory
	    group: 2
	    history: /var/lib/storenode/1
	    options:
	      capacity: 8GiB

# Backends

Backend ids must be exactly 0..n-1. Each backend needs a non-zero group and
a history directory, which holds its ids file. The type names a registered
engine driver; unknown types and options are rejected when the node is
assembled, since only the driver knows which options it accepts.

# Sync modes

	none  ids files stay local
	http  sets are pushed to and fetched from peers' /v1/ids/ endpoints;
	      this node serves its own store from api.id_store_dir
	s3    sets live in a bucket shared by the cluster

node.keeps_ids_in_cluster requires a sync mode other than none.
*/
package config
