// Package idsync moves backend ids files between a node and the rest of the
// cluster.
//
// A Syncer fetches a backend's identity set from the cluster when the local
// ids file is missing, and pushes the loaded set back so peers converge on
// the same copy. Three implementations are provided:
//
//   - Nop, for nodes that never share identity sets.
//   - HTTPSyncer, which talks to the Store handler mounted on each peer's
//     API server under /v1/ids/.
//   - S3Syncer, which uses a bucket as the rendezvous and ignores peers.
//
// Every set crossing the wire is validated with the identity codec before it
// is written to disk.
package idsync
