package idsync

import (
	"context"

	"github.com/objectfs/storenode/pkg/errors"
)

// Nop is a Syncer for nodes that keep identity sets local.
type Nop struct{}

// Fetch always reports that no cluster copy is available.
func (Nop) Fetch(_ context.Context, _ string, _ []string, backendID int) error {
	return errors.Newf(errors.ErrCodeSyncUnavailable, "cluster id sync disabled, backend %d", backendID).
		WithComponent("idsync")
}

// Push does nothing.
func (Nop) Push(context.Context, string, []string, int) error { return nil }
