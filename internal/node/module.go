package node

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/objectfs/storenode/internal/config"
	"github.com/objectfs/storenode/pkg/errors"
)

// Params are the dependencies of the node module.
type Params struct {
	fx.In

	LC      fx.Lifecycle
	Config  *config.Configuration
	Logger  *slog.Logger
	Options []Option `optional:"true"`
}

// Module provides a *Node whose Start and Stop follow the fx lifecycle.
func Module() fx.Option {
	return fx.Module("node",
		fx.Provide(provide),
		fx.Invoke(func(*Node) {}),
	)
}

func provide(p Params) (*Node, error) {
	n, err := New(context.Background(), p.Config, p.Logger, p.Options...)
	if err != nil {
		return nil, err
	}
	p.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			err := n.Start(ctx)
			if err == nil {
				return nil
			}
			failed := len(multierr.Errors(err))
			if n.manager.Len() > 0 && failed == n.manager.Len() {
				_ = n.Stop(ctx)
				return errors.Newf(errors.ErrCodeNotStarted, "all %d backends failed to start", failed).WithCause(err)
			}
			n.logger.Error("some backends failed to start", "failed", failed, "error", err)
			return nil
		},
		OnStop: n.Stop,
	})
	return n, nil
}
