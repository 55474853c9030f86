package idsync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/objectfs/storenode/internal/circuit"
	"github.com/objectfs/storenode/internal/identity"
	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/retry"
	"github.com/objectfs/storenode/pkg/utils"
)

// PathPrefix is the URL prefix of the ids endpoints.
const PathPrefix = "/v1/ids/"

// maxBody bounds an ids payload exchanged with peers or a bucket to 1<<20
// records, the set of a backend with 100 PiB free.
const maxBody = int64(1<<20) * identity.IDSize

// HTTPConfig configures an HTTPSyncer.
type HTTPConfig struct {
	// Node names this node's sets on the peers.
	Node    string
	Timeout time.Duration
	Retry   retry.Config
	// Breaker, when set, stops traffic to a peer after repeated failures.
	Breaker *circuit.Config
	Client  *http.Client
	Logger  *slog.Logger
}

// HTTPSyncer exchanges ids files with peers over HTTP.
type HTTPSyncer struct {
	node     string
	client   *http.Client
	retryer  *retry.Retryer
	breakers *circuit.Manager
	logger   *slog.Logger
}

// NewHTTPSyncer creates an HTTP syncer.
func NewHTTPSyncer(cfg HTTPConfig) (*HTTPSyncer, error) {
	if cfg.Node == "" || strings.Contains(cfg.Node, "/") {
		return nil, errors.Config(errors.ErrCodeInvalidConfig, "invalid node name '%s'", cfg.Node)
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	s := &HTTPSyncer{
		node:    cfg.Node,
		client:  client,
		retryer: retry.New(cfg.Retry),
		logger:  utils.Component(cfg.Logger, "idsync"),
	}
	if cfg.Breaker != nil {
		bc := *cfg.Breaker
		if bc.IsFailure == nil {
			bc.IsFailure = retry.Transient
		}
		if bc.OnStateChange == nil {
			bc.OnStateChange = func(peer string, from, to circuit.State) {
				s.logger.Warn("peer circuit changed", "peer", peer, "from", from.String(), "to", to.String())
			}
		}
		s.breakers = circuit.NewManager(bc)
	}
	return s, nil
}

// Breakers returns the per-peer circuit breakers, or nil when disabled.
func (s *HTTPSyncer) Breakers() *circuit.Manager {
	return s.breakers
}

func (s *HTTPSyncer) guard(ctx context.Context, peer string, fn func(context.Context) error) error {
	if s.breakers == nil {
		return fn(ctx)
	}
	return s.breakers.Get(peer).Execute(ctx, fn)
}

// URL returns the ids endpoint of backendID on peer.
func URL(peer, node string, backendID int) string {
	base := peer
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return strings.TrimRight(base, "/") + PathPrefix + node + "/" + strconv.Itoa(backendID)
}

// Fetch writes the first valid set a peer returns to path.
func (s *HTTPSyncer) Fetch(ctx context.Context, path string, peers []string, backendID int) error {
	if len(peers) == 0 {
		return errors.Newf(errors.ErrCodeSyncUnavailable, "no peers to fetch ids of backend %d from", backendID).
			WithComponent("idsync").WithOperation("fetch")
	}

	var errs error
	for _, peer := range peers {
		var ids identity.Set
		err := s.guard(ctx, peer, func(ctx context.Context) error {
			var err error
			ids, err = s.fetchOne(ctx, peer, backendID)
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", peer, err))
			continue
		}
		if err := identity.WriteFile(path, ids); err != nil {
			return err
		}
		s.logger.Info("fetched ids from peer", "peer", peer, "backend", backendID, "ids", len(ids))
		return nil
	}
	return errors.Collaborator(errors.ErrCodePeerSync, errs, "no peer returned ids for backend %d", backendID).
		WithComponent("idsync").WithOperation("fetch")
}

func (s *HTTPSyncer) fetchOne(ctx context.Context, peer string, backendID int) (identity.Set, error) {
	var ids identity.Set
	err := s.retryer.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, URL(peer, s.node, backendID), nil)
		if err != nil {
			return errors.Config(errors.ErrCodeInvalidConfig, "bad peer address '%s': %v", peer, err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return errors.Collaborator(errors.ErrCodePeerSync, err, "get ids")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
		if err != nil {
			return errors.Collaborator(errors.ErrCodePeerSync, err, "read ids body")
		}
		ids, err = identity.Decode(data)
		return err
	})
	return ids, err
}

// Push sends the ids file at path to every peer.
func (s *HTTPSyncer) Push(ctx context.Context, path string, peers []string, backendID int) error {
	ids, err := identity.ReadFile(path)
	if err != nil {
		return err
	}
	body := identity.Encode(ids)

	var errs error
	for _, peer := range peers {
		err := s.guard(ctx, peer, func(ctx context.Context) error {
			return s.retryer.Do(ctx, func(ctx context.Context) error {
				return s.pushOne(ctx, peer, backendID, body)
			})
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", peer, err))
		}
	}
	if errs != nil {
		return errors.Collaborator(errors.ErrCodePeerSync, errs, "push ids of backend %d", backendID).
			WithComponent("idsync").WithOperation("push")
	}
	s.logger.Debug("pushed ids to peers", "backend", backendID, "peers", len(peers), "ids", len(ids))
	return nil
}

func (s *HTTPSyncer) pushOne(ctx context.Context, peer string, backendID int, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, URL(peer, s.node, backendID), bytes.NewReader(body))
	if err != nil {
		return errors.Config(errors.ErrCodeInvalidConfig, "bad peer address '%s': %v", peer, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Collaborator(errors.ErrCodePeerSync, err, "put ids")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	return nil
}

// statusError maps a peer response to an error; only 5xx is retryable.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.Newf(errors.ErrCodeNotFound, "peer has no ids")
	case resp.StatusCode >= 500:
		return errors.Newf(errors.ErrCodePeerSync, "peer returned %s", resp.Status)
	default:
		return errors.Newf(errors.ErrCodeInvalidConfig, "peer rejected request: %s", resp.Status)
	}
}
