package identity

import (
	"context"
	"log/slog"
	"os"

	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/utils"
)

// Source tells where a provisioned identity set came from.
type Source int

const (
	SourceLoaded Source = iota
	SourceFetched
	SourceGenerated
)

// String returns the metric label of the source.
func (s Source) String() string {
	switch s {
	case SourceLoaded:
		return "loaded"
	case SourceFetched:
		return "fetched"
	case SourceGenerated:
		return "generated"
	default:
		return "unknown"
	}
}

// Syncer fetches or pushes a backend's ids file across the cluster.
type Syncer interface {
	Fetch(ctx context.Context, path string, peers []string, backendID int) error
	Push(ctx context.Context, path string, peers []string, backendID int) error
}

// Recorder observes provisioning outcomes.
type Recorder interface {
	RecordProvision(source string, count int, ok bool)
}

// Request describes one backend to provision.
type Request struct {
	HistoryDir  string
	StorageFree uint64
	BackendID   int
}

// Result is a provisioned identity set.
type Result struct {
	IDs    Set
	Source Source
	Path   string
}

// ProvisionerConfig configures a Provisioner.
type ProvisionerConfig struct {
	Transform         Transform
	Syncer            Syncer
	KeepsIDsInCluster bool
	Peers             []string
	Logger            *slog.Logger
	Recorder          Recorder
	Generator         *Generator
}

// Provisioner produces the identity set of a backend: it loads the ids file,
// and when there is none it fetches a copy from the cluster or generates one,
// then loads again exactly once.
type Provisioner struct {
	syncer   Syncer
	keepsIDs bool
	peers    []string
	logger   *slog.Logger
	recorder Recorder
	gen      *Generator
}

// NewProvisioner creates a provisioner.
func NewProvisioner(cfg ProvisionerConfig) *Provisioner {
	gen := cfg.Generator
	if gen == nil {
		t := cfg.Transform
		if t == nil {
			t = NewBlake3Transform("")
		}
		gen = NewGenerator(t)
	}
	return &Provisioner{
		syncer:   cfg.Syncer,
		keepsIDs: cfg.KeepsIDsInCluster,
		peers:    append([]string(nil), cfg.Peers...),
		logger:   utils.Component(cfg.Logger, "identity"),
		recorder: cfg.Recorder,
		gen:      gen,
	}
}

// Path returns the ids file location inside historyDir.
func Path(historyDir string) (string, error) {
	path, err := utils.SecureJoin(historyDir, FileName)
	if err != nil {
		return "", errors.Config(errors.ErrCodeInvalidConfig, "invalid history directory '%s': %v", historyDir, err)
	}
	return path, nil
}

// Provision returns the identity set for req.
func (p *Provisioner) Provision(ctx context.Context, req Request) (Result, error) {
	res, err := p.provision(ctx, req)
	if p.recorder != nil {
		p.recorder.RecordProvision(res.Source.String(), len(res.IDs), err == nil)
	}
	return res, err
}

func (p *Provisioner) provision(ctx context.Context, req Request) (Result, error) {
	logger := p.logger.With("backend", req.BackendID)

	path, err := Path(req.HistoryDir)
	if err != nil {
		return Result{}, err
	}
	res := Result{Source: SourceLoaded, Path: path}

	ids, err := ReadFile(path)
	if errors.HasCode(err, errors.ErrCodeNotFound) {
		res.Source, err = p.create(ctx, logger, path, req)
		if err != nil {
			return res, err
		}
		ids, err = ReadFile(path)
	}
	if err != nil {
		logger.Error("failed to load ids file", "path", path, "error", err)
		return res, err
	}

	if p.keepsIDs && p.syncer != nil {
		if perr := p.syncer.Push(ctx, path, p.peers, req.BackendID); perr != nil {
			logger.Warn("failed to push ids to cluster", "path", path, "error", perr)
		}
	}

	res.IDs = ids
	logger.Info("identity set ready", "path", path, "ids", len(ids), "source", res.Source.String())
	return res, nil
}

// create materializes a missing ids file from the cluster or by generation.
func (p *Provisioner) create(ctx context.Context, logger *slog.Logger, path string, req Request) (Source, error) {
	if err := os.MkdirAll(req.HistoryDir, 0755); err != nil {
		return SourceGenerated, errors.IO(errors.ErrCodeIOOpen, err, "failed to create history directory '%s'", req.HistoryDir)
	}

	if p.keepsIDs && p.syncer != nil {
		err := p.syncer.Fetch(ctx, path, p.peers, req.BackendID)
		if err == nil {
			return SourceFetched, nil
		}
		logger.Info("no ids in cluster, generating", "path", path, "error", err)
	}

	n, err := p.gen.Generate(path, req.StorageFree)
	if err != nil {
		logger.Error("failed to generate ids", "path", path, "storage_free", req.StorageFree, "error", err)
		return SourceGenerated, err
	}
	logger.Info("generated ids", "path", path, "ids", n, "storage_free", utils.FormatBytes(int64(req.StorageFree)))
	return SourceGenerated, nil
}
