// Package badger is a persistent storage engine backed by BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/objectfs/storenode/internal/backend"
	"github.com/objectfs/storenode/internal/engine"
	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/utils"
)

// Name is the backend type of this driver.
const Name = "badger"

// Settings are the options of a badger backend.
type Settings struct {
	// Path is the database directory. Empty means "<history>/data".
	Path             string
	SyncWrites       bool
	ValueLogFileSize int64
	InMemory         bool
}

// Driver creates badger engines.
type Driver struct{}

// NewDriver returns the badger driver.
func NewDriver() *Driver {
	return &Driver{}
}

// Name returns "badger".
func (Driver) Name() string { return Name }

// Options declares path, sync_writes, value_log_file_size and in_memory.
func (Driver) Options() []backend.OptionEntry {
	return []backend.OptionEntry{
		engine.StringOption("path", "", func(s *Settings, v string) { s.Path = v }),
		engine.BoolOption("sync_writes", "false", func(s *Settings, b bool) { s.SyncWrites = b }),
		engine.SizeOption("value_log_file_size", "64MiB", func(s *Settings, n int64) { s.ValueLogFileSize = n }),
		engine.BoolOption("in_memory", "false", func(s *Settings, b bool) { s.InMemory = b }),
	}
}

// NewData returns empty settings.
func (Driver) NewData() any {
	return &Settings{}
}

// Init opens the database and records the free space of its filesystem.
// In-memory databases report no free space.
func (Driver) Init(cfg *backend.Config) (backend.Engine, error) {
	s, err := engine.Data[Settings](cfg)
	if err != nil {
		return nil, err
	}
	logger := utils.Component(cfg.Log, "badger").With("backend", cfg.BackendID)

	var opts badger.Options
	if s.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
		cfg.StorageFree = 0
	} else {
		dir := s.Path
		if dir == "" {
			if dir, err = utils.SecureJoin(cfg.HistoryDir, "data"); err != nil {
				return nil, errors.Config(errors.ErrCodeInvalidOption, "backend %d: %v", cfg.BackendID, err)
			}
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.IO(errors.ErrCodeIOOpen, err, "failed to create database directory '%s'", dir)
		}
		free, err := engine.FreeSpace(dir)
		if err != nil {
			return nil, err
		}
		cfg.StorageFree = free
		opts = badger.DefaultOptions(dir)
	}

	opts = opts.
		WithSyncWrites(s.SyncWrites).
		WithValueLogFileSize(s.ValueLogFileSize).
		WithLogger(&badgerLogger{logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Engine(errors.StatusOf(err), err, "failed to open badger database")
	}
	logger.Info("badger database opened", "dir", opts.Dir, "in_memory", s.InMemory,
		"storage_free", utils.FormatBytes(int64(cfg.StorageFree)))
	return &Engine{db: db, inMemory: s.InMemory}, nil
}

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(line(format, args))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(line(format, args))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(line(format, args))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(line(format, args))
}

func line(format string, args []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}

// Engine is a badger-backed engine.
type Engine struct {
	db       *badger.DB
	inMemory bool
	closed   atomic.Bool

	stats struct {
		reads   atomic.Int64
		writes  atomic.Int64
		deletes atomic.Int64
		misses  atomic.Int64
	}
}

// Stats is the JSON statistics document of an engine.
type Stats struct {
	LSMSize   int64 `json:"lsm_size"`
	VlogSize  int64 `json:"vlog_size"`
	NumTables int   `json:"num_tables"`
	InMemory  bool  `json:"in_memory"`
	Reads     int64 `json:"reads"`
	Writes    int64 `json:"writes"`
	Deletes   int64 `json:"deletes"`
	Misses    int64 `json:"misses"`
}

// Stats returns the database sizes and command counters.
func (e *Engine) Stats() Stats {
	lsm, vlog := e.db.Size()
	return Stats{
		LSMSize:   lsm,
		VlogSize:  vlog,
		NumTables: len(e.db.Tables()),
		InMemory:  e.inMemory,
		Reads:     e.stats.reads.Load(),
		Writes:    e.stats.writes.Load(),
		Deletes:   e.stats.deletes.Load(),
		Misses:    e.stats.misses.Load(),
	}
}

// StatJSON renders Stats.
func (e *Engine) StatJSON() ([]byte, error) {
	if e.closed.Load() {
		return nil, errors.NewError(errors.ErrCodeNotStarted, "badger engine is closed")
	}
	return json.Marshal(e.Stats())
}

// Command executes cmd in its own transaction.
func (e *Engine) Command(ctx context.Context, cmd *backend.Command) (*backend.Reply, error) {
	if e.closed.Load() {
		return nil, errors.NewError(errors.ErrCodeNotStarted, "badger engine is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(cmd.Key) == 0 {
		return nil, engine.BadCommand(cmd, "empty key")
	}

	switch cmd.Op {
	case backend.OpRead:
		return e.get(cmd.Key)
	case backend.OpWrite:
		err := e.db.Update(func(txn *badger.Txn) error {
			return txn.Set(cmd.Key, cmd.Value)
		})
		if err != nil {
			return nil, convertError(cmd, err)
		}
		e.stats.writes.Add(1)
		return &backend.Reply{}, nil
	case backend.OpDelete:
		err := e.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(cmd.Key)
		})
		if err != nil {
			return nil, convertError(cmd, err)
		}
		e.stats.deletes.Add(1)
		return &backend.Reply{}, nil
	default:
		return nil, engine.BadCommand(cmd, "unsupported operation")
	}
}

func (e *Engine) get(key []byte) (*backend.Reply, error) {
	e.stats.reads.Add(1)

	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		e.stats.misses.Add(1)
		return nil, engine.NotFound(key)
	}
	if err != nil {
		return nil, convertError(&backend.Command{Op: backend.OpRead, Key: key}, err)
	}
	return &backend.Reply{Value: value}, nil
}

// Close closes the database once.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.db.Close()
}

func convertError(cmd *backend.Command, err error) error {
	switch {
	case stderrors.Is(err, badger.ErrTxnTooBig):
		return errors.Resource("%s of %d bytes exceeds the transaction limit", cmd.Op, len(cmd.Value))
	case stderrors.Is(err, badger.ErrEmptyKey), stderrors.Is(err, badger.ErrInvalidKey):
		return engine.BadCommand(cmd, err.Error())
	default:
		return errors.Newf(errors.ErrCodeEngineCommand, "%s failed", cmd.Op).WithCause(err)
	}
}

var _ backend.Engine = (*Engine)(nil)
var _ backend.Driver = Driver{}
