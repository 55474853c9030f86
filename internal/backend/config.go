package backend

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/objectfs/storenode/pkg/errors"
)

// Config is the working configuration of one bring-up. Drivers receive it
// in Init and may record StorageFree into it.
type Config struct {
	BackendID  int
	Group      uint32
	HistoryDir string

	// StorageFree is the free space the engine reports, in bytes.
	StorageFree uint64

	// Data holds driver settings written by option callbacks.
	Data any

	Log *slog.Logger
}

// OptionEntry describes one option a driver accepts.
type OptionEntry struct {
	Key      string
	Default  string
	Callback func(cfg *Config, key, value string) error
}

// OptionValue is a configured option: its template and its runtime value.
type OptionValue struct {
	Entry    OptionEntry
	Template string
	Value    string
}

// Info is the static descriptor of a configured backend.
type Info struct {
	ID      int
	Type    string
	Group   uint32
	History string
	Driver  Driver
	Options []*OptionValue
	Log     *slog.Logger

	config *Config
}

// NewInfo builds the descriptor of backend id. Options not declared by the
// driver are rejected.
func NewInfo(id int, group uint32, history string, driver Driver, options map[string]string, logger *slog.Logger) (*Info, error) {
	if driver == nil {
		return nil, errors.Config(errors.ErrCodeUnknownDriver, "backend %d has no driver", id)
	}

	entries := driver.Options()
	known := make(map[string]struct{}, len(entries))
	values := make([]*OptionValue, 0, len(entries))
	for _, e := range entries {
		known[e.Key] = struct{}{}
		tmpl := e.Default
		if v, ok := options[e.Key]; ok {
			tmpl = v
		}
		values = append(values, &OptionValue{Entry: e, Template: tmpl, Value: tmpl})
	}

	var unknown []string
	for k := range options {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.Config(errors.ErrCodeInvalidOption, "backend %d: unknown %s options: %s",
			id, driver.Name(), strings.Join(unknown, ", "))
	}

	return &Info{
		ID:      id,
		Type:    driver.Name(),
		Group:   group,
		History: history,
		Driver:  driver,
		Options: values,
		Log:     logger,
	}, nil
}

// Reset restores every option to its template, creates fresh driver data and
// rebinds the working config to it.
func (i *Info) Reset() *Config {
	for _, ov := range i.Options {
		ov.Value = ov.Template
	}
	i.config = &Config{
		BackendID:  i.ID,
		Group:      i.Group,
		HistoryDir: i.History,
		Data:       i.Driver.NewData(),
		Log:        i.Log,
	}
	return i.config
}

// Config returns the working config of the last reset, or nil.
func (i *Info) Config() *Config {
	return i.config
}

// apply runs every option callback against cfg.
func (i *Info) apply(cfg *Config) error {
	for _, ov := range i.Options {
		if ov.Entry.Callback == nil {
			continue
		}
		if err := ov.Entry.Callback(cfg, ov.Entry.Key, ov.Value); err != nil {
			return errors.Config(errors.ErrCodeInvalidOption, "backend %d: option '%s' = '%s': %v",
				i.ID, ov.Entry.Key, ov.Value, err).WithCause(err)
		}
	}
	return nil
}
