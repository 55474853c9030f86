// Package engine holds helpers shared by the storage engine drivers.
package engine

import (
	"strconv"

	"github.com/objectfs/storenode/internal/backend"
	"github.com/objectfs/storenode/pkg/errors"
	"github.com/objectfs/storenode/pkg/utils"
)

// Data returns the driver settings carried by cfg.
func Data[T any](cfg *backend.Config) (*T, error) {
	data, ok := cfg.Data.(*T)
	if !ok || data == nil {
		return nil, errors.Newf(errors.ErrCodeInternalError, "backend %d: unexpected driver data %T", cfg.BackendID, cfg.Data)
	}
	return data, nil
}

// BoolOption declares a boolean option stored through set.
func BoolOption[T any](key, def string, set func(*T, bool)) backend.OptionEntry {
	return backend.OptionEntry{
		Key:     key,
		Default: def,
		Callback: func(cfg *backend.Config, _, value string) error {
			data, err := Data[T](cfg)
			if err != nil {
				return err
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			set(data, b)
			return nil
		},
	}
}

// SizeOption declares a byte size option ("64MiB", "100G") stored through set.
func SizeOption[T any](key, def string, set func(*T, int64)) backend.OptionEntry {
	return backend.OptionEntry{
		Key:     key,
		Default: def,
		Callback: func(cfg *backend.Config, _, value string) error {
			data, err := Data[T](cfg)
			if err != nil {
				return err
			}
			n, err := utils.ParseBytes(value)
			if err != nil {
				return err
			}
			set(data, n)
			return nil
		},
	}
}

// StringOption declares a free-form option stored through set.
func StringOption[T any](key, def string, set func(*T, string)) backend.OptionEntry {
	return backend.OptionEntry{
		Key:     key,
		Default: def,
		Callback: func(cfg *backend.Config, _, value string) error {
			data, err := Data[T](cfg)
			if err != nil {
				return err
			}
			set(data, value)
			return nil
		},
	}
}

// NotFound is the error engines return for a missing key.
func NotFound(key []byte) error {
	return errors.Newf(errors.ErrCodeNotFound, "key %q not found", key)
}

// BadCommand is the error engines return for a malformed command.
func BadCommand(cmd *backend.Command, reason string) error {
	return errors.Newf(errors.ErrCodeEngineCommand, "%s command rejected: %s", cmd.Op, reason)
}
