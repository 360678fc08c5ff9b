// Package errors provides error handling for frc-vision.
//
// It re-exports github.com/cockroachdb/errors so call sites get stack traces,
// wrapping and user-facing hints from one import:
//
//	if err := v.ReadInConfig(); err != nil {
//	    return errors.Wrapf(err, "read %s", path)
//	}
//	return errors.WithHint(err, "cameras[0].path must name a device")
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Inspection
var (
	Is           = crdb.Is
	As           = crdb.As
	Unwrap       = crdb.Unwrap
	UnwrapAll    = crdb.UnwrapAll
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// Sentinels shared across packages.
var (
	// ErrInvalidConfig marks a configuration problem that should stop startup.
	ErrInvalidConfig = New("invalid configuration")
)

// InvalidConfigf builds an ErrInvalidConfig with a formatted reason.
func InvalidConfigf(format string, args ...interface{}) error {
	return Wrap(ErrInvalidConfig, Newf(format, args...).Error())
}

// IsInvalidConfig reports whether err is or wraps ErrInvalidConfig.
func IsInvalidConfig(err error) bool {
	return err != nil && Is(err, ErrInvalidConfig)
}
