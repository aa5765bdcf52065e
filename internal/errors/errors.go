// Package errors provides error handling for goldfinch.
//
// It re-exports github.com/cockroachdb/errors so that every error carries a
// stack trace and, where the author can act on it, a hint:
//
//	return errors.WithHint(
//	    errors.Newf("type %s is not exported", name),
//	    "use visibility=internal or export the type",
//	)
//
// Sentinels are attached to contextual errors with Mark so errors.Is keeps
// working after the message has been rewritten.
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
	Join         = crdb.Join
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
	Mark         = crdb.Mark
	Unwrap       = crdb.Unwrap
	UnwrapAll    = crdb.UnwrapAll
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)
