// Package lherr defines the closed set of error kinds the design surfaces both
// through a pledge's check_status and through HTTP error bodies. Kinds are
// wrapped with github.com/go-errors/errors so a stack trace survives from
// the point of failure to wherever it's logged.
package lherr

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind is one of the closed set of error kinds the design defines.
type Kind int

const (
	_ Kind = iota
	BadProject
	BadPledgeShape
	PledgeTooSmall
	GoalExceeded
	DuplicatedOutpoint
	OutputsUnspendable
	InconsistentUTXOAnswers
	ScriptFailed
	Timeout
	Offline
	ClaimBroadcastFailed
	ValueMismatch
	Unauthorized
	Conflict
)

var kindNames = map[Kind]string{
	BadProject:              "BadProject",
	BadPledgeShape:          "BadPledgeShape",
	PledgeTooSmall:          "PledgeTooSmall",
	GoalExceeded:            "GoalExceeded",
	DuplicatedOutpoint:      "DuplicatedOutpoint",
	OutputsUnspendable:      "OutputsUnspendable",
	InconsistentUTXOAnswers: "InconsistentUTXOAnswers",
	ScriptFailed:            "ScriptFailed",
	Timeout:                 "Timeout",
	Offline:                 "Offline",
	ClaimBroadcastFailed:    "ClaimBroadcastFailed",
	ValueMismatch:           "ValueMismatch",
	Unauthorized:            "Unauthorized",
	Conflict:                "Conflict",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Transient reports whether this kind is recovered locally by retry (on
// block-tip change or explicit refresh) rather than being a terminal
// rejection of the pledge or project that caused it, per the error
// propagation policy.
func (k Kind) Transient() bool {
	switch k {
	case Timeout, InconsistentUTXOAnswers, Offline:
		return true
	default:
		return false
	}
}

// Error is a Kind plus a human-readable detail and, optionally, a numeric
// delta (used by ValueMismatch and by bitcoinview's quorum Timeout).
type Error struct {
	Kind   Kind
	Detail string
	Delta  int64
	cause  error
}

// New builds an *Error of the given kind, wrapping cause (if non-nil) with
// go-errors so the originating stack is preserved.
func New(kind Kind, detail string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = goerrors.Wrap(cause, 1)
	}
	return &Error{Kind: kind, Detail: detail, cause: wrapped}
}

// WithDelta attaches a numeric delta: for ValueMismatch the goal amount
// minus the submitted sum; for a Timeout from bitcoinview.Reconcile the
// number of peer answers still missing from the quorum.
func (e *Error) WithDelta(delta int64) *Error {
	e.Delta = delta
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps a Kind to the status code the design assigns it.
func (k Kind) HTTPStatus() int {
	switch k {
	case BadProject, BadPledgeShape, PledgeTooSmall, ValueMismatch:
		return 400
	case Unauthorized:
		return 401
	case DuplicatedOutpoint, Conflict, OutputsUnspendable, ScriptFailed, GoalExceeded:
		return 409
	case Timeout, InconsistentUTXOAnswers, Offline, ClaimBroadcastFailed:
		return 503
	default:
		return 500
	}
}
