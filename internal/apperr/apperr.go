// Package apperr defines the error-kind taxonomy shared by every domain
// package and mapped onto HTTP status codes at the surface layer only.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way §7 of the spec requires. The HTTP
// surface is the only place that translates a Kind into a status code —
// every other package just returns an *Error built with New or Wrap.
type Kind int

const (
	Internal Kind = iota
	BadRequest
	PathEscaped
	AuthFailed
	NotFound
	Gone
	AlreadyExists
	Conflict
	IsADirectory
	AssemblyFailed
)

var names = map[Kind]string{
	Internal:       "Internal",
	BadRequest:     "BadRequest",
	PathEscaped:    "PathEscaped",
	AuthFailed:     "AuthFailed",
	NotFound:       "NotFound",
	Gone:           "Gone",
	AlreadyExists:  "AlreadyExists",
	Conflict:       "Conflict",
	IsADirectory:   "IsADirectory",
	AssemblyFailed: "AssemblyFailed",
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return "Unknown"
}

// Error pairs a Kind with a human-readable message and optional cause.
// It implements Unwrap so errors.Is/errors.As see through it to the
// underlying cause, matching the teacher's plain fmt.Errorf %w idiom.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an *Error of the given kind with no wrapped cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an *Error of the given kind wrapping cause.
func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// As reports the Kind of err, walking the wrap chain. ok is false when err
// is nil or carries no *Error in its chain, in which case callers should
// treat it as Internal.
func As(err error) (Kind, bool) {
	if err == nil {
		return Internal, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Internal, false
}

// Is reports whether err's Kind (anywhere in its wrap chain) equals kind.
func Is(err error, kind Kind) bool {
	k, ok := As(err)
	return ok && k == kind
}
