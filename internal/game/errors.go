// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every command failure so callers can decide to retry, reformulate or surface it.
type ErrorKind string

const (
	KindInvalidOffer      ErrorKind = "invalid_offer"
	KindAlreadyOwned      ErrorKind = "already_owned"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindMonopolyRequired  ErrorKind = "monopoly_required"
	KindUnevenBuild       ErrorKind = "uneven_build"
	KindInvalidState      ErrorKind = "invalid_state"
	KindTransferConflict  ErrorKind = "transfer_conflict"
	KindNotFound          ErrorKind = "not_found"
)

// Error is a typed engine failure.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidOffer      = &Error{Kind: KindInvalidOffer}
	ErrAlreadyOwned      = &Error{Kind: KindAlreadyOwned}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrMonopolyRequired  = &Error{Kind: KindMonopolyRequired}
	ErrUnevenBuild       = &Error{Kind: KindUnevenBuild}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrTransferConflict  = &Error{Kind: KindTransferConflict}
	ErrNotFound          = &Error{Kind: KindNotFound}
)

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of an engine error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
