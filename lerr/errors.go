// Package lerr implements the error taxonomy from spec.md §7: a closed set
// of error kinds carried by one tagged error type, replacing the source's
// catch-by-class Promise variant (see DESIGN NOTES, "Typed error
// catch-by-class") with a plain Go sum type and errors.Is/As dispatch.
package lerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds spec.md §6/§7 require the core to surface.
type Kind string

const (
	KindConstraint            Kind = "Constraint"
	KindNotFound              Kind = "NotFound"
	KindInvalidState          Kind = "InvalidState"
	KindInvalidTable          Kind = "InvalidTable"
	KindData                  Kind = "Data"
	KindAbort                 Kind = "Abort"
	KindMissingAPI            Kind = "MissingAPI"
	KindSchema                Kind = "Schema"
	KindBlocked               Kind = "Blocked"
	KindVersionChange         Kind = "VersionChange"
	KindDatabaseClosed        Kind = "DatabaseClosed"
	KindDataClone             Kind = "DataClone"
	KindInvalidAccess         Kind = "InvalidAccess"
	KindOpenFailed            Kind = "OpenFailed"
	KindQuotaExceeded         Kind = "QuotaExceeded"
	KindReadOnly              Kind = "ReadOnly"
	KindTimeout               Kind = "Timeout"
	KindTransactionInactive   Kind = "TransactionInactive"
	// KindUnknown is the fallback for backend errors with no mapping entry.
	KindUnknown Kind = "Unknown"
)

// Error is the single concrete error type for every kind in the taxonomy.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, lerr.New(KindX, "")) to match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind carrying cause as its inner
// error, preserved for errors.Unwrap the way spec.md §6 requires for
// unmapped backend errors.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or KindUnknown if err is not (or does
// not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
