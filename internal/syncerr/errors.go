// Package syncerr defines the error taxonomy shared by every package
// synchronization operation.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Kinds are strings so they print and compare
// naturally in logs and tests.
type Kind string

const (
	// MalformedDescriptor: a package or revision file could not be parsed or
	// violates the schema.
	MalformedDescriptor Kind = "MALFORMED_DESCRIPTOR"
	// MissingSourceURL: an archive must be fetched but carries no URL.
	MissingSourceURL Kind = "MISSING_SOURCE_URL"
	// HashMismatch: a file's digest differs from the recorded one.
	HashMismatch Kind = "HASH_MISMATCH"
	// UnknownPackage: a (target, package) pair or revision cannot be resolved.
	UnknownPackage Kind = "UNKNOWN_PACKAGE"
	// TransferFailure: the blob store failed to move bytes.
	TransferFailure Kind = "TRANSFER_FAILURE"
	// NotFound: the blob store has no object at the requested key.
	NotFound Kind = "NOT_FOUND"
	// AlreadyExists: a non-overwriting put hit an existing key.
	AlreadyExists Kind = "ALREADY_EXISTS"
	// IOError: a local filesystem operation failed.
	IOError Kind = "IO_ERROR"
	// InvalidInput: caller supplied arguments that cannot be used.
	InvalidInput Kind = "INVALID_INPUT"
)

// Error carries the kind of failure, the operation that raised it and the
// path, key or URL involved.
type Error struct {
	Kind Kind
	Op   string
	Ref  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Ref != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Ref)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind through the sentinel values below.
func (e *Error) Is(target error) bool {
	var k *kindSentinel
	if errors.As(target, &k) {
		return k.kind == e.Kind
	}
	return false
}

type kindSentinel struct {
	kind Kind
}

func (k *kindSentinel) Error() string {
	return string(k.kind)
}

// Sentinels usable with errors.Is.
var (
	ErrMalformedDescriptor = &kindSentinel{MalformedDescriptor}
	ErrMissingSourceURL    = &kindSentinel{MissingSourceURL}
	ErrHashMismatch        = &kindSentinel{HashMismatch}
	ErrUnknownPackage      = &kindSentinel{UnknownPackage}
	ErrTransferFailure     = &kindSentinel{TransferFailure}
	ErrNotFound            = &kindSentinel{NotFound}
	ErrAlreadyExists       = &kindSentinel{AlreadyExists}
	ErrIO                  = &kindSentinel{IOError}
	ErrInvalidInput        = &kindSentinel{InvalidInput}
)

// New creates an Error of the given kind.
func New(kind Kind, op, ref string, err error) *Error {
	return &Error{Kind: kind, Op: op, Ref: ref, Err: err}
}

// Newf creates an Error whose cause is a formatted message.
func Newf(kind Kind, op, ref, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Ref: ref, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// IsNotFound reports whether err means the remote object does not exist.
func IsNotFound(err error) bool {
	return Is(err, NotFound)
}
