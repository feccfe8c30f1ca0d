// Package errors defines the typed error kinds used across KotaDB's storage,
// index, graph, and query layers, plus the small amount of propagation policy
// (retry-once for IO, wrap-with-query-kind) that sits on top of them.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies the category of a KotaDB error. HTTP and MCP transports map
// Kind to status codes / JSON-RPC error codes at the edge; nothing below the
// transport layer should need to know about either.
type Kind string

const (
	NotFound      Kind = "not_found"
	AlreadyExists Kind = "already_exists"
	BadRequest    Kind = "bad_request"
	Corruption    Kind = "corruption"
	IO            Kind = "io"
	Cancelled     Kind = "cancelled"
	Unavailable   Kind = "unavailable"
	Internal      Kind = "internal"
)

// Error is the typed error carried through every storage, index, graph, and
// query operation. Op names the failing operation (e.g. "DocumentStore.Put",
// "find-callers"); TraceID is attached by the HTTP/MCP layer at the request
// boundary and echoed back in every error body per the trace-id requirement.
type Error struct {
	Kind       Kind
	Op         string
	TraceID    string
	Underlying error
	Timestamp  time.Time
}

// New creates an Error of the given kind for the named operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{
		Kind:       kind,
		Op:         op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithTrace attaches a trace id, returning the same error for chaining.
func (e *Error) WithTrace(traceID string) *Error {
	e.TraceID = traceID
	return e
}

func (e *Error) Error() string {
	if e.Underlying == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Underlying)
}

// Unwrap lets errors.Is/errors.As see through to the underlying cause.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is reports whether target shares this error's Kind, so callers can write
// errors.Is(err, errors.IsNotFound) style checks against the sentinel values
// below instead of comparing Kind fields directly.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && e.Kind == Kind(k)
}

type kindSentinel Kind

// Sentinel values usable with errors.Is(err, errors.IsNotFound), etc. Each is
// a distinct type from *Error so a plain Kind comparison never accidentally
// matches an unrelated error.
var (
	IsNotFound      error = kindSentinel(NotFound)
	IsAlreadyExists error = kindSentinel(AlreadyExists)
	IsBadRequest    error = kindSentinel(BadRequest)
	IsCorruption    error = kindSentinel(Corruption)
	IsIO            error = kindSentinel(IO)
	IsCancelled     error = kindSentinel(Cancelled)
	IsUnavailable   error = kindSentinel(Unavailable)
	IsInternal      error = kindSentinel(Internal)
)

func (k kindSentinel) Error() string { return string(k) }

// KindOf extracts the Kind of err, walking Unwrap chains. Unrecognized errors
// report Internal, matching §7's "invariant violation" catch-all.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Wrap re-tags err as having occurred during the named query/operation,
// preserving its Kind unless it isn't already an *Error, in which case it is
// wrapped as Internal. Cancelled errors pass through unchanged per §7 ("the
// query layer surfaces Cancelled unchanged").
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == Cancelled {
			return e
		}
		return New(e.Kind, op, e.Underlying)
	}
	return New(Internal, op, err)
}

// Retry runs fn once, and if it fails with an IO-kind error, retries exactly
// once before surfacing the failure. Corruption and every other kind are
// never retried, per §7's propagation policy.
func Retry(op string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if KindOf(err) != IO {
		return err
	}
	if retryErr := fn(); retryErr == nil {
		return nil
	} else {
		return New(IO, op, retryErr)
	}
}
