package errors

import (
	"errors"
	"testing"
)

func TestErrorUnwrapAndIs(t *testing.T) {
	underlying := errors.New("checksum mismatch")
	err := New(Corruption, "PageStore.Read", underlying).WithTrace("trace-1")

	if !errors.Is(err, underlying) {
		t.Fatalf("expected Unwrap to expose underlying error")
	}
	if !errors.Is(err, IsCorruption) {
		t.Fatalf("expected errors.Is(err, IsCorruption) to match")
	}
	if errors.Is(err, IsNotFound) {
		t.Fatalf("did not expect errors.Is(err, IsNotFound) to match")
	}
	if err.TraceID != "trace-1" {
		t.Fatalf("expected trace id to stick, got %q", err.TraceID)
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(NotFound, "DocumentStore.Get", nil)
	if got, want := err.Error(), "DocumentStore.Get: not_found"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}

	wrapped := New(IO, "PageStore.Write", errors.New("disk full"))
	if got, want := wrapped.Error(), "PageStore.Write: io: disk full"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("plain")) != Internal {
		t.Fatalf("expected plain errors to report Internal")
	}
	if KindOf(New(BadRequest, "op", nil)) != BadRequest {
		t.Fatalf("expected KindOf to report the wrapped kind")
	}
}

func TestWrapPreservesKindAndCancelled(t *testing.T) {
	cancelled := New(Cancelled, "find-paths", nil)
	if Wrap("impact-analysis", cancelled) != cancelled {
		t.Fatalf("expected Cancelled errors to pass through unchanged")
	}

	notFound := New(NotFound, "SymbolStore.Get", nil)
	rewrapped := Wrap("find-callers", notFound)
	var e *Error
	if !errors.As(rewrapped, &e) || e.Kind != NotFound || e.Op != "find-callers" {
		t.Fatalf("expected Wrap to preserve kind and retag op, got %#v", rewrapped)
	}

	plain := errors.New("boom")
	rewrappedPlain := Wrap("find-callers", plain)
	if KindOf(rewrappedPlain) != Internal {
		t.Fatalf("expected a non-Error to be wrapped as Internal")
	}
}

func TestRetryOnlyRetriesIOOnce(t *testing.T) {
	attempts := 0
	err := Retry("WAL.Append", func() error {
		attempts++
		return New(IO, "WAL.Append", errors.New("transient"))
	})
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts for a persistent IO error, got %d", attempts)
	}
	if KindOf(err) != IO {
		t.Fatalf("expected final error to still report IO, got %v", KindOf(err))
	}

	attempts = 0
	err = Retry("PageStore.Read", func() error {
		attempts++
		return New(Corruption, "PageStore.Read", errors.New("bad checksum"))
	})
	if attempts != 1 {
		t.Fatalf("expected Corruption to never be retried, got %d attempts", attempts)
	}
	if KindOf(err) != Corruption {
		t.Fatalf("expected Corruption to be surfaced, got %v", KindOf(err))
	}

	attempts = 0
	err = Retry("WAL.Append", func() error {
		attempts++
		if attempts == 1 {
			return New(IO, "WAL.Append", errors.New("transient"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempts)
	}
}
