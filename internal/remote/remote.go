// Package remote holds the call discipline shared by every component that
// consults the remote classifier: one attempt, a bounded wait, JSON block
// extraction and field validation. Callers fall back locally on any error.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BTreeMap/CalmPipe/internal/jsonblock"
)

var (
	// ErrUnavailable covers transport failures, timeouts and non-success statuses.
	ErrUnavailable = errors.New("remote classifier unavailable")
	// ErrMalformed covers replies without a parseable JSON block or with
	// missing or invalid fields.
	ErrMalformed = errors.New("remote classifier reply malformed")
)

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 8 * time.Second

// CallFunc performs one remote request and returns the raw reply text.
type CallFunc func(ctx context.Context) (string, error)

// Validator checks a decoded reply.
type Validator[T any] func(*T) error

// Do runs call once under timeout, extracts the first JSON block of the
// reply into a T and validates it. The wait ends at the deadline even when
// call ignores its context. Every failure is reported as wrapping
// ErrUnavailable or ErrMalformed.
func Do[T any](ctx context.Context, timeout time.Duration, call CallFunc, validate Validator[T]) (T, error) {
	var zero T
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		raw string
		err error
	}
	done := make(chan reply, 1)
	go func() {
		raw, err := call(ctx)
		done <- reply{raw: raw, err: err}
	}()

	var raw string
	select {
	case r := <-done:
		if r.err != nil {
			return zero, Classify(ctx, r.err)
		}
		raw = r.raw
	case <-ctx.Done():
		// A late reply is dropped into the buffered channel and discarded.
		return zero, Classify(ctx, ctx.Err())
	}

	var out T
	if err := jsonblock.Decode(raw, &out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if validate != nil {
		if err := validate(&out); err != nil {
			return zero, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return out, nil
}

// Classify maps a call error onto the taxonomy. Errors that already wrap a
// sentinel are kept; a deadline or cancellation is unavailability; anything
// else is treated as a transport failure.
func Classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrMalformed):
		return err
	case errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		return fmt.Errorf("%w: timed out: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// Kind returns a short label for logging.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "unknown"
	}
}

// RequireString checks that a decoded field is present and non-blank.
func RequireString(name string, v *string) error {
	if v == nil {
		return fmt.Errorf("missing field %q", name)
	}
	for _, r := range *v {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return nil
		}
	}
	return fmt.Errorf("field %q is empty", name)
}
