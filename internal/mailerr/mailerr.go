package mailerr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies every upstream failure into one of the categories the
// pipeline knows how to react to. Provider adapters are responsible for
// mapping raw API errors into a Kind before they reach core logic; core code
// only ever inspects kinds, never raw provider error shapes.
type Kind int

const (
	// KindTransient is the default for errors with no special handling.
	KindTransient Kind = iota
	// KindRateLimited marks throttling responses (HTTP 429 and equivalents).
	// Retryable with backoff.
	KindRateLimited
	// KindStaleCursor marks a history checkpoint the provider can no longer
	// resolve. Recoverable once via a forced watch refresh.
	KindStaleCursor
	// KindNotFound marks a single item that disappeared between listing and
	// fetch. The item is skipped, the batch continues.
	KindNotFound
	// KindAuth marks credential failures. Fatal for the whole connection.
	KindAuth
	// KindMalformed marks an upstream response that did not parse against the
	// expected shape. Fatal for that message only.
	KindMalformed
	// KindNoContent marks an extraction call that produced no usable output.
	KindNoContent
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindStaleCursor:
		return "stale_cursor"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindMalformed:
		return "malformed"
	case KindNoContent:
		return "no_content"
	default:
		return "transient"
	}
}

// Error is a normalized upstream error. RetryAfter is non-zero only when the
// provider supplied an explicit retry hint alongside a rate-limit response.
type Error struct {
	Kind       Kind
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// RateLimited wraps err as a throttling error carrying an optional
// provider-supplied retry hint.
func RateLimited(err error, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, RetryAfter: retryAfter, Err: err}
}

// KindOf returns the normalized kind of err, or KindTransient if err was
// never normalized by an adapter.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindTransient
}

// RetryAfterOf returns the provider-supplied retry hint attached to err, if
// any.
func RetryAfterOf(err error) time.Duration {
	var me *Error
	if errors.As(err, &me) {
		return me.RetryAfter
	}
	return 0
}

func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }
func IsStaleCursor(err error) bool { return KindOf(err) == KindStaleCursor }
func IsNotFound(err error) bool    { return KindOf(err) == KindNotFound }
func IsAuth(err error) bool        { return KindOf(err) == KindAuth }
