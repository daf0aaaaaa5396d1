package retry

import (
	"errors"
	"fmt"
)

// BusinessInvariantError marks a failure that retrying cannot fix:
// a malformed payload or a violated domain rule.
type BusinessInvariantError struct {
	Err error
}

func (e *BusinessInvariantError) Error() string {
	if e.Err == nil {
		return "business invariant violated"
	}
	return e.Err.Error()
}

func (e *BusinessInvariantError) Unwrap() error {
	return e.Err
}

// BusinessInvariant wraps err as a permanent failure. A nil err stays nil.
func BusinessInvariant(err error) error {
	if err == nil {
		return nil
	}
	return &BusinessInvariantError{Err: err}
}

// BusinessInvariantf formats a permanent failure.
func BusinessInvariantf(format string, args ...any) error {
	return &BusinessInvariantError{Err: fmt.Errorf(format, args...)}
}

// Classifier decides whether an error is permanent.
type Classifier interface {
	IsBusinessInvariant(err error) bool
}

// ClassifierFunc adapts a predicate to Classifier.
type ClassifierFunc func(err error) bool

func (fn ClassifierFunc) IsBusinessInvariant(err error) bool {
	if fn == nil {
		return false
	}
	return fn(err)
}

type classifier struct {
	extra []ClassifierFunc
}

// NewClassifier returns a Classifier that treats *BusinessInvariantError anywhere in
// the chain as permanent, plus anything an extra predicate matches.
// Everything else is retryable.
func NewClassifier(extra ...ClassifierFunc) Classifier {
	return &classifier{extra: extra}
}

func (c *classifier) IsBusinessInvariant(err error) bool {
	if err == nil {
		return false
	}
	var bie *BusinessInvariantError
	if errors.As(err, &bie) {
		return true
	}
	for _, fn := range c.extra {
		if fn.IsBusinessInvariant(err) {
			return true
		}
	}
	return false
}
