package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies where a run failed.
type Kind int

const (
	// KindFetch covers network, browser and login failures.
	KindFetch Kind = iota + 1
	// KindParse means the page did not have the expected table shape.
	KindParse
	// KindPersist covers store reads and writes.
	KindPersist
	// KindNotify means the alert could not be delivered.
	KindNotify
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindParse:
		return "parse"
	case KindPersist:
		return "persist"
	case KindNotify:
		return "notify"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a failed run step.
type Error struct {
	Kind   Kind
	Source string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s error: %s: %v", e.Source, e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a pipeline error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// KindOf returns the kind of a pipeline error, or 0.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

func wrap(kind Kind, source, op string, err error) error {
	return &Error{Kind: kind, Source: source, Op: op, Err: err}
}
