// Package faults defines the error taxonomy shared by the ingestion pipeline,
// the scheduler and the adapters.
//
// Every fault kind is a sentinel; helpers wrap a cause and mark it with the
// sentinel so callers can test with errors.Is while keeping the original
// message and stack.
package faults

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrExtraction marks an unreadable document.
	ErrExtraction = errors.New("extraction fault")
	// ErrSummarization marks a failure inside the scoring algorithms.
	ErrSummarization = errors.New("summarization fault")
	// ErrTransfer marks a remote list/download/upload failure.
	ErrTransfer = errors.New("transfer fault")
	// ErrPersistence marks a record store failure.
	ErrPersistence = errors.New("persistence fault")
	// ErrScheduler marks an invalid scheduler operation.
	ErrScheduler = errors.New("scheduler fault")
	// ErrConfiguration marks missing credentials, scope or settings.
	ErrConfiguration = errors.New("configuration fault")
	// ErrInvalidInput marks a rejected caller payload.
	ErrInvalidInput = errors.New("invalid input")
)

// Transfer wraps err as a transfer fault.
func Transfer(err error, msg string) error { return mark(err, msg, ErrTransfer) }

// Persistence wraps err as a persistence fault.
func Persistence(err error, msg string) error { return mark(err, msg, ErrPersistence) }

// Extraction wraps err as an extraction fault.
func Extraction(err error, msg string) error { return mark(err, msg, ErrExtraction) }

// Summarization wraps err as a summarization fault.
func Summarization(err error, msg string) error { return mark(err, msg, ErrSummarization) }

// Configuration returns a configuration fault with the given message.
func Configuration(msg string) error {
	return errors.Mark(errors.New(msg), ErrConfiguration)
}

// Invalid returns an invalid-input fault with the given message.
func Invalid(msg string) error {
	return errors.Mark(errors.New(msg), ErrInvalidInput)
}

func mark(err error, msg string, kind error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), kind)
}

// Kind returns a short label for the fault class of err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransfer):
		return "transfer"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrSummarization):
		return "summarization"
	case errors.Is(err, ErrScheduler):
		return "scheduler"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

// FromPanic converts a recovered value into an error.
func FromPanic(rec any) error {
	if err, ok := rec.(error); ok {
		return errors.Wrap(err, "panic")
	}
	return errors.Newf("panic: %v", rec)
}
