package queue

import "errors"

var (
	// ErrTaskQueueRequired is returned when a task queue is not provided.
	ErrTaskQueueRequired = errors.New("task queue required")

	// ErrHandlerRequired is returned when Register is called without a handler.
	ErrHandlerRequired = errors.New("task handler required")

	// ErrNoHandler is recorded on tasks whose kind has no registered handler.
	ErrNoHandler = errors.New("no handler registered for task kind")
)

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the worker acknowledges the task instead of
// retrying it. Permanent(nil) returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked by Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
