package adapter

import (
	"context"
	"errors"
)

// Job is one unit of deferred work. Run is retried with backoff until it
// succeeds, returns a Permanent error, or runs out of attempts; OnGiveUp is
// then called once with the last error.
type Job struct {
	Name     string
	Run      func(ctx context.Context) error
	OnGiveUp func(ctx context.Context, err error)
}

// JobQueue accepts jobs for background execution.
type JobQueue interface {
	Submit(job Job) error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
