package content

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("content: not found")

// TransportError reports a failed exchange with the content store: network
// errors, 5xx responses, undecodable bodies, database errors.
type TransportError struct {
	Op     string
	Status int // HTTP status, 0 when the request never got a response
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("content: %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("content: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// storeErr wraps err as a TransportError unless ctx was cancelled, in which
// case the context error is returned so callers can tell the two apart.
func storeErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &TransportError{Op: op, Err: err}
}
