package aggregation

import (
	"context"
	"errors"
	"fmt"
)

// QueryFailure wraps any rollup store failure: unreachable store, timeout,
// malformed rows or a malformed range.
type QueryFailure struct {
	Op  string
	Err error
}

func (e *QueryFailure) Error() string {
	return fmt.Sprintf("%s: rollup query failed: %v", e.Op, e.Err)
}

func (e *QueryFailure) Unwrap() error {
	return e.Err
}

func (e *QueryFailure) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

func fail(op string, err error) error {
	var qf *QueryFailure
	if errors.As(err, &qf) {
		return err
	}
	return &QueryFailure{Op: op, Err: err}
}
