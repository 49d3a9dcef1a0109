package contract

import (
	"errors"
	"fmt"
)

var (
	ErrModelInvoke       = errors.New("model invoke failed")
	ErrInferenceFailed   = errors.New("inference failed")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrDegraded          = errors.New("served from local fallback")
	ErrUnknownAgent      = errors.New("unknown agent")
	ErrNoBusinessFound   = errors.New("No business found for user")
)

// UnknownAgentError reports an agent id outside the fixed catalog.
type UnknownAgentError struct {
	ID string
}

func (e *UnknownAgentError) Error() string {
	return "Unknown agent: " + e.ID
}

func (e *UnknownAgentError) Is(target error) bool {
	return target == ErrUnknownAgent
}

// DegradedError is returned alongside a usable result when the remote
// backend failed and the local fallback container served the call.
type DegradedError struct {
	Op    string
	Cause error
}

func (e *DegradedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.Op, ErrDegraded)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrDegraded, e.Cause)
}

func (e *DegradedError) Unwrap() error {
	return e.Cause
}

func (e *DegradedError) Is(target error) bool {
	return target == ErrDegraded || target == ErrRemoteUnavailable
}

func Degraded(op string, cause error) error {
	return &DegradedError{Op: op, Cause: cause}
}

// Failed reports whether err is a real failure. Degraded results are not
// failures.
func Failed(err error) bool {
	return err != nil && !errors.Is(err, ErrDegraded)
}

// FirstDegraded returns the first degradation among errs, or nil.
func FirstDegraded(errs ...error) error {
	for _, err := range errs {
		if err != nil && errors.Is(err, ErrDegraded) {
			return err
		}
	}
	return nil
}
