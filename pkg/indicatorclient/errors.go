package indicatorclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidArgument is returned before any I/O when call arguments are unusable.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// RequestError reports a failed round trip: either a non-2xx status
// (StatusCode and Status set) or a transport/decode failure (Err set).
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("indicator api request failed: %s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("indicator api request failed: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Status)
}

func (e *RequestError) Unwrap() error { return e.Err }

// TaskFailedError is returned when the service reports a task as failed or cancelled.
type TaskFailedError struct {
	TaskID  TaskHandle
	Status  TaskStatus
	Message string
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Message)
}

// TaskTimeoutError is returned when polling gives up before a terminal status.
type TaskTimeoutError struct {
	TaskID  TaskHandle
	Timeout time.Duration
}

func (e *TaskTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for task %s after %s", e.TaskID, e.Timeout)
}
