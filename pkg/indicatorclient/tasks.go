package indicatorclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TaskHandle identifies an asynchronous calculation on the service.
type TaskHandle string

// TaskStatus is the lifecycle state reported by the service.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskRunning    TaskStatus = "running"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// TaskStatusOf extracts the status field of a task status payload.
func TaskStatusOf(p Payload) TaskStatus {
	return TaskStatus(strings.ToLower(strings.TrimSpace(p.Get("status").String())))
}

const (
	DefaultResultTimeout = 60 * time.Second
	DefaultPollInterval  = time.Second
)

// ResultOptions controls GetAsyncTaskResult. With Wait unset a single result
// fetch is made; otherwise the task status is polled every PollInterval until
// it is terminal or Timeout elapses.
type ResultOptions struct {
	Wait         bool
	Timeout      time.Duration
	PollInterval time.Duration
}

func (o ResultOptions) normalized() ResultOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultResultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// CalculateIndicatorsAsync submits a calculation and returns its task handle.
func (c *Client) CalculateIndicatorsAsync(ctx context.Context, req AsyncCalculateRequest) (TaskHandle, error) {
	body, err := req.body()
	if err != nil {
		return "", err
	}
	resp, err := c.dispatch(ctx, http.MethodPost, "/async/calculate", body, nil)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(resp.Get("task_id").String())
	if id == "" {
		return "", &RequestError{
			Method: http.MethodPost,
			Path:   "/async/calculate",
			Err:    errors.New("response has no task_id"),
		}
	}
	return TaskHandle(id), nil
}

// GetAsyncTaskStatus fetches the current status payload for a task.
func (c *Client) GetAsyncTaskStatus(ctx context.Context, id TaskHandle) (Payload, error) {
	path, err := taskPath(id, "")
	if err != nil {
		return Payload{}, err
	}
	return c.dispatch(ctx, http.MethodGet, path, nil, nil)
}

// GetAsyncTaskResult fetches a task result, optionally waiting for completion.
func (c *Client) GetAsyncTaskResult(ctx context.Context, id TaskHandle, opts ResultOptions) (Payload, error) {
	if !opts.Wait {
		return c.taskResult(ctx, id)
	}
	return c.awaitTaskResult(ctx, id, opts.normalized())
}

func (c *Client) taskResult(ctx context.Context, id TaskHandle) (Payload, error) {
	path, err := taskPath(id, "/result")
	if err != nil {
		return Payload{}, err
	}
	return c.dispatch(ctx, http.MethodGet, path, nil, nil)
}

func (c *Client) awaitTaskResult(ctx context.Context, id TaskHandle, opts ResultOptions) (Payload, error) {
	if _, err := taskPath(id, ""); err != nil {
		return Payload{}, err
	}

	start := time.Now()
	for time.Since(start) < opts.Timeout {
		status, err := c.GetAsyncTaskStatus(ctx, id)
		if err != nil {
			return Payload{}, err
		}

		state := TaskStatusOf(status)
		if c.observer != nil {
			c.observer.ObservePoll(id, state)
		}

		switch state {
		case TaskCompleted:
			return c.taskResult(ctx, id)
		case TaskFailed:
			msg := status.Get("error").String()
			if msg == "" {
				msg = "unknown error"
			}
			return Payload{}, &TaskFailedError{TaskID: id, Status: state, Message: msg}
		case TaskCancelled:
			return Payload{}, &TaskFailedError{TaskID: id, Status: state, Message: "task cancelled"}
		}

		wait := opts.PollInterval
		if remaining := opts.Timeout - time.Since(start); remaining < wait {
			wait = remaining
		}
		if err := sleepContext(ctx, wait); err != nil {
			return Payload{}, err
		}
	}

	c.log.WarnObj("task polling timed out", "task_timeout", map[string]any{
		"task_id":    string(id),
		"timeout_ms": opts.Timeout.Milliseconds(),
	})
	return Payload{}, &TaskTimeoutError{TaskID: id, Timeout: opts.Timeout}
}

func taskPath(id TaskHandle, suffix string) (string, error) {
	if strings.TrimSpace(string(id)) == "" {
		return "", invalidArgument("task id is required")
	}
	return "/async/task/" + url.PathEscape(string(id)) + suffix, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
