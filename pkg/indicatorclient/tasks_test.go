package indicatorclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// statusSequence replies with the given statuses in order, repeating the last.
type statusSequence struct {
	mu       sync.Mutex
	statuses []string
	calls    int
	at       []time.Time
}

func (s *statusSequence) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	idx := s.calls
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	body := s.statuses[idx]
	s.calls++
	s.at = append(s.at, time.Now())
	s.mu.Unlock()
	jsonReply(body)(w, r)
}

func (s *statusSequence) times() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Time, len(s.at))
	copy(out, s.at)
	return out
}

func (s *statusSequence) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestCalculateIndicatorsAsyncReturnsHandle(t *testing.T) {
	fs, srv := newFakeService(t, map[string]http.HandlerFunc{
		"POST /async/calculate": jsonReply(`{"task_id":"task-42","status":"pending"}`),
	})
	c := New(srv.URL)

	id, err := c.CalculateIndicatorsAsync(context.Background(), AsyncCalculateRequest{
		Symbol:     "sh600519",
		Indicators: []string{"rsi"},
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
		Parameters: map[string]any{"rsi": map[string]any{"period": 14}},
	})
	if err != nil {
		t.Fatalf("CalculateIndicatorsAsync: %v", err)
	}
	if id != "task-42" {
		t.Fatalf("id = %q", id)
	}

	_, err = c.CalculateIndicatorsAsync(context.Background(), AsyncCalculateRequest{
		Symbol:     "sh600519",
		Indicators: []string{"rsi"},
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
	})
	if err != nil {
		t.Fatalf("CalculateIndicatorsAsync without parameters: %v", err)
	}

	reqs := fs.recorded()
	withParams := decodeBody(t, reqs[0].Body)
	if _, ok := withParams["parameters"].(map[string]any); !ok {
		t.Fatalf("parameters missing from body %v", withParams)
	}
	if _, ok := withParams["use_cache"]; ok {
		t.Fatalf("async body must not carry use_cache: %v", withParams)
	}
	if _, ok := decodeBody(t, reqs[1].Body)["parameters"]; ok {
		t.Fatalf("empty parameters should be omitted")
	}
}

func TestCalculateIndicatorsAsyncMissingTaskID(t *testing.T) {
	_, srv := newFakeService(t, map[string]http.HandlerFunc{
		"POST /async/calculate": jsonReply(`{"status":"pending"}`),
	})

	_, err := New(srv.URL).CalculateIndicatorsAsync(context.Background(), AsyncCalculateRequest{
		Symbol:     "sh600519",
		Indicators: []string{"rsi"},
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
	})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
}

func TestGetAsyncTaskStatusEscapesID(t *testing.T) {
	fs, srv := newFakeService(t, map[string]http.HandlerFunc{
		"GET /async/task/a b": jsonReply(`{"task_id":"a b","status":"running","progress":0.5}`),
	})

	resp, err := New(srv.URL).GetAsyncTaskStatus(context.Background(), "a b")
	if err != nil {
		t.Fatalf("GetAsyncTaskStatus: %v", err)
	}
	if TaskStatusOf(resp) != TaskRunning {
		t.Fatalf("status = %q", TaskStatusOf(resp))
	}
	if got := fs.recorded()[0].Path; got != "/async/task/a b" {
		t.Fatalf("decoded path = %q", got)
	}
}

func TestGetAsyncTaskResultWithoutWaitIssuesOneRequest(t *testing.T) {
	fs, srv := newFakeService(t, map[string]http.HandlerFunc{
		"GET /async/task/t1/result": jsonReply(`{"success":true,"data_count":5}`),
	})

	start := time.Now()
	resp, err := New(srv.URL).GetAsyncTaskResult(context.Background(), "t1", ResultOptions{PollInterval: time.Hour})
	if err != nil {
		t.Fatalf("GetAsyncTaskResult: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("non-waiting fetch should not sleep")
	}
	if resp.Get("data_count").Int() != 5 {
		t.Fatalf("unexpected payload %s", resp)
	}
	reqs := fs.recorded()
	if len(reqs) != 1 || reqs[0].Path != "/async/task/t1/result" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
}

func TestGetAsyncTaskResultWaitsForCompletion(t *testing.T) {
	seq := &statusSequence{statuses: []string{`{"status":"pending"}`, `{"status":"completed"}`}}
	results := &statusSequence{statuses: []string{`{"success":true,"data_count":7}`}}
	_, srv := newFakeService(t, map[string]http.HandlerFunc{
		"GET /async/task/t2":        seq.handler,
		"GET /async/task/t2/result": results.handler,
	})

	interval := 50 * time.Millisecond
	obs := &recordingObserver{}
	resp, err := New(srv.URL, WithObserver(obs)).GetAsyncTaskResult(context.Background(), "t2", ResultOptions{
		Wait:         true,
		Timeout:      5 * time.Second,
		PollInterval: interval,
	})
	if err != nil {
		t.Fatalf("GetAsyncTaskResult: %v", err)
	}
	if resp.Get("data_count").Int() != 7 {
		t.Fatalf("unexpected payload %s", resp)
	}
	if seq.count() != 2 {
		t.Fatalf("expected 2 status polls, got %d", seq.count())
	}
	if results.count() != 1 {
		t.Fatalf("expected 1 result fetch, got %d", results.count())
	}
	at := seq.times()
	if gap := at[1].Sub(at[0]); gap > interval+500*time.Millisecond {
		t.Fatalf("gap between polls too long: %s", gap)
	}
	if len(obs.polls) != 2 || obs.polls[0] != TaskPending || obs.polls[1] != TaskCompleted {
		t.Fatalf("unexpected polls %v", obs.polls)
	}
}

func TestGetAsyncTaskResultTimesOut(t *testing.T) {
	seq := &statusSequence{statuses: []string{`{"status":"running"}`}}
	_, srv := newFakeService(t, map[string]http.HandlerFunc{
		"GET /async/task/slow": seq.handler,
	})

	timeout := 150 * time.Millisecond
	start := time.Now()
	_, err := New(srv.URL).GetAsyncTaskResult(context.Background(), "slow", ResultOptions{
		Wait:         true,
		Timeout:      timeout,
		PollInterval: 20 * time.Millisecond,
	})
	elapsed := time.Since(start)

	var timeoutErr *TaskTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TaskTimeoutError, got %v", err)
	}
	if timeoutErr.TaskID != "slow" || !strings.Contains(err.Error(), "slow") {
		t.Fatalf("timeout error does not name the task: %v", err)
	}
	if elapsed < timeout || elapsed > timeout+time.Second {
		t.Fatalf("elapsed %s outside expected bound", elapsed)
	}
	if seq.count() < 2 {
		t.Fatalf("expected repeated polling, got %d polls", seq.count())
	}
}

func TestGetAsyncTaskResultFailsFast(t *testing.T) {
	seq := &statusSequence{statuses: []string{`{"status":"running"}`, `{"status":"failed","error":"no data for symbol"}`}}
	fs, srv := newFakeService(t, map[string]http.HandlerFunc{
		"GET /async/task/bad": seq.handler,
	})

	start := time.Now()
	_, err := New(srv.URL).GetAsyncTaskResult(context.Background(), "bad", ResultOptions{
		Wait:         true,
		Timeout:      30 * time.Second,
		PollInterval: 10 * time.Millisecond,
	})

	var failedErr *TaskFailedError
	if !errors.As(err, &failedErr) {
		t.Fatalf("expected TaskFailedError, got %v", err)
	}
	if !strings.Contains(err.Error(), "no data for symbol") {
		t.Fatalf("message lacks service error: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("failure should not wait for timeout")
	}
	for _, req := range fs.recorded() {
		if strings.HasSuffix(req.Path, "/result") {
			t.Fatalf("result must not be fetched for failed task")
		}
	}
}

func TestGetAsyncTaskResultFailedWithoutMessage(t *testing.T) {
	_, srv := newFakeService(t, map[string]http.HandlerFunc{
		"GET /async/task/x": jsonReply(`{"status":"failed"}`),
	})

	_, err := New(srv.URL).GetAsyncTaskResult(context.Background(), "x", ResultOptions{Wait: true})
	var failedErr *TaskFailedError
	if !errors.As(err, &failedErr) || failedErr.Message != "unknown error" {
		t.Fatalf("expected generic failure message, got %v", err)
	}
}

func TestGetAsyncTaskResultCancelledIsFailure(t *testing.T) {
	_, srv := newFakeService(t, map[string]http.HandlerFunc{
		"GET /async/task/c": jsonReply(`{"status":"cancelled"}`),
	})

	_, err := New(srv.URL).GetAsyncTaskResult(context.Background(), "c", ResultOptions{Wait: true})
	var failedErr *TaskFailedError
	if !errors.As(err, &failedErr) || failedErr.Status != TaskCancelled {
		t.Fatalf("expected cancelled TaskFailedError, got %v", err)
	}
}

func TestGetAsyncTaskResultStatusErrorPropagates(t *testing.T) {
	_, srv := newFakeService(t, map[string]http.HandlerFunc{
		"GET /async/task/gone": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		},
	})

	_, err := New(srv.URL).GetAsyncTaskResult(context.Background(), "gone", ResultOptions{Wait: true})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 RequestError, got %v", err)
	}
}

func TestGetAsyncTaskResultHonoursContext(t *testing.T) {
	_, srv := newFakeService(t, map[string]http.HandlerFunc{
		"GET /async/task/stuck": jsonReply(`{"status":"pending"}`),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL).GetAsyncTaskResult(ctx, "stuck", ResultOptions{
		Wait:         true,
		Timeout:      time.Minute,
		PollInterval: 20 * time.Millisecond,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}

func TestConcurrentCallsShareClient(t *testing.T) {
	_, srv := newFakeService(t, map[string]http.HandlerFunc{
		"GET /health": jsonReply(`{"status":"healthy"}`),
	})
	c := New(srv.URL)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if !c.HealthCheck(context.Background()) {
				errs <- fmt.Errorf("call %d reported unhealthy", i)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestTaskIDRequired(t *testing.T) {
	c := New("")
	if _, err := c.GetAsyncTaskStatus(context.Background(), " "); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := c.GetAsyncTaskResult(context.Background(), "", ResultOptions{Wait: true}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
