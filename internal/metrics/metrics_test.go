package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samvad-hq/indicator-client/pkg/indicatorclient"
)

func TestRoute(t *testing.T) {
	cases := map[string]string{
		"/health":                 "/health",
		"/async/task/abc":         "/async/task/{id}",
		"/async/task/abc/result":  "/async/task/{id}/result",
		"/indicators/calculate":   "/indicators/calculate",
		"/indicators/available":   "/indicators/available",
		"/async/task/a%2Fb/result": "/async/task/{id}/result",
	}
	for in, want := range cases {
		if got := Route(in); got != want {
			t.Fatalf("Route(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestObserveRequestAndPoll(t *testing.T) {
	m := New()
	var _ indicatorclient.Observer = m

	m.ObserveRequest("GET", "/async/task/t1", 200, 10*time.Millisecond, nil)
	m.ObserveRequest("GET", "/async/task/t2", 200, 10*time.Millisecond, nil)
	m.ObserveRequest("GET", "/health", 0, time.Millisecond, errors.New("dial"))
	m.ObservePoll("t1", indicatorclient.TaskPending)
	m.JobFinished("async", nil)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/async/task/{id}", "200")); got != 2 {
		t.Fatalf("task status requests = %v", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/health", "error")); got != 1 {
		t.Fatalf("failed health requests = %v", got)
	}
	if got := testutil.ToFloat64(m.TaskPolls.WithLabelValues("pending")); got != 1 {
		t.Fatalf("pending polls = %v", got)
	}
	if got := testutil.ToFloat64(m.JobRuns.WithLabelValues("async", "success")); got != 1 {
		t.Fatalf("job runs = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "indicator_client_requests_total") {
		t.Fatalf("exposition missing counter:\n%s", rec.Body.String())
	}
}
