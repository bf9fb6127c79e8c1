package output

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/barrage/internal/metrics"
	"github.com/torosent/barrage/internal/runner"
)

// syncBuffer lets the reporter goroutine and the test share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFormatProgress(t *testing.T) {
	line := formatProgress("person", 2000, metrics.Tally{
		Buckets:        map[string]int64{"200": 1200, "error": 3},
		TotalIssued:    1203,
		RequestsPerSec: 850.31,
	})
	want := "person: 1203/2000 | 200=1200 error=3 | RPS: 850.3"
	if line != want {
		t.Errorf("formatProgress() = %q, want %q", line, want)
	}
}

func TestProgressReporterStopIdempotent(t *testing.T) {
	reporter := NewProgressReporter(10*time.Millisecond, nil)
	reporter.Stop()
	reporter.Start()
	reporter.Start()
	reporter.Stop()
	reporter.Stop()
}

func TestProgressReporterObservesCampaigns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var out syncBuffer
	reporter := NewProgressReporter(5*time.Millisecond, &out)
	r := runner.New(runner.Options{BaseURL: srv.URL, Observer: reporter})

	_, err := r.RunAll(context.Background(), []runner.Spec{
		{Name: "index", Path: "/", Count: 40, Concurrency: 2},
		{Name: "person", Path: "/people/1", Count: 10, Concurrency: 2},
	})
	reporter.Stop()
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "index: 40/40 | 200=40") {
		t.Errorf("missing final index line:\n%q", output)
	}
	if !strings.Contains(output, "person: 10/10 | 200=10") {
		t.Errorf("missing final person line:\n%q", output)
	}
	if strings.Count(output, "[completed]\n") != 2 {
		t.Errorf("want two completed lines:\n%q", output)
	}
}

func TestProgressLineNotDrawnAfterFinish(t *testing.T) {
	var out syncBuffer
	reporter := NewProgressReporter(time.Hour, &out)
	src := &progressSource{name: "person", total: 10, agg: metrics.NewAggregator()}
	reporter.current.Store(src)

	reporter.tick()
	line := formatProgress("person", 10, src.agg.Snapshot())
	reporter.CampaignFinished(runner.Result{
		Name:  "person",
		Count: 10,
		State: "completed",
		Tally: metrics.Tally{Buckets: map[string]int64{"200": 10}, TotalIssued: 10},
	})
	// A tick that read the source before the campaign finished.
	reporter.draw(src, line)
	reporter.tick()

	output := out.String()
	if !strings.HasSuffix(output, "[completed]\n") {
		t.Fatalf("output does not end with the final line:\n%q", output)
	}
	if strings.Count(output, "\rperson: 0/10") != 1 {
		t.Errorf("want exactly one in-progress line:\n%q", output)
	}
}
