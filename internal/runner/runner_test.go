package runner_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/barrage/internal/httpclient"
	"github.com/torosent/barrage/internal/pool"
	"github.com/torosent/barrage/internal/runner"
)

func statusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"detail":"ok"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// refusedURL returns a base URL on which nothing listens.
func refusedURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return "http://" + addr
}

func TestRunCampaignAllSuccess(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	r := runner.New(runner.Options{BaseURL: srv.URL})

	tally, err := r.RunCampaign(context.Background(), "/people/1", 2000, 20)
	if err != nil {
		t.Fatalf("RunCampaign() error = %v", err)
	}
	if got := tally.Count("200"); got != 2000 {
		t.Errorf("200 count = %d, want 2000", got)
	}
	if tally.Errors() != 0 {
		t.Errorf("errors = %d, want 0", tally.Errors())
	}
	if len(tally.Buckets) != 1 {
		t.Errorf("buckets = %v, want only 200", tally.Buckets)
	}
	if !tally.Final || tally.TotalIssued != 2000 {
		t.Errorf("tally final=%v total=%d, want final with 2000", tally.Final, tally.TotalIssued)
	}
}

func TestRunCampaignNotFound(t *testing.T) {
	srv := statusServer(t, http.StatusNotFound)
	r := runner.New(runner.Options{BaseURL: srv.URL})

	tally, err := r.RunCampaign(context.Background(), "/people/9999", 1000, 20)
	if err != nil {
		t.Fatalf("RunCampaign() error = %v", err)
	}
	if got := tally.Count("404"); got != 1000 {
		t.Errorf("404 count = %d, want 1000", got)
	}
	if tally.BucketSum() != 1000 {
		t.Errorf("bucket sum = %d, want 1000", tally.BucketSum())
	}
}

func TestRunCampaignMixedStatuses(t *testing.T) {
	var n atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch n.Add(1) % 4 {
		case 0:
			w.WriteHeader(http.StatusInternalServerError)
		case 1:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	r := runner.New(runner.Options{BaseURL: srv.URL})
	tally, err := r.RunCampaign(context.Background(), "/", 400, 8)
	if err != nil {
		t.Fatalf("RunCampaign() error = %v", err)
	}
	if tally.Count("200") != 200 || tally.Count("404") != 100 || tally.Count("500") != 100 {
		t.Errorf("buckets = %v, want 200:200 404:100 500:100", tally.Buckets)
	}
}

func TestRunCampaignUnreachableHost(t *testing.T) {
	r := runner.New(runner.Options{BaseURL: refusedURL(t), Timeout: 2 * time.Second})

	tally, err := r.RunCampaign(context.Background(), "/", 1000, 20)
	if err != nil {
		t.Fatalf("RunCampaign() error = %v, want transport errors tallied instead", err)
	}
	if tally.Errors() != 1000 {
		t.Errorf("errors = %d, want 1000 (buckets %v)", tally.Errors(), tally.Buckets)
	}
	if tally.ErrorReasons[httpclient.ReasonConnectionRefused] != 1000 {
		t.Errorf("error reasons = %v, want all connection_refused", tally.ErrorReasons)
	}
}

func TestRunCampaignRejectsBadConfig(t *testing.T) {
	var calls atomic.Int64
	d := pool.DispatchFunc(func(ctx context.Context, url string) httpclient.Outcome {
		calls.Add(1)
		return httpclient.Success(200, 0)
	})

	cases := []struct {
		name        string
		base        string
		count       int
		concurrency int
		field       string
	}{
		{"zero concurrency", "http://127.0.0.1:8790", 10, 0, "concurrency"},
		{"negative concurrency", "http://127.0.0.1:8790", 10, -3, "concurrency"},
		{"zero count", "http://127.0.0.1:8790", 0, 5, "count"},
		{"empty base url", "", 10, 5, "base_url"},
		{"relative base url", "127.0.0.1:8790", 10, 5, "base_url"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := runner.New(runner.Options{BaseURL: tc.base, Dispatcher: d})
			_, err := r.RunCampaign(context.Background(), "/", tc.count, tc.concurrency)
			if !errors.Is(err, runner.ErrInvalidConfig) {
				t.Fatalf("RunCampaign() error = %v, want ErrInvalidConfig", err)
			}
			var cerr *runner.ConfigError
			if !errors.As(err, &cerr) || cerr.Field != tc.field {
				t.Fatalf("ConfigError = %+v, want field %s", cerr, tc.field)
			}
		})
	}
	if calls.Load() != 0 {
		t.Fatalf("dispatcher called %d times, want 0", calls.Load())
	}
}

func TestRunCampaignRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int64
	d := pool.DispatchFunc(func(ctx context.Context, url string) httpclient.Outcome {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return httpclient.Success(200, time.Millisecond)
	})

	for _, limit := range []int{1, 4, 20} {
		peak.Store(0)
		r := runner.New(runner.Options{BaseURL: "http://people.test", Dispatcher: d})
		tally, err := r.RunCampaign(context.Background(), "/", 200, limit)
		if err != nil {
			t.Fatalf("limit %d: RunCampaign() error = %v", limit, err)
		}
		if tally.Count("200") != 200 {
			t.Errorf("limit %d: 200 count = %d", limit, tally.Count("200"))
		}
		if got := peak.Load(); got > int64(limit) {
			t.Errorf("limit %d: observed %d in flight", limit, got)
		}
	}
}

func TestCampaignRunTwiceFails(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	r := runner.New(runner.Options{BaseURL: srv.URL})

	c, err := r.NewCampaign(runner.Spec{Name: "index", Path: "/", Count: 10, Concurrency: 2})
	if err != nil {
		t.Fatalf("NewCampaign() error = %v", err)
	}
	if c.State() != runner.StateNotStarted {
		t.Fatalf("state = %s, want not_started", c.State())
	}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if c.State() != runner.StateCompleted {
		t.Fatalf("state = %s, want completed", c.State())
	}
	if _, err := c.Run(context.Background()); !errors.Is(err, runner.ErrAlreadyRun) {
		t.Fatalf("second Run() error = %v, want ErrAlreadyRun", err)
	}
	if got := c.Result().Tally.TotalIssued; got != 10 {
		t.Fatalf("tally after second Run = %d, want 10 unchanged", got)
	}
}

func TestSequentialCampaignsAreIndependent(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	r := runner.New(runner.Options{BaseURL: srv.URL})

	first, err := r.RunCampaign(context.Background(), "/", 50, 5)
	if err != nil {
		t.Fatalf("first RunCampaign() error = %v", err)
	}
	second, err := r.RunCampaign(context.Background(), "/", 30, 5)
	if err != nil {
		t.Fatalf("second RunCampaign() error = %v", err)
	}
	if first.Count("200") != 50 || second.Count("200") != 30 {
		t.Fatalf("counts = %d and %d, want 50 and 30", first.Count("200"), second.Count("200"))
	}
}

func TestRepeatedCampaignYieldsSameBuckets(t *testing.T) {
	statuses := []int{http.StatusOK, http.StatusNotFound, http.StatusServiceUnavailable}
	var served atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := served.Add(1) - 1
		w.WriteHeader(statuses[n%int64(len(statuses))])
	}))
	t.Cleanup(srv.Close)

	r := runner.New(runner.Options{BaseURL: srv.URL})
	first, err := r.RunCampaign(context.Background(), "/people/1", 90, 6)
	if err != nil {
		t.Fatalf("first RunCampaign() error = %v", err)
	}
	second, err := r.RunCampaign(context.Background(), "/people/1", 90, 6)
	if err != nil {
		t.Fatalf("second RunCampaign() error = %v", err)
	}

	want := map[string]int64{"200": 30, "404": 30, "503": 30}
	if !reflect.DeepEqual(first.Buckets, want) {
		t.Fatalf("first buckets = %v, want %v", first.Buckets, want)
	}
	if !reflect.DeepEqual(first.Buckets, second.Buckets) {
		t.Fatalf("buckets differ between runs: %v then %v", first.Buckets, second.Buckets)
	}
	if first.TotalIssued != second.TotalIssued {
		t.Fatalf("totals differ: %d then %d", first.TotalIssued, second.TotalIssued)
	}
}

func TestElapsedGrowsWithCount(t *testing.T) {
	const (
		concurrency = 2
		work        = 2 * time.Millisecond
	)
	d := pool.DispatchFunc(func(ctx context.Context, url string) httpclient.Outcome {
		time.Sleep(work)
		return httpclient.Success(200, work)
	})
	r := runner.New(runner.Options{BaseURL: "http://people.test", Dispatcher: d})

	var prev time.Duration
	for _, count := range []int{4, 20, 60} {
		tally, err := r.RunCampaign(context.Background(), "/", count, concurrency)
		if err != nil {
			t.Fatalf("count %d: RunCampaign() error = %v", count, err)
		}
		// Each worker handles count/concurrency requests back to back.
		floor := time.Duration(count/concurrency) * work
		if tally.Elapsed < floor {
			t.Errorf("count %d: elapsed %s below %s", count, tally.Elapsed, floor)
		}
		if tally.Elapsed < prev {
			t.Errorf("count %d: elapsed %s shorter than %s for a smaller count", count, tally.Elapsed, prev)
		}
		prev = tally.Elapsed
	}
}

func TestRunCampaignCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int64
	d := pool.DispatchFunc(func(dctx context.Context, url string) httpclient.Outcome {
		if started.Add(1) == 5 {
			cancel()
		}
		select {
		case <-dctx.Done():
			return httpclient.TransportError(dctx.Err(), 0)
		case <-time.After(5 * time.Millisecond):
			return httpclient.Success(200, 5*time.Millisecond)
		}
	})

	r := runner.New(runner.Options{BaseURL: "http://people.test", Dispatcher: d})
	c, err := r.NewCampaign(runner.Spec{Path: "/", Count: 1000, Concurrency: 2})
	if err != nil {
		t.Fatalf("NewCampaign() error = %v", err)
	}
	tally, err := c.Run(ctx)
	if !errors.Is(err, runner.ErrCanceled) {
		t.Fatalf("Run() error = %v, want ErrCanceled", err)
	}
	if c.State() != runner.StateCancelled {
		t.Fatalf("state = %s, want cancelled", c.State())
	}
	if tally.TotalIssued == 0 || tally.TotalIssued >= 1000 {
		t.Fatalf("partial total = %d, want between 1 and 999", tally.TotalIssued)
	}
	if tally.BucketSum() != tally.TotalIssued {
		t.Fatalf("bucket sum %d != total %d", tally.BucketSum(), tally.TotalIssued)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished []runner.Result
}

func (o *recordingObserver) CampaignStarted(c *runner.Campaign) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, c.Name())
}

func (o *recordingObserver) CampaignFinished(res runner.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, res)
}

func TestRunAllRunsCampaignsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/", "/people/1":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	r := runner.New(runner.Options{BaseURL: srv.URL, Observer: obs})
	specs := []runner.Spec{
		{Name: "index", Path: "/", Count: 20, Concurrency: 4},
		{Name: "person", Path: "/people/1", Count: 40, Concurrency: 4},
		{Path: "/people/9999", Count: 20, Concurrency: 4},
	}

	results, err := r.RunAll(context.Background(), specs)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[1].Tally.Count("200") != 40 {
		t.Errorf("person 200 count = %d, want 40", results[1].Tally.Count("200"))
	}
	if results[2].Name != "/people/9999" || results[2].Tally.Count("404") != 20 {
		t.Errorf("result[2] = %s %v, want /people/9999 with 20 404s", results[2].Name, results[2].Tally.Buckets)
	}
	for _, res := range results {
		if res.State != "completed" || res.ID == "" {
			t.Errorf("result %s state=%s id=%q", res.Name, res.State, res.ID)
		}
		if !strings.HasPrefix(res.URL, srv.URL) {
			t.Errorf("result URL %q not under %s", res.URL, srv.URL)
		}
	}
	if strings.Join(obs.started, ",") != "index,person,/people/9999" {
		t.Errorf("observer started = %v", obs.started)
	}
	if len(obs.finished) != 3 {
		t.Errorf("observer finished = %d, want 3", len(obs.finished))
	}
}

func TestRunAllValidatesBeforeRunning(t *testing.T) {
	var calls atomic.Int64
	d := pool.DispatchFunc(func(ctx context.Context, url string) httpclient.Outcome {
		calls.Add(1)
		return httpclient.Success(200, 0)
	})
	r := runner.New(runner.Options{BaseURL: "http://people.test", Dispatcher: d})

	_, err := r.RunAll(context.Background(), []runner.Spec{
		{Path: "/", Count: 5, Concurrency: 1},
		{Path: "/unknown", Count: 5, Concurrency: 0},
	})
	if !errors.Is(err, runner.ErrInvalidConfig) {
		t.Fatalf("RunAll() error = %v, want ErrInvalidConfig", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("dispatcher called %d times, want 0", calls.Load())
	}
}

type captureLogger struct {
	mu   sync.Mutex
	errs []error
}

func (l *captureLogger) LogFailure(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func TestFailureLoggerReceivesTransportErrors(t *testing.T) {
	var n atomic.Int64
	d := pool.DispatchFunc(func(ctx context.Context, url string) httpclient.Outcome {
		if n.Add(1)%2 == 0 {
			return httpclient.TransportError(errors.New("connection reset by peer"), 0)
		}
		return httpclient.Success(200, 0)
	})
	logger := &captureLogger{}
	r := runner.New(runner.Options{BaseURL: "http://people.test", Dispatcher: d, FailureLogger: logger})

	tally, err := r.RunCampaign(context.Background(), "/people/1", 10, 3)
	if err != nil {
		t.Fatalf("RunCampaign() error = %v", err)
	}
	if tally.Errors() != 5 {
		t.Fatalf("errors = %d, want 5", tally.Errors())
	}
	if len(logger.errs) != 5 {
		t.Fatalf("logged %d failures, want 5", len(logger.errs))
	}
	var tf *runner.TransportFailure
	if !errors.As(logger.errs[0], &tf) || tf.URL != "http://people.test/people/1" {
		t.Fatalf("logged error = %v, want TransportFailure for /people/1", logger.errs[0])
	}
}

func TestStateString(t *testing.T) {
	cases := map[runner.State]string{
		runner.StateNotStarted: "not_started",
		runner.StateRunning:    "running",
		runner.StateCompleted:  "completed",
		runner.StateCancelled:  "cancelled",
		runner.StateFailed:     "failed",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
		if s.Terminal() != (s >= runner.StateCompleted) {
			t.Errorf("%s.Terminal() wrong", s)
		}
	}
}
