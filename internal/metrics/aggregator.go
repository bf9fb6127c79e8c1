package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/barrage/internal/httpclient"
)

// ErrFinalized is returned by Record once the aggregator has been completed.
var ErrFinalized = errors.New("metrics: tally already finalized")

// Aggregator records per-request outcomes in a thread-safe manner.
type Aggregator struct {
	mu          sync.Mutex
	hist        *hdrhistogram.Histogram
	buckets     map[string]int64
	reasons     map[string]int64
	total       int64
	minLatency  time.Duration
	maxLatency  time.Duration
	sumLatency  time.Duration
	start       time.Time
	completedAt time.Time
	final       *Tally
	now         func() time.Time
}

// NewAggregator returns an empty aggregator. The start time defaults to the
// moment of construction until Start is called.
func NewAggregator() *Aggregator {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Aggregator{
		hist:    h,
		buckets: make(map[string]int64),
		reasons: make(map[string]int64),
		start:   time.Now(),
		now:     time.Now,
	}
}

// Start marks the beginning of the campaign.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.final != nil {
		return
	}
	a.start = a.now()
}

// Record adds one outcome to the tally.
func (a *Aggregator) Record(o httpclient.Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final != nil {
		return ErrFinalized
	}

	a.buckets[o.Bucket()]++
	if o.IsTransportError() {
		reason := o.Reason
		if reason == "" {
			reason = httpclient.ReasonOther
		}
		a.reasons[reason]++
	}
	a.total++

	latency := o.Latency
	if latency > 0 {
		us := latency.Microseconds()
		if us < a.hist.LowestTrackableValue() {
			us = a.hist.LowestTrackableValue()
		}
		if us > a.hist.HighestTrackableValue() {
			us = a.hist.HighestTrackableValue()
		}
		_ = a.hist.RecordValue(us)
	}
	a.sumLatency += latency
	if a.minLatency == 0 || (latency > 0 && latency < a.minLatency) {
		a.minLatency = latency
	}
	if latency > a.maxLatency {
		a.maxLatency = latency
	}
	return nil
}

// Snapshot returns a consistent copy of the current tally. After Complete
// it always returns the final tally.
func (a *Aggregator) Snapshot() Tally {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final != nil {
		return a.final.clone()
	}
	return a.buildLocked(a.now(), false)
}

// Complete stamps the completion time, freezes the aggregator and returns
// the final tally. Calling it again returns the same tally.
func (a *Aggregator) Complete() Tally {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final == nil {
		a.completedAt = a.now()
		t := a.buildLocked(a.completedAt, true)
		a.final = &t
	}
	return a.final.clone()
}

// Total returns the number of outcomes recorded so far.
func (a *Aggregator) Total() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

func (a *Aggregator) buildLocked(at time.Time, final bool) Tally {
	t := Tally{
		Buckets:     make(map[string]int64, len(a.buckets)),
		TotalIssued: a.total,
		StartedAt:   a.start,
		Final:       final,
		MinLatency:  a.minLatency,
		MaxLatency:  a.maxLatency,
	}
	for k, v := range a.buckets {
		t.Buckets[k] = v
	}
	if len(a.reasons) > 0 {
		t.ErrorReasons = make(map[string]int64, len(a.reasons))
		for k, v := range a.reasons {
			t.ErrorReasons[k] = v
		}
	}
	if final {
		t.CompletedAt = at
	}

	elapsed := at.Sub(a.start)
	if elapsed < 0 {
		elapsed = 0
	}
	t.Elapsed = elapsed

	if a.total > 0 {
		t.MeanLatency = time.Duration(int64(a.sumLatency) / a.total)
	}
	if a.hist.TotalCount() > 0 {
		t.P50Latency = time.Duration(a.hist.ValueAtQuantile(50)) * time.Microsecond
		t.P90Latency = time.Duration(a.hist.ValueAtQuantile(90)) * time.Microsecond
		t.P95Latency = time.Duration(a.hist.ValueAtQuantile(95)) * time.Microsecond
		t.P99Latency = time.Duration(a.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	if elapsed > 0 && a.total > 0 {
		t.RequestsPerSec = float64(a.total) / elapsed.Seconds()
	}

	t.ElapsedMs = toMs(t.Elapsed)
	t.MinLatencyMs = toMs(t.MinLatency)
	t.MaxLatencyMs = toMs(t.MaxLatency)
	t.MeanLatencyMs = toMs(t.MeanLatency)
	t.P50LatencyMs = toMs(t.P50Latency)
	t.P90LatencyMs = toMs(t.P90Latency)
	t.P95LatencyMs = toMs(t.P95Latency)
	t.P99LatencyMs = toMs(t.P99Latency)
	return t
}

func (t Tally) clone() Tally {
	c := t
	c.Buckets = make(map[string]int64, len(t.Buckets))
	for k, v := range t.Buckets {
		c.Buckets[k] = v
	}
	if t.ErrorReasons != nil {
		c.ErrorReasons = make(map[string]int64, len(t.ErrorReasons))
		for k, v := range t.ErrorReasons {
			c.ErrorReasons[k] = v
		}
	}
	return c
}
