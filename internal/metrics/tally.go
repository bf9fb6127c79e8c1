package metrics

import (
	"time"

	"github.com/torosent/barrage/internal/httpclient"
)

// Tally is a point-in-time copy of a campaign's aggregated outcomes.
type Tally struct {
	Buckets      map[string]int64 `json:"buckets" yaml:"buckets"`
	ErrorReasons map[string]int64 `json:"error_reasons,omitempty" yaml:"error_reasons,omitempty"`
	TotalIssued  int64            `json:"total_issued" yaml:"total_issued"`
	StartedAt    time.Time        `json:"started_at" yaml:"started_at"`
	CompletedAt  time.Time        `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Final        bool             `json:"final" yaml:"final"`

	Elapsed        time.Duration `json:"-" yaml:"-"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P95Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	ElapsedMs     float64 `json:"elapsed_ms" yaml:"elapsed_ms"`
	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
}

// Count returns the number of outcomes in bucket.
func (t Tally) Count(bucket string) int64 {
	return t.Buckets[bucket]
}

// Errors returns the number of transport errors.
func (t Tally) Errors() int64 {
	return t.Buckets[httpclient.ErrorBucket]
}

// BucketSum adds up every bucket. For a final tally it equals TotalIssued.
func (t Tally) BucketSum() int64 {
	var sum int64
	for _, n := range t.Buckets {
		sum += n
	}
	return sum
}

// Rate returns the share of outcomes that landed in bucket, from 0 to 1.
func (t Tally) Rate(bucket string) float64 {
	if t.TotalIssued == 0 {
		return 0
	}
	return float64(t.Buckets[bucket]) / float64(t.TotalIssued)
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
