package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/barrage/internal/httpclient"
	"github.com/torosent/barrage/internal/metrics"
)

// Threshold represents a campaign assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "http_req_duration", "status_404", "status_error"
	Aggregate string  // e.g., "p95", "p99", "avg", "max", "rate", "count"
	Operator  string  // e.g., "<", "<=", ">", ">=", "==", "!="
	Value     float64 // The threshold value to compare against
	Campaign  string  // Optional campaign name; empty applies to every campaign
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Campaign  string
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against campaign tallies.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks every threshold that applies to campaign against its tally.
func (e *Evaluator) Evaluate(campaign string, tally metrics.Tally) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		if t.Campaign != "" && t.Campaign != campaign {
			continue
		}
		results = append(results, e.evaluateOne(t, campaign, tally))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(t Threshold, campaign string, tally metrics.Tally) Result {
	actual, err := extractMetricValue(t, tally)
	if err != nil {
		return Result{
			Threshold: t,
			Campaign:  campaign,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("✗ [%s] %s: error: %v", campaign, t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s [%s] %s: %.2f %s %.2f", status, campaign, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Campaign:  campaign,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z0-9_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)(?:\s+@\s*(.+))?$`)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "status_200:count == 2000"        (responses with that status code)
// - "status_404:rate > 0.99"          (share of responses with that status)
// - "status_error:count == 0"         (transport errors)
// - "http_req_duration:p95 < 500"     (latency percentile in ms)
// - "http_req_duration:avg < 200"     (average latency in ms)
// - "http_req_failed:rate < 0.01"     (transport error rate as decimal)
// - "http_requests:rate > 100"        (requests per second)
//
// A trailing "@name" limits the threshold to one campaign, e.g.
// "status_200:count == 2000 @person".
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value [@campaign], e.g., 'status_error:count == 0')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]
	campaign := strings.TrimSpace(matches[5])

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: status_<code>, status_error, http_req_duration, http_req_failed, http_requests)", metric)
	}

	if !isValidAggregate(aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: p50, p90, p95, p99, avg, min, max, rate, count)", aggregate)
	}

	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==, !=)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Campaign:  campaign,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func isValidMetric(metric string) bool {
	if _, ok := statusBucket(metric); ok {
		return true
	}
	valid := []string{"http_req_duration", "http_req_failed", "http_requests"}
	for _, v := range valid {
		if metric == v {
			return true
		}
	}
	return false
}

// statusBucket maps "status_404" to "404" and "status_error" to the
// transport error bucket.
func statusBucket(metric string) (string, bool) {
	code, ok := strings.CutPrefix(metric, "status_")
	if !ok || code == "" {
		return "", false
	}
	if code == httpclient.ErrorBucket {
		return httpclient.ErrorBucket, true
	}
	n, err := strconv.Atoi(code)
	if err != nil || n < 100 || n > 999 {
		return "", false
	}
	return code, true
}

func isValidAggregate(aggregate string) bool {
	valid := []string{"p50", "p90", "p95", "p99", "avg", "min", "max", "rate", "count"}
	for _, v := range valid {
		if aggregate == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "==", "!="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, tally metrics.Tally) (float64, error) {
	if bucket, ok := statusBucket(t.Metric); ok {
		return extractStatusMetric(t.Metric, bucket, t.Aggregate, tally)
	}
	switch t.Metric {
	case "http_req_duration":
		return extractLatencyMetric(t.Aggregate, tally)
	case "http_req_failed":
		return extractStatusMetric(t.Metric, httpclient.ErrorBucket, t.Aggregate, tally)
	case "http_requests":
		return extractRequestMetric(t.Aggregate, tally)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractStatusMetric(metric, bucket, aggregate string, tally metrics.Tally) (float64, error) {
	switch aggregate {
	case "count":
		return float64(tally.Count(bucket)), nil
	case "rate":
		return tally.Rate(bucket), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'count' or 'rate')", aggregate, metric)
	}
}

func extractLatencyMetric(aggregate string, tally metrics.Tally) (float64, error) {
	switch aggregate {
	case "p50":
		return tally.P50LatencyMs, nil
	case "p90":
		return tally.P90LatencyMs, nil
	case "p95":
		return tally.P95LatencyMs, nil
	case "p99":
		return tally.P99LatencyMs, nil
	case "avg":
		return tally.MeanLatencyMs, nil
	case "min":
		return tally.MinLatencyMs, nil
	case "max":
		return tally.MaxLatencyMs, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for http_req_duration", aggregate)
	}
}

func extractRequestMetric(aggregate string, tally metrics.Tally) (float64, error) {
	switch aggregate {
	case "count":
		return float64(tally.TotalIssued), nil
	case "rate":
		return tally.RequestsPerSec, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for http_requests (use 'count' or 'rate')", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	case "!=":
		return math.Abs(actual-expected) >= epsilon
	default:
		return false
	}
}
