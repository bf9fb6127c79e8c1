package output

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/barrage/internal/metrics"
	"github.com/torosent/barrage/internal/runner"
	"github.com/torosent/barrage/internal/threshold"
)

// Report is everything one barrage invocation produced.
type Report struct {
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	BaseURL     string            `json:"base_url" yaml:"base_url"`
	Campaigns   []runner.Result   `json:"campaigns" yaml:"campaigns"`
	Thresholds  *ThresholdSummary `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// ThresholdSummary counts passed and failed threshold evaluations.
type ThresholdSummary struct {
	Total   int                   `json:"total" yaml:"total"`
	Passed  int                   `json:"passed" yaml:"passed"`
	Failed  int                   `json:"failed" yaml:"failed"`
	Results []ThresholdResultJSON `json:"results" yaml:"results"`
}

// ThresholdResultJSON is the serialized form of a threshold.Result.
type ThresholdResultJSON struct {
	Campaign  string  `json:"campaign" yaml:"campaign"`
	Threshold string  `json:"threshold" yaml:"threshold"`
	Metric    string  `json:"metric" yaml:"metric"`
	Aggregate string  `json:"aggregate" yaml:"aggregate"`
	Operator  string  `json:"operator" yaml:"operator"`
	Expected  float64 `json:"expected" yaml:"expected"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// NewReport assembles a report from campaign results and threshold outcomes.
func NewReport(baseURL string, campaigns []runner.Result, thresholdResults []threshold.Result) Report {
	r := Report{
		GeneratedAt: time.Now().UTC(),
		BaseURL:     baseURL,
		Campaigns:   campaigns,
	}
	if len(thresholdResults) > 0 {
		summary := &ThresholdSummary{
			Total:   len(thresholdResults),
			Results: make([]ThresholdResultJSON, len(thresholdResults)),
		}
		for i, tr := range thresholdResults {
			summary.Results[i] = ThresholdResultJSON{
				Campaign:  tr.Campaign,
				Threshold: tr.Threshold.Raw,
				Metric:    tr.Threshold.Metric,
				Aggregate: tr.Threshold.Aggregate,
				Operator:  tr.Threshold.Operator,
				Expected:  tr.Threshold.Value,
				Actual:    tr.Actual,
				Pass:      tr.Pass,
			}
			if tr.Pass {
				summary.Passed++
			} else {
				summary.Failed++
			}
		}
		r.Thresholds = summary
	}
	return r
}

// Passed reports whether no threshold failed.
func (r Report) Passed() bool {
	return r.Thresholds == nil || r.Thresholds.Failed == 0
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, report Report, scheme *ColorScheme) {
	if scheme == nil {
		scheme = NoColorScheme()
	}
	for _, res := range report.Campaigns {
		printCampaign(w, res, scheme)
	}

	if report.Thresholds != nil {
		scheme.Header.Fprintln(w, "\n--- Thresholds ---")
		for _, tr := range report.Thresholds.Results {
			mark, c := "✓", scheme.Pass
			if !tr.Pass {
				mark, c = "✗", scheme.Fail
			}
			c.Fprintf(w, "%s [%s] %s (actual %.2f)\n", mark, tr.Campaign, tr.Threshold, tr.Actual)
		}
		fmt.Fprintf(w, "Passed: %d  Failed: %d\n", report.Thresholds.Passed, report.Thresholds.Failed)
	}
}

func printCampaign(w io.Writer, res runner.Result, scheme *ColorScheme) {
	t := res.Tally
	scheme.Header.Fprintf(w, "\n--- Campaign: %s ---\n", res.Name)
	fmt.Fprintf(w, "Target:            GET %s\n", res.URL)
	fmt.Fprintf(w, "Campaign ID:       %s\n", res.ID)
	fmt.Fprintf(w, "State:             %s\n", res.State)
	fmt.Fprintf(w, "Requests:          %d of %d (concurrency %d)\n", t.TotalIssued, res.Count, res.Concurrency)
	fmt.Fprintf(w, "Duration:          %s\n", t.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", t.RequestsPerSec)

	ok, notFound := t.Count("200"), t.Count("404")
	scheme.Status2xx.Fprintf(w, "Successful (200):  %d\n", ok)
	scheme.Status4xx.Fprintf(w, "Not Found (404):   %d\n", notFound)
	other := t.TotalIssued - ok - notFound
	if other > 0 {
		scheme.StatusError.Fprintf(w, "Other Errors:      %d\n", other)
	} else {
		fmt.Fprintf(w, "Other Errors:      %d\n", other)
	}

	fmt.Fprintln(w, "\nStatus Buckets:")
	writeStatusBuckets(w, t.Buckets, "  ", scheme)

	if len(t.ErrorReasons) > 0 {
		fmt.Fprintln(w, "\nTransport Errors:")
		for _, row := range metrics.SortedBuckets(t.ErrorReasons) {
			scheme.StatusError.Fprintf(w, "  %s: %d\n", metrics.FriendlyReason(row.Code), row.Count)
		}
	}

	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", t.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", t.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", t.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", t.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", t.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", t.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", t.P99Latency)
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, report Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

func writeStatusBuckets(w io.Writer, buckets map[string]int64, indent string, scheme *ColorScheme) {
	rows := metrics.SortedBuckets(buckets)
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		label := row.Code
		if code, err := strconv.Atoi(row.Code); err == nil {
			if text := http.StatusText(code); text != "" {
				label = fmt.Sprintf("%s %s", row.Code, text)
			}
		}
		scheme.forBucket(row.Code).Fprintf(w, "%s%s: %d\n", indent, label, row.Count)
	}
}
