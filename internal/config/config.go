package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultBaseURL     = "http://127.0.0.1:8790"
	DefaultCount       = 1000
	DefaultConcurrency = 20
	DefaultTimeout     = 10 * time.Second

	// concurrencyWarnLimit is the level above which Validate prints a warning.
	concurrencyWarnLimit = 500
)

// Config is the resolved configuration for one barrage invocation.
type Config struct {
	BaseURL     string        `mapstructure:"base_url"`
	Campaigns   []Campaign    `mapstructure:"campaigns"`
	Count       int           `mapstructure:"count"`
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Rate        int           `mapstructure:"rate"`
	JSONOutput  bool          `mapstructure:"json_output"`
	YAMLOutput  bool          `mapstructure:"yaml_output"`
	HTMLOutput  string        `mapstructure:"html_output"`
	OutputFile  string        `mapstructure:"output_file"`
	NoColor     bool          `mapstructure:"no_color"`
	LogErrors   bool          `mapstructure:"log_errors"`
	Progress    bool          `mapstructure:"progress"`
	Dashboard   bool          `mapstructure:"dashboard"`
	Discover    bool          `mapstructure:"discover"`
	HistoryDB   string        `mapstructure:"history_db"`
	Thresholds  []string      `mapstructure:"thresholds"`
	Tracing     TracingConfig `mapstructure:"tracing"`
	ConfigFile  string        `mapstructure:"-"`
}

// Campaign describes one batch of identical GET requests against a path.
// Zero Count or Concurrency read from a file inherit the global values;
// an explicit zero is kept so that Validate can reject it.
type Campaign struct {
	Name        string `mapstructure:"name"`
	Path        string `mapstructure:"path"`
	Count       int    `mapstructure:"count"`
	Concurrency int    `mapstructure:"concurrency"`

	countSet       bool
	concurrencySet bool
}

// TracingConfig configures the OTLP span exporter.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Enabled reports whether spans should be exported, either because an
// endpoint was configured or the standard OTLP environment variable is set.
func (t TracingConfig) Enabled() bool {
	if strings.TrimSpace(t.Endpoint) != "" {
		return true
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// DefaultCampaigns returns the built-in campaign set exercising the sample
// people service: the index, a known record, a missing record and an
// unknown route.
func DefaultCampaigns(concurrency int) []Campaign {
	return []Campaign{
		{Name: "index", Path: "/", Count: 1000, Concurrency: concurrency},
		{Name: "person", Path: "/people/1", Count: 2000, Concurrency: concurrency},
		{Name: "missing person", Path: "/people/9999", Count: 1000, Concurrency: concurrency},
		{Name: "unknown route", Path: "/unknown", Count: 500, Concurrency: concurrency},
	}
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		Count:       DefaultCount,
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
		Tracing:     TracingConfig{SampleRate: 1.0},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	if strings.TrimSpace(c.BaseURL) == "" {
		issues = append(issues, "base_url is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		issues = append(issues, fmt.Sprintf("base_url %q must be an absolute http or https URL", c.BaseURL))
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be non-negative")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be non-negative")
	}
	// Discovered campaigns take the global values after validation has run.
	if c.Count < 1 {
		issues = append(issues, fmt.Sprintf("count must be at least 1 (got %d)", c.Count))
	}
	if c.Concurrency < 1 {
		issues = append(issues, fmt.Sprintf("concurrency must be at least 1 (got %d)", c.Concurrency))
	}
	if c.JSONOutput && c.YAMLOutput {
		issues = append(issues, "json_output and yaml_output are mutually exclusive")
	}
	if c.Dashboard && c.Progress {
		issues = append(issues, "dashboard and progress are mutually exclusive")
	}

	for i, camp := range c.Campaigns {
		label := camp.Name
		if label == "" {
			label = fmt.Sprintf("campaigns[%d]", i)
		}
		if camp.Count < 1 {
			issues = append(issues, fmt.Sprintf("%s: count must be at least 1", label))
		}
		if camp.Concurrency < 1 {
			issues = append(issues, fmt.Sprintf("%s: concurrency must be at least 1", label))
		}
		if camp.Path != "" && !strings.HasPrefix(camp.Path, "/") {
			issues = append(issues, fmt.Sprintf("%s: path %q must start with /", label, camp.Path))
		}
		if camp.Concurrency > concurrencyWarnLimit {
			warnings = append(warnings, fmt.Sprintf("%s: concurrency %d is very high and may exhaust local sockets", label, camp.Concurrency))
		}
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol %q must be grpc or http", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing.sample_rate %v must be between 0 and 1", t.SampleRate))
	}
	return issues
}
