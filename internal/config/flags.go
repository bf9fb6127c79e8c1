package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "barrage",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.StringP("base-url", "u", DefaultBaseURL, "Base URL of the service under test")
	flags.StringArrayP("path", "p", nil, "Path to hammer with GET requests (repeatable, one campaign per path)")
	flags.Bool("discover", false, "Add a campaign for every collection listed by the service root index")

	// Load control flags
	flags.IntP("count", "n", DefaultCount, "Requests per campaign for --path and discovered campaigns")
	flags.IntP("concurrency", "c", DefaultConcurrency, "Maximum requests in flight per campaign")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.IntP("rate", "r", 0, "Requests per second limit (0 means unlimited)")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("yaml-output", false, "Emit YAML formatted output")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.StringP("output-file", "o", "", "Write the report to a file instead of stdout")
	flags.Bool("no-color", false, "Disable colored output")
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.Bool("progress", false, "Print live progress to stderr while campaigns run")
	flags.Bool("dashboard", false, "Show a live terminal dashboard while campaigns run")
	flags.String("history-db", "", "Record campaign results in the given SQLite database")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Threshold flags
	flags.StringArray("threshold", nil, "Pass/fail assertion (repeatable, e.g. 'status_error:count == 0')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "barrage", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests to trace (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("base-url") {
		val, err := fs.GetString("base-url")
		if err != nil {
			return err
		}
		cfg.BaseURL = strings.TrimSpace(val)
	}
	if fs.Changed("count") {
		val, err := fs.GetInt("count")
		if err != nil {
			return err
		}
		cfg.Count = val
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("path") {
		paths, err := fs.GetStringArray("path")
		if err != nil {
			return err
		}
		// Paths on the command line replace any campaigns from the file.
		cfg.Campaigns = make([]Campaign, 0, len(paths))
		for _, p := range paths {
			cfg.Campaigns = append(cfg.Campaigns, Campaign{Path: strings.TrimSpace(p)})
		}
	}

	if err := applyBoolFlag(fs, "discover", &cfg.Discover); err != nil {
		return err
	}
	if err := applyBoolFlag(fs, "json-output", &cfg.JSONOutput); err != nil {
		return err
	}
	if err := applyBoolFlag(fs, "yaml-output", &cfg.YAMLOutput); err != nil {
		return err
	}
	if err := applyBoolFlag(fs, "no-color", &cfg.NoColor); err != nil {
		return err
	}
	if err := applyBoolFlag(fs, "log-errors", &cfg.LogErrors); err != nil {
		return err
	}
	if err := applyBoolFlag(fs, "progress", &cfg.Progress); err != nil {
		return err
	}
	if err := applyBoolFlag(fs, "dashboard", &cfg.Dashboard); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "html-output", &cfg.HTMLOutput); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "output-file", &cfg.OutputFile); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "history-db", &cfg.HistoryDB); err != nil {
		return err
	}

	if fs.Changed("threshold") {
		val, err := fs.GetStringArray("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, val...)
	}

	if err := applyStringFlag(fs, "tracing-endpoint", &cfg.Tracing.Endpoint); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "tracing-protocol", &cfg.Tracing.Protocol); err != nil {
		return err
	}
	if err := applyStringFlag(fs, "tracing-service-name", &cfg.Tracing.ServiceName); err != nil {
		return err
	}
	if err := applyBoolFlag(fs, "tracing-insecure", &cfg.Tracing.Insecure); err != nil {
		return err
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	return nil
}

func applyBoolFlag(fs *pflag.FlagSet, name string, dst *bool) error {
	if !fs.Changed(name) {
		return nil
	}
	val, err := fs.GetBool(name)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func applyStringFlag(fs *pflag.FlagSet, name string, dst *string) error {
	if !fs.Changed(name) {
		return nil
	}
	val, err := fs.GetString(name)
	if err != nil {
		return err
	}
	*dst = strings.TrimSpace(val)
	return nil
}
