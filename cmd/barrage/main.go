package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/torosent/barrage/internal/config"
	"github.com/torosent/barrage/internal/dashboard"
	"github.com/torosent/barrage/internal/discovery"
	"github.com/torosent/barrage/internal/history"
	"github.com/torosent/barrage/internal/httpclient"
	"github.com/torosent/barrage/internal/output"
	"github.com/torosent/barrage/internal/runner"
	"github.com/torosent/barrage/internal/threshold"
	"github.com/torosent/barrage/internal/tracing"
)

const (
	progressInterval = 250 * time.Millisecond
	shutdownTimeout  = 5 * time.Second
	exitInterrupted  = 130
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

type stderrFailureLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, runner.ErrCanceled) {
		return exitInterrupted
	}
	return 1
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "[barrage] tracing shutdown: %v\n", err)
		}
	}()

	client := httpclient.NewClient(cfg.Timeout)
	dispatcher := httpclient.NewDispatcher(client)
	defer dispatcher.Close()

	if cfg.Discover {
		found, err := discovery.Discover(ctx, client, cfg.BaseURL)
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}
		for _, coll := range found {
			cfg.Campaigns = append(cfg.Campaigns, config.Campaign{
				Name:        coll.Name,
				Path:        coll.Path,
				Count:       cfg.Count,
				Concurrency: cfg.Concurrency,
			})
		}
	}
	if len(cfg.Campaigns) == 0 {
		return errors.New("no campaigns to run")
	}

	opts := runner.Options{
		BaseURL:       cfg.BaseURL,
		Timeout:       cfg.Timeout,
		RatePerSecond: cfg.Rate,
		Dispatcher:    dispatcher,
	}
	if cfg.LogErrors {
		opts.FailureLogger = &stderrFailureLogger{w: stderr}
	}
	if provider.Enabled() {
		opts.Tracer = provider.Tracer()
	}
	var stopDisplay func()
	switch {
	case cfg.Dashboard:
		dash, err := dashboard.New(dashboard.Settings{
			Rate:       cfg.Rate,
			Timeout:    cfg.Timeout,
			Campaigns:  len(cfg.Campaigns),
			ConfigFile: cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
		opts.Observer = dash
		stopDisplay = dash.Stop
	case cfg.Progress:
		progress := output.NewProgressReporter(progressInterval, stderr)
		opts.Observer = progress
		stopDisplay = progress.Stop
	}

	r := runner.New(opts)
	results, runErr := r.RunAll(ctx, toSpecs(cfg.Campaigns))
	if stopDisplay != nil {
		stopDisplay()
	}
	if len(results) == 0 {
		return runErr
	}

	var thresholdResults []threshold.Result
	if len(thresholds) > 0 {
		evaluator := threshold.NewEvaluator(thresholds)
		for _, res := range results {
			thresholdResults = append(thresholdResults, evaluator.Evaluate(res.Name, res.Tally)...)
		}
	}
	report := output.NewReport(cfg.BaseURL, results, thresholdResults)

	// Reports are still written after an interrupt ended the run.
	outCtx, outCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer outCancel()

	if err := writeReport(outCtx, cfg, report, stdout); err != nil {
		return err
	}
	if cfg.HTMLOutput != "" {
		if err := output.WriteFile(outCtx, cfg.HTMLOutput, func(w io.Writer) error {
			return output.GenerateHTMLReport(w, report)
		}); err != nil {
			return fmt.Errorf("html report: %w", err)
		}
	}
	if cfg.HistoryDB != "" {
		if err := saveHistory(outCtx, cfg.HistoryDB, cfg.BaseURL, results); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if !report.Passed() {
		return errThresholdsFailed
	}
	return nil
}

func toSpecs(campaigns []config.Campaign) []runner.Spec {
	specs := make([]runner.Spec, len(campaigns))
	for i, c := range campaigns {
		specs[i] = runner.Spec{
			Name:        c.Name,
			Path:        c.Path,
			Count:       c.Count,
			Concurrency: c.Concurrency,
		}
	}
	return specs
}

// writeReport renders the main report to the output file or stdout.
func writeReport(ctx context.Context, cfg *config.Config, report output.Report, stdout io.Writer) error {
	render := func(w io.Writer, scheme *output.ColorScheme) error {
		switch {
		case cfg.JSONOutput:
			return output.PrintJSONReport(w, report)
		case cfg.YAMLOutput:
			return output.PrintYAMLReport(w, report)
		default:
			output.PrintReport(w, report, scheme)
			return nil
		}
	}

	if cfg.OutputFile != "" {
		return output.WriteFile(ctx, cfg.OutputFile, func(w io.Writer) error {
			return render(w, output.NoColorScheme())
		})
	}

	scheme := output.NoColorScheme()
	if f, ok := stdout.(*os.File); ok {
		scheme = output.SchemeFor(f, cfg.NoColor)
	}
	return render(stdout, scheme)
}

func saveHistory(ctx context.Context, path, baseURL string, results []runner.Result) error {
	store, err := history.Open(path)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer store.Close()

	for _, res := range results {
		if err := store.Save(ctx, history.FromResult(baseURL, res)); err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}
	return nil
}

func (l *stderrFailureLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[barrage] request failed: %v\n", err)
}
