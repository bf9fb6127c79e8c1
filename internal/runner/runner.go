package runner

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/barrage/internal/httpclient"
	"github.com/torosent/barrage/internal/metrics"
	"github.com/torosent/barrage/internal/pool"
)

// State is a campaign's lifecycle position.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Spec describes one campaign.
type Spec struct {
	Name        string
	Path        string
	Count       int
	Concurrency int
}

func (s Spec) displayName() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	if s.Path == "" {
		return "/"
	}
	return s.Path
}

// Result is what a finished campaign hands to reporters.
type Result struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Path        string        `json:"path" yaml:"path"`
	URL         string        `json:"url" yaml:"url"`
	Count       int           `json:"count" yaml:"count"`
	Concurrency int           `json:"concurrency" yaml:"concurrency"`
	State       string        `json:"state" yaml:"state"`
	Tally       metrics.Tally `json:"tally" yaml:"tally"`
}

// Runner creates and executes campaigns against one base URL.
type Runner struct {
	opt Options
}

// New returns a Runner. Missing options fall back to defaults; the base URL
// is checked when a campaign is created.
func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// NewCampaign validates spec and returns a campaign ready to run.
func (r *Runner) NewCampaign(spec Spec) (*Campaign, error) {
	if err := validateBaseURL(r.opt.BaseURL); err != nil {
		return nil, err
	}
	if spec.Count < 1 {
		return nil, &ConfigError{Field: "count", Reason: fmt.Sprintf("must be at least 1 (got %d)", spec.Count)}
	}
	if spec.Concurrency < 1 {
		return nil, &ConfigError{Field: "concurrency", Reason: fmt.Sprintf("must be at least 1 (got %d)", spec.Concurrency)}
	}

	return &Campaign{
		ID:     ulid.Make(),
		Spec:   spec,
		Target: httpclient.NewTarget(r.opt.BaseURL, spec.Path),
		runner: r,
		agg:    metrics.NewAggregator(),
	}, nil
}

// RunCampaign creates and runs a single campaign.
func (r *Runner) RunCampaign(ctx context.Context, path string, count, concurrency int) (metrics.Tally, error) {
	c, err := r.NewCampaign(Spec{Path: path, Count: count, Concurrency: concurrency})
	if err != nil {
		return metrics.Tally{}, err
	}
	return c.Run(ctx)
}

// RunAll runs specs sequentially. It stops at the first configuration
// error, cancellation or invariant violation and returns the results
// gathered so far. Every spec is validated before the first one runs.
func (r *Runner) RunAll(ctx context.Context, specs []Spec) ([]Result, error) {
	campaigns := make([]*Campaign, 0, len(specs))
	for _, spec := range specs {
		c, err := r.NewCampaign(spec)
		if err != nil {
			return nil, fmt.Errorf("campaign %s: %w", spec.displayName(), err)
		}
		campaigns = append(campaigns, c)
	}

	results := make([]Result, 0, len(campaigns))
	for _, c := range campaigns {
		if r.opt.Observer != nil {
			r.opt.Observer.CampaignStarted(c)
		}
		_, err := c.Run(ctx)
		res := c.Result()
		results = append(results, res)
		if r.opt.Observer != nil {
			r.opt.Observer.CampaignFinished(res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Campaign is one stress-test run. It is not reusable.
type Campaign struct {
	ID     ulid.ULID
	Spec   Spec
	Target httpclient.Target

	runner *Runner
	agg    *metrics.Aggregator

	mu    sync.Mutex
	state State
	tally metrics.Tally
}

// Name returns the campaign's display name (its path when unnamed).
func (c *Campaign) Name() string {
	return c.Spec.displayName()
}

// State returns the current lifecycle state.
func (c *Campaign) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Aggregator exposes the live aggregator for progress reporting.
func (c *Campaign) Aggregator() *metrics.Aggregator {
	return c.agg
}

// Result snapshots the campaign for reporters.
func (c *Campaign) Result() Result {
	c.mu.Lock()
	state := c.state
	tally := c.tally
	c.mu.Unlock()
	if !state.Terminal() {
		tally = c.agg.Snapshot()
	}
	return Result{
		ID:          c.ID.String(),
		Name:        c.Name(),
		Path:        c.Spec.Path,
		URL:         c.Target.URL(),
		Count:       c.Spec.Count,
		Concurrency: c.Spec.Concurrency,
		State:       state.String(),
		Tally:       tally,
	}
}

// Run executes the campaign and returns its final tally. If ctx ends
// early the partial tally is returned with an error matching ErrCanceled.
func (c *Campaign) Run(ctx context.Context) (metrics.Tally, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.transition(StateNotStarted, StateRunning); err != nil {
		return metrics.Tally{}, err
	}

	opt := c.runner.opt
	name := c.Name()

	var dispatcher pool.Dispatcher = opt.Dispatcher
	dispatcher = WithTracing(dispatcher, opt.Tracer, name, c.ID.String())
	dispatcher = WithLogging(dispatcher, opt.FailureLogger, name)

	poolOpts := []pool.Option{
		pool.WithRateLimit(opt.RatePerSecond),
		pool.WithOutcomeHook(c.record),
	}
	if opt.LimiterFactory != nil {
		poolOpts = append(poolOpts, pool.WithLimiterFactory(opt.LimiterFactory))
	}
	p, err := pool.New(c.Spec.Concurrency, poolOpts...)
	if err != nil {
		c.finish(StateFailed, c.agg.Complete())
		return metrics.Tally{}, &ConfigError{Field: "concurrency", Reason: err.Error()}
	}

	targets := httpclient.Repeat(c.Target, c.Spec.Count)

	c.agg.Start()
	outcomes, runErr := p.Run(ctx, targets, dispatcher)
	tally := c.agg.Complete()

	if runErr != nil {
		c.finish(StateCancelled, tally)
		return tally, fmt.Errorf("campaign %s: %w", name, runErr)
	}

	return tally, c.conclude(len(outcomes), tally)
}

// conclude moves a fully dispatched campaign to its terminal state. A tally
// that does not account for every request marks the campaign failed.
func (c *Campaign) conclude(outcomes int, tally metrics.Tally) error {
	if err := c.verify(outcomes, tally); err != nil {
		c.finish(StateFailed, tally)
		return err
	}
	c.finish(StateCompleted, tally)
	return nil
}

func (c *Campaign) record(o httpclient.Outcome) {
	if err := c.agg.Record(o); err != nil && c.runner.opt.FailureLogger != nil {
		c.runner.opt.FailureLogger.LogFailure(fmt.Errorf("campaign %s: %w", c.Name(), err))
	}
}

// verify checks that every request was dispatched and tallied exactly once.
func (c *Campaign) verify(outcomes int, tally metrics.Tally) error {
	expected := int64(c.Spec.Count)
	switch {
	case int64(outcomes) != expected:
		return &InvariantError{Campaign: c.Name(), Expected: expected, Recorded: int64(outcomes), Detail: "pool outcome count"}
	case tally.TotalIssued != expected:
		return &InvariantError{Campaign: c.Name(), Expected: expected, Recorded: tally.TotalIssued, Detail: "tally total"}
	case tally.BucketSum() != tally.TotalIssued:
		return &InvariantError{Campaign: c.Name(), Expected: tally.TotalIssued, Recorded: tally.BucketSum(), Detail: "bucket sum"}
	}
	return nil
}

func (c *Campaign) transition(from, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return fmt.Errorf("campaign %s is %s: %w", c.Spec.displayName(), c.state, ErrAlreadyRun)
	}
	c.state = to
	return nil
}

func (c *Campaign) finish(state State, tally metrics.Tally) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.tally = tally
}

func validateBaseURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &ConfigError{Field: "base_url", Reason: "is required"}
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return &ConfigError{Field: "base_url", Reason: fmt.Sprintf("is invalid: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigError{Field: "base_url", Reason: fmt.Sprintf("must use http or https (got %q)", u.Scheme)}
	}
	if u.Host == "" {
		return &ConfigError{Field: "base_url", Reason: "must include a host"}
	}
	return nil
}
