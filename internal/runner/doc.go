// Package runner orchestrates stress-test campaigns.
//
// A campaign issues Count identical GET requests against one path of the
// service under test, with at most Concurrency requests in flight, and
// produces a final [metrics.Tally]:
//
//	r := runner.New(runner.Options{
//		BaseURL: "http://127.0.0.1:8790",
//		Timeout: 5 * time.Second,
//	})
//	tally, err := r.RunCampaign(ctx, "/people/1", 2000, 20)
//
// Campaigns run one after another with [Runner.RunAll]; each gets its own
// aggregator so nothing carries over between them.
//
// # Campaign Lifecycle
//
// A [Campaign] moves through [StateNotStarted], [StateRunning] and then
// [StateCompleted], [StateCancelled] when the context ends early, or
// [StateFailed] when its tally does not account for every request.
// Terminal states are never left; running a campaign a
// second time returns [ErrAlreadyRun].
//
// # Errors
//
// Invalid counts, concurrency limits or base URLs are rejected with a
// [*ConfigError] before any request is sent. Transport failures never abort
// a campaign; they are tallied in the "error" bucket. A completed campaign
// whose tally does not account for every request fails with an
// [*InvariantError].
//
// # Middleware
//
// The dispatcher used for every request can be decorated:
//   - [WithLogging]: report transport failures to a [FailureLogger]
//   - [WithTracing]: wrap each dispatch in an OpenTelemetry client span
package runner
