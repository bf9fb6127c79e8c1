// Package metrics aggregates campaign outcomes into a tally.
//
// An [Aggregator] is owned by a single campaign. Workers call
// [Aggregator.Record] concurrently as outcomes arrive; readers may take a
// [Aggregator.Snapshot] at any time:
//
//	agg := metrics.NewAggregator()
//	agg.Start()
//	_ = agg.Record(httpclient.Success(200, 12*time.Millisecond))
//	tally := agg.Complete()
//	fmt.Println(tally.Buckets["200"], tally.Elapsed)
//
// # Tally
//
// A [Tally] counts outcomes per bucket: the decimal status code for every
// received response and "error" for transport failures. It also carries
// timing (start, completion, elapsed), latency percentiles from an HDR
// histogram, and a breakdown of transport failures by reason.
//
// # Thread Safety
//
// All mutation happens under the aggregator's mutex, so concurrent Record
// calls never lose updates. Once [Aggregator.Complete] has been called the
// tally is final: further records are rejected with [ErrFinalized] and
// snapshots keep returning the same values.
package metrics
