// Package httpclient sends the individual requests of a campaign.
//
// A [Target] names what to request (base URL plus path). A [Dispatcher]
// issues one GET against a target URL and classifies the result as an
// [Outcome]:
//
//	d := httpclient.NewDispatcher(httpclient.NewClient(5 * time.Second))
//	out := d.Dispatch(ctx, target.URL())
//	if out.Kind == httpclient.OutcomeTransportError {
//		fmt.Println(out.Reason, out.Message)
//	}
//
// Dispatch never returns an error. Any HTTP response, including 4xx and 5xx,
// is a success carrying its status code; deciding whether a code was
// expected is left to reporters and thresholds. Connection failures,
// timeouts, DNS failures and malformed responses become transport errors.
//
// # HTTP Client
//
// [NewClient] builds an *http.Client tuned for load generation: a finite
// overall timeout and an idle pool large enough to reuse connections across
// concurrent workers.
package httpclient
