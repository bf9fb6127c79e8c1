package runner

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/barrage/internal/httpclient"
	"github.com/torosent/barrage/internal/pool"
	"github.com/torosent/barrage/internal/tracing"
)

// FailureLogger logs failed requests.
type FailureLogger interface {
	LogFailure(err error)
}

// TransportFailure describes one request that produced no response.
type TransportFailure struct {
	Campaign string
	URL      string
	Reason   string
	Message  string
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("%s: GET %s: %s (%s)", e.Campaign, e.URL, e.Message, e.Reason)
}

// loggingDispatcher reports transport failures to a FailureLogger.
type loggingDispatcher struct {
	inner    pool.Dispatcher
	logger   FailureLogger
	campaign string
}

// WithLogging wraps a Dispatcher to log transport failures.
func WithLogging(d pool.Dispatcher, logger FailureLogger, campaign string) pool.Dispatcher {
	if logger == nil {
		return d
	}
	return &loggingDispatcher{inner: d, logger: logger, campaign: campaign}
}

func (l *loggingDispatcher) Dispatch(ctx context.Context, url string) httpclient.Outcome {
	out := l.inner.Dispatch(ctx, url)
	if out.IsTransportError() {
		l.logger.LogFailure(&TransportFailure{
			Campaign: l.campaign,
			URL:      url,
			Reason:   out.Reason,
			Message:  out.Message,
		})
	}
	return out
}

// tracingDispatcher wraps each dispatch in a client span.
type tracingDispatcher struct {
	inner      pool.Dispatcher
	tracer     trace.Tracer
	campaign   string
	campaignID string
}

// WithTracing wraps a Dispatcher so every request is recorded as a span.
func WithTracing(d pool.Dispatcher, tracer trace.Tracer, campaign, campaignID string) pool.Dispatcher {
	if tracer == nil {
		return d
	}
	return &tracingDispatcher{inner: d, tracer: tracer, campaign: campaign, campaignID: campaignID}
}

func (t *tracingDispatcher) Dispatch(ctx context.Context, url string) httpclient.Outcome {
	ctx, span := tracing.StartDispatchSpan(ctx, t.tracer, t.campaign, t.campaignID, url)
	out := t.inner.Dispatch(ctx, url)
	tracing.EndDispatchSpan(span, out)
	return out
}
