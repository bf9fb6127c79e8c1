package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/barrage/internal/httpclient"
)

// StartDispatchSpan starts a client span for one GET issued by a campaign.
func StartDispatchSpan(ctx context.Context, tracer trace.Tracer, campaign, campaignID, url string) (context.Context, trace.Span) {
	spanName := "GET"
	if campaign != "" {
		spanName = "GET " + campaign
	}
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("http.request.method", "GET"),
		attribute.String("url.full", url),
	)
	if campaign != "" {
		span.SetAttributes(attribute.String("barrage.campaign", campaign))
	}
	if campaignID != "" {
		span.SetAttributes(attribute.String("barrage.campaign_id", campaignID))
	}
	return ctx, span
}

// EndDispatchSpan finishes span with the outcome's status or failure.
// Received responses are never span errors here; judging a status code is
// left to thresholds.
func EndDispatchSpan(span trace.Span, out httpclient.Outcome) {
	span.SetAttributes(attribute.Int64("barrage.latency_us", out.Latency.Microseconds()))
	if out.IsTransportError() {
		span.SetAttributes(attribute.String("error.type", out.Reason))
		span.SetStatus(codes.Error, out.Message)
	} else {
		span.SetAttributes(attribute.Int("http.response.status_code", out.StatusCode))
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
