package httpclient

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	// OutcomeSuccess means an HTTP response was received, whatever its status.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeTransportError means no response was received.
	OutcomeTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// ErrorBucket is the tally bucket shared by every transport error.
const ErrorBucket = "error"

// Transport failure reasons.
const (
	ReasonTimeout           = "timeout"
	ReasonConnectionRefused = "connection_refused"
	ReasonDNS               = "dns"
	ReasonMalformed         = "malformed_response"
	ReasonCanceled          = "canceled"
	ReasonOther             = "other"
)

// Outcome is the classified result of one dispatched request.
// StatusCode is set only for OutcomeSuccess; Message and Reason only for
// OutcomeTransportError.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Message    string
	Reason     string
	Latency    time.Duration
}

// Success builds a success outcome for a received response.
func Success(statusCode int, latency time.Duration) Outcome {
	return Outcome{Kind: OutcomeSuccess, StatusCode: statusCode, Latency: latency}
}

// TransportError builds a transport error outcome from err.
func TransportError(err error, latency time.Duration) Outcome {
	msg := "unknown transport error"
	if err != nil {
		msg = err.Error()
	}
	return Outcome{
		Kind:    OutcomeTransportError,
		Message: msg,
		Reason:  ClassifyError(err),
		Latency: latency,
	}
}

// IsTransportError reports whether no response was received.
func (o Outcome) IsTransportError() bool {
	return o.Kind == OutcomeTransportError
}

// Bucket returns the tally bucket for o: the decimal status code, or
// ErrorBucket for transport errors.
func (o Outcome) Bucket() string {
	if o.Kind == OutcomeTransportError {
		return ErrorBucket
	}
	return strconv.Itoa(o.StatusCode)
}

// ClassifyError maps a transport error to one of the Reason constants.
func ClassifyError(err error) string {
	if err == nil {
		return ReasonOther
	}

	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ReasonTimeout
		}
		return ReasonDNS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ReasonConnectionRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		msg := strings.ToLower(urlErr.Err.Error())
		switch {
		case strings.Contains(msg, "malformed"),
			strings.Contains(msg, "unexpected eof"),
			strings.Contains(msg, "server sent"):
			return ReasonMalformed
		case strings.Contains(msg, "connection refused"):
			return ReasonConnectionRefused
		}
	}

	if errors.Is(err, syscall.ECONNRESET) {
		return ReasonMalformed
	}
	return ReasonOther
}
