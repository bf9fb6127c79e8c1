package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a single dispatch when no timeout is configured.
	DefaultTimeout = 10 * time.Second

	// maxDrainBytes caps how much of a response body is read before the
	// connection is handed back to the pool.
	maxDrainBytes = 64 * 1024
)

// NewClient returns an HTTP client for dispatching. A non-positive timeout
// falls back to DefaultTimeout so no request can block forever.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   256,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Dispatcher issues single GET requests and classifies their outcome.
type Dispatcher struct {
	client *http.Client
}

// NewDispatcher wraps client. A nil client is replaced with NewClient(DefaultTimeout).
func NewDispatcher(client *http.Client) *Dispatcher {
	if client == nil {
		client = NewClient(DefaultTimeout)
	}
	if client.Timeout <= 0 {
		// Copy so the caller's client is left untouched.
		bounded := *client
		bounded.Timeout = DefaultTimeout
		client = &bounded
	}
	return &Dispatcher{client: client}
}

// Dispatch performs one GET to url. It never returns an error and never
// panics on network failures; failures are reported as transport error outcomes.
func (d *Dispatcher) Dispatch(ctx context.Context, url string) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return TransportError(fmt.Errorf("build request: %w", err), time.Since(start))
	}

	resp, err := d.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return TransportError(err, latency)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return Success(resp.StatusCode, latency)
}

// Close releases idle connections held by the underlying client.
func (d *Dispatcher) Close() {
	if d == nil || d.client == nil {
		return
	}
	d.client.CloseIdleConnections()
}
