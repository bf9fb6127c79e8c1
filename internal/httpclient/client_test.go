package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientTimeoutApplied(t *testing.T) {
	timeout := 50 * time.Millisecond
	client := NewClient(timeout)
	defer client.CloseIdleConnections()

	if client.Timeout != timeout {
		t.Fatalf("expected client timeout %s, got %s", timeout, client.Timeout)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(timeout * 3)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatalf("expected timeout error, got nil")
	}

	elapsed := time.Since(start)
	if elapsed < timeout {
		t.Fatalf("request returned too quickly: %s < %s", elapsed, timeout)
	}
	if elapsed > timeout*5 {
		t.Fatalf("request took too long: %s", elapsed)
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("expected timeout error, got %v", err)
		}
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.MaxIdleConns == 0 {
		t.Fatalf("expected transport to allow idle connections")
	}
	if transport.IdleConnTimeout == 0 {
		t.Fatalf("expected transport to set idle connection timeout")
	}
}

func TestNewClientNeverUnbounded(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		client := NewClient(timeout)
		if client.Timeout != DefaultTimeout {
			t.Fatalf("NewClient(%s) timeout = %s, want %s", timeout, client.Timeout, DefaultTimeout)
		}
	}
}

func TestNewDispatcherBoundsCallerClient(t *testing.T) {
	unbounded := &http.Client{}
	d := NewDispatcher(unbounded)
	if d.client.Timeout != DefaultTimeout {
		t.Fatalf("expected default timeout, got %s", d.client.Timeout)
	}
	if unbounded.Timeout != 0 {
		t.Fatalf("caller client was modified")
	}
}

func TestDispatchReturnsStatusCodeForAnyResponse(t *testing.T) {
	codes := []int{http.StatusOK, http.StatusNotFound, http.StatusInternalServerError, http.StatusMovedPermanently}
	for _, code := range codes {
		code := code
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("expected GET, got %s", r.Method)
			}
			if r.ContentLength > 0 {
				t.Errorf("expected no request body")
			}
			if code == http.StatusMovedPermanently {
				// A relative Location to itself would loop; point at a 200.
				w.Header().Set("Location", "/done")
				if r.URL.Path == "/done" {
					w.WriteHeader(http.StatusOK)
					return
				}
			}
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"detail":"ignored"}`))
		}))

		d := NewDispatcher(NewClient(time.Second))
		out := d.Dispatch(context.Background(), server.URL+"/x")
		d.Close()
		server.Close()

		if out.Kind != OutcomeSuccess {
			t.Fatalf("code %d: expected success outcome, got %+v", code, out)
		}
		want := code
		if code == http.StatusMovedPermanently {
			want = http.StatusOK
		}
		if out.StatusCode != want {
			t.Fatalf("expected status %d, got %d", want, out.StatusCode)
		}
		if out.Latency <= 0 {
			t.Fatalf("expected latency to be recorded")
		}
	}
}

func TestDispatchTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	d := NewDispatcher(NewClient(50 * time.Millisecond))
	defer d.Close()

	out := d.Dispatch(context.Background(), server.URL)
	if !out.IsTransportError() {
		t.Fatalf("expected transport error, got %+v", out)
	}
	if out.Reason != ReasonTimeout {
		t.Fatalf("expected reason %q, got %q (%s)", ReasonTimeout, out.Reason, out.Message)
	}
	if out.Bucket() != ErrorBucket {
		t.Fatalf("expected bucket %q, got %q", ErrorBucket, out.Bucket())
	}
}

func TestDispatchConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	d := NewDispatcher(NewClient(time.Second))
	defer d.Close()

	out := d.Dispatch(context.Background(), "http://"+addr+"/")
	if !out.IsTransportError() {
		t.Fatalf("expected transport error, got %+v", out)
	}
	if out.Reason != ReasonConnectionRefused {
		t.Fatalf("expected reason %q, got %q (%s)", ReasonConnectionRefused, out.Reason, out.Message)
	}
	if out.Message == "" {
		t.Fatalf("expected diagnostic message")
	}
}

func TestDispatchMalformedResponse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			buf := make([]byte, 1024)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte("this is not http\r\n\r\n"))
			conn.Close()
		}
	}()

	d := NewDispatcher(NewClient(time.Second))
	defer d.Close()

	out := d.Dispatch(context.Background(), "http://"+ln.Addr().String()+"/")
	if !out.IsTransportError() {
		t.Fatalf("expected transport error, got %+v", out)
	}
	if out.Reason != ReasonMalformed {
		t.Fatalf("expected reason %q, got %q (%s)", ReasonMalformed, out.Reason, out.Message)
	}
}

func TestDispatchInvalidURL(t *testing.T) {
	d := NewDispatcher(nil)
	out := d.Dispatch(context.Background(), "http://[::1")
	if !out.IsTransportError() {
		t.Fatalf("expected transport error for invalid url, got %+v", out)
	}
}

func TestDispatchCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(NewClient(time.Second))
	out := d.Dispatch(ctx, "http://127.0.0.1:1/")
	if !out.IsTransportError() {
		t.Fatalf("expected transport error, got %+v", out)
	}
	if out.Reason != ReasonCanceled {
		t.Fatalf("expected reason %q, got %q", ReasonCanceled, out.Reason)
	}
}
