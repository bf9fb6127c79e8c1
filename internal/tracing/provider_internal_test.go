package tracing

import (
	"testing"

	"github.com/torosent/barrage/internal/config"
)

func TestRequestSampler(t *testing.T) {
	tests := []struct {
		rate    float64
		want    string
		wantErr bool
	}{
		{0, "AlwaysOffSampler", false},
		{1, "AlwaysOnSampler", false},
		{0.25, "TraceIDRatioBased{0.25}", false},
		{-0.1, "", true},
		{1.01, "", true},
	}
	for _, tt := range tests {
		sampler, err := requestSampler(tt.rate)
		if tt.wantErr {
			if err == nil {
				t.Errorf("requestSampler(%g) error = nil, want error", tt.rate)
			}
			continue
		}
		if err != nil {
			t.Fatalf("requestSampler(%g) error = %v", tt.rate, err)
		}
		if got := sampler.Description(); got != tt.want {
			t.Errorf("requestSampler(%g) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestExportEndpointFallsBackToEnvironment(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", " collector:4317 ")
	if got := exportEndpoint(config.TracingConfig{}); got != "collector:4317" {
		t.Errorf("exportEndpoint() = %q, want environment value", got)
	}
	if got := exportEndpoint(config.TracingConfig{Endpoint: "localhost:4318"}); got != "localhost:4318" {
		t.Errorf("exportEndpoint() = %q, want configured value", got)
	}
}

func TestServiceNamePrecedence(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	if got := serviceName(config.TracingConfig{}); got != "barrage" {
		t.Errorf("serviceName() = %q, want barrage", got)
	}
	t.Setenv("OTEL_SERVICE_NAME", "people-load")
	if got := serviceName(config.TracingConfig{}); got != "people-load" {
		t.Errorf("serviceName() = %q, want environment value", got)
	}
	if got := serviceName(config.TracingConfig{ServiceName: "nightly"}); got != "nightly" {
		t.Errorf("serviceName() = %q, want configured value", got)
	}
}
