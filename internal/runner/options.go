package runner

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/torosent/barrage/internal/httpclient"
	"github.com/torosent/barrage/internal/pool"
)

// Options configure the Runner.
type Options struct {
	BaseURL        string                      // service under test, e.g. http://127.0.0.1:8790 (required)
	Timeout        time.Duration               // per-request timeout for the default dispatcher
	RatePerSecond  int                         // dispatch pacing (0 means unlimited)
	Dispatcher     pool.Dispatcher             // request executor (defaults to an HTTP dispatcher)
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
	FailureLogger  FailureLogger               // optional; receives every transport failure
	Tracer         trace.Tracer                // optional; one span per dispatch
	Observer       Observer                    // optional; notified around each campaign in RunAll
}

// Observer is notified as RunAll moves through its campaigns.
type Observer interface {
	CampaignStarted(c *Campaign)
	CampaignFinished(res Result)
}

func (o *Options) normalize() {
	if o.Timeout <= 0 {
		o.Timeout = httpclient.DefaultTimeout
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Dispatcher == nil {
		o.Dispatcher = httpclient.NewDispatcher(httpclient.NewClient(o.Timeout))
	}
}
