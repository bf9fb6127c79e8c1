package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torosent/barrage/internal/metrics"
	"github.com/torosent/barrage/internal/runner"
)

// progressSource is the campaign currently being displayed.
type progressSource struct {
	name  string
	total int
	agg   *metrics.Aggregator
}

// ProgressReporter displays a single updating progress line per campaign.
// It satisfies runner.Observer so RunAll can drive it.
type ProgressReporter struct {
	interval time.Duration
	writer   io.Writer
	current  atomic.Pointer[progressSource]
	active   int32

	mu       sync.Mutex
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
}

var _ runner.Observer = (*ProgressReporter)(nil)

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &ProgressReporter{
		interval: interval,
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	p.mu.Lock()
	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan struct{})
	p.finished = make(chan struct{})
	p.mu.Unlock()
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		p.mu.Lock()
		close(p.done)
		p.ticker.Stop()
		finished := p.finished
		p.mu.Unlock()
		<-finished
	}
}

// CampaignStarted switches the display to c.
func (p *ProgressReporter) CampaignStarted(c *runner.Campaign) {
	p.current.Store(&progressSource{name: c.Name(), total: c.Spec.Count, agg: c.Aggregator()})
	p.Start()
}

// CampaignFinished prints the final line for res and ends it with a newline.
func (p *ProgressReporter) CampaignFinished(res runner.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current.Store(nil)
	fmt.Fprintf(p.writer, "\r%s [%s]\n", formatProgress(res.Name, res.Count, res.Tally), res.State)
}

func (p *ProgressReporter) run() {
	p.mu.Lock()
	ticker, done, finished := p.ticker, p.done, p.finished
	p.mu.Unlock()
	defer close(finished)
	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-done:
			return
		}
	}
}

func (p *ProgressReporter) tick() {
	src := p.current.Load()
	if src == nil {
		return
	}
	p.draw(src, formatProgress(src.name, src.total, src.agg.Snapshot()))
}

// draw prints line unless src stopped being current while line was built.
func (p *ProgressReporter) draw(src *progressSource, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current.Load() != src {
		return
	}
	fmt.Fprint(p.writer, "\r"+line)
}

func formatProgress(name string, total int, t metrics.Tally) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d/%d", name, t.TotalIssued, total)
	if rows := metrics.SortedBuckets(t.Buckets); len(rows) > 0 {
		b.WriteString(" |")
		for _, row := range rows {
			fmt.Fprintf(&b, " %s=%d", row.Code, row.Count)
		}
	}
	fmt.Fprintf(&b, " | RPS: %.1f", t.RequestsPerSec)
	return b.String()
}
