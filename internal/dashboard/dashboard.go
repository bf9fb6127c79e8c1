package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/barrage/internal/httpclient"
	"github.com/torosent/barrage/internal/metrics"
	"github.com/torosent/barrage/internal/runner"
)

const (
	refreshInterval = 500 * time.Millisecond
	historyLen      = 100
	maxStatusRows   = 10
)

// Settings holds the run parameters shown in the header.
type Settings struct {
	Rate       int           // requests per second (0 = unlimited)
	Timeout    time.Duration // per-request timeout
	Campaigns  int           // number of campaigns in the run
	ConfigFile string        // path to config file if used
}

// source is the campaign currently on screen.
type source struct {
	name        string
	url         string
	total       int
	concurrency int
	agg         *metrics.Aggregator
}

// Dashboard renders a live terminal UI while campaigns run.
// It satisfies runner.Observer so RunAll can drive it.
type Dashboard struct {
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex
	current      atomic.Pointer[source]

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	progressGauge  *widgets.Gauge
	statusList     *widgets.List
	campaignList   *widgets.List
	summaryPara    *widgets.Paragraph
	latencyHistory []float64
	finished       []string
	settings       Settings
}

var _ runner.Observer = (*Dashboard)(nil)

// New creates a new Dashboard. shutdownFunc is called when the user presses
// q or Ctrl+C.
func New(settings Settings, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, historyLen),
		settings:       settings,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "P99 (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Real-time Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP90: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Campaign Progress"
	d.progressGauge.Percent = 0
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.statusList = widgets.NewList()
	d.statusList.Title = "Status Buckets"
	d.statusList.Rows = []string{"Awaiting data"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.statusList.BorderStyle.Fg = ui.ColorCyan

	d.campaignList = widgets.NewList()
	d.campaignList.Title = "Finished Campaigns"
	d.campaignList.Rows = []string{"None yet"}
	d.campaignList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.campaignList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "barrage"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.progressGauge),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.40,
			ui.NewCol(0.5, d.statusList),
			ui.NewCol(0.5, d.campaignList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// CampaignStarted switches the display to c.
func (d *Dashboard) CampaignStarted(c *runner.Campaign) {
	d.current.Store(&source{
		name:        c.Name(),
		url:         c.Target.URL(),
		total:       c.Spec.Count,
		concurrency: c.Spec.Concurrency,
		agg:         c.Aggregator(),
	})
	d.mu.Lock()
	d.latencyHistory = d.latencyHistory[:0]
	d.mu.Unlock()
}

// CampaignFinished adds res to the finished list.
func (d *Dashboard) CampaignFinished(res runner.Result) {
	d.mu.Lock()
	d.finished = append(d.finished, formatCampaignRow(res))
	d.campaignList.Rows = d.finished
	d.mu.Unlock()
}

func (d *Dashboard) run() {
	defer d.wg.Done()
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() ends the loop once the run unwinds.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.mu.Lock()
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				d.mu.Unlock()
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes widget data from the current campaign's aggregator.
func (d *Dashboard) update() {
	src := d.current.Load()
	if src == nil {
		return
	}
	t := src.agg.Snapshot()

	d.mu.Lock()
	defer d.mu.Unlock()

	if t.TotalIssued > 0 {
		d.latencyHistory = appendHistory(d.latencyHistory, t.P99LatencyMs, historyLen)
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Real-time Latency | P99: %.2fms | Min: %.2fms | Max: %.2fms",
			t.P99LatencyMs, t.MinLatencyMs, t.MaxLatencyMs,
		)
	}

	d.progressGauge.Percent = completionPercent(t.TotalIssued, src.total)
	d.progressGauge.Label = fmt.Sprintf("%d / %d (%.1f RPS)", t.TotalIssued, src.total, t.RequestsPerSec)

	d.summaryPara.Text = fmt.Sprintf(
		"Campaign: %s\nTarget: GET %s\n%s",
		src.name,
		src.url,
		formatSettings(d.settings, src.concurrency, t.Elapsed),
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP99:  %.2fms",
		t.MinLatencyMs,
		t.MeanLatencyMs,
		t.P50LatencyMs,
		t.P90LatencyMs,
		t.P99LatencyMs,
	)

	d.statusList.Rows = formatStatusRows(t.Buckets, t.ErrorReasons)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func appendHistory(history []float64, v float64, limit int) []float64 {
	history = append(history, v)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func completionPercent(done int64, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(done * 100 / int64(total))
	if pct > 100 {
		pct = 100
	}
	return pct
}

func formatStatusRows(buckets, reasons map[string]int64) []string {
	rows := metrics.SortedBuckets(buckets)
	if len(rows) == 0 {
		return []string{"[No responses yet](fg:green)"}
	}
	formatted := make([]string, 0, maxStatusRows)
	for _, row := range rows {
		if len(formatted) == maxStatusRows {
			break
		}
		formatted = append(formatted, fmt.Sprintf("[%s](fg:%s) %d", row.Code, bucketColor(row.Code), row.Count))
		if row.Code != httpclient.ErrorBucket {
			continue
		}
		for _, reason := range metrics.SortedBuckets(reasons) {
			if len(formatted) == maxStatusRows {
				break
			}
			formatted = append(formatted, fmt.Sprintf("  %s %d", metrics.FriendlyReason(reason.Code), reason.Count))
		}
	}
	return formatted
}

func bucketColor(code string) string {
	switch {
	case strings.HasPrefix(code, "2"):
		return "green"
	case strings.HasPrefix(code, "3"):
		return "cyan"
	case strings.HasPrefix(code, "4"):
		return "yellow"
	default:
		return "red"
	}
}

func formatCampaignRow(res runner.Result) string {
	t := res.Tally
	return fmt.Sprintf("[%s](fg:cyan) | %s | %d req | 200 x%d | 404 x%d | P99 %.1fms",
		res.Name, res.State, t.TotalIssued, t.Count("200"), t.Count("404"), t.P99LatencyMs)
}

// formatSettings formats the run parameters for the header.
func formatSettings(s Settings, concurrency int, elapsed time.Duration) string {
	parts := []string{fmt.Sprintf("Workers: %d", concurrency)}

	if s.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", s.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if s.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", s.Timeout))
	}
	if s.Campaigns > 1 {
		parts = append(parts, fmt.Sprintf("Campaigns: %d", s.Campaigns))
	}
	if s.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", s.ConfigFile))
	}
	parts = append(parts, fmt.Sprintf("Elapsed: %s", elapsed.Round(time.Second)))

	return strings.Join(parts, " | ")
}
