package output

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/torosent/barrage/internal/metrics"
)

// htmlCampaign is one campaign block of the HTML report.
type htmlCampaign struct {
	Name        string
	URL         string
	ID          string
	State       string
	Count       int
	Concurrency int
	Tally       metrics.Tally
	Buckets     []metrics.StatusBucket
	Reasons     []metrics.StatusBucket
}

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	BaseURL          string
	Campaigns        []htmlCampaign
	ThresholdSummary *ThresholdSummary
}

// GenerateHTMLReport writes a standalone HTML page with one section per campaign.
func GenerateHTMLReport(w io.Writer, report Report) error {
	data := HTMLReportData{
		GeneratedAt:      report.GeneratedAt.Format(time.RFC3339),
		BaseURL:          report.BaseURL,
		ThresholdSummary: report.Thresholds,
	}
	for _, res := range report.Campaigns {
		data.Campaigns = append(data.Campaigns, htmlCampaign{
			Name:        res.Name,
			URL:         res.URL,
			ID:          res.ID,
			State:       res.State,
			Count:       res.Count,
			Concurrency: res.Concurrency,
			Tally:       res.Tally,
			Buckets:     metrics.SortedBuckets(res.Tally.Buckets),
			Reasons:     metrics.SortedBuckets(res.Tally.ErrorReasons),
		})
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Microsecond).String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatPercent": func(part, total int64) string {
			if total == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
		},
		"friendlyReason": metrics.FriendlyReason,
		"bucketClass": func(code string) string {
			if len(code) == 3 && code[0] == '2' {
				return "badge-success"
			}
			if len(code) == 3 && (code[0] == '3' || code[0] == '4') {
				return "badge-warning"
			}
			return "badge-error"
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Barrage Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1200px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #b91c1c 0%, #7c2d12 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 { font-size: 2rem; margin-bottom: 10px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 40px; }
        .section { margin-bottom: 40px; }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .section .target { color: #6c757d; font-size: 0.9rem; margin-bottom: 15px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(180px, 1fr));
            gap: 15px;
            margin-bottom: 20px;
        }
        .card { background: #f8f9fa; border-radius: 8px; padding: 15px; border-left: 4px solid #b91c1c; }
        .card h3 { font-size: 0.8rem; color: #6c757d; text-transform: uppercase; letter-spacing: 0.5px; }
        .card .value { font-size: 1.6rem; font-weight: bold; }
        .card .subvalue { font-size: 0.85rem; color: #6c757d; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
        th, td { text-align: left; padding: 10px; border-bottom: 1px solid #e5e7eb; }
        th { background: #f8f9fa; font-weight: 600; color: #4b5563; font-size: 0.85rem; text-transform: uppercase; }
        .badge { display: inline-block; padding: 2px 10px; border-radius: 12px; font-size: 0.85rem; font-weight: 600; }
        .badge-success { background: #d1fae5; color: #065f46; }
        .badge-warning { background: #fef3c7; color: #92400e; }
        .badge-error { background: #fee2e2; color: #991b1b; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Barrage Report</h1>
            <div class="meta">Base URL: {{.BaseURL}}</div>
            <div class="meta">Generated: {{.GeneratedAt}}</div>
        </header>
        <div class="content">
            {{range .Campaigns}}
            <div class="section campaign">
                <h2>{{.Name}} <span class="badge {{if eq .State "completed"}}badge-success{{else}}badge-error{{end}}">{{.State}}</span></h2>
                <div class="target">GET {{.URL}} | ID {{.ID}}</div>
                <div class="grid">
                    <div class="card">
                        <h3>Requests</h3>
                        <div class="value">{{.Tally.TotalIssued}}</div>
                        <div class="subvalue">of {{.Count}} at concurrency {{.Concurrency}}</div>
                    </div>
                    <div class="card">
                        <h3>Duration</h3>
                        <div class="value">{{formatDuration .Tally.Elapsed}}</div>
                    </div>
                    <div class="card">
                        <h3>Requests/sec</h3>
                        <div class="value">{{formatFloat .Tally.RequestsPerSec}}</div>
                    </div>
                    <div class="card">
                        <h3>P99 Latency</h3>
                        <div class="value">{{formatDuration .Tally.P99Latency}}</div>
                        <div class="subvalue">p50 {{formatDuration .Tally.P50Latency}}, p95 {{formatDuration .Tally.P95Latency}}</div>
                    </div>
                </div>
                <table>
                    <thead><tr><th>Status</th><th>Count</th><th>Share</th></tr></thead>
                    <tbody>
                        {{$total := .Tally.TotalIssued}}
                        {{range .Buckets}}
                        <tr>
                            <td><span class="badge {{bucketClass .Code}}">{{.Code}}</span></td>
                            <td>{{.Count}}</td>
                            <td>{{formatPercent .Count $total}}%</td>
                        </tr>
                        {{else}}
                        <tr><td colspan="3"><em>No requests recorded</em></td></tr>
                        {{end}}
                    </tbody>
                </table>
                {{if .Reasons}}
                <table>
                    <thead><tr><th>Transport Error</th><th>Count</th></tr></thead>
                    <tbody>
                        {{range .Reasons}}
                        <tr><td>{{friendlyReason .Code}}</td><td>{{.Count}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
                {{end}}
            </div>
            {{end}}

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Campaign</th>
                            <th>Threshold</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Campaign}}</td>
                            <td>{{.Threshold}}</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>
</body>
</html>
`
