package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/torosent/barrage/internal/threshold"
)

func TestGenerateHTMLReport(t *testing.T) {
	ths, _ := threshold.ParseMultiple([]string{"status_404:count == 1000 @missing person"})
	ev := threshold.NewEvaluator(ths)
	results := sampleResults()
	var tr []threshold.Result
	for _, res := range results {
		tr = append(tr, ev.Evaluate(res.Name, res.Tally)...)
	}

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, NewReport("http://127.0.0.1:8790", results, tr)); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	html := buf.String()

	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Error("missing doctype")
	}
	if got := strings.Count(html, `class="section campaign"`); got != 2 {
		t.Errorf("campaign sections = %d, want 2", got)
	}
	for _, want := range []string{
		"Base URL: http://127.0.0.1:8790",
		"GET http://127.0.0.1:8790/people/1",
		"missing person",
		`<span class="badge badge-success">200</span>`,
		`<span class="badge badge-warning">404</span>`,
		`<span class="badge badge-error">error</span>`,
		"Request timed out",
		"99.5%",
		"Thresholds (1/1 Passed)",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestGenerateHTMLReportEscapesNames(t *testing.T) {
	results := sampleResults()
	results[0].Name = "<script>alert(1)</script>"

	var buf bytes.Buffer
	if err := GenerateHTMLReport(&buf, NewReport("http://x", results, nil)); err != nil {
		t.Fatalf("GenerateHTMLReport() error = %v", err)
	}
	if strings.Contains(buf.String(), "<script>alert(1)</script>") {
		t.Error("campaign name was not escaped")
	}
	if strings.Contains(buf.String(), "Thresholds (") {
		t.Error("threshold section rendered without thresholds")
	}
}
