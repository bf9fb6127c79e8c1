package httpclient

import "strings"

// Target identifies what a campaign requests. It is a value type and is
// never mutated after construction.
type Target struct {
	BaseURL string
	Path    string
}

// NewTarget builds a Target, trimming surrounding whitespace.
func NewTarget(baseURL, path string) Target {
	return Target{
		BaseURL: strings.TrimSpace(baseURL),
		Path:    strings.TrimSpace(path),
	}
}

// URL joins base and path. A trailing slash on the base is dropped when the
// path already starts with one, so "http://h/" + "/x" yields "http://h/x".
func (t Target) URL() string {
	if strings.HasSuffix(t.BaseURL, "/") && strings.HasPrefix(t.Path, "/") {
		return strings.TrimSuffix(t.BaseURL, "/") + t.Path
	}
	return t.BaseURL + t.Path
}

// Repeat returns n copies of t.
func Repeat(t Target, n int) []Target {
	if n <= 0 {
		return nil
	}
	targets := make([]Target, n)
	for i := range targets {
		targets[i] = t
	}
	return targets
}
