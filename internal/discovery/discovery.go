// Package discovery turns a service's root index into campaign paths.
//
// The index is a JSON object mapping collection names to absolute URLs, for
// example {"people": "http://127.0.0.1:8790/people", ...}. Only URLs under
// the base URL are kept.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// maxIndexBytes bounds how much of the index body is read.
const maxIndexBytes = 1 << 20

// ErrNotIndex is returned when the root document is not a JSON object.
var ErrNotIndex = errors.New("root document is not a JSON object")

// Collection is one entry of the root index.
type Collection struct {
	Name string
	Path string
}

// Discover fetches baseURL's root index and returns its collections sorted
// by name.
func Discover(ctx context.Context, client *http.Client, baseURL string) ([]Collection, error) {
	if client == nil {
		client = http.DefaultClient
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String()+"/", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch index: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexBytes))
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return ParseIndex(body, base)
}

// ParseIndex extracts collections from an index document.
func ParseIndex(body []byte, base *url.URL) ([]Collection, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrNotIndex
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, ErrNotIndex
	}

	var out []Collection
	doc.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			return true
		}
		if p, ok := pathUnder(base, value.String()); ok {
			out = append(out, Collection{Name: key.String(), Path: p})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// pathUnder returns raw's path when raw points at base's scheme and host.
func pathUnder(base *url.URL, raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() {
		return "", false
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return "", false
	}
	prefix := strings.TrimRight(base.Path, "/")
	if !strings.HasPrefix(u.Path, prefix+"/") {
		return "", false
	}
	p := strings.TrimPrefix(u.Path, prefix)
	if p == "" || p == "/" {
		return "", false
	}
	return p, true
}
