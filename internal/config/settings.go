// Package config loads barrage settings from flags and an optional JSON or YAML file.
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// fileSettings is one mapping from a decoded config file. Keys match
// regardless of case, underscores or hyphens, so base_url, baseURL and
// base-url name the same setting. Errors carry the full setting path.
type fileSettings struct {
	path   string
	values map[string]interface{}
}

func newFileSettings(path string, raw interface{}) (fileSettings, error) {
	values := map[string]interface{}{}
	switch m := raw.(type) {
	case nil:
	case map[string]interface{}:
		for k, v := range m {
			values[settingKey(k)] = v
		}
	case map[interface{}]interface{}:
		for k, v := range m {
			values[settingKey(fmt.Sprint(k))] = v
		}
	default:
		return fileSettings{}, fmt.Errorf("%s: want a mapping, got %T", path, raw)
	}
	return fileSettings{path: path, values: values}, nil
}

func settingKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer("_", "", "-", "").Replace(k)
}

func (s fileSettings) has(key string) bool {
	_, ok := s.values[settingKey(key)]
	return ok
}

func (s fileSettings) name(key string) string {
	if s.path == "" {
		return key
	}
	return s.path + "." + key
}

func (s fileSettings) invalid(key string, raw interface{}, want string) error {
	return fmt.Errorf("%s: got %v (%T), want %s", s.name(key), raw, raw, want)
}

// text stores the trimmed value of key in dst. Scalars of any type are
// accepted, so a numeric service name still reads as text.
func (s fileSettings) text(key string, dst *string) error {
	raw, ok := s.values[settingKey(key)]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		*dst = strings.TrimSpace(v)
	case map[string]interface{}, map[interface{}]interface{}, []interface{}:
		return s.invalid(key, raw, "text")
	default:
		*dst = strings.TrimSpace(fmt.Sprint(v))
	}
	return nil
}

// whole stores key in dst as an integer. Request counts, worker counts and
// rates are never fractional, so 2.5 is rejected instead of truncated. Range
// checks are left to Validate so an explicit zero is reported there.
func (s fileSettings) whole(key string, dst *int) (bool, error) {
	raw, ok := s.values[settingKey(key)]
	if !ok || raw == nil {
		return false, nil
	}
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case uint64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return false, s.invalid(key, raw, "a whole number")
		}
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return false, s.invalid(key, raw, "a whole number")
		}
		n = parsed
	default:
		return false, s.invalid(key, raw, "a whole number")
	}
	*dst = n
	return true, nil
}

func (s fileSettings) flag(key string, dst *bool) error {
	raw, ok := s.values[settingKey(key)]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case bool:
		*dst = v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return s.invalid(key, raw, "true or false")
		}
		*dst = b
	default:
		return s.invalid(key, raw, "true or false")
	}
	return nil
}

// duration accepts Go duration text ("5s", "250ms") or a bare number of
// seconds.
func (s fileSettings) duration(key string, dst *time.Duration) error {
	raw, ok := s.values[settingKey(key)]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case time.Duration:
		*dst = v
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return s.invalid(key, raw, `a duration such as "5s"`)
		}
		*dst = d
	case int:
		*dst = time.Duration(v) * time.Second
	case int64:
		*dst = time.Duration(v) * time.Second
	case float64:
		*dst = time.Duration(v * float64(time.Second))
	default:
		return s.invalid(key, raw, `a duration such as "5s"`)
	}
	return nil
}

func (s fileSettings) ratio(key string, dst *float64) error {
	raw, ok := s.values[settingKey(key)]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		*dst = v
	case int:
		*dst = float64(v)
	case int64:
		*dst = float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return s.invalid(key, raw, "a number")
		}
		*dst = f
	default:
		return s.invalid(key, raw, "a number")
	}
	return nil
}

// list stores key in dst. A single string is a one-item list.
func (s fileSettings) list(key string, dst *[]string) error {
	raw, ok := s.values[settingKey(key)]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		*dst = []string{v}
	case []string:
		*dst = append([]string(nil), v...)
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("%s[%d]: got %T, want text", s.name(key), i, item)
			}
			out[i] = str
		}
		*dst = out
	default:
		return s.invalid(key, raw, "a list of text")
	}
	return nil
}

// section returns the nested mapping under key.
func (s fileSettings) section(key string) (fileSettings, bool, error) {
	raw, ok := s.values[settingKey(key)]
	if !ok || raw == nil {
		return fileSettings{}, false, nil
	}
	sub, err := newFileSettings(s.name(key), raw)
	return sub, err == nil, err
}

// entries returns the list of mappings under key, such as the campaigns.
func (s fileSettings) entries(key string) ([]fileSettings, bool, error) {
	raw, ok := s.values[settingKey(key)]
	if !ok || raw == nil {
		return nil, ok, nil
	}
	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case []map[string]interface{}:
		for _, m := range v {
			items = append(items, m)
		}
	default:
		return nil, false, s.invalid(key, raw, "a list")
	}
	out := make([]fileSettings, 0, len(items))
	for i, item := range items {
		entry, err := newFileSettings(fmt.Sprintf("%s[%d]", s.name(key), i), item)
		if err != nil {
			return nil, false, err
		}
		out = append(out, entry)
	}
	return out, true, nil
}
