package metrics

import (
	"strings"
	"unicode"

	"github.com/torosent/barrage/internal/httpclient"
)

var friendlyReasons = map[string]string{
	httpclient.ReasonTimeout:           "Request timed out",
	httpclient.ReasonConnectionRefused: "Connection refused",
	httpclient.ReasonDNS:               "DNS lookup failed",
	httpclient.ReasonMalformed:         "Malformed response",
	httpclient.ReasonCanceled:          "Request canceled",
	httpclient.ReasonOther:             "Other transport error",
}

// FriendlyReason returns a human-friendly label for a transport failure reason.
func FriendlyReason(reason string) string {
	cleaned := strings.TrimSpace(reason)
	if cleaned == "" {
		return "Unknown error"
	}
	if alias, ok := friendlyReasons[cleaned]; ok {
		return alias
	}
	return humanize(cleaned)
}

// humanize turns snake_case or kebab-case into a capitalized phrase.
func humanize(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return s
	}
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	runes := []rune(strings.Join(words, " "))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
