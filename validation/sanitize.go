package validation

import (
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()

	angleBrackets       = strings.NewReplacer("<", "", ">", "")
	scriptURLPattern    = regexp.MustCompile(`(?i)(?:java|vb)script\s*:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
)

// Sanitize strips markup, angle brackets, script URLs and inline event
// handlers from s and trims the result. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	// Every pass after the first only removes or decodes bytes, so the loop
	// ends once a pass changes nothing.
	out := sanitizeOnce(s)
	for {
		next := sanitizeOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func sanitizeOnce(s string) string {
	// bluemonday escapes the text it keeps; decode it back to plain text.
	s = unescapeAll(strictPolicy.Sanitize(s))
	s = angleBrackets.Replace(s)
	s = scriptURLPattern.ReplaceAllString(s, "")
	s = eventHandlerPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// unescapeAll decodes entities until none are left. Each decode step
// shortens the string.
func unescapeAll(s string) string {
	for {
		next := html.UnescapeString(s)
		if next == s {
			return s
		}
		s = next
	}
}

// SanitizeValue applies Sanitize to strings, and recursively to the elements
// of slices and to both keys and values of maps. Other values are returned
// unchanged. When several keys sanitize to the same string, a key that was
// already clean wins; otherwise the lexically smallest original key wins.
func SanitizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return Sanitize(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = SanitizeValue(item)
		}
		return out
	case []string:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Sanitize(item)
		}
		return out
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		out := make(map[string]interface{}, len(v))
		clean := make(map[string]bool, len(v))
		for _, key := range keys {
			sk := Sanitize(key)
			if _, taken := out[sk]; taken && (clean[sk] || sk != key) {
				continue
			}
			out[sk] = SanitizeValue(v[key])
			clean[sk] = sk == key
		}
		return out
	default:
		return value
	}
}
