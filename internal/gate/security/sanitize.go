package security

import (
	"regexp"
	"strings"
)

var (
	scriptBlock  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	angleBracket = regexp.MustCompile(`[<>]`)
	jsScheme     = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandler = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// SanitizeInput strips markup that could execute in a browser: whole script
// blocks, angle brackets, javascript: schemes and inline event handlers.
func SanitizeInput(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = angleBracket.ReplaceAllString(s, "")
	s = jsScheme.ReplaceAllString(s, "")
	s = eventHandler.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// SanitizeValue applies SanitizeInput to every string leaf of a decoded JSON
// value. Object keys are left alone.
func SanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return SanitizeInput(t)
	case map[string]any:
		for k, inner := range t {
			t[k] = SanitizeValue(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = SanitizeValue(inner)
		}
		return t
	default:
		return v
	}
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
