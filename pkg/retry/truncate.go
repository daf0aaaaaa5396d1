package retry

import (
	"regexp"
	"strings"
)

// DefaultMaxReasonLength caps persisted failure reasons.
const DefaultMaxReasonLength = 1000

const redacted = "[REDACTED]"

var secretPatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\bxox[abposr]-[A-Za-z0-9-]+`), redacted},
	{regexp.MustCompile(`(?i)\bbearer\s+[a-z0-9\-._~+/]+=*`), "Bearer " + redacted},
	{regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*://[^:\s/]+):([^@\s]+)@`), `$1:` + redacted + `@`},
	{regexp.MustCompile(`(?i)\b(token|secret|password)\s*[:=]\s*([^\s,;]+)`), `$1=` + redacted},
}

// Truncate keeps the first maxRunes runes of msg.
func Truncate(msg string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(msg)
	if len(runes) <= maxRunes {
		return msg
	}
	return string(runes[:maxRunes])
}

// FailureReason renders err for storage: credentials are redacted and the
// result is cut to maxRunes.
func FailureReason(err error, maxRunes int) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	for _, p := range secretPatterns {
		msg = p.pattern.ReplaceAllString(msg, p.replacement)
	}
	return Truncate(msg, maxRunes)
}
